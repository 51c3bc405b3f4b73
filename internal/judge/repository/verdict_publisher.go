package repository

import (
	"context"
	"strconv"
	"time"

	"codepulse/internal/common/mq"
	"codepulse/internal/judge/model"
	appErr "codepulse/pkg/errors"
)

// VerdictPublisher publishes final verdicts for downstream consumers.
type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, event model.VerdictEvent) error
}

// MQVerdictPublisher publishes verdict events to a message queue.
type MQVerdictPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQVerdictPublisher creates a new MQ verdict publisher.
func NewMQVerdictPublisher(producer mq.Producer, topic string) *MQVerdictPublisher {
	return &MQVerdictPublisher{producer: producer, topic: topic}
}

// PublishVerdict publishes one verdict event keyed by submission id.
func (p *MQVerdictPublisher) PublishVerdict(ctx context.Context, event model.VerdictEvent) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("verdict publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("verdict topic is required")
	}
	if event.SubmissionID <= 0 {
		return appErr.ValidationError("submission_id", "required")
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return appErr.Wrapf(err, appErr.PublishError, "encode verdict event failed")
	}
	message := &mq.Message{
		ID:        string(event.Type) + ":" + strconv.FormatInt(event.SubmissionID, 10),
		Body:      payload,
		Headers:   map[string]string{"x-event-type": string(event.Type)},
		Timestamp: time.Now(),
	}
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.PublishError, "publish verdict event failed")
	}
	return nil
}
