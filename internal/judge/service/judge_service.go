// Package service orchestrates judge requests: it loads problem data, runs
// batches through the sandbox worker and persists the results.
package service

import (
	"context"
	"fmt"
	"time"

	"codepulse/internal/judge/repository"
	"codepulse/internal/judge/sandbox"
	appErr "codepulse/pkg/errors"
)

const (
	defaultQueueWait       = 2 * time.Second
	defaultMaxCodeBytes    = 64 << 10
	defaultMaxInputBytes   = 1 << 20
	defaultMaxCustomInputs = 10
)

// Service handles judge requests.
type Service struct {
	worker      *sandbox.Worker
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	statusRepo  *repository.StatusRepository
	archive     repository.SourceArchive
	publisher   repository.VerdictPublisher

	workerTimeout  time.Duration
	dbTimeout      time.Duration
	storageTimeout time.Duration
	statusTimeout  time.Duration
	publishTimeout time.Duration
	queueWait      time.Duration

	maxCodeBytes    int
	maxInputBytes   int
	maxCustomInputs int

	sem chan struct{}
}

// Config holds service dependencies and settings. StatusRepo, Archive and
// Publisher are optional.
type Config struct {
	Worker      *sandbox.Worker
	Problems    repository.ProblemRepository
	Submissions repository.SubmissionRepository
	StatusRepo  *repository.StatusRepository
	Archive     repository.SourceArchive
	Publisher   repository.VerdictPublisher

	WorkerTimeout  time.Duration
	DBTimeout      time.Duration
	StorageTimeout time.Duration
	StatusTimeout  time.Duration
	PublishTimeout time.Duration
	QueueWait      time.Duration
	WorkerPoolSize int

	MaxCodeBytes    int
	MaxInputBytes   int
	MaxCustomInputs int
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Worker == nil {
		return nil, fmt.Errorf("worker is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.Submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	s := &Service{
		worker:          cfg.Worker,
		problems:        cfg.Problems,
		submissions:     cfg.Submissions,
		statusRepo:      cfg.StatusRepo,
		archive:         cfg.Archive,
		publisher:       cfg.Publisher,
		workerTimeout:   cfg.WorkerTimeout,
		dbTimeout:       cfg.DBTimeout,
		storageTimeout:  cfg.StorageTimeout,
		statusTimeout:   cfg.StatusTimeout,
		publishTimeout:  cfg.PublishTimeout,
		queueWait:       orDuration(cfg.QueueWait, defaultQueueWait),
		maxCodeBytes:    orInt(cfg.MaxCodeBytes, defaultMaxCodeBytes),
		maxInputBytes:   orInt(cfg.MaxInputBytes, defaultMaxInputBytes),
		maxCustomInputs: orInt(cfg.MaxCustomInputs, defaultMaxCustomInputs),
		sem:             make(chan struct{}, poolSize),
	}
	if s.statusRepo != nil {
		s.worker.SetStatusReporter(s)
	}
	return s, nil
}

// acquireSlot waits for a free batch slot until queueWait elapses or ctx ends.
func (s *Service) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.queueWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrapf(ctx.Err(), appErr.JudgeQueueFull, "waiting for a worker slot was cancelled")
	case <-timer.C:
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
