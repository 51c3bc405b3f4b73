package model

import "codepulse/internal/judge/sandbox/result"

// Progress is the number of executed cases out of the batch size.
type Progress struct {
	TotalTests int `json:"totalTests"`
	DoneTests  int `json:"doneTests"`
}

// JudgeStatusResponse is the cached progress of an in-flight batch.
type JudgeStatusResponse struct {
	SubmissionID string             `json:"submissionId"`
	Mode         string             `json:"mode"`
	Status       result.JudgeStatus `json:"status"`
	Language     string             `json:"language"`
	Progress     Progress           `json:"progress"`
	UpdatedAt    int64              `json:"updatedAt"`
}

// VerdictEventType identifies a verdict event.
type VerdictEventType string

const (
	VerdictEventGraded VerdictEventType = "graded"
	VerdictEventSingle VerdictEventType = "single"
)

// VerdictEvent is published once a submission has a final status.
type VerdictEvent struct {
	Type            VerdictEventType `json:"type"`
	SubmissionID    int64            `json:"submissionId"`
	ProblemID       int64            `json:"problemId,omitempty"`
	UserID          int64            `json:"userId"`
	Language        string           `json:"language"`
	Status          string           `json:"status"`
	Passed          int              `json:"passed"`
	Total           int              `json:"total"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	SourceKey       string           `json:"sourceKey,omitempty"`
	CreatedAt       int64            `json:"createdAt"`
}
