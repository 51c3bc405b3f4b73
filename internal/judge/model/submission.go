package model

import "time"

// GradedSubmission is a row to insert into problem_submissions.
type GradedSubmission struct {
	ProblemID int64
	UserID    int64
	Language  string
	Code      string
	Status    string
}

// ProblemSubmission is one entry of a user's history for a problem.
type ProblemSubmission struct {
	ID          int64     `db:"id" json:"id"`
	Language    string    `db:"language" json:"language"`
	Status      string    `db:"status" json:"status"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// SubmissionDetail is one graded submission with its problem title.
type SubmissionDetail struct {
	ID           int64     `db:"id" json:"id"`
	ProblemID    int64     `db:"problem_id" json:"problem_id"`
	Language     string    `db:"language" json:"language"`
	Code         string    `db:"code" json:"code"`
	Status       string    `db:"status" json:"status"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
	ProblemTitle string    `db:"problem_title" json:"problem_title"`
}

// SingleSubmission is one row of the single-run history.
type SingleSubmission struct {
	ID          int64      `db:"id" json:"id"`
	Code        string     `db:"code" json:"code"`
	Status      string     `db:"status" json:"status"`
	Output      *string    `db:"output" json:"output"`
	SubmittedAt time.Time  `db:"submitted_at" json:"submitted_at"`
	ExecutedAt  *time.Time `db:"executed_at" json:"executed_at"`
}
