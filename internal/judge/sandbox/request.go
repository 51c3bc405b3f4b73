// Package sandbox runs batches of test cases against one submitted program.
package sandbox

import (
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/result"
)

const (
	ModeExploratory = "exploratory"
	ModeGraded      = "graded"
	ModeSingle      = "single"
)

// ExploratoryRequest runs sample cases plus caller supplied inputs.
type ExploratoryRequest struct {
	// TraceID is only used for status updates.
	TraceID      string
	Language     language.Language
	Code         string
	Template     string
	Samples      []result.TestCase
	CustomInputs []string
}

// GradedRequest runs every stored case in order until the first non-pass.
// Cases must already be ordered: samples by creation time, then hidden ones.
type GradedRequest struct {
	SubmissionID string
	Language     language.Language
	Code         string
	Template     string
	Cases        []result.TestCase
}

// SingleRequest runs code once against Stdin without any template.
type SingleRequest struct {
	SubmissionID string
	Language     language.Language
	Code         string
	Stdin        string
}
