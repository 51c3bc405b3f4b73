// Package model holds the judge service request, response and record types.
package model

import (
	"time"

	"codepulse/internal/judge/sandbox/result"
)

// RunRequest runs code against sample cases and extra inputs without persisting anything.
type RunRequest struct {
	ProblemID    int64    `json:"problem_id"`
	Language     string   `json:"language"`
	Code         string   `json:"code"`
	CustomInputs []string `json:"customInputs"`
}

// SubmitCodeRequest grades code against every stored case of a problem.
type SubmitCodeRequest struct {
	ProblemID int64  `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

// SubmitRequest runs code once against Input.
type SubmitRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Input    string `json:"input"`
}

// CaseResult is one case in a run or submit response.
type CaseResult struct {
	Type           string  `json:"type,omitempty"`
	TestCase       int     `json:"testCase"`
	Visibility     string  `json:"visibility,omitempty"`
	Passed         *bool   `json:"passed"`
	Status         string  `json:"status"`
	Input          *string `json:"input"`
	ExpectedOutput *string `json:"expectedOutput"`
	ActualOutput   *string `json:"actualOutput"`
	ExecutionTime  int64   `json:"executionTime"`
}

// RunResponse is the exploratory run result.
type RunResponse struct {
	Status  string         `json:"status"`
	Results []CaseResult   `json:"results"`
	Summary result.Summary `json:"summary"`
}

// SubmitCodeResponse is the graded submission result.
type SubmitCodeResponse struct {
	SubmissionID  int64              `json:"submissionId"`
	Status        string             `json:"status"`
	TestResults   result.TestResults `json:"testResults"`
	ExecutionTime int64              `json:"executionTime"`
	Results       []CaseResult       `json:"results"`
	SubmittedAt   time.Time          `json:"submittedAt"`
}

// SubmitResponse is the single-run result.
type SubmitResponse struct {
	SubmissionID int64  `json:"submissionId"`
	Status       string `json:"status"`
	Output       string `json:"output"`
}

// ToCaseResults flattens case verdicts for a response. Graded batches omit
// the case kind.
func ToCaseResults(cases []result.CaseVerdict, withKind bool) []CaseResult {
	out := make([]CaseResult, 0, len(cases))
	for _, c := range cases {
		item := CaseResult{
			TestCase:       c.Ordinal,
			Passed:         c.Passed,
			Status:         string(c.Status),
			Input:          c.Input,
			ExpectedOutput: c.Expected,
			ActualOutput:   c.Actual,
			ExecutionTime:  c.DurationMs,
		}
		if withKind {
			item.Type = string(c.Kind)
		} else {
			item.Visibility = string(c.Visibility)
		}
		out = append(out, item)
	}
	return out
}
