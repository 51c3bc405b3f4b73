// Package classifier compares program output and maps outcomes onto status labels.
package classifier

import (
	"regexp"
	"strings"

	"codepulse/internal/judge/sandbox/result"
)

var (
	stackFramePattern = regexp.MustCompile(`(?m)^\s*File\s+"[^"]+",\s*`)
	hostPathPattern   = regexp.MustCompile(`(?i)([A-Z]:)?[\\/][\w\\/. -]*\b([\w\d_-]+\.(cpp|c|h|hpp|java|js|py))\b:`)
)

// Match reports whether actual equals expected after trimming surrounding
// whitespace on both. Inner whitespace and line endings must match exactly.
func Match(actual, expected string) bool {
	return strings.TrimSpace(actual) == strings.TrimSpace(expected)
}

// CleanMessage strips interpreter frame prefixes and host directories from
// compiler or runtime diagnostics.
func CleanMessage(msg string) string {
	if msg == "" {
		return ""
	}
	msg = stackFramePattern.ReplaceAllString(msg, "")
	msg = hostPathPattern.ReplaceAllString(msg, "$2:")
	return strings.TrimSpace(msg)
}

// CaseStatus labels an outcome. A nil expected marks a custom input.
func CaseStatus(outcome result.Outcome, expected *string) result.CaseStatus {
	switch outcome.Terminal {
	case result.TerminalTimeout:
		return result.CaseTimeout
	case result.TerminalCompleted:
		if expected == nil {
			return result.CaseExecuted
		}
		if Match(outcome.Stdout, *expected) {
			return result.CasePassed
		}
		return result.CaseWrongAnswer
	default:
		return result.CaseError
	}
}

// ExploratoryStatus aggregates verdicts by priority: any timeout, then any
// error, then any failed case, else accepted.
func ExploratoryStatus(cases []result.CaseVerdict) result.Verdict {
	var hasError, hasFailure bool
	for _, c := range cases {
		switch c.Status {
		case result.CaseTimeout:
			return result.VerdictTimeLimitExceeded
		case result.CaseError:
			hasError = true
		}
		if c.Passed != nil && !*c.Passed {
			hasFailure = true
		}
	}
	switch {
	case hasError:
		return result.VerdictRuntimeError
	case hasFailure:
		return result.VerdictWrongAnswer
	default:
		return result.VerdictAccepted
	}
}

// GradedStatus maps the status of the case that stopped a graded batch.
func GradedStatus(status result.CaseStatus) result.Verdict {
	switch status {
	case result.CaseWrongAnswer:
		return result.VerdictRejected
	case result.CaseTimeout:
		return result.VerdictTimeLimitExceeded
	case result.CaseError:
		return result.VerdictRuntimeError
	default:
		return result.VerdictAccepted
	}
}

// SingleStatus maps an outcome onto the single-run vocabulary.
func SingleStatus(outcome result.Outcome) result.SingleStatus {
	switch outcome.Terminal {
	case result.TerminalCompleted:
		return result.SingleExecuted
	case result.TerminalTimeout:
		return result.SingleTimeout
	default:
		return result.SingleError
	}
}
