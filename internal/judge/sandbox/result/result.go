// Package result defines sandbox execution results and verdict vocabularies.
package result

// JudgeStatus represents the lifecycle state of a judged request.
type JudgeStatus string

const (
	StatusPending  JudgeStatus = "PENDING"
	StatusRunning  JudgeStatus = "RUNNING"
	StatusFinished JudgeStatus = "FINISHED"
	StatusFailed   JudgeStatus = "FAILED"
)

// RunResult captures raw sandbox execution data.
type RunResult struct {
	ExitCode       int
	WallTimeMs     int64
	Stdout         string
	Stderr         string
	TimedOut       bool
	OutputExceeded bool
}

// Terminal is how one execution ended.
type Terminal int

const (
	TerminalCompleted Terminal = iota + 1
	TerminalTimeout
	TerminalError
)

func (t Terminal) String() string {
	switch t {
	case TerminalCompleted:
		return "COMPLETED"
	case TerminalTimeout:
		return "TIMEOUT"
	case TerminalError:
		return "SETUP_OR_RUNTIME_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the result of running one unit against one stdin.
type Outcome struct {
	// Stdout is trimmed and only set when Terminal is TerminalCompleted.
	Stdout     string
	DurationMs int64
	Terminal   Terminal
	// RawError is the user-facing failure message, e.g. "Execution Timeout".
	RawError string
	// Aborted marks a run stopped by the caller's context. It says nothing
	// about the program.
	Aborted bool
}

// Display is the text shown as the program's output.
func (o Outcome) Display() string {
	if o.Terminal == TerminalCompleted {
		return o.Stdout
	}
	return o.RawError
}

// CaseStatus labels one case.
type CaseStatus string

const (
	CasePassed      CaseStatus = "PASSED"
	CaseWrongAnswer CaseStatus = "WRONG_ANSWER"
	CaseTimeout     CaseStatus = "TIMEOUT"
	CaseError       CaseStatus = "ERROR"
	CaseExecuted    CaseStatus = "EXECUTED"
)

// Verdict is the aggregate status of a batch.
type Verdict string

const (
	VerdictAccepted          Verdict = "ACCEPTED"
	VerdictWrongAnswer       Verdict = "WRONG_ANSWER"
	VerdictTimeLimitExceeded Verdict = "TIME_LIMIT_EXCEEDED"
	VerdictRuntimeError      Verdict = "RUNTIME_ERROR"
	VerdictRejected          Verdict = "REJECTED"
)

// CaseKind distinguishes stored cases from caller supplied inputs.
type CaseKind string

const (
	KindSample CaseKind = "sample"
	KindHidden CaseKind = "hidden"
	KindCustom CaseKind = "custom"
)

// Visibility of a stored test case.
type Visibility string

const (
	VisibilitySample Visibility = "SAMPLE"
	VisibilityHidden Visibility = "HIDDEN"
)

// TestCase is read-only problem data.
type TestCase struct {
	ID         int64
	Input      string
	Expected   string
	Visibility Visibility
}

// CaseVerdict is the judged result of one case. Input, Expected and Actual
// are nil when withheld or not applicable; Passed is nil for custom inputs
// that completed.
type CaseVerdict struct {
	Kind       CaseKind
	Ordinal    int
	Visibility Visibility
	Passed     *bool
	Status     CaseStatus
	Input      *string
	Expected   *string
	Actual     *string
	DurationMs int64
	Outcome    Outcome
}

// Summary counts exploratory results.
type Summary struct {
	TotalTests  int `json:"totalTests"`
	SampleTests int `json:"sampleTests"`
	CustomTests int `json:"customTests"`
	Passed      int `json:"passed"`
	Failed      int `json:"failed"`
}

// TestResults counts graded results.
type TestResults struct {
	Passed     int `json:"passed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// BatchVerdict is produced once per batch and never mutated afterwards.
type BatchVerdict struct {
	Status      Verdict
	Cases       []CaseVerdict
	TotalTimeMs int64
	// Summary is set for exploratory batches.
	Summary *Summary
	// TestResults is set for graded batches.
	TestResults *TestResults
}

// SingleStatus is the status of a single-run submission.
type SingleStatus string

const (
	SinglePending  SingleStatus = "PENDING"
	SingleRunning  SingleStatus = "RUNNING"
	SingleExecuted SingleStatus = "EXECUTED"
	SingleTimeout  SingleStatus = "TIMEOUT"
	SingleError    SingleStatus = "ERROR"
)

// SingleVerdict is the result of running one program once.
type SingleVerdict struct {
	Status     SingleStatus
	Output     string
	DurationMs int64
}
