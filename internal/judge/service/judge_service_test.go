package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"codepulse/internal/common/cache"
	"codepulse/internal/judge/model"
	"codepulse/internal/judge/repository"
	"codepulse/internal/judge/sandbox"
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/workspace"
	appErr "codepulse/pkg/errors"
	"codepulse/pkg/utils/contextkey"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type echoRunner struct {
	mu        sync.Mutex
	outcomes  map[string]result.Outcome
	calls     int
	onExecute func(stdin string)
}

func (r *echoRunner) Execute(ctx context.Context, unit workspace.Unit, stdin string) result.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.onExecute != nil {
		r.onExecute(stdin)
	}
	if outcome, ok := r.outcomes[stdin]; ok {
		return outcome
	}
	return result.Outcome{Terminal: result.TerminalCompleted, Stdout: strings.TrimSpace(stdin), DurationMs: 2}
}

type fakeProblems struct {
	template    string
	templateErr error
	samples     []result.TestCase
	all         []result.TestCase
}

func (f *fakeProblems) GetTemplate(ctx context.Context, problemID int64, lang language.Language) (string, error) {
	return f.template, f.templateErr
}

func (f *fakeProblems) ListSampleCases(ctx context.Context, problemID int64) ([]result.TestCase, error) {
	return f.samples, nil
}

func (f *fakeProblems) ListAllCases(ctx context.Context, problemID int64) ([]result.TestCase, error) {
	return f.all, nil
}

type fakeSubmissions struct {
	graded      []model.GradedSubmission
	createErr   error
	singleCode  []string
	finished    map[int64]result.SingleStatus
	outputs     map[int64]string
	nextID      int64
	submittedAt time.Time
}

func newFakeSubmissions() *fakeSubmissions {
	return &fakeSubmissions{
		finished:    map[int64]result.SingleStatus{},
		outputs:     map[int64]string{},
		nextID:      100,
		submittedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeSubmissions) CreateGraded(ctx context.Context, sub model.GradedSubmission) (int64, time.Time, error) {
	if f.createErr != nil {
		return 0, time.Time{}, f.createErr
	}
	f.graded = append(f.graded, sub)
	f.nextID++
	return f.nextID, f.submittedAt, nil
}

func (f *fakeSubmissions) ListByProblem(ctx context.Context, userID, problemID int64, limit int) ([]model.ProblemSubmission, error) {
	if limit != problemHistoryLimit {
		return nil, errors.New("unexpected limit")
	}
	return []model.ProblemSubmission{{ID: 1, Language: "PYTHON", Status: "ACCEPTED"}}, nil
}

func (f *fakeSubmissions) GetDetail(ctx context.Context, userID, submissionID int64) (model.SubmissionDetail, error) {
	return model.SubmissionDetail{}, appErr.New(appErr.SubmissionNotFound)
}

func (f *fakeSubmissions) CreateSingle(ctx context.Context, userID int64, code string) (int64, error) {
	f.singleCode = append(f.singleCode, code)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeSubmissions) FinishSingle(ctx context.Context, submissionID int64, status result.SingleStatus, output string) error {
	f.finished[submissionID] = status
	f.outputs[submissionID] = output
	return nil
}

func (f *fakeSubmissions) ListSingle(ctx context.Context, userID int64) ([]model.SingleSubmission, error) {
	return nil, nil
}

type fakeArchive struct {
	keys []string
	err  error
}

func (a *fakeArchive) Archive(ctx context.Context, submissionID int64, languageID, code string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := repository.SourceKey(submissionID, languageID)
	a.keys = append(a.keys, key)
	return key, nil
}

func (a *fakeArchive) Load(ctx context.Context, key string) (string, error) {
	return "", nil
}

type fakePublisher struct {
	events []model.VerdictEvent
	err    error
}

func (p *fakePublisher) PublishVerdict(ctx context.Context, event model.VerdictEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type fixture struct {
	svc         *Service
	runner      *echoRunner
	problems    *fakeProblems
	submissions *fakeSubmissions
	archive     *fakeArchive
	publisher   *fakePublisher
}

func newFixture(t *testing.T, mutate func(cfg *Config)) *fixture {
	t.Helper()
	f := &fixture{
		runner:      &echoRunner{outcomes: map[string]result.Outcome{}},
		problems:    &fakeProblems{},
		submissions: newFakeSubmissions(),
		archive:     &fakeArchive{},
		publisher:   &fakePublisher{},
	}
	materializer, err := workspace.NewMaterializer(t.TempDir())
	if err != nil {
		t.Fatalf("new materializer failed: %v", err)
	}
	cfg := Config{
		Worker:         sandbox.NewWorker(f.runner, materializer, nil),
		Problems:       f.problems,
		Submissions:    f.submissions,
		Archive:        f.archive,
		Publisher:      f.publisher,
		WorkerPoolSize: 1,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	f.svc = svc
	return f
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatalf("expected error for missing worker")
	}
}

func TestRunValidation(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.MaxCodeBytes = 8 })
	tests := []struct {
		name string
		req  model.RunRequest
		code appErr.ErrorCode
	}{
		{name: "missing problem", req: model.RunRequest{Language: "py", Code: "x"}, code: appErr.ValidationFailed},
		{name: "missing language", req: model.RunRequest{ProblemID: 1, Code: "x"}, code: appErr.ValidationFailed},
		{name: "missing code", req: model.RunRequest{ProblemID: 1, Language: "py", Code: "  "}, code: appErr.ValidationFailed},
		{name: "unknown language", req: model.RunRequest{ProblemID: 1, Language: "rust", Code: "x"}, code: appErr.LanguageNotSupported},
		{name: "code too large", req: model.RunRequest{ProblemID: 1, Language: "py", Code: "print(12345)"}, code: appErr.CodeTooLarge},
		{name: "too many inputs", req: model.RunRequest{ProblemID: 1, Language: "py", Code: "x", CustomInputs: make([]string, 11)}, code: appErr.CustomInputTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Run(context.Background(), tt.req)
			if !appErr.Is(err, tt.code) {
				t.Fatalf("expected %v, got %v", tt.code, err)
			}
		})
	}
	if f.runner.calls != 0 {
		t.Fatalf("expected nothing to run, got %d calls", f.runner.calls)
	}
}

func TestRun(t *testing.T) {
	f := newFixture(t, nil)
	f.problems.samples = []result.TestCase{{Input: "3", Expected: "3"}, {Input: "4", Expected: "5"}}

	resp, err := f.svc.Run(context.Background(), model.RunRequest{
		ProblemID:    1,
		Language:     "python",
		Code:         "print(input())",
		CustomInputs: []string{"hi"},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if resp.Status != string(result.VerdictWrongAnswer) {
		t.Fatalf("expected WRONG_ANSWER, got %s", resp.Status)
	}
	if len(resp.Results) != 3 || resp.Results[2].Type != "custom" || resp.Results[2].Passed != nil {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	want := result.Summary{TotalTests: 3, SampleTests: 2, CustomTests: 1, Passed: 1, Failed: 1}
	if resp.Summary != want {
		t.Fatalf("expected %+v, got %+v", want, resp.Summary)
	}
	if len(f.submissions.graded) != 0 || len(f.publisher.events) != 0 {
		t.Fatalf("expected run to persist nothing")
	}
}

func TestRunTemplateFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.problems.templateErr = errors.New("db down")
	_, err := f.svc.Run(context.Background(), model.RunRequest{ProblemID: 1, Language: "js", Code: "x"})
	if !appErr.Is(err, appErr.TemplateLoadFailed) {
		t.Fatalf("expected TemplateLoadFailed, got %v", err)
	}
}

func TestSubmitCode(t *testing.T) {
	f := newFixture(t, nil)
	f.problems.all = []result.TestCase{
		{Input: "1", Expected: "1", Visibility: result.VisibilitySample},
		{Input: "2", Expected: "2", Visibility: result.VisibilityHidden},
	}

	resp, err := f.svc.SubmitCode(context.Background(), 7, model.SubmitCodeRequest{ProblemID: 3, Language: "cpp", Code: "int main(){}"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if resp.Status != string(result.VerdictAccepted) || resp.SubmissionID != 101 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.TestResults != (result.TestResults{Passed: 2, Total: 2, Percentage: 100}) {
		t.Fatalf("unexpected test results: %+v", resp.TestResults)
	}
	if resp.ExecutionTime != 4 || !resp.SubmittedAt.Equal(f.submissions.submittedAt) {
		t.Fatalf("unexpected timing: %+v", resp)
	}
	if resp.Results[1].Visibility != "HIDDEN" || resp.Results[1].Input != nil {
		t.Fatalf("expected hidden details withheld, got %+v", resp.Results[1])
	}

	sub := f.submissions.graded[0]
	if sub.Language != "CPP" || sub.UserID != 7 || sub.Status != "ACCEPTED" {
		t.Fatalf("unexpected persisted submission: %+v", sub)
	}
	if len(f.archive.keys) != 1 || len(f.publisher.events) != 1 {
		t.Fatalf("expected archive and publish, got %v %v", f.archive.keys, f.publisher.events)
	}
	event := f.publisher.events[0]
	if event.SourceKey != f.archive.keys[0] || event.Passed != 2 || event.Total != 2 || event.ProblemID != 3 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestSubmitCodeWorkerDeadlineIsNotPersisted(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.WorkerTimeout = 200 * time.Millisecond })
	f.runner.onExecute = func(stdin string) {
		if stdin == "slow" {
			time.Sleep(400 * time.Millisecond)
		}
	}
	f.problems.all = []result.TestCase{
		{Input: "fast", Expected: "fast"},
		{Input: "slow", Expected: "slow"},
		{Input: "after", Expected: "after"},
	}

	_, err := f.svc.SubmitCode(context.Background(), 7, model.SubmitCodeRequest{ProblemID: 3, Language: "py", Code: "x"})
	if !appErr.Is(err, appErr.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if f.runner.calls != 2 {
		t.Fatalf("expected batch to stop at the slow case, got %d calls", f.runner.calls)
	}
	if len(f.submissions.graded) != 0 || len(f.archive.keys) != 0 || len(f.publisher.events) != 0 {
		t.Fatalf("expected nothing recorded, got %v %v %v", f.submissions.graded, f.archive.keys, f.publisher.events)
	}
}

func TestSubmitCodeSideEffectFailuresAreIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.problems.all = []result.TestCase{{Input: "1", Expected: "2"}}
	f.archive.err = errors.New("minio down")
	f.publisher.err = errors.New("kafka down")

	resp, err := f.svc.SubmitCode(context.Background(), 7, model.SubmitCodeRequest{ProblemID: 3, Language: "py", Code: "x"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if resp.Status != string(result.VerdictRejected) {
		t.Fatalf("expected REJECTED, got %s", resp.Status)
	}
	if f.publisher.events[0].SourceKey != "" {
		t.Fatalf("expected no source key after failed archive")
	}
}

func TestSubmitCodeWithoutCases(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.SubmitCode(context.Background(), 7, model.SubmitCodeRequest{ProblemID: 3, Language: "py", Code: "x"})
	if !appErr.Is(err, appErr.TestCaseNotFound) {
		t.Fatalf("expected TestCaseNotFound, got %v", err)
	}
	if len(f.submissions.graded) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestSubmitCodePersistFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.problems.all = []result.TestCase{{Input: "1", Expected: "1"}}
	f.submissions.createErr = appErr.New(appErr.SubmissionCreateFailed)
	_, err := f.svc.SubmitCode(context.Background(), 7, model.SubmitCodeRequest{ProblemID: 3, Language: "py", Code: "x"})
	if !appErr.Is(err, appErr.SubmissionCreateFailed) {
		t.Fatalf("expected SubmissionCreateFailed, got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no event for unsaved submission")
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t, nil)
	f.runner.outcomes["loop"] = result.Outcome{Terminal: result.TerminalTimeout, RawError: "Execution Timeout", DurationMs: 15000}

	resp, err := f.svc.Submit(context.Background(), 9, model.SubmitRequest{Language: "py", Code: "print(input())", Input: "hello\n"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if resp.Status != "EXECUTED" || resp.Output != "hello" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if f.submissions.finished[resp.SubmissionID] != result.SingleExecuted {
		t.Fatalf("expected EXECUTED to be persisted, got %v", f.submissions.finished)
	}

	resp, err = f.svc.Submit(context.Background(), 9, model.SubmitRequest{Language: "py", Code: "while True: pass", Input: "loop"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if resp.Status != "TIMEOUT" || f.submissions.outputs[resp.SubmissionID] != "Execution Timeout" {
		t.Fatalf("unexpected timeout handling: %+v", resp)
	}
	if len(f.publisher.events) != 2 || f.publisher.events[1].Type != model.VerdictEventSingle {
		t.Fatalf("expected single verdict events, got %+v", f.publisher.events)
	}
}

func TestSubmitMarksErrorWhenQueueFull(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.QueueWait = 20 * time.Millisecond })
	f.svc.sem <- struct{}{}

	_, err := f.svc.Submit(context.Background(), 9, model.SubmitRequest{Language: "py", Code: "x"})
	if !appErr.Is(err, appErr.JudgeQueueFull) {
		t.Fatalf("expected JudgeQueueFull, got %v", err)
	}
	if f.submissions.finished[101] != result.SingleError {
		t.Fatalf("expected submission to be marked ERROR, got %v", f.submissions.finished)
	}
}

func TestAcquireSlotHonoursContext(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.QueueWait = time.Minute })
	f.svc.sem <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.svc.acquireSlot(ctx); !appErr.Is(err, appErr.JudgeQueueFull) {
		t.Fatalf("expected JudgeQueueFull, got %v", err)
	}
	f.svc.releaseSlot()
	if err := f.svc.acquireSlot(context.Background()); err != nil {
		t.Fatalf("expected slot after release, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, nil)
	items, err := f.svc.ListProblemSubmissions(context.Background(), 1, 2)
	if err != nil || len(items) != 1 {
		t.Fatalf("unexpected history: %v, %v", items, err)
	}
	if _, err := f.svc.ListProblemSubmissions(context.Background(), 1, 0); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.GetSubmission(context.Background(), 1, 5); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
}

func TestStatusTracking(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	redisCache, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache failed: %v", err)
	}
	statusRepo := repository.NewStatusRepository(redisCache, time.Minute)

	f := newFixture(t, func(cfg *Config) { cfg.StatusRepo = statusRepo })
	f.problems.samples = []result.TestCase{{Input: "1", Expected: "1"}}

	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-1")
	if _, err := f.svc.Run(ctx, model.RunRequest{ProblemID: 1, Language: "py", Code: "x", CustomInputs: []string{"2"}}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	status, err := f.svc.GetStatus(context.Background(), "trace-1")
	if err != nil {
		t.Fatalf("get status failed: %v", err)
	}
	if status.Status != result.StatusFinished || status.Progress != (model.Progress{TotalTests: 2, DoneTests: 2}) || status.Mode != sandbox.ModeExploratory {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestGetStatusDisabled(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.GetStatus(context.Background(), "x"); !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}
