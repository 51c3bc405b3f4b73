package sandbox

import (
	"context"
	"math"

	"codepulse/internal/judge/sandbox/classifier"
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/observer"
	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/runner"
	"codepulse/internal/judge/sandbox/template"
	"codepulse/internal/judge/sandbox/workspace"
	appErr "codepulse/pkg/errors"
	"codepulse/pkg/utils/logger"

	"go.uber.org/zap"
)

// Worker judges one batch at a time. Cases inside a batch run sequentially
// against a single materialized unit.
type Worker struct {
	runner         runner.Runner
	materializer   *workspace.Materializer
	metrics        observer.MetricsRecorder
	statusReporter StatusReporter
}

// NewWorker creates a worker. A nil metrics recorder disables metrics.
func NewWorker(r runner.Runner, materializer *workspace.Materializer, metrics observer.MetricsRecorder) *Worker {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &Worker{
		runner:       r,
		materializer: materializer,
		metrics:      metrics,
	}
}

// SetStatusReporter injects a status reporter for intermediate updates.
func (w *Worker) SetStatusReporter(reporter StatusReporter) {
	w.statusReporter = reporter
}

// RunExploratory runs every sample case and then every custom input. It never
// stops early.
func (w *Worker) RunExploratory(ctx context.Context, req ExploratoryRequest) (result.BatchVerdict, error) {
	if err := w.ready(); err != nil {
		return result.BatchVerdict{}, err
	}
	unit, err := w.prepare(ctx, req.Language, template.Compose(req.Code, req.Template))
	if err != nil {
		return result.BatchVerdict{}, err
	}
	defer w.materializer.Release(ctx, unit)

	total := len(req.Samples) + len(req.CustomInputs)
	w.reportStatus(ctx, req.TraceID, ModeExploratory, req.Language, result.StatusRunning, total, 0)

	cases := make([]result.CaseVerdict, 0, total)
	var totalMs int64
	for i, tc := range req.Samples {
		outcome := w.runner.Execute(ctx, unit, tc.Input)
		if err := w.interrupted(ctx, outcome, req.TraceID, ModeExploratory, req.Language, total, len(cases)); err != nil {
			return result.BatchVerdict{}, err
		}
		status := classifier.CaseStatus(outcome, &tc.Expected)
		passed := status == result.CasePassed
		input, expected, actual := tc.Input, tc.Expected, outcome.Display()
		cases = append(cases, result.CaseVerdict{
			Kind:       result.KindSample,
			Ordinal:    i + 1,
			Visibility: result.VisibilitySample,
			Passed:     &passed,
			Status:     status,
			Input:      &input,
			Expected:   &expected,
			Actual:     &actual,
			DurationMs: outcome.DurationMs,
			Outcome:    outcome,
		})
		totalMs += outcome.DurationMs
		w.reportStatus(ctx, req.TraceID, ModeExploratory, req.Language, result.StatusRunning, total, len(cases))
	}
	for i, in := range req.CustomInputs {
		outcome := w.runner.Execute(ctx, unit, in)
		if err := w.interrupted(ctx, outcome, req.TraceID, ModeExploratory, req.Language, total, len(cases)); err != nil {
			return result.BatchVerdict{}, err
		}
		status := classifier.CaseStatus(outcome, nil)
		var passed *bool
		if status != result.CaseExecuted {
			failed := false
			passed = &failed
		}
		input, actual := in, outcome.Display()
		cases = append(cases, result.CaseVerdict{
			Kind:       result.KindCustom,
			Ordinal:    i + 1,
			Passed:     passed,
			Status:     status,
			Input:      &input,
			Actual:     &actual,
			DurationMs: outcome.DurationMs,
			Outcome:    outcome,
		})
		totalMs += outcome.DurationMs
		w.reportStatus(ctx, req.TraceID, ModeExploratory, req.Language, result.StatusRunning, total, len(cases))
	}

	verdict := result.BatchVerdict{
		Status:      classifier.ExploratoryStatus(cases),
		Cases:       cases,
		TotalTimeMs: totalMs,
		Summary:     summarize(cases, len(req.Samples), len(req.CustomInputs)),
	}
	w.reportStatus(ctx, req.TraceID, ModeExploratory, req.Language, result.StatusFinished, total, len(cases))
	w.metrics.ObserveBatch(ctx, ModeExploratory, string(verdict.Status), len(cases), totalMs)
	return verdict, nil
}

// RunGraded runs cases in order and stops at the first case that does not pass.
func (w *Worker) RunGraded(ctx context.Context, req GradedRequest) (result.BatchVerdict, error) {
	if err := w.ready(); err != nil {
		return result.BatchVerdict{}, err
	}
	if len(req.Cases) == 0 {
		return result.BatchVerdict{}, appErr.New(appErr.TestCaseNotFound)
	}
	unit, err := w.prepare(ctx, req.Language, template.Compose(req.Code, req.Template))
	if err != nil {
		return result.BatchVerdict{}, err
	}
	defer w.materializer.Release(ctx, unit)

	total := len(req.Cases)
	w.reportStatus(ctx, req.SubmissionID, ModeGraded, req.Language, result.StatusRunning, total, 0)

	cases := make([]result.CaseVerdict, 0, total)
	stopStatus := result.CasePassed
	passedCount := 0
	var totalMs int64
	for i, tc := range req.Cases {
		outcome := w.runner.Execute(ctx, unit, tc.Input)
		if err := w.interrupted(ctx, outcome, req.SubmissionID, ModeGraded, req.Language, total, len(cases)); err != nil {
			return result.BatchVerdict{}, err
		}
		status := classifier.CaseStatus(outcome, &tc.Expected)
		passed := status == result.CasePassed
		verdict := result.CaseVerdict{
			Kind:       caseKind(tc.Visibility),
			Ordinal:    i + 1,
			Visibility: tc.Visibility,
			Passed:     &passed,
			Status:     status,
			DurationMs: outcome.DurationMs,
			Outcome:    outcome,
		}
		if tc.Visibility != result.VisibilityHidden {
			input, expected, actual := tc.Input, tc.Expected, outcome.Display()
			verdict.Input, verdict.Expected, verdict.Actual = &input, &expected, &actual
		}
		cases = append(cases, verdict)
		totalMs += outcome.DurationMs
		w.reportStatus(ctx, req.SubmissionID, ModeGraded, req.Language, result.StatusRunning, total, len(cases))

		if !passed {
			stopStatus = status
			break
		}
		passedCount++
	}

	verdict := result.BatchVerdict{
		Status:      classifier.GradedStatus(stopStatus),
		Cases:       cases,
		TotalTimeMs: totalMs,
		TestResults: &result.TestResults{
			Passed:     passedCount,
			Total:      total,
			Percentage: int(math.Round(float64(passedCount) * 100 / float64(total))),
		},
	}
	w.reportStatus(ctx, req.SubmissionID, ModeGraded, req.Language, result.StatusFinished, total, len(cases))
	w.metrics.ObserveBatch(ctx, ModeGraded, string(verdict.Status), len(cases), totalMs)
	logger.Info(ctx, "graded batch finished",
		zap.String("submission_id", req.SubmissionID),
		zap.String("verdict", string(verdict.Status)),
		zap.Int("passed", passedCount),
		zap.Int("total", total),
	)
	return verdict, nil
}

// RunSingle runs the code once against the given stdin.
func (w *Worker) RunSingle(ctx context.Context, req SingleRequest) (result.SingleVerdict, error) {
	if err := w.ready(); err != nil {
		return result.SingleVerdict{}, err
	}
	unit, err := w.prepare(ctx, req.Language, req.Code)
	if err != nil {
		return result.SingleVerdict{}, err
	}
	defer w.materializer.Release(ctx, unit)

	w.reportStatus(ctx, req.SubmissionID, ModeSingle, req.Language, result.StatusRunning, 1, 0)
	outcome := w.runner.Execute(ctx, unit, req.Stdin)
	if err := w.interrupted(ctx, outcome, req.SubmissionID, ModeSingle, req.Language, 1, 0); err != nil {
		return result.SingleVerdict{}, err
	}
	verdict := result.SingleVerdict{
		Status:     classifier.SingleStatus(outcome),
		Output:     outcome.Display(),
		DurationMs: outcome.DurationMs,
	}
	w.reportStatus(ctx, req.SubmissionID, ModeSingle, req.Language, result.StatusFinished, 1, 1)
	w.metrics.ObserveBatch(ctx, ModeSingle, string(verdict.Status), 1, outcome.DurationMs)
	return verdict, nil
}

func (w *Worker) ready() error {
	if w.runner == nil || w.materializer == nil {
		return appErr.New(appErr.JudgeSystemError).WithMessage("worker dependencies are not initialized")
	}
	return nil
}

func (w *Worker) prepare(ctx context.Context, lang language.Language, source string) (workspace.Unit, error) {
	if !lang.Valid() {
		return workspace.Unit{}, appErr.New(appErr.LanguageNotSupported)
	}
	unit, err := w.materializer.Materialize(ctx, lang, source)
	if err != nil {
		return workspace.Unit{}, err
	}
	return unit, nil
}

// interrupted turns a run cut short by the batch context into a system
// failure, so no verdict is recorded for the program.
func (w *Worker) interrupted(ctx context.Context, outcome result.Outcome, id, mode string, lang language.Language, totalTests, doneTests int) error {
	cause := ctx.Err()
	if cause == nil && !outcome.Aborted {
		return nil
	}
	if cause == nil {
		cause = context.DeadlineExceeded
	}
	w.reportStatus(context.WithoutCancel(ctx), id, mode, lang, result.StatusFailed, totalTests, doneTests)
	logger.Warn(ctx, "judge batch interrupted",
		zap.String("mode", mode),
		zap.Int("done", doneTests),
		zap.Int("total", totalTests),
		zap.Error(cause),
	)
	return appErr.Wrapf(cause, appErr.Timeout, "judge batch interrupted after %d of %d cases", doneTests, totalTests)
}

func caseKind(v result.Visibility) result.CaseKind {
	if v == result.VisibilityHidden {
		return result.KindHidden
	}
	return result.KindSample
}

func (w *Worker) reportStatus(ctx context.Context, id, mode string, lang language.Language, status result.JudgeStatus, totalTests, doneTests int) {
	if w.statusReporter == nil {
		return
	}
	_ = w.statusReporter.ReportStatus(ctx, StatusUpdate{
		SubmissionID: id,
		Mode:         mode,
		Status:       status,
		Language:     lang.String(),
		TotalTests:   totalTests,
		DoneTests:    doneTests,
	})
}

func summarize(cases []result.CaseVerdict, samples, customs int) *result.Summary {
	summary := &result.Summary{
		TotalTests:  len(cases),
		SampleTests: samples,
		CustomTests: customs,
	}
	for _, c := range cases {
		if c.Passed == nil {
			continue
		}
		if *c.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}
