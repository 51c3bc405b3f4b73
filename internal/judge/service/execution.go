package service

import (
	"context"
	"strconv"
	"strings"

	"codepulse/internal/judge/model"
	"codepulse/internal/judge/sandbox"
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/result"
	appErr "codepulse/pkg/errors"
	"codepulse/pkg/utils/contextkey"
	"codepulse/pkg/utils/logger"

	"go.uber.org/zap"
)

// Run executes code against the sample cases of a problem plus caller
// supplied inputs. Nothing is persisted.
func (s *Service) Run(ctx context.Context, req model.RunRequest) (model.RunResponse, error) {
	if req.ProblemID <= 0 {
		return model.RunResponse{}, appErr.ValidationError("problem_id", "required")
	}
	lang, err := s.validateCode(req.Language, req.Code)
	if err != nil {
		return model.RunResponse{}, err
	}
	if len(req.CustomInputs) > s.maxCustomInputs {
		return model.RunResponse{}, appErr.Newf(appErr.CustomInputTooLarge, "at most %d custom inputs are allowed", s.maxCustomInputs)
	}
	for _, in := range req.CustomInputs {
		if len(in) > s.maxInputBytes {
			return model.RunResponse{}, appErr.New(appErr.CustomInputTooLarge)
		}
	}

	tpl, err := s.loadTemplate(ctx, req.ProblemID, lang)
	if err != nil {
		return model.RunResponse{}, err
	}
	ctxDB, cancel := withTimeout(ctx, s.dbTimeout)
	samples, err := s.problems.ListSampleCases(ctxDB, req.ProblemID)
	cancel()
	if err != nil {
		return model.RunResponse{}, err
	}

	if err := s.acquireSlot(ctx); err != nil {
		return model.RunResponse{}, err
	}
	defer s.releaseSlot()

	ctxWorker, cancelWorker := withTimeout(ctx, s.workerTimeout)
	defer cancelWorker()
	traceID, _ := ctx.Value(contextkey.TraceID).(string)
	verdict, err := s.worker.RunExploratory(ctxWorker, sandbox.ExploratoryRequest{
		TraceID:      traceID,
		Language:     lang,
		Code:         req.Code,
		Template:     tpl,
		Samples:      samples,
		CustomInputs: req.CustomInputs,
	})
	if err != nil {
		return model.RunResponse{}, err
	}

	resp := model.RunResponse{
		Status:  string(verdict.Status),
		Results: model.ToCaseResults(verdict.Cases, true),
	}
	if verdict.Summary != nil {
		resp.Summary = *verdict.Summary
	}
	return resp, nil
}

// SubmitCode grades code against every stored case and records the submission.
func (s *Service) SubmitCode(ctx context.Context, userID int64, req model.SubmitCodeRequest) (model.SubmitCodeResponse, error) {
	if req.ProblemID <= 0 {
		return model.SubmitCodeResponse{}, appErr.ValidationError("problem_id", "required")
	}
	lang, err := s.validateCode(req.Language, req.Code)
	if err != nil {
		return model.SubmitCodeResponse{}, err
	}

	tpl, err := s.loadTemplate(ctx, req.ProblemID, lang)
	if err != nil {
		return model.SubmitCodeResponse{}, err
	}
	ctxDB, cancel := withTimeout(ctx, s.dbTimeout)
	cases, err := s.problems.ListAllCases(ctxDB, req.ProblemID)
	cancel()
	if err != nil {
		return model.SubmitCodeResponse{}, err
	}
	if len(cases) == 0 {
		return model.SubmitCodeResponse{}, appErr.New(appErr.TestCaseNotFound)
	}

	if err := s.acquireSlot(ctx); err != nil {
		return model.SubmitCodeResponse{}, err
	}
	// The submission row is written after judging, so progress is keyed by trace id.
	traceID, _ := ctx.Value(contextkey.TraceID).(string)
	ctxWorker, cancelWorker := withTimeout(ctx, s.workerTimeout)
	verdict, err := s.worker.RunGraded(ctxWorker, sandbox.GradedRequest{
		SubmissionID: traceID,
		Language:     lang,
		Code:         req.Code,
		Template:     tpl,
		Cases:        cases,
	})
	cancelWorker()
	s.releaseSlot()
	if err != nil {
		return model.SubmitCodeResponse{}, err
	}

	ctxDB, cancel = withTimeout(ctx, s.dbTimeout)
	submissionID, submittedAt, err := s.submissions.CreateGraded(ctxDB, model.GradedSubmission{
		ProblemID: req.ProblemID,
		UserID:    userID,
		Language:  lang.Spec().StorageID,
		Code:      req.Code,
		Status:    string(verdict.Status),
	})
	cancel()
	if err != nil {
		return model.SubmitCodeResponse{}, err
	}

	ctx = context.WithValue(ctx, contextkey.SubmissionID, submissionID)
	s.afterGraded(ctx, userID, req.ProblemID, submissionID, lang, req.Code, verdict)

	resp := model.SubmitCodeResponse{
		SubmissionID:  submissionID,
		Status:        string(verdict.Status),
		ExecutionTime: verdict.TotalTimeMs,
		Results:       model.ToCaseResults(verdict.Cases, false),
		SubmittedAt:   submittedAt,
	}
	if verdict.TestResults != nil {
		resp.TestResults = *verdict.TestResults
	}
	return resp, nil
}

// Submit runs code once against the given input and tracks it as a
// single-run submission.
func (s *Service) Submit(ctx context.Context, userID int64, req model.SubmitRequest) (model.SubmitResponse, error) {
	if userID <= 0 {
		return model.SubmitResponse{}, appErr.ValidationError("user_id", "required")
	}
	lang, err := s.validateCode(req.Language, req.Code)
	if err != nil {
		return model.SubmitResponse{}, err
	}
	if len(req.Input) > s.maxInputBytes {
		return model.SubmitResponse{}, appErr.New(appErr.CustomInputTooLarge)
	}

	ctxDB, cancel := withTimeout(ctx, s.dbTimeout)
	submissionID, err := s.submissions.CreateSingle(ctxDB, userID, req.Code)
	cancel()
	if err != nil {
		return model.SubmitResponse{}, err
	}
	ctx = context.WithValue(ctx, contextkey.SubmissionID, submissionID)

	if err := s.acquireSlot(ctx); err != nil {
		s.finishSingle(ctx, submissionID, result.SingleError, err.Error())
		return model.SubmitResponse{}, err
	}
	ctxWorker, cancelWorker := withTimeout(ctx, s.workerTimeout)
	verdict, err := s.worker.RunSingle(ctxWorker, sandbox.SingleRequest{
		SubmissionID: strconv.FormatInt(submissionID, 10),
		Language:     lang,
		Code:         req.Code,
		Stdin:        req.Input,
	})
	cancelWorker()
	s.releaseSlot()
	if err != nil {
		s.finishSingle(ctx, submissionID, result.SingleError, err.Error())
		return model.SubmitResponse{}, err
	}

	if err := s.finishSingle(ctx, submissionID, verdict.Status, verdict.Output); err != nil {
		return model.SubmitResponse{}, err
	}
	s.publish(ctx, model.VerdictEvent{
		Type:            model.VerdictEventSingle,
		SubmissionID:    submissionID,
		UserID:          userID,
		Language:        lang.String(),
		Status:          string(verdict.Status),
		ExecutionTimeMs: verdict.DurationMs,
	})
	return model.SubmitResponse{
		SubmissionID: submissionID,
		Status:       string(verdict.Status),
		Output:       verdict.Output,
	}, nil
}

func (s *Service) validateCode(languageID, code string) (language.Language, error) {
	if strings.TrimSpace(languageID) == "" {
		return 0, appErr.ValidationError("language", "required")
	}
	if strings.TrimSpace(code) == "" {
		return 0, appErr.ValidationError("code", "required")
	}
	if len(code) > s.maxCodeBytes {
		return 0, appErr.Newf(appErr.CodeTooLarge, "code exceeds %d bytes", s.maxCodeBytes)
	}
	return language.Parse(languageID)
}

func (s *Service) loadTemplate(ctx context.Context, problemID int64, lang language.Language) (string, error) {
	ctxDB, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()
	tpl, err := s.problems.GetTemplate(ctxDB, problemID, lang)
	if err != nil {
		return "", appErr.Wrap(err, appErr.TemplateLoadFailed)
	}
	return tpl, nil
}

// finishSingle records the final state of a single run. It outlives request
// cancellation so a submission is never left RUNNING.
func (s *Service) finishSingle(ctx context.Context, submissionID int64, status result.SingleStatus, output string) error {
	ctxDB, cancel := withTimeout(context.WithoutCancel(ctx), s.dbTimeout)
	defer cancel()
	if err := s.submissions.FinishSingle(ctxDB, submissionID, status, output); err != nil {
		logger.Error(ctx, "finish single submission failed", zap.Int64("submission_id", submissionID), zap.Error(err))
		return err
	}
	return nil
}
