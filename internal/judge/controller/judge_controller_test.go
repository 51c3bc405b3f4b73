package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"codepulse/internal/common/http/middleware"
	"codepulse/internal/judge/model"
	"codepulse/internal/judge/sandbox/result"
	appErr "codepulse/pkg/errors"
	"codepulse/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

type fakeService struct {
	userID    int64
	problemID int64
	runReq    model.RunRequest
	err       error
}

func (f *fakeService) Run(ctx context.Context, req model.RunRequest) (model.RunResponse, error) {
	f.runReq = req
	return model.RunResponse{Status: "ACCEPTED", Summary: result.Summary{TotalTests: 1, Passed: 1}}, f.err
}

func (f *fakeService) SubmitCode(ctx context.Context, userID int64, req model.SubmitCodeRequest) (model.SubmitCodeResponse, error) {
	f.userID = userID
	return model.SubmitCodeResponse{SubmissionID: 5, Status: "REJECTED"}, f.err
}

func (f *fakeService) Submit(ctx context.Context, userID int64, req model.SubmitRequest) (model.SubmitResponse, error) {
	f.userID = userID
	return model.SubmitResponse{SubmissionID: 6, Status: "EXECUTED", Output: req.Input}, f.err
}

func (f *fakeService) ListSubmissions(ctx context.Context, userID int64) ([]model.SingleSubmission, error) {
	f.userID = userID
	return []model.SingleSubmission{{ID: 1}}, f.err
}

func (f *fakeService) ListProblemSubmissions(ctx context.Context, userID, problemID int64) ([]model.ProblemSubmission, error) {
	f.userID, f.problemID = userID, problemID
	return []model.ProblemSubmission{{ID: 2}}, f.err
}

func (f *fakeService) GetSubmission(ctx context.Context, userID, submissionID int64) (model.SubmissionDetail, error) {
	f.userID = userID
	return model.SubmissionDetail{}, appErr.New(appErr.SubmissionNotFound)
}

func (f *fakeService) GetStatus(ctx context.Context, submissionID string) (model.JudgeStatusResponse, error) {
	return model.JudgeStatusResponse{SubmissionID: submissionID, Status: result.StatusRunning}, f.err
}

func newRouter(svc JudgeService, submit ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", middleware.IdentityMiddleware(nil))
	RegisterRoutes(api, NewJudgeController(svc), submit...)
	return r
}

func doRequest(r http.Handler, method, path, body string, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) response.Response {
	t.Helper()
	var envelope struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode failed: %v, body %s", err, w.Body.String())
	}
	if dest != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
	}
	return envelope.Response
}

func TestRunHandler(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := doRequest(r, http.MethodPost, "/api/v1/execution/run", `{"problem_id":1,"language":"py","code":"x","customInputs":["a"]}`, "3")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp model.RunResponse
	decodeData(t, w, &resp)
	if resp.Status != "ACCEPTED" || resp.Summary.TotalTests != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if svc.runReq.ProblemID != 1 || len(svc.runReq.CustomInputs) != 1 {
		t.Fatalf("unexpected bound request: %+v", svc.runReq)
	}
}

func TestRunHandlerBadJSON(t *testing.T) {
	r := newRouter(&fakeService{})
	w := doRequest(r, http.MethodPost, "/api/v1/execution/run", `{"problem_id":`, "3")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmitHandlersReturnCreated(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := doRequest(r, http.MethodPost, "/api/v1/execution/submit-code", `{"problem_id":1,"language":"py","code":"x"}`, "8")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if svc.userID != 8 {
		t.Fatalf("expected caller id 8, got %d", svc.userID)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/execution/submit", `{"language":"py","code":"x","input":"hi"}`, "9")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var resp model.SubmitResponse
	decodeData(t, w, &resp)
	if resp.SubmissionID != 6 || resp.Output != "hi" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandlersRequireIdentity(t *testing.T) {
	r := newRouter(&fakeService{})
	w := doRequest(r, http.MethodPost, "/api/v1/execution/submit", `{"language":"py","code":"x"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	svc := &fakeService{err: appErr.New(appErr.JudgeQueueFull)}
	r := newRouter(svc)
	w := doRequest(r, http.MethodPost, "/api/v1/execution/run", `{"problem_id":1,"language":"py","code":"x"}`, "3")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if resp := decodeData(t, w, nil); resp.Code != appErr.JudgeQueueFull {
		t.Fatalf("expected JudgeQueueFull code, got %d", resp.Code)
	}
}

func TestHistoryHandlers(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := doRequest(r, http.MethodGet, "/api/v1/problems/12/submissions", "", "4")
	if w.Code != http.StatusOK || svc.problemID != 12 || svc.userID != 4 {
		t.Fatalf("unexpected history call: %d %+v", w.Code, svc)
	}
	var data struct {
		Submissions []model.ProblemSubmission `json:"submissions"`
	}
	decodeData(t, w, &data)
	if len(data.Submissions) != 1 {
		t.Fatalf("expected one submission, got %+v", data)
	}

	if w := doRequest(r, http.MethodGet, "/api/v1/problems/abc/submissions", "", "4"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad problem id, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/v1/submissions/77", "", "4"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/v1/execution/submissions", "", "4"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/v1/execution/status/trace-1", "", "4"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSubmitMiddlewareOnlyWrapsExecution(t *testing.T) {
	hits := 0
	counter := func(c *gin.Context) {
		hits++
		c.Next()
	}
	r := newRouter(&fakeService{}, counter)

	doRequest(r, http.MethodPost, "/api/v1/execution/run", `{"problem_id":1,"language":"py","code":"x"}`, "3")
	doRequest(r, http.MethodGet, "/api/v1/execution/submissions", "", "3")
	if hits != 1 {
		t.Fatalf("expected middleware on execution routes only, got %d hits", hits)
	}
}
