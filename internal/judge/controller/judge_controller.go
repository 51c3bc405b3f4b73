// Package controller exposes the judge service over HTTP.
package controller

import (
	"context"
	"strconv"

	"codepulse/internal/common/http/middleware"
	"codepulse/internal/judge/model"
	"codepulse/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeService is the subset of the judge service used by the handlers.
type JudgeService interface {
	Run(ctx context.Context, req model.RunRequest) (model.RunResponse, error)
	SubmitCode(ctx context.Context, userID int64, req model.SubmitCodeRequest) (model.SubmitCodeResponse, error)
	Submit(ctx context.Context, userID int64, req model.SubmitRequest) (model.SubmitResponse, error)
	ListSubmissions(ctx context.Context, userID int64) ([]model.SingleSubmission, error)
	ListProblemSubmissions(ctx context.Context, userID, problemID int64) ([]model.ProblemSubmission, error)
	GetSubmission(ctx context.Context, userID, submissionID int64) (model.SubmissionDetail, error)
	GetStatus(ctx context.Context, submissionID string) (model.JudgeStatusResponse, error)
}

// JudgeController handles execution and submission endpoints.
type JudgeController struct {
	svc JudgeService
}

// NewJudgeController creates a new controller.
func NewJudgeController(svc JudgeService) *JudgeController {
	return &JudgeController{svc: svc}
}

// Run executes code against sample cases and custom inputs.
func (h *JudgeController) Run(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "problem_id, language, and code are required")
		return
	}
	resp, err := h.svc.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// SubmitCode grades code against all cases of a problem.
func (h *JudgeController) SubmitCode(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req model.SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "problem_id, language, and code are required")
		return
	}
	resp, err := h.svc.SubmitCode(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Submit runs code once against the given input.
func (h *JudgeController) Submit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req model.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "language and code are required")
		return
	}
	resp, err := h.svc.Submit(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// ListSubmissions returns the caller's single-run history.
func (h *JudgeController) ListSubmissions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	items, err := h.svc.ListSubmissions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// ListProblemSubmissions returns the caller's recent graded submissions for a problem.
func (h *JudgeController) ListProblemSubmissions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	problemID, err := strconv.ParseInt(c.Param("problemId"), 10, 64)
	if err != nil || problemID <= 0 {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	items, err := h.svc.ListProblemSubmissions(c.Request.Context(), userID, problemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"submissions": items})
}

// GetSubmission returns one graded submission of the caller.
func (h *JudgeController) GetSubmission(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	submissionID, err := strconv.ParseInt(c.Param("submissionId"), 10, 64)
	if err != nil || submissionID <= 0 {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	detail, err := h.svc.GetSubmission(c.Request.Context(), userID, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"submission": detail})
}

// GetStatus returns the progress of an in-flight batch.
func (h *JudgeController) GetStatus(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	status, err := h.svc.GetStatus(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

func requireUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return 0, false
	}
	return userID, true
}
