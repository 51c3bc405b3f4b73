package controller

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the judge endpoints on an authenticated group. submit
// wraps the endpoints that start sandbox work.
func RegisterRoutes(group *gin.RouterGroup, h *JudgeController, submit ...gin.HandlerFunc) {
	execution := group.Group("/execution")
	execution.POST("/run", chain(submit, h.Run)...)
	execution.POST("/submit-code", chain(submit, h.SubmitCode)...)
	execution.POST("/submit", chain(submit, h.Submit)...)
	execution.GET("/submissions", h.ListSubmissions)
	execution.GET("/status/:id", h.GetStatus)

	group.GET("/problems/:problemId/submissions", h.ListProblemSubmissions)
	group.GET("/submissions/:submissionId", h.GetSubmission)
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	out = append(out, middlewares...)
	return append(out, handler)
}
