// Package controller exposes the submission API.
package controller

import (
	"codoleet/internal/common/http/middleware"
	"codoleet/internal/submission/service"
	pkgerrors "codoleet/pkg/errors"
	"codoleet/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmissionController handles submission intake and reads.
type SubmissionController struct {
	service *service.SubmissionService
}

func NewSubmissionController(svc *service.SubmissionService) *SubmissionController {
	return &SubmissionController{service: svc}
}

// RegisterRoutes mounts the submission endpoints on the given router.
func (ct *SubmissionController) RegisterRoutes(r gin.IRouter) {
	r.POST("/submissions", ct.Create)
	r.GET("/submissions/:id", ct.Get)
	r.GET("/submissions/user/:userId", ct.ListByUser)
}

type createRequest struct {
	ProblemID string `json:"problemId" binding:"required"`
	Code      string `json:"code" binding:"required"`
	Language  string `json:"language" binding:"required"`
}

// Create accepts a submission and returns it in pending state. Evaluation
// runs asynchronously; clients follow it over the delivery channel or by
// polling.
func (ct *SubmissionController) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.AbortWithError(c, pkgerrors.New(pkgerrors.Unauthorized))
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, pkgerrors.Wrapf(err, pkgerrors.InvalidParams, "invalid submission request"))
		return
	}

	submission, err := ct.service.Submit(c.Request.Context(), userID, service.SubmitInput{
		ProblemID: req.ProblemID,
		Code:      req.Code,
		Language:  req.Language,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Get returns one submission. It is the fallback poll for clients that
// missed the push event.
func (ct *SubmissionController) Get(c *gin.Context) {
	submission, err := ct.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, submission)
}

// ListByUser returns a user's submission history, newest first.
func (ct *SubmissionController) ListByUser(c *gin.Context) {
	submissions, err := ct.service.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, submissions)
}
