package evaluator

import (
	"net/http"

	pkgerrors "codoleet/pkg/errors"
	"codoleet/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Controller exposes the evaluator over HTTP.
type Controller struct {
	service *Service
}

func NewController(service *Service) *Controller {
	return &Controller{service: service}
}

// RegisterRoutes mounts the evaluation endpoint on the given router.
func (ct *Controller) RegisterRoutes(r gin.IRouter) {
	r.POST("/evaluate", ct.Evaluate)
}

type evaluateRequest struct {
	Code      string     `json:"code" binding:"required"`
	Language  string     `json:"language" binding:"required"`
	TestCases []TestCase `json:"testCases" binding:"required"`
}

// Evaluate grades the posted code against the posted test cases and returns
// the report as-is. The report is the wire contract; it is not wrapped in
// the response envelope.
func (ct *Controller) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, pkgerrors.Wrapf(err, pkgerrors.InvalidParams, "invalid evaluation request"))
		return
	}

	report := ct.service.Evaluate(c.Request.Context(), req.Code, req.Language, req.TestCases)
	c.JSON(http.StatusOK, report)
}
