package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/escolaris/academia-api/internal/service"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
	"github.com/escolaris/academia-api/pkg/middleware/requestid"
	"github.com/escolaris/academia-api/pkg/response"
)

// GradeHandler exposes grade capture, correction and locking endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Get godoc
// @Summary Get grade detail
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	grade, err := h.grades.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// ListByEnrollment godoc
// @Summary List grades of an enrollment
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grades [get]
func (h *GradeHandler) ListByEnrollment(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	grades, err := h.grades.ListByEnrollment(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Capture godoc
// @Summary Capture a new grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.CaptureGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Capture(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CaptureGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grades.Capture(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Regrade godoc
// @Summary Correct an existing grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body service.RegradeRequest true "Regrade payload"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/regrade [post]
func (h *GradeHandler) Regrade(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RegradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.Override = claims.CanOverrideLock()
	if requestID := requestid.Value(c); requestID != "" {
		req.CorrelationID = &requestID
	}
	grade, err := h.grades.Regrade(c.Request.Context(), claims.Scope(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// History godoc
// @Summary List the audit trail of a grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/history [get]
func (h *GradeHandler) History(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.grades.History(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Lock godoc
// @Summary Lock a single grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/lock [post]
func (h *GradeHandler) Lock(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	grade, err := h.grades.Lock(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// LockPeriod godoc
// @Summary Lock every grade of a group for a period
// @Tags Grades
// @Produce json
// @Param groupId path string true "Group ID"
// @Param period path int true "Period"
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId}/periods/{period}/lock [post]
func (h *GradeHandler) LockPeriod(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	period, err := strconv.Atoi(c.Param("period"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid period"))
		return
	}
	locked, err := h.grades.LockPeriod(c.Request.Context(), scope, c.Param("groupId"), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"grades_locked": locked}, nil)
}
