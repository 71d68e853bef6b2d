package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escolaris/academia-api/internal/service"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
	"github.com/escolaris/academia-api/pkg/response"
)

// RecalcHandler exposes recalculation endpoints.
type RecalcHandler struct {
	recalc  *service.RecalcService
	metrics *service.MetricsService
}

// NewRecalcHandler constructs RecalcHandler.
func NewRecalcHandler(recalc *service.RecalcService, metrics *service.MetricsService) *RecalcHandler {
	return &RecalcHandler{recalc: recalc, metrics: metrics}
}

// Enrollment godoc
// @Summary Recalculate one enrollment's aggregates
// @Tags Recalculation
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/recalculate [post]
func (h *RecalcHandler) Enrollment(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.recalc.RecalculateEnrollment(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.metrics.CountRecalc("error")
		response.Error(c, err)
		return
	}
	h.metrics.CountRecalc("ok")
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Cycle godoc
// @Summary Recalculate every active enrollment of a cycle
// @Tags Recalculation
// @Produce json
// @Param cycleId path string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /cycles/{cycleId}/recalculate [post]
func (h *RecalcHandler) Cycle(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.recalc.RecalculateCycle(c.Request.Context(), scope, c.Param("cycleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
