package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escolaris/academia-api/internal/service"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
	"github.com/escolaris/academia-api/pkg/response"
)

// GamificationHandler exposes points, streak and badge endpoints.
type GamificationHandler struct {
	gamification *service.GamificationService
	metrics      *service.MetricsService
}

// NewGamificationHandler constructs GamificationHandler.
func NewGamificationHandler(gamification *service.GamificationService, metrics *service.MetricsService) *GamificationHandler {
	return &GamificationHandler{gamification: gamification, metrics: metrics}
}

// Profile godoc
// @Summary Get a student's points profile for a cycle
// @Tags Gamification
// @Produce json
// @Param studentId path string true "Student ID"
// @Param cycleId query string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/points [get]
func (h *GamificationHandler) Profile(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	points, err := h.gamification.Profile(c.Request.Context(), scope, c.Param("studentId"), c.Query("cycleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// History godoc
// @Summary List a student's points ledger
// @Tags Gamification
// @Produce json
// @Param studentId path string true "Student ID"
// @Param cycleId query string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/points/history [get]
func (h *GamificationHandler) History(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	history, err := h.gamification.History(c.Request.Context(), scope, c.Param("studentId"), c.Query("cycleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// AwardPoints godoc
// @Summary Award or deduct points
// @Tags Gamification
// @Accept json
// @Produce json
// @Param payload body service.AwardPointsRequest true "Award payload"
// @Success 200 {object} response.Envelope
// @Router /points/awards [post]
func (h *GamificationHandler) AwardPoints(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AwardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	points, err := h.gamification.AwardPoints(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.Amount > 0 {
		h.metrics.CountPointsAwarded(string(req.Category), req.Amount)
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// UpdateStreak godoc
// @Summary Update a streak counter
// @Tags Gamification
// @Accept json
// @Produce json
// @Param payload body service.UpdateStreakRequest true "Streak payload"
// @Success 200 {object} response.Envelope
// @Router /points/streaks [put]
func (h *GamificationHandler) UpdateStreak(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateStreakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	points, err := h.gamification.UpdateStreak(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// AwardBadge godoc
// @Summary Grant a badge
// @Tags Gamification
// @Accept json
// @Produce json
// @Param payload body service.AwardBadgeRequest true "Badge award payload"
// @Success 201 {object} response.Envelope
// @Router /badges/awards [post]
func (h *GamificationHandler) AwardBadge(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AwardBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	award, err := h.gamification.AwardBadge(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountBadgeAwarded()
	response.Created(c, award)
}

// Badges godoc
// @Summary List a student's badge awards
// @Tags Gamification
// @Produce json
// @Param studentId path string true "Student ID"
// @Param cycleId query string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/badges [get]
func (h *GamificationHandler) Badges(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	awards, err := h.gamification.Badges(c.Request.Context(), scope, c.Param("studentId"), c.Query("cycleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, awards, nil)
}
