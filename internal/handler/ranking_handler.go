package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escolaris/academia-api/internal/models"
	"github.com/escolaris/academia-api/internal/service"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
	"github.com/escolaris/academia-api/pkg/response"
)

// RankingHandler exposes leaderboard endpoints.
type RankingHandler struct {
	rankings *service.RankingService
	metrics  *service.MetricsService
}

// NewRankingHandler constructs RankingHandler.
func NewRankingHandler(rankings *service.RankingService, metrics *service.MetricsService) *RankingHandler {
	return &RankingHandler{rankings: rankings, metrics: metrics}
}

// Recompute godoc
// @Summary Recompute a ranking scope
// @Tags Rankings
// @Produce json
// @Param scope path string true "Ranking scope (GROUP, GRADE, SCHOOL)"
// @Param scopeId path string true "Scope ID"
// @Param cycleId query string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /rankings/{scope}/{scopeId}/recompute [post]
func (h *RankingHandler) Recompute(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rankScope := models.RankScope(c.Param("scope"))
	leaderboard, err := h.rankings.Recompute(c.Request.Context(), scope, rankScope, c.Param("scopeId"), c.Query("cycleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountRankingRecompute(string(rankScope))
	response.JSON(c, http.StatusOK, leaderboard, nil)
}

// Leaderboard godoc
// @Summary Get the leaderboard for a scope
// @Tags Rankings
// @Produce json
// @Param scope path string true "Ranking scope (GROUP, GRADE, SCHOOL)"
// @Param scopeId path string true "Scope ID"
// @Param cycleId query string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /rankings/{scope}/{scopeId} [get]
func (h *RankingHandler) Leaderboard(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	leaderboard, err := h.rankings.Leaderboard(c.Request.Context(), scope, models.RankScope(c.Param("scope")), c.Param("scopeId"), c.Query("cycleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaderboard, nil)
}
