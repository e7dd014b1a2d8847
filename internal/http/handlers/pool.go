package handlers

import (
	"net/http"

	"trivia_backend/internal/http/middleware"
	"trivia_backend/internal/service"
	"trivia_backend/internal/week"

	"github.com/gin-gonic/gin"
)

// Pool returns the weekly pool, with payouts once drawn.
func (h *Handler) Pool(c *gin.Context) {
	v, err := h.Tickets.Pool(c.Request.Context(), weekParam(c, h.currentWeek()))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// GetLeaderboard returns the weekly top by net winnings, plus the caller's rank when authenticated.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	fid, _ := middleware.GetFID(c)
	weekID := weekParam(c, h.currentWeek())
	if _, err := week.Start(weekID); err != nil {
		respondError(c, service.ErrInvalidWeekID)
		return
	}

	board, err := h.Leaderboard.Get(c.Request.Context(), weekID, limitParam(c, 100, 100), fid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
