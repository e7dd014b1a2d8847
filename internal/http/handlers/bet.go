package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type StartRequest struct {
	BetAmount int64 `json:"betAmount" binding:"required"`
}

type AnswerRequest struct {
	GameID      string `json:"gameId" binding:"required"`
	AnswerIndex *int   `json:"answerIndex" binding:"required"`
}

type CashOutRequest struct {
	GameID string `json:"gameId" binding:"required"`
}

// Status returns balances, the active game, the current pool and the user's tickets.
func (h *Handler) Status(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	st, err := h.Bets.Status(c.Request.Context(), fid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Start locks the bet and returns the first question.
func (h *Handler) Start(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	res, err := h.Bets.Start(c.Request.Context(), fid, req.BetAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Answer(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	out, err := h.Bets.Answer(c.Request.Context(), fid, req.GameID, *req.AnswerIndex)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CashOut(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	var req CashOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	res, err := h.Bets.CashOut(c.Request.Context(), fid, req.GameID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Transactions lists the caller's ledger entries, newest first.
func (h *Handler) Transactions(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	txs, err := h.Bets.History(c.Request.Context(), fid, limitParam(c, 50, 200))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
