package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type TxHashRequest struct {
	TxHash string `json:"txHash" binding:"required"`
}

type PrepareWithdrawalRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

type ConfirmWithdrawalRequest struct {
	WithdrawalID string `json:"withdrawalId" binding:"required"`
	TxHash       string `json:"txHash" binding:"required"`
}

// PlatformWallet is public: the frontend needs the vault and token addresses before login.
func (h *Handler) PlatformWallet(c *gin.Context) {
	c.JSON(http.StatusOK, h.Wallets.PlatformWallet())
}

func (h *Handler) VerifyDeposit(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	var req TxHashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	res, err := h.Wallets.VerifyDeposit(c.Request.Context(), fid, req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SyncDeposit credits vault deposits made outside the app.
func (h *Handler) SyncDeposit(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	res, err := h.Wallets.SyncDeposit(c.Request.Context(), fid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PrepareWithdrawal reserves the amount and returns the signed authorization for the vault call.
func (h *Handler) PrepareWithdrawal(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	var req PrepareWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	w, err := h.Wallets.PrepareWithdrawal(c.Request.Context(), fid, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) ConfirmWithdrawal(c *gin.Context) {
	fid, ok := getFID(c)
	if !ok {
		return
	}

	var req ConfirmWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	w, err := h.Wallets.ConfirmWithdrawal(c.Request.Context(), fid, req.WithdrawalID, req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawal": w})
}
