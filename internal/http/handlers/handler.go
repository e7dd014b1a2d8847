package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"trivia_backend/internal/http/middleware"
	"trivia_backend/internal/leaderboard"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/service"
	"trivia_backend/internal/week"

	"github.com/gin-gonic/gin"
)

// Handler serves the bet mode API on top of the services.
type Handler struct {
	Bets        *service.BetService
	Tickets     *service.TicketService
	Lottery     *service.LotteryService
	Burns       *service.BurnService
	Sync        *service.ContractSync
	Wallets     *service.WalletService
	Reconciler  *service.Reconciler
	Leaderboard *leaderboard.Service

	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// getFID extracts the fid set by the JWT middleware.
func getFID(c *gin.Context) (int64, bool) {
	fid, ok := middleware.GetFID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return fid, ok
}

// weekParam reads weekId from the path or query, defaulting to fallback.
func weekParam(c *gin.Context, fallback string) string {
	if id := c.Param("weekId"); id != "" {
		return id
	}
	if id := c.Query("weekId"); id != "" {
		return id
	}
	return fallback
}

func (h *Handler) currentWeek() string {
	return week.ID(h.now())
}

// endedWeek is the week cron jobs act on by default: the one that just finished.
func (h *Handler) endedWeek() string {
	prev, _ := week.Previous(h.currentWeek())
	return prev
}

func limitParam(c *gin.Context, def, maxLimit int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}

type statusRule struct {
	code int
	errs []error
}

var statusTable = []statusRule{
	{http.StatusBadRequest, []error{
		service.ErrInvalidBet, service.ErrBetTooLow, service.ErrBetTooHigh, service.ErrInsufficientBalance,
		service.ErrBetWindowClosed, service.ErrActiveGameExists, service.ErrGameNotActive, service.ErrInvalidAnswer,
		service.ErrCashOutNotAllowed, service.ErrInvalidWeekID, service.ErrWeekNotEnded, service.ErrSnapshotNotTaken,
		service.ErrNotDrawn, service.ErrInvalidAmount, service.ErrInvalidTxHash, service.ErrWalletNotLinked,
		service.ErrWalletMismatch, service.ErrWalletTaken, service.ErrWithdrawalMismatch, service.ErrWithdrawalExpired,
		service.ErrTxAlreadyUsed,
	}},
	{http.StatusNotFound, []error{
		service.ErrGameNotFound, service.ErrPoolNotFound, service.ErrDepositNotFound, service.ErrWithdrawalNotFound,
	}},
	{http.StatusConflict, []error{
		service.ErrConcurrentUpdate, service.ErrInProgress, service.ErrWeekFinalized, service.ErrSyncPending,
		service.ErrWithdrawalPending,
	}},
	{http.StatusServiceUnavailable, []error{
		service.ErrChainUnavailable, service.ErrQuestionsUnavailable,
	}},
}

// statusOf maps service errors to HTTP status codes, unknown errors are internal.
func statusOf(err error) int {
	for _, rule := range statusTable {
		for _, target := range rule.errs {
			if errors.Is(err, target) {
				return rule.code
			}
		}
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": msg}. Internal errors are logged and their message hidden.
func respondError(c *gin.Context, err error) {
	respondErrorWith(c, err, nil)
}

// respondErrorWith adds extra fields to the error body.
func respondErrorWith(c *gin.Context, err error, extra gin.H) {
	code := statusOf(err)
	body := gin.H{"error": err.Error()}
	if code == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			"path", c.FullPath(), "error", err)
		body["error"] = "internal error"
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(code, body)
}
