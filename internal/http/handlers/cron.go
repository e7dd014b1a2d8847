package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trivia_backend/internal/logger"
	"trivia_backend/internal/metrics"
	"trivia_backend/internal/service"

	"github.com/gin-gonic/gin"
)

// cronTimeout bounds a cron run. The run is detached from the caller so a dropped
// connection does not abort a draw halfway.
const cronTimeout = 10 * time.Minute

// partialResult is a failed run that still finished work worth reporting.
type partialResult interface {
	Partial() bool
}

func (h *Handler) runCron(c *gin.Context, job string, fn func(ctx context.Context) (any, error)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), cronTimeout)
	defer cancel()

	log := logger.With("component", "cron", "job", job)
	started := time.Now()

	res, err := fn(ctx)
	switch {
	case errors.Is(err, service.ErrAlreadyDone):
		metrics.CronRuns.WithLabelValues(job, "skipped").Inc()
		log.Info("cron job skipped", "reason", err.Error())
		c.JSON(http.StatusOK, gin.H{"success": true, "skipped": true, "reason": err.Error(), "result": res})
	case err != nil:
		metrics.CronRuns.WithLabelValues(job, "error").Inc()
		log.Error("cron job failed", "error", err, "took", time.Since(started))
		if p, ok := res.(partialResult); ok && p.Partial() {
			respondErrorWith(c, err, gin.H{"result": res})
			return
		}
		respondError(c, err)
	default:
		metrics.CronRuns.WithLabelValues(job, "ok").Inc()
		log.Info("cron job done", "took", time.Since(started))
		c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
	}
}

// Snapshot closes the week given by ?weekId=, by default the one that just ended.
func (h *Handler) Snapshot(c *gin.Context) {
	weekID := weekParam(c, h.endedWeek())
	h.runCron(c, "snapshot", func(ctx context.Context) (any, error) {
		return h.Lottery.Snapshot(ctx, weekID)
	})
}

func (h *Handler) Draw(c *gin.Context) {
	weekID := weekParam(c, h.endedWeek())
	h.runCron(c, "lottery-draw", func(ctx context.Context) (any, error) {
		return h.Lottery.Draw(ctx, weekID)
	})
}

func (h *Handler) Burn(c *gin.Context) {
	weekID := weekParam(c, h.endedWeek())
	h.runCron(c, "burn", func(ctx context.Context) (any, error) {
		return h.Burns.Burn(ctx, weekID)
	})
}

func (h *Handler) DrawAndBurn(c *gin.Context) {
	weekID := weekParam(c, h.endedWeek())
	h.runCron(c, "lottery-draw-and-burn", func(ctx context.Context) (any, error) {
		return service.DrawAndBurn(ctx, h.Lottery, h.Burns, weekID)
	})
}

func (h *Handler) ReconcileBalances(c *gin.Context) {
	h.runCron(c, "reconcile-balances", func(ctx context.Context) (any, error) {
		return h.Reconciler.Run(ctx)
	})
}

func (h *Handler) ProcessOutbox(c *gin.Context) {
	h.runCron(c, "process-outbox", func(ctx context.Context) (any, error) {
		return h.Sync.ProcessOutbox(ctx)
	})
}

func (h *Handler) ExpireWithdrawals(c *gin.Context) {
	h.runCron(c, "expire-withdrawals", func(ctx context.Context) (any, error) {
		return h.Wallets.ExpireWithdrawals(ctx)
	})
}
