package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/metrics"
	"trivia_backend/internal/notify"
	"trivia_backend/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	reconcilePageSize      = 200
	reconcileReportedLines = 10
)

type ReconcileConfig struct {
	Tolerance   int64
	Concurrency int
	// RPCRate is the number of vault reads per second, 0 means unlimited.
	RPCRate float64
}

// Reconciler compares every ledger balance with the vault contract and reports differences.
// It never corrects balances.
type Reconciler struct {
	store    repository.Store
	chain    Chain
	notifier notify.Notifier
	cfg      ReconcileConfig
	limiter  *rate.Limiter
	now      func() time.Time
	log      *slog.Logger
}

func NewReconciler(store repository.Store, ch Chain, n notify.Notifier, cfg ReconcileConfig) *Reconciler {
	if n == nil {
		n = notify.NewDiscord("")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	limit := rate.Inf
	burst := cfg.Concurrency
	if cfg.RPCRate > 0 {
		limit = rate.Limit(cfg.RPCRate)
		burst = max(1, int(cfg.RPCRate))
	}
	return &Reconciler{
		store:    store,
		chain:    ch,
		notifier: n,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		now:      time.Now,
		log:      logger.Component("reconciler"),
	}
}

func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

type ReconcileResult struct {
	RunID      string                     `json:"runId"`
	Checked    int                        `json:"checked"`
	Errors     int                        `json:"errors"`
	Mismatches []domain.ReconciliationLog `json:"mismatches"`
}

func (r *Reconciler) Run(ctx context.Context) (*ReconcileResult, error) {
	if r.chain == nil {
		return nil, ErrChainUnavailable
	}

	res := &ReconcileResult{RunID: uuid.NewString(), Mismatches: []domain.ReconciliationLog{}}
	var (
		mu      sync.Mutex
		checked atomic.Int64
		failed  atomic.Int64
	)

	var after int64
	for {
		users, err := r.store.Users().ListWithWallet(ctx, after, reconcilePageSize)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			break
		}
		after = users[len(users)-1].FID

		g := new(errgroup.Group)
		g.SetLimit(r.cfg.Concurrency)
		for _, u := range users {
			u := u
			g.Go(func() error {
				entry, err := r.check(ctx, res.RunID, u)
				if err != nil {
					failed.Add(1)
					r.log.Warn("reconcile user failed", "fid", u.FID, "error", err)
					return nil
				}
				checked.Add(1)
				if entry != nil {
					mu.Lock()
					res.Mismatches = append(res.Mismatches, *entry)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(users) < reconcilePageSize {
			break
		}
	}

	res.Checked = int(checked.Load())
	res.Errors = int(failed.Load())
	sort.Slice(res.Mismatches, func(i, j int) bool { return res.Mismatches[i].FID < res.Mismatches[j].FID })

	if len(res.Mismatches) > 0 {
		if err := r.store.Reconciliation().Insert(ctx, res.Mismatches); err != nil {
			return nil, fmt.Errorf("store reconciliation logs: %w", err)
		}
	}
	metrics.ReconcileMismatches.Set(float64(len(res.Mismatches)))
	r.report(ctx, res)

	r.log.Info("reconciliation finished", "run_id", res.RunID, "checked", res.Checked,
		"mismatches", len(res.Mismatches), "errors", res.Errors)
	return res, nil
}

// check returns a log entry when the vault differs from the ledger by more than the tolerance.
func (r *Reconciler) check(ctx context.Context, runID string, u *domain.User) (*domain.ReconciliationLog, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	onChain, err := r.chain.VaultBalance(ctx, u.WalletAddress)
	if err != nil {
		return nil, err
	}

	acct, err := r.store.Accounts().Get(ctx, u.FID)
	if err != nil {
		return nil, err
	}
	var db int64
	if acct != nil {
		db = acct.Total()
	}
	// a prepared withdrawal is debited in the ledger but stays in the vault until executed
	w, err := r.store.Withdrawals().GetPendingByFID(ctx, u.FID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		db += w.Amount
	}

	diff := onChain - db
	if abs(diff) <= r.cfg.Tolerance {
		return nil, nil
	}

	pending, err := r.store.Outbox().CountPending(ctx, u.FID)
	if err != nil {
		return nil, err
	}
	return &domain.ReconciliationLog{
		RunID:           runID,
		FID:             u.FID,
		WalletAddress:   u.WalletAddress,
		DBBalance:       db,
		ContractBalance: onChain,
		Difference:      diff,
		InFlight:        pending > 0 || w != nil,
		CreatedAt:       r.now(),
	}, nil
}

func (r *Reconciler) report(ctx context.Context, res *ReconcileResult) {
	if len(res.Mismatches) == 0 && res.Errors == 0 {
		return
	}

	var b strings.Builder
	for i, m := range res.Mismatches {
		if i == reconcileReportedLines {
			fmt.Fprintf(&b, "... and %d more\n", len(res.Mismatches)-i)
			break
		}
		flag := ""
		if m.InFlight {
			flag = " (sync in flight)"
		}
		fmt.Fprintf(&b, "fid %d: db %d, vault %d, diff %+d%s\n", m.FID, m.DBBalance, m.ContractBalance, m.Difference, flag)
	}

	color := notify.ColorWarning
	if res.Errors > 0 {
		color = notify.ColorError
	}
	err := r.notifier.Notify(ctx, notify.Message{
		Title:       "Bet mode balance reconciliation",
		Description: b.String(),
		Color:       color,
		Fields: []notify.Field{
			{Name: "Run", Value: res.RunID},
			{Name: "Checked", Value: fmt.Sprint(res.Checked), Inline: true},
			{Name: "Mismatches", Value: fmt.Sprint(len(res.Mismatches)), Inline: true},
			{Name: "Errors", Value: fmt.Sprint(res.Errors), Inline: true},
		},
	})
	if err != nil {
		r.log.Warn("discord notify failed", "error", err)
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
