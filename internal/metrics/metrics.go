// Package metrics holds the bet mode prometheus collectors.
package metrics

import (
	"context"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/event"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GamesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bet_mode_games_started_total",
			Help: "Bet mode games started",
		},
	)
	GamesSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_mode_games_settled_total",
			Help: "Bet mode games settled by final status",
		},
		[]string{"status"},
	)
	QTWagered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bet_mode_qt_wagered_total",
			Help: "QT locked by started games",
		},
	)
	QTPaidOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_mode_qt_paid_out_total",
			Help: "QT credited to users by source",
		},
		[]string{"source"},
	)
	PoolLottery = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bet_mode_pool_lottery_qt",
			Help: "Current lottery pool of the week",
		},
		[]string{"week"},
	)
	PoolToBurn = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bet_mode_pool_to_burn_qt",
			Help: "QT accumulated for the weekly burn",
		},
		[]string{"week"},
	)
	QTBurned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bet_mode_qt_burned_total",
			Help: "QT sent to the burn address",
		},
	)
	OutboxResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_mode_outbox_results_total",
			Help: "Vault sync attempts by result",
		},
		[]string{"kind", "result"},
	)
	ReconcileMismatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bet_mode_reconcile_mismatches",
			Help: "Mismatches found by the last reconciliation run",
		},
	)
	CronRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_mode_cron_runs_total",
			Help: "Cron job runs by job and result",
		},
		[]string{"job", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		GamesStarted,
		GamesSettled,
		QTWagered,
		QTPaidOut,
		PoolLottery,
		PoolToBurn,
		QTBurned,
		OutboxResults,
		ReconcileMismatches,
		CronRuns,
	)
}

// Subscribe keeps the event-driven collectors up to date.
func Subscribe(bus *event.Bus) {
	bus.Subscribe(domain.EventNameGameSettled, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventGameSettled)
		GamesSettled.WithLabelValues(string(ev.Game.Status)).Inc()
		if ev.Game.Payout > 0 {
			QTPaidOut.WithLabelValues("game").Add(float64(ev.Game.Payout))
		}
		return nil
	})
	bus.Subscribe(domain.EventNamePoolUpdated, func(ctx context.Context, e event.Event) error {
		p := e.(domain.EventPoolUpdated).Pool
		PoolLottery.WithLabelValues(p.WeekID).Set(float64(p.LotteryPool + p.RolloverIn))
		PoolToBurn.WithLabelValues(p.WeekID).Set(float64(p.ToBurnAccumulated))
		return nil
	})
	bus.Subscribe(domain.EventNameDrawCompleted, func(ctx context.Context, e event.Event) error {
		out := e.(domain.EventDrawCompleted).Outcome
		var won int64
		for _, w := range out.Winners {
			won += w.Amount
		}
		QTPaidOut.WithLabelValues("lottery").Add(float64(won))
		QTPaidOut.WithLabelValues("consolation").Add(float64(out.ConsolationPerHolder * int64(out.ConsolationHolders)))
		return nil
	})
	bus.Subscribe(domain.EventNameBurnCompleted, func(ctx context.Context, e event.Event) error {
		QTBurned.Add(float64(e.(domain.EventBurnCompleted).Amount))
		return nil
	})
}
