package metrics

import (
	"context"
	"testing"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/event"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSubscribeUpdatesCollectors(t *testing.T) {
	bus := event.NewBus(0)
	Subscribe(bus)

	lostBefore := testutil.ToFloat64(GamesSettled.WithLabelValues("lost"))
	burnedBefore := testutil.ToFloat64(QTBurned)

	ctx := context.Background()
	bus.Publish(ctx, domain.EventGameSettled{Game: domain.Game{Status: domain.GameStatusLost}, Net: -100})
	bus.Publish(ctx, domain.EventPoolUpdated{Pool: domain.WeeklyPool{WeekID: "2025-W09", LotteryPool: 35, RolloverIn: 5, ToBurnAccumulated: 60}})
	bus.Publish(ctx, domain.EventBurnCompleted{WeekID: "2025-W09", Amount: 60})
	bus.Stop()

	assert.Equal(t, lostBefore+1, testutil.ToFloat64(GamesSettled.WithLabelValues("lost")))
	assert.Equal(t, float64(40), testutil.ToFloat64(PoolLottery.WithLabelValues("2025-W09")))
	assert.Equal(t, float64(60), testutil.ToFloat64(PoolToBurn.WithLabelValues("2025-W09")))
	assert.Equal(t, burnedBefore+60, testutil.ToFloat64(QTBurned))
}
