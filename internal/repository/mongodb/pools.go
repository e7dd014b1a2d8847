package mongodb

import (
	"context"
	"errors"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PoolRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// fields written when a pool document is created by an upsert
func poolDefaults(now time.Time) bson.M {
	return bson.M{
		"status":               domain.PoolStatusOpen,
		"snapshotTaken":        false,
		"drawCompleted":        false,
		"burnCompleted":        false,
		"finalPool":            int64(0),
		"totalTickets":         int64(0),
		"totalParticipants":    0,
		"winners":              bson.A{},
		"consolationPerHolder": int64(0),
		"consolationHolders":   0,
		"rolloverOut":          int64(0),
		"createdAt":            now,
	}
}

func (r *PoolRepository) Get(ctx context.Context, weekID string) (*domain.WeeklyPool, error) {
	return findOne[domain.WeeklyPool](ctx, r.coll, bson.M{"weekId": weekID})
}

func (r *PoolRepository) Ensure(ctx context.Context, weekID string) (*domain.WeeklyPool, error) {
	now := r.now()
	insert := poolDefaults(now)
	for _, f := range []string{"totalLosses", "toBurnAccumulated", "lotteryPool", "platformRevenue", "rolloverIn", "totalGames", "totalWagered", "totalPayouts"} {
		insert[f] = int64(0)
	}
	insert["updatedAt"] = now

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var p domain.WeeklyPool
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"weekId": weekID}, bson.M{"$setOnInsert": insert}, opts).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PoolRepository) Increment(ctx context.Context, weekID string, d domain.PoolDelta) error {
	now := r.now()
	update := bson.M{
		"$inc": bson.M{
			"totalLosses":       d.TotalLosses,
			"toBurnAccumulated": d.ToBurn,
			"lotteryPool":       d.Lottery,
			"platformRevenue":   d.Platform,
			"rolloverIn":        d.RolloverIn,
			"totalGames":        d.TotalGames,
			"totalWagered":      d.TotalWagered,
			"totalPayouts":      d.TotalPayouts,
		},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": poolDefaults(now),
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"weekId": weekID}, update, options.Update().SetUpsert(true))
	return err
}

func (r *PoolRepository) Claim(ctx context.Context, weekID string, from, to domain.PoolStatus, lease time.Duration, now time.Time) (*domain.WeeklyPool, error) {
	filter := bson.M{
		"weekId": weekID,
		"$or": bson.A{
			bson.M{"status": from},
			bson.M{"status": to, "leaseExpiresAt": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"status":         to,
		"leaseExpiresAt": now.Add(lease),
		"updatedAt":      now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p domain.WeeklyPool
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrConditionFailed
		}
		return nil, err
	}
	return &p, nil
}

func (r *PoolRepository) Release(ctx context.Context, weekID string, from, to domain.PoolStatus, lastError string) error {
	return r.transition(ctx, weekID, from, bson.M{"status": to, "lastError": lastError})
}

func (r *PoolRepository) CompleteSnapshot(ctx context.Context, weekID string, finalPool, totalTickets int64, participants int) error {
	return r.transition(ctx, weekID, domain.PoolStatusSnapshotting, bson.M{
		"status":            domain.PoolStatusSnapshotTaken,
		"snapshotTaken":     true,
		"finalPool":         finalPool,
		"totalTickets":      totalTickets,
		"totalParticipants": participants,
		"lastError":         "",
	})
}

func (r *PoolRepository) SetDrawSeed(ctx context.Context, weekID, seed string) error {
	filter := bson.M{"weekId": weekID, "status": domain.PoolStatusDrawing, "drawSeed": bson.M{"$exists": false}}
	return r.set(ctx, filter, bson.M{"drawSeed": seed})
}

func (r *PoolRepository) CompleteDraw(ctx context.Context, weekID string, out domain.DrawOutcome) error {
	winners := out.Winners
	if winners == nil {
		winners = []domain.Winner{}
	}
	return r.transition(ctx, weekID, domain.PoolStatusDrawing, bson.M{
		"status":               domain.PoolStatusDrawn,
		"drawCompleted":        true,
		"winners":              winners,
		"consolationPerHolder": out.ConsolationPerHolder,
		"consolationHolders":   out.ConsolationHolders,
		"rolloverOut":          out.RolloverOut,
		"lastError":            "",
	})
}

func (r *PoolRepository) SetBurnTx(ctx context.Context, weekID, txHash, rawTx string) error {
	return r.set(ctx, bson.M{"weekId": weekID, "status": domain.PoolStatusBurning}, bson.M{"burnTxHash": txHash, "burnRawTx": rawTx})
}

func (r *PoolRepository) CompleteBurn(ctx context.Context, weekID, txHash string) error {
	return r.transition(ctx, weekID, domain.PoolStatusBurning, bson.M{
		"status":        domain.PoolStatusBurned,
		"burnCompleted": true,
		"burnTxHash":    txHash,
		"lastError":     "",
	})
}

// transition applies fields only while the pool is in status from, dropping the lease.
func (r *PoolRepository) transition(ctx context.Context, weekID string, from domain.PoolStatus, fields bson.M) error {
	fields["updatedAt"] = r.now()
	update := bson.M{"$set": fields, "$unset": bson.M{"leaseExpiresAt": ""}}

	res, err := r.coll.UpdateOne(ctx, bson.M{"weekId": weekID, "status": from}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *PoolRepository) set(ctx context.Context, filter, fields bson.M) error {
	fields["updatedAt"] = r.now()
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

type TicketRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func (r *TicketRepository) RecordPlay(ctx context.Context, weekID string, fid int64, wagered int64, day string, bonus float64) (*domain.LotteryTicket, error) {
	update := bson.M{
		"$inc": bson.M{
			"gamesPlayed":  int64(1),
			"totalWagered": wagered,
			"bonusTickets": bonus,
		},
		"$set": bson.M{"updatedAt": r.now()},
		"$setOnInsert": bson.M{
			"betBasedTickets":  0.0,
			"gameBasedTickets": 0.0,
			"totalTickets":     0.0,
			"consecutiveDays":  0,
			"streakMultiplier": 1.0,
			"ticketRangeStart": int64(0),
			"ticketRangeEnd":   int64(0),
		},
	}
	if day != "" {
		update["$addToSet"] = bson.M{"daysPlayed": day}
	} else {
		update["$setOnInsert"].(bson.M)["daysPlayed"] = bson.A{}
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var t domain.LotteryTicket
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"weekId": weekID, "fid": fid}, update, opts).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepository) SetTotals(ctx context.Context, t *domain.LotteryTicket) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"weekId": t.WeekID, "fid": t.FID}, bson.M{"$set": bson.M{
		"betBasedTickets":  t.BetBasedTickets,
		"gameBasedTickets": t.GameBasedTickets,
		"consecutiveDays":  t.ConsecutiveDays,
		"streakMultiplier": t.StreakMultiplier,
		"totalTickets":     t.TotalTickets,
		"updatedAt":        r.now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *TicketRepository) SetRanges(ctx context.Context, weekID string, ranges []domain.TicketRange) error {
	if len(ranges) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(ranges))
	for _, rg := range ranges {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"weekId": weekID, "fid": rg.FID}).
			SetUpdate(bson.M{"$set": bson.M{"ticketRangeStart": rg.Start, "ticketRangeEnd": rg.End}}))
	}
	res, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return err
	}
	if res.MatchedCount != int64(len(ranges)) {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *TicketRepository) Get(ctx context.Context, weekID string, fid int64) (*domain.LotteryTicket, error) {
	return findOne[domain.LotteryTicket](ctx, r.coll, bson.M{"weekId": weekID, "fid": fid})
}

func (r *TicketRepository) ListByWeek(ctx context.Context, weekID string) ([]*domain.LotteryTicket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "fid", Value: 1}})
	return findAll[domain.LotteryTicket](ctx, r.coll, bson.M{"weekId": weekID}, opts)
}
