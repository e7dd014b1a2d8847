package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TransactionRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.QTTransaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.now()
	}
	tx.TxHash = strings.ToLower(tx.TxHash)
	_, err := r.coll.InsertOne(ctx, tx)
	return mapWriteError(err)
}

func (r *TransactionRepository) ListByFID(ctx context.Context, fid int64, limit int) ([]*domain.QTTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	return findAll[domain.QTTransaction](ctx, r.coll, bson.M{"fid": fid}, opts)
}

func (r *TransactionRepository) GetByTxHash(ctx context.Context, txHash string) (*domain.QTTransaction, error) {
	if txHash == "" {
		return nil, nil
	}
	return findOne[domain.QTTransaction](ctx, r.coll, bson.M{"txHash": strings.ToLower(txHash)})
}

type BurnRepository struct {
	coll *mongo.Collection
}

func (r *BurnRepository) Create(ctx context.Context, b *domain.BurnRecord) error {
	_, err := r.coll.InsertOne(ctx, b)
	return mapWriteError(err)
}

func (r *BurnRepository) GetByWeek(ctx context.Context, weekID string) (*domain.BurnRecord, error) {
	return findOne[domain.BurnRecord](ctx, r.coll, bson.M{"weekId": weekID})
}

type OutboxRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func (r *OutboxRepository) Enqueue(ctx context.Context, e *domain.OutboxEntry) error {
	now := r.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, e)
	return mapWriteError(err)
}

// ClaimDue leases due entries one at a time so concurrent workers never share an entry.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.OutboxEntry, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"status": domain.OutboxPending, "nextAttemptAt": bson.M{"$lte": now}},
		bson.M{"status": domain.OutboxProcessing, "leaseExpiresAt": bson.M{"$lt": now}},
	}}
	update := bson.M{
		"$set": bson.M{
			"status":         domain.OutboxProcessing,
			"leaseExpiresAt": now.Add(lease),
			"updatedAt":      now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetReturnDocument(options.After)

	var out []*domain.OutboxEntry
	for limit <= 0 || len(out) < limit {
		var e domain.OutboxEntry
		err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&e)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, &e)
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id, txHash string) error {
	return r.finish(ctx, id, bson.M{"status": domain.OutboxSent, "txHash": txHash, "lastError": ""})
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, id string, next time.Time, lastError string) error {
	return r.finish(ctx, id, bson.M{"status": domain.OutboxPending, "nextAttemptAt": next, "lastError": lastError})
}

func (r *OutboxRepository) Hold(ctx context.Context, id string, next time.Time, reason string) error {
	update := bson.M{
		"$set":   bson.M{"status": domain.OutboxPending, "nextAttemptAt": next, "lastError": reason, "updatedAt": r.now()},
		"$unset": bson.M{"leaseExpiresAt": ""},
		"$inc":   bson.M{"attempts": -1},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id, "status": domain.OutboxProcessing, "attempts": bson.M{"$gt": 0}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id, lastError string) error {
	return r.finish(ctx, id, bson.M{"status": domain.OutboxFailed, "lastError": lastError})
}

func (r *OutboxRepository) finish(ctx context.Context, id string, fields bson.M) error {
	fields["updatedAt"] = r.now()
	update := bson.M{"$set": fields, "$unset": bson.M{"leaseExpiresAt": ""}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id, "status": domain.OutboxProcessing}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *OutboxRepository) CountPending(ctx context.Context, fid int64) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{
		"fid":    fid,
		"status": bson.M{"$in": bson.A{domain.OutboxPending, domain.OutboxProcessing}},
	})
}

type PayoutRepository struct {
	coll *mongo.Collection
}

func (r *PayoutRepository) Insert(ctx context.Context, p *domain.LotteryPayout) error {
	_, err := r.coll.InsertOne(ctx, p)
	return mapWriteError(err)
}

func (r *PayoutRepository) ListByWeek(ctx context.Context, weekID string) ([]*domain.LotteryPayout, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "fid", Value: 1}})
	return findAll[domain.LotteryPayout](ctx, r.coll, bson.M{"weekId": weekID}, opts)
}
