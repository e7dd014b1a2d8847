package mongodb

import (
	"context"
	"strings"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func (r *UserRepository) Get(ctx context.Context, fid int64) (*domain.User, error) {
	return findOne[domain.User](ctx, r.coll, bson.M{"fid": fid})
}

func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	if wallet == "" {
		return nil, nil
	}
	return findOne[domain.User](ctx, r.coll, bson.M{"walletAddress": strings.ToLower(wallet)})
}

func (r *UserRepository) LinkWallet(ctx context.Context, fid int64, wallet string) error {
	wallet = strings.ToLower(wallet)

	owner, err := r.GetByWallet(ctx, wallet)
	if err != nil {
		return err
	}
	if owner != nil {
		if owner.FID != fid {
			return repository.ErrWalletAlreadyTaken
		}
		return nil
	}

	now := r.now()
	filter := bson.M{"fid": fid, "$or": bson.A{
		bson.M{"walletAddress": bson.M{"$exists": false}},
		bson.M{"walletAddress": ""},
	}}
	update := bson.M{
		"$set":         bson.M{"walletAddress": wallet, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	_, err = r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}

	// the upsert collided either on fid (a different wallet is linked) or on the wallet itself
	owner, err = r.GetByWallet(ctx, wallet)
	if err != nil {
		return err
	}
	if owner != nil && owner.FID != fid {
		return repository.ErrWalletAlreadyTaken
	}
	if owner != nil {
		return nil
	}
	return repository.ErrConditionFailed
}

func (r *UserRepository) ListWithWallet(ctx context.Context, afterFID int64, limit int) ([]*domain.User, error) {
	filter := bson.M{
		"fid":           bson.M{"$gt": afterFID},
		"walletAddress": bson.M{"$exists": true, "$ne": ""},
	}
	opts := options.Find().SetSort(bson.D{{Key: "fid", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll[domain.User](ctx, r.coll, filter, opts)
}

type WithdrawalRepository struct {
	coll *mongo.Collection
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	_, err := r.coll.InsertOne(ctx, w)
	return mapWriteError(err)
}

func (r *WithdrawalRepository) Get(ctx context.Context, id string) (*domain.Withdrawal, error) {
	return findOne[domain.Withdrawal](ctx, r.coll, bson.M{"id": id})
}

func (r *WithdrawalRepository) GetPendingByFID(ctx context.Context, fid int64) (*domain.Withdrawal, error) {
	return findOne[domain.Withdrawal](ctx, r.coll, bson.M{"fid": fid, "status": domain.WithdrawalPending})
}

func (r *WithdrawalRepository) Finish(ctx context.Context, id string, status domain.WithdrawalStatus, txHash string, now time.Time) error {
	set := bson.M{"status": status, "completedAt": now}
	if txHash != "" {
		set["txHash"] = strings.ToLower(txHash)
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id, "status": domain.WithdrawalPending}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *WithdrawalRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Withdrawal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "expiresAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll[domain.Withdrawal](ctx, r.coll, bson.M{"status": domain.WithdrawalPending, "expiresAt": bson.M{"$lt": now}}, opts)
}

type ReconciliationRepository struct {
	coll *mongo.Collection
}

func (r *ReconciliationRepository) Insert(ctx context.Context, logs []domain.ReconciliationLog) error {
	if len(logs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(logs))
	for i := range logs {
		docs[i] = logs[i]
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}
