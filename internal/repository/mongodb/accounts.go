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

type AccountRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func (r *AccountRepository) Get(ctx context.Context, fid int64) (*domain.Account, error) {
	return findOne[domain.Account](ctx, r.coll, bson.M{"fid": fid})
}

func (r *AccountRepository) GetOrCreate(ctx context.Context, fid int64) (*domain.Account, error) {
	now := r.now()
	update := bson.M{"$setOnInsert": bson.M{
		"qtBalance":        int64(0),
		"qtLockedBalance":  int64(0),
		"qtTotalDeposited": int64(0),
		"qtTotalWithdrawn": int64(0),
		"qtTotalWagered":   int64(0),
		"qtTotalWon":       int64(0),
		"createdAt":        now,
		"updatedAt":        now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var a domain.Account
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"fid": fid}, update, opts).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Apply runs the delta as one conditional $inc. Debits never upsert, so a missing
// account is reported as insufficient funds.
func (r *AccountRepository) Apply(ctx context.Context, fid int64, d domain.AccountDelta) (*domain.Account, error) {
	filter := bson.M{"fid": fid}
	if d.Balance < 0 {
		filter["qtBalance"] = bson.M{"$gte": -d.Balance}
	}
	if d.Locked < 0 {
		filter["qtLockedBalance"] = bson.M{"$gte": -d.Locked}
	}

	now := r.now()
	update := bson.M{
		"$inc": bson.M{
			"qtBalance":        d.Balance,
			"qtLockedBalance":  d.Locked,
			"qtTotalDeposited": d.Deposited,
			"qtTotalWithdrawn": d.Withdrawn,
			"qtTotalWagered":   d.Wagered,
			"qtTotalWon":       d.Won,
		},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(!d.IsDebit()).SetReturnDocument(options.After)

	var a domain.Account
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrInsufficientFunds
		}
		return nil, err
	}
	return &a, nil
}
