// Package mongodb implements repository.Store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"time"

	"trivia_backend/internal/logger"
	"trivia_backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with the rest of the mini-app.
const (
	CollAccounts       = "currency_accounts"
	CollGames          = "bet_mode_games"
	CollQuestions      = "bet_mode_questions"
	CollPools          = "weekly_pools"
	CollTickets        = "lottery_tickets"
	CollTransactions   = "qt_transactions"
	CollBurns          = "burn_records"
	CollUsers          = "users"
	CollReconciliation = "reconciliation_logs"
	CollOutbox         = "contract_sync_outbox"
	CollPayouts        = "lottery_payouts"
	CollWithdrawals    = "bet_mode_withdrawals"
)

// Collections lists every collection owned by the service.
var Collections = []string{
	CollAccounts, CollGames, CollQuestions, CollPools, CollTickets, CollTransactions,
	CollBurns, CollUsers, CollReconciliation, CollOutbox, CollPayouts, CollWithdrawals,
}

const reconciliationLogTTL = 90 * 24 * time.Hour

type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
	now          func() time.Time
}

var _ repository.Store = (*Store)(nil)

// NewStore wraps a connected database. With transactions disabled (standalone
// servers) WithTx runs its function without a session.
func NewStore(client *mongo.Client, db *mongo.Database, transactions bool) *Store {
	if !transactions {
		logger.Warn("mongodb transactions disabled; multi-document updates are not atomic")
	}
	return &Store{client: client, db: db, transactions: transactions, now: time.Now}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Accounts() repository.AccountRepository {
	return &AccountRepository{coll: s.db.Collection(CollAccounts), now: s.now}
}

func (s *Store) Games() repository.GameRepository {
	return &GameRepository{coll: s.db.Collection(CollGames)}
}

func (s *Store) Questions() repository.QuestionRepository {
	return &QuestionRepository{coll: s.db.Collection(CollQuestions)}
}

func (s *Store) Pools() repository.PoolRepository {
	return &PoolRepository{coll: s.db.Collection(CollPools), now: s.now}
}

func (s *Store) Tickets() repository.TicketRepository {
	return &TicketRepository{coll: s.db.Collection(CollTickets), now: s.now}
}

func (s *Store) Transactions() repository.TransactionRepository {
	return &TransactionRepository{coll: s.db.Collection(CollTransactions), now: s.now}
}

func (s *Store) Burns() repository.BurnRepository {
	return &BurnRepository{coll: s.db.Collection(CollBurns)}
}

func (s *Store) Users() repository.UserRepository {
	return &UserRepository{coll: s.db.Collection(CollUsers), now: s.now}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &OutboxRepository{coll: s.db.Collection(CollOutbox), now: s.now}
}

func (s *Store) Payouts() repository.PayoutRepository {
	return &PayoutRepository{coll: s.db.Collection(CollPayouts)}
}

func (s *Store) Withdrawals() repository.WithdrawalRepository {
	return &WithdrawalRepository{coll: s.db.Collection(CollWithdrawals)}
}

func (s *Store) Reconciliation() repository.ReconciliationRepository {
	return &ReconciliationRepository{coll: s.db.Collection(CollReconciliation)}
}

// EnsureIndexes creates the indexes the ledger relies on for uniqueness guarantees.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	partialUnique := func(keys bson.D, filter bson.M) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetPartialFilterExpression(filter)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[string][]mongo.IndexModel{
		CollAccounts: {unique(bson.D{{Key: "fid", Value: 1}})},
		CollGames: {
			unique(bson.D{{Key: "gameId", Value: 1}}),
			// one active game per user
			partialUnique(bson.D{{Key: "fid", Value: 1}}, bson.M{"status": "active"}),
			plain(bson.D{{Key: "weekId", Value: 1}, {Key: "status", Value: 1}}),
		},
		CollQuestions: {
			unique(bson.D{{Key: "questionId", Value: 1}}),
			plain(bson.D{{Key: "active", Value: 1}, {Key: "difficulty", Value: 1}}),
		},
		CollPools:   {unique(bson.D{{Key: "weekId", Value: 1}})},
		CollTickets: {unique(bson.D{{Key: "weekId", Value: 1}, {Key: "fid", Value: 1}})},
		CollTransactions: {
			partialUnique(bson.D{{Key: "txHash", Value: 1}}, bson.M{"txHash": bson.M{"$exists": true}}),
			plain(bson.D{{Key: "fid", Value: 1}, {Key: "createdAt", Value: -1}}),
		},
		CollBurns: {unique(bson.D{{Key: "weekId", Value: 1}})},
		CollUsers: {
			unique(bson.D{{Key: "fid", Value: 1}}),
			partialUnique(bson.D{{Key: "walletAddress", Value: 1}}, bson.M{"walletAddress": bson.M{"$exists": true}}),
		},
		CollOutbox: {
			unique(bson.D{{Key: "id", Value: 1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "nextAttemptAt", Value: 1}}),
			plain(bson.D{{Key: "fid", Value: 1}, {Key: "status", Value: 1}}),
		},
		CollPayouts: {unique(bson.D{{Key: "weekId", Value: 1}, {Key: "position", Value: 1}, {Key: "fid", Value: 1}})},
		CollWithdrawals: {
			unique(bson.D{{Key: "id", Value: 1}}),
			partialUnique(bson.D{{Key: "fid", Value: 1}}, bson.M{"status": "pending"}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "expiresAt", Value: 1}}),
		},
		CollReconciliation: {
			plain(bson.D{{Key: "runId", Value: 1}}),
			{
				Keys:    bson.D{{Key: "createdAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(reconciliationLogTTL.Seconds())),
			},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
		logger.Debug("mongodb indexes ensured", "collection", coll, "count", len(models))
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]*T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*T
	for cur.Next(ctx) {
		var item T
		if err := cur.Decode(&item); err != nil {
			return nil, err
		}
		out = append(out, &item)
	}
	return out, cur.Err()
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}
