// Package memory is an in-process implementation of repository.Store.
// It backs tests and local runs without MONGODB_URI. Transactions are serialized
// under a single mutex and rolled back from a snapshot on error.
package memory

import (
	"context"
	"sync"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/repository"
)

type txKey struct{}

type ticketKey struct {
	weekID string
	fid    int64
}

type payoutKey struct {
	weekID   string
	position int
	fid      int64
}

type data struct {
	accounts       map[int64]*domain.Account
	games          map[string]*domain.Game
	questions      []domain.Question
	pools          map[string]*domain.WeeklyPool
	tickets        map[ticketKey]*domain.LotteryTicket
	transactions   []*domain.QTTransaction
	burns          map[string]*domain.BurnRecord
	users          map[int64]*domain.User
	outbox         map[string]*domain.OutboxEntry
	outboxOrder    []string
	payouts        map[payoutKey]*domain.LotteryPayout
	withdrawals    map[string]*domain.Withdrawal
	reconciliation []domain.ReconciliationLog
}

type Store struct {
	mu  sync.Mutex
	now func() time.Time
	d   *data
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{now: time.Now, d: newData()}
}

// WithClock overrides the timestamps written by the store.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func newData() *data {
	return &data{
		accounts:    make(map[int64]*domain.Account),
		games:       make(map[string]*domain.Game),
		pools:       make(map[string]*domain.WeeklyPool),
		tickets:     make(map[ticketKey]*domain.LotteryTicket),
		burns:       make(map[string]*domain.BurnRecord),
		users:       make(map[int64]*domain.User),
		outbox:      make(map[string]*domain.OutboxEntry),
		payouts:     make(map[payoutKey]*domain.LotteryPayout),
		withdrawals: make(map[string]*domain.Withdrawal),
	}
}

// lock takes the store mutex unless ctx already runs inside a transaction of this store.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.d.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.d = snap
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) Accounts() repository.AccountRepository             { return accountRepo{s} }
func (s *Store) Games() repository.GameRepository                   { return gameRepo{s} }
func (s *Store) Questions() repository.QuestionRepository           { return questionRepo{s} }
func (s *Store) Pools() repository.PoolRepository                   { return poolRepo{s} }
func (s *Store) Tickets() repository.TicketRepository               { return ticketRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository     { return transactionRepo{s} }
func (s *Store) Burns() repository.BurnRepository                   { return burnRepo{s} }
func (s *Store) Users() repository.UserRepository                   { return userRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository                { return outboxRepo{s} }
func (s *Store) Payouts() repository.PayoutRepository               { return payoutRepo{s} }
func (s *Store) Withdrawals() repository.WithdrawalRepository       { return withdrawalRepo{s} }
func (s *Store) Reconciliation() repository.ReconciliationRepository { return reconciliationRepo{s} }

// ReconciliationLogs returns everything written by reconciliation runs.
func (s *Store) ReconciliationLogs() []domain.ReconciliationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ReconciliationLog(nil), s.d.reconciliation...)
}

// OutboxEntries returns all outbox entries in insertion order.
func (s *Store) OutboxEntries() []*domain.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.OutboxEntry, 0, len(s.d.outboxOrder))
	for _, id := range s.d.outboxOrder {
		e := *s.d.outbox[id]
		out = append(out, &e)
	}
	return out
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.accounts {
		a := *v
		c.accounts[k] = &a
	}
	for k, v := range d.games {
		c.games[k] = cloneGame(v)
	}
	c.questions = append([]domain.Question(nil), d.questions...)
	for k, v := range d.pools {
		c.pools[k] = clonePool(v)
	}
	for k, v := range d.tickets {
		c.tickets[k] = cloneTicket(v)
	}
	c.transactions = append([]*domain.QTTransaction(nil), d.transactions...)
	for k, v := range d.burns {
		b := *v
		c.burns[k] = &b
	}
	for k, v := range d.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range d.outbox {
		e := *v
		c.outbox[k] = &e
	}
	c.outboxOrder = append([]string(nil), d.outboxOrder...)
	for k, v := range d.payouts {
		p := *v
		c.payouts[k] = &p
	}
	for k, v := range d.withdrawals {
		w := *v
		c.withdrawals[k] = &w
	}
	c.reconciliation = append([]domain.ReconciliationLog(nil), d.reconciliation...)
	return c
}

func cloneGame(g *domain.Game) *domain.Game {
	c := *g
	c.Questions = make([]domain.GameQuestion, len(g.Questions))
	for i, q := range g.Questions {
		q.Options = append([]string(nil), q.Options...)
		if q.UserAnswer != nil {
			v := *q.UserAnswer
			q.UserAnswer = &v
		}
		if q.IsCorrect != nil {
			v := *q.IsCorrect
			q.IsCorrect = &v
		}
		if q.AnsweredAt != nil {
			v := *q.AnsweredAt
			q.AnsweredAt = &v
		}
		c.Questions[i] = q
	}
	if g.CompletedAt != nil {
		v := *g.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

func clonePool(p *domain.WeeklyPool) *domain.WeeklyPool {
	c := *p
	c.Winners = append([]domain.Winner(nil), p.Winners...)
	if p.LeaseExpiresAt != nil {
		v := *p.LeaseExpiresAt
		c.LeaseExpiresAt = &v
	}
	return &c
}

func cloneTicket(t *domain.LotteryTicket) *domain.LotteryTicket {
	c := *t
	c.DaysPlayed = append([]string(nil), t.DaysPlayed...)
	return &c
}
