package memory

import (
	"context"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/repository"
)

type accountRepo struct{ s *Store }

func (r accountRepo) Get(ctx context.Context, fid int64) (*domain.Account, error) {
	defer r.s.lock(ctx)()
	a, ok := r.s.d.accounts[fid]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (r accountRepo) GetOrCreate(ctx context.Context, fid int64) (*domain.Account, error) {
	defer r.s.lock(ctx)()
	c := *r.s.ensureAccount(fid)
	return &c, nil
}

func (s *Store) ensureAccount(fid int64) *domain.Account {
	a, ok := s.d.accounts[fid]
	if !ok {
		now := s.now()
		a = &domain.Account{FID: fid, CreatedAt: now, UpdatedAt: now}
		s.d.accounts[fid] = a
	}
	return a
}

func (r accountRepo) Apply(ctx context.Context, fid int64, d domain.AccountDelta) (*domain.Account, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.d.accounts[fid]
	if !ok {
		if d.IsDebit() {
			return nil, repository.ErrInsufficientFunds
		}
		a = r.s.ensureAccount(fid)
	}
	if a.QTBalance+d.Balance < 0 || a.QTLockedBalance+d.Locked < 0 {
		return nil, repository.ErrInsufficientFunds
	}

	a.QTBalance += d.Balance
	a.QTLockedBalance += d.Locked
	a.QTTotalDeposited += d.Deposited
	a.QTTotalWithdrawn += d.Withdrawn
	a.QTTotalWagered += d.Wagered
	a.QTTotalWon += d.Won
	a.UpdatedAt = r.s.now()

	c := *a
	return &c, nil
}

type gameRepo struct{ s *Store }

func (r gameRepo) Create(ctx context.Context, g *domain.Game) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.games[g.GameID]; ok {
		return repository.ErrDuplicate
	}
	if g.Status == domain.GameStatusActive {
		for _, other := range r.s.d.games {
			if other.FID == g.FID && other.Status == domain.GameStatusActive {
				return repository.ErrDuplicate
			}
		}
	}
	r.s.d.games[g.GameID] = cloneGame(g)
	return nil
}

func (r gameRepo) Get(ctx context.Context, gameID string) (*domain.Game, error) {
	defer r.s.lock(ctx)()
	g, ok := r.s.d.games[gameID]
	if !ok {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (r gameRepo) GetActiveByFID(ctx context.Context, fid int64) (*domain.Game, error) {
	defer r.s.lock(ctx)()
	for _, g := range r.s.d.games {
		if g.FID == fid && g.Status == domain.GameStatusActive {
			return cloneGame(g), nil
		}
	}
	return nil, nil
}

func (r gameRepo) Update(ctx context.Context, g *domain.Game) error {
	defer r.s.lock(ctx)()
	cur, ok := r.s.d.games[g.GameID]
	if !ok || cur.Version != g.Version {
		return repository.ErrConflict
	}
	g.Version++
	r.s.d.games[g.GameID] = cloneGame(g)
	return nil
}

func (r gameRepo) ListActiveByWeek(ctx context.Context, weekID string) ([]*domain.Game, error) {
	defer r.s.lock(ctx)()
	var out []*domain.Game
	for _, g := range r.s.d.games {
		if g.WeekID == weekID && g.Status == domain.GameStatusActive {
			out = append(out, cloneGame(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

type questionRepo struct{ s *Store }

func (r questionRepo) Sample(ctx context.Context, difficulties []domain.Difficulty, n int) ([]domain.Question, error) {
	defer r.s.lock(ctx)()
	var candidates []domain.Question
	for _, q := range r.s.d.questions {
		if q.Active && slices.Contains(difficulties, q.Difficulty) {
			candidates = append(candidates, q)
		}
	}
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

func (r questionRepo) Insert(ctx context.Context, qs []domain.Question) error {
	defer r.s.lock(ctx)()
	for _, q := range qs {
		for _, existing := range r.s.d.questions {
			if existing.QuestionID == q.QuestionID {
				return repository.ErrDuplicate
			}
		}
		r.s.d.questions = append(r.s.d.questions, q)
	}
	return nil
}

func (r questionRepo) CountActive(ctx context.Context) (map[domain.Difficulty]int64, error) {
	defer r.s.lock(ctx)()
	out := make(map[domain.Difficulty]int64)
	for _, q := range r.s.d.questions {
		if q.Active {
			out[q.Difficulty]++
		}
	}
	return out, nil
}

type poolRepo struct{ s *Store }

func (r poolRepo) Get(ctx context.Context, weekID string) (*domain.WeeklyPool, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.d.pools[weekID]
	if !ok {
		return nil, nil
	}
	return clonePool(p), nil
}

func (r poolRepo) Ensure(ctx context.Context, weekID string) (*domain.WeeklyPool, error) {
	defer r.s.lock(ctx)()
	return clonePool(r.s.ensurePool(weekID)), nil
}

func (s *Store) ensurePool(weekID string) *domain.WeeklyPool {
	p, ok := s.d.pools[weekID]
	if !ok {
		now := s.now()
		p = &domain.WeeklyPool{WeekID: weekID, Status: domain.PoolStatusOpen, CreatedAt: now, UpdatedAt: now}
		s.d.pools[weekID] = p
	}
	return p
}

func (r poolRepo) Increment(ctx context.Context, weekID string, d domain.PoolDelta) error {
	defer r.s.lock(ctx)()
	p := r.s.ensurePool(weekID)
	p.TotalLosses += d.TotalLosses
	p.ToBurnAccumulated += d.ToBurn
	p.LotteryPool += d.Lottery
	p.PlatformRevenue += d.Platform
	p.RolloverIn += d.RolloverIn
	p.TotalGames += d.TotalGames
	p.TotalWagered += d.TotalWagered
	p.TotalPayouts += d.TotalPayouts
	p.UpdatedAt = r.s.now()
	return nil
}

func (r poolRepo) Claim(ctx context.Context, weekID string, from, to domain.PoolStatus, lease time.Duration, now time.Time) (*domain.WeeklyPool, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.d.pools[weekID]
	if !ok {
		return nil, repository.ErrConditionFailed
	}
	expired := p.Status == to && p.LeaseExpiresAt != nil && p.LeaseExpiresAt.Before(now)
	if p.Status != from && !expired {
		return nil, repository.ErrConditionFailed
	}
	until := now.Add(lease)
	p.Status = to
	p.LeaseExpiresAt = &until
	p.UpdatedAt = now
	return clonePool(p), nil
}

func (r poolRepo) Release(ctx context.Context, weekID string, from, to domain.PoolStatus, lastError string) error {
	return r.transition(ctx, weekID, from, func(p *domain.WeeklyPool) {
		p.Status = to
		p.LastError = lastError
	})
}

func (r poolRepo) CompleteSnapshot(ctx context.Context, weekID string, finalPool, totalTickets int64, participants int) error {
	return r.transition(ctx, weekID, domain.PoolStatusSnapshotting, func(p *domain.WeeklyPool) {
		p.Status = domain.PoolStatusSnapshotTaken
		p.SnapshotTaken = true
		p.FinalPool = finalPool
		p.TotalTickets = totalTickets
		p.TotalParticipants = participants
		p.LastError = ""
	})
}

func (r poolRepo) SetDrawSeed(ctx context.Context, weekID, seed string) error {
	defer r.s.lock(ctx)()
	p, ok := r.s.d.pools[weekID]
	if !ok || p.Status != domain.PoolStatusDrawing || p.DrawSeed != "" {
		return repository.ErrConditionFailed
	}
	p.DrawSeed = seed
	p.UpdatedAt = r.s.now()
	return nil
}

func (r poolRepo) CompleteDraw(ctx context.Context, weekID string, out domain.DrawOutcome) error {
	return r.transition(ctx, weekID, domain.PoolStatusDrawing, func(p *domain.WeeklyPool) {
		p.Status = domain.PoolStatusDrawn
		p.DrawCompleted = true
		p.Winners = append([]domain.Winner(nil), out.Winners...)
		p.ConsolationPerHolder = out.ConsolationPerHolder
		p.ConsolationHolders = out.ConsolationHolders
		p.RolloverOut = out.RolloverOut
		p.LastError = ""
	})
}

func (r poolRepo) SetBurnTx(ctx context.Context, weekID, txHash, rawTx string) error {
	defer r.s.lock(ctx)()
	p, ok := r.s.d.pools[weekID]
	if !ok || p.Status != domain.PoolStatusBurning {
		return repository.ErrConditionFailed
	}
	p.BurnTxHash = txHash
	p.BurnRawTx = rawTx
	p.UpdatedAt = r.s.now()
	return nil
}

func (r poolRepo) CompleteBurn(ctx context.Context, weekID, txHash string) error {
	return r.transition(ctx, weekID, domain.PoolStatusBurning, func(p *domain.WeeklyPool) {
		p.Status = domain.PoolStatusBurned
		p.BurnCompleted = true
		p.BurnTxHash = txHash
		p.LastError = ""
	})
}

func (r poolRepo) transition(ctx context.Context, weekID string, from domain.PoolStatus, apply func(p *domain.WeeklyPool)) error {
	defer r.s.lock(ctx)()
	p, ok := r.s.d.pools[weekID]
	if !ok || p.Status != from {
		return repository.ErrConditionFailed
	}
	apply(p)
	p.LeaseExpiresAt = nil
	p.UpdatedAt = r.s.now()
	return nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) RecordPlay(ctx context.Context, weekID string, fid int64, wagered int64, day string, bonus float64) (*domain.LotteryTicket, error) {
	defer r.s.lock(ctx)()
	key := ticketKey{weekID, fid}
	t, ok := r.s.d.tickets[key]
	if !ok {
		t = &domain.LotteryTicket{WeekID: weekID, FID: fid, StreakMultiplier: 1}
		r.s.d.tickets[key] = t
	}
	t.GamesPlayed++
	t.TotalWagered += wagered
	t.BonusTickets += bonus
	if day != "" && !slices.Contains(t.DaysPlayed, day) {
		t.DaysPlayed = append(t.DaysPlayed, day)
	}
	t.UpdatedAt = r.s.now()
	return cloneTicket(t), nil
}

func (r ticketRepo) SetTotals(ctx context.Context, in *domain.LotteryTicket) error {
	defer r.s.lock(ctx)()
	t, ok := r.s.d.tickets[ticketKey{in.WeekID, in.FID}]
	if !ok {
		return repository.ErrConditionFailed
	}
	t.BetBasedTickets = in.BetBasedTickets
	t.GameBasedTickets = in.GameBasedTickets
	t.ConsecutiveDays = in.ConsecutiveDays
	t.StreakMultiplier = in.StreakMultiplier
	t.TotalTickets = in.TotalTickets
	t.UpdatedAt = r.s.now()
	return nil
}

func (r ticketRepo) SetRanges(ctx context.Context, weekID string, ranges []domain.TicketRange) error {
	defer r.s.lock(ctx)()
	for _, rg := range ranges {
		t, ok := r.s.d.tickets[ticketKey{weekID, rg.FID}]
		if !ok {
			return repository.ErrConditionFailed
		}
		t.TicketRangeStart = rg.Start
		t.TicketRangeEnd = rg.End
	}
	return nil
}

func (r ticketRepo) Get(ctx context.Context, weekID string, fid int64) (*domain.LotteryTicket, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.d.tickets[ticketKey{weekID, fid}]
	if !ok {
		return nil, nil
	}
	return cloneTicket(t), nil
}

func (r ticketRepo) ListByWeek(ctx context.Context, weekID string) ([]*domain.LotteryTicket, error) {
	defer r.s.lock(ctx)()
	var out []*domain.LotteryTicket
	for k, t := range r.s.d.tickets {
		if k.weekID == weekID {
			out = append(out, cloneTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FID < out[j].FID })
	return out, nil
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) Create(ctx context.Context, tx *domain.QTTransaction) error {
	defer r.s.lock(ctx)()
	if tx.TxHash != "" {
		for _, existing := range r.s.d.transactions {
			if strings.EqualFold(existing.TxHash, tx.TxHash) {
				return repository.ErrDuplicate
			}
		}
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.s.now()
	}
	c := *tx
	r.s.d.transactions = append(r.s.d.transactions, &c)
	return nil
}

func (r transactionRepo) ListByFID(ctx context.Context, fid int64, limit int) ([]*domain.QTTransaction, error) {
	defer r.s.lock(ctx)()
	if limit <= 0 {
		limit = 100
	}
	var out []*domain.QTTransaction
	for i := len(r.s.d.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if t := r.s.d.transactions[i]; t.FID == fid {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r transactionRepo) GetByTxHash(ctx context.Context, txHash string) (*domain.QTTransaction, error) {
	defer r.s.lock(ctx)()
	for _, t := range r.s.d.transactions {
		if t.TxHash != "" && strings.EqualFold(t.TxHash, txHash) {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

type burnRepo struct{ s *Store }

func (r burnRepo) Create(ctx context.Context, b *domain.BurnRecord) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.burns[b.WeekID]; ok {
		return repository.ErrDuplicate
	}
	c := *b
	r.s.d.burns[b.WeekID] = &c
	return nil
}

func (r burnRepo) GetByWeek(ctx context.Context, weekID string) (*domain.BurnRecord, error) {
	defer r.s.lock(ctx)()
	b, ok := r.s.d.burns[weekID]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Get(ctx context.Context, fid int64) (*domain.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.d.users[fid]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r userRepo) GetByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.d.users {
		if u.WalletAddress != "" && strings.EqualFold(u.WalletAddress, wallet) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r userRepo) LinkWallet(ctx context.Context, fid int64, wallet string) error {
	defer r.s.lock(ctx)()
	wallet = strings.ToLower(wallet)
	for _, u := range r.s.d.users {
		if u.FID != fid && strings.EqualFold(u.WalletAddress, wallet) {
			return repository.ErrWalletAlreadyTaken
		}
	}

	now := r.s.now()
	u, ok := r.s.d.users[fid]
	if !ok {
		r.s.d.users[fid] = &domain.User{FID: fid, WalletAddress: wallet, CreatedAt: now, UpdatedAt: now}
		return nil
	}
	if u.WalletAddress != "" && !strings.EqualFold(u.WalletAddress, wallet) {
		return repository.ErrConditionFailed
	}
	u.WalletAddress = wallet
	u.UpdatedAt = now
	return nil
}

// PutUser seeds a user, used by tests and local runs.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.WalletAddress = strings.ToLower(u.WalletAddress)
	s.d.users[u.FID] = &u
}

func (r userRepo) ListWithWallet(ctx context.Context, afterFID int64, limit int) ([]*domain.User, error) {
	defer r.s.lock(ctx)()
	var out []*domain.User
	for _, u := range r.s.d.users {
		if u.FID > afterFID && u.WalletAddress != "" {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FID < out[j].FID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Enqueue(ctx context.Context, e *domain.OutboxEntry) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.outbox[e.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *e
	r.s.d.outbox[e.ID] = &c
	r.s.d.outboxOrder = append(r.s.d.outboxOrder, e.ID)
	return nil
}

func (r outboxRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.OutboxEntry, error) {
	defer r.s.lock(ctx)()
	var out []*domain.OutboxEntry
	for _, id := range r.s.d.outboxOrder {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := r.s.d.outbox[id]
		due := e.Status == domain.OutboxPending && !e.NextAttemptAt.After(now)
		stale := e.Status == domain.OutboxProcessing && e.LeaseExpiresAt != nil && e.LeaseExpiresAt.Before(now)
		if !due && !stale {
			continue
		}
		until := now.Add(lease)
		e.Status = domain.OutboxProcessing
		e.LeaseExpiresAt = &until
		e.Attempts++
		e.UpdatedAt = now
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r outboxRepo) MarkSent(ctx context.Context, id, txHash string) error {
	return r.update(ctx, id, func(e *domain.OutboxEntry) {
		e.Status = domain.OutboxSent
		e.TxHash = txHash
		e.LastError = ""
	})
}

func (r outboxRepo) MarkRetry(ctx context.Context, id string, next time.Time, lastError string) error {
	return r.update(ctx, id, func(e *domain.OutboxEntry) {
		e.Status = domain.OutboxPending
		e.NextAttemptAt = next
		e.LastError = lastError
	})
}

func (r outboxRepo) Hold(ctx context.Context, id string, next time.Time, reason string) error {
	return r.update(ctx, id, func(e *domain.OutboxEntry) {
		e.Status = domain.OutboxPending
		e.NextAttemptAt = next
		e.LastError = reason
		if e.Attempts > 0 {
			e.Attempts--
		}
	})
}

func (r outboxRepo) MarkFailed(ctx context.Context, id, lastError string) error {
	return r.update(ctx, id, func(e *domain.OutboxEntry) {
		e.Status = domain.OutboxFailed
		e.LastError = lastError
	})
}

func (r outboxRepo) update(ctx context.Context, id string, apply func(e *domain.OutboxEntry)) error {
	defer r.s.lock(ctx)()
	e, ok := r.s.d.outbox[id]
	if !ok || e.Status != domain.OutboxProcessing {
		return repository.ErrConditionFailed
	}
	apply(e)
	e.LeaseExpiresAt = nil
	e.UpdatedAt = r.s.now()
	return nil
}

func (r outboxRepo) CountPending(ctx context.Context, fid int64) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, e := range r.s.d.outbox {
		if e.FID == fid && (e.Status == domain.OutboxPending || e.Status == domain.OutboxProcessing) {
			n++
		}
	}
	return n, nil
}

type payoutRepo struct{ s *Store }

func (r payoutRepo) Insert(ctx context.Context, p *domain.LotteryPayout) error {
	defer r.s.lock(ctx)()
	key := payoutKey{p.WeekID, p.Position, p.FID}
	if _, ok := r.s.d.payouts[key]; ok {
		return repository.ErrDuplicate
	}
	c := *p
	r.s.d.payouts[key] = &c
	return nil
}

func (r payoutRepo) ListByWeek(ctx context.Context, weekID string) ([]*domain.LotteryPayout, error) {
	defer r.s.lock(ctx)()
	var out []*domain.LotteryPayout
	for k, p := range r.s.d.payouts {
		if k.weekID == weekID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].FID < out[j].FID
	})
	return out, nil
}

type withdrawalRepo struct{ s *Store }

func (r withdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.d.withdrawals[w.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, other := range r.s.d.withdrawals {
		if other.FID == w.FID && other.Status == domain.WithdrawalPending {
			return repository.ErrDuplicate
		}
	}
	c := *w
	r.s.d.withdrawals[w.ID] = &c
	return nil
}

func (r withdrawalRepo) Get(ctx context.Context, id string) (*domain.Withdrawal, error) {
	defer r.s.lock(ctx)()
	w, ok := r.s.d.withdrawals[id]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (r withdrawalRepo) GetPendingByFID(ctx context.Context, fid int64) (*domain.Withdrawal, error) {
	defer r.s.lock(ctx)()
	for _, w := range r.s.d.withdrawals {
		if w.FID == fid && w.Status == domain.WithdrawalPending {
			c := *w
			return &c, nil
		}
	}
	return nil, nil
}

func (r withdrawalRepo) Finish(ctx context.Context, id string, status domain.WithdrawalStatus, txHash string, now time.Time) error {
	defer r.s.lock(ctx)()
	w, ok := r.s.d.withdrawals[id]
	if !ok || w.Status != domain.WithdrawalPending {
		return repository.ErrConditionFailed
	}
	w.Status = status
	w.TxHash = txHash
	w.CompletedAt = &now
	return nil
}

func (r withdrawalRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Withdrawal, error) {
	defer r.s.lock(ctx)()
	var out []*domain.Withdrawal
	for _, w := range r.s.d.withdrawals {
		if w.Status == domain.WithdrawalPending && w.ExpiresAt.Before(now) {
			c := *w
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type reconciliationRepo struct{ s *Store }

func (r reconciliationRepo) Insert(ctx context.Context, logs []domain.ReconciliationLog) error {
	defer r.s.lock(ctx)()
	r.s.d.reconciliation = append(r.s.d.reconciliation, logs...)
	return nil
}
