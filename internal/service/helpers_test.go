package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"trivia_backend/internal/chain"
	"trivia_backend/internal/domain"
	"trivia_backend/internal/notify"
	"trivia_backend/internal/repository/memory"
	"trivia_backend/internal/week"

	"github.com/stretchr/testify/require"
)

// Wednesday noon, well inside its ISO week.
var testNow = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

type syncCall struct {
	Kind   domain.SyncKind
	Wallet string
	Amount int64
}

type fakeChain struct {
	mu sync.Mutex

	blockHash   []byte
	vault       map[string]int64
	nonces      map[string]uint64
	deposits    map[string]*chain.Transfer
	withdrawals map[string]*chain.Transfer
	receipts    map[string]*chain.Receipt
	signed      map[string]signedBurn
	broadcast   map[string]bool

	syncErr    error
	balanceErr error
	burnErr    error
	burnFails  int
	nonceUsed  bool
	waitErr    error
	syncs      []syncCall
	burns      []int64
	signatures int
	authorized int
	seq        int
}

type signedBurn struct {
	hash   string
	amount int64
}

var _ Chain = (*fakeChain)(nil)

func newFakeChain() *fakeChain {
	return &fakeChain{
		blockHash:   []byte("0123456789abcdef0123456789abcdef"),
		vault:       map[string]int64{},
		nonces:      map[string]uint64{},
		deposits:    map[string]*chain.Transfer{},
		withdrawals: map[string]*chain.Transfer{},
		receipts:    map[string]*chain.Receipt{},
		signed:      map[string]signedBurn{},
		broadcast:   map[string]bool{},
	}
}

func (c *fakeChain) hash() string {
	c.seq++
	return fmt.Sprintf("0x%064x", c.seq)
}

func (c *fakeChain) Addresses() chain.Addresses {
	return chain.Addresses{ChainID: 8453, Vault: "0xvault", Token: "0xtoken", Burn: "0xdead"}
}

func (c *fakeChain) LatestBlockHash(ctx context.Context) ([]byte, error) {
	return c.blockHash, nil
}

func (c *fakeChain) VaultBalance(ctx context.Context, wallet string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balanceErr != nil {
		return 0, c.balanceErr
	}
	return c.vault[strings.ToLower(wallet)], nil
}

func (c *fakeChain) VaultNonce(ctx context.Context, wallet string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[strings.ToLower(wallet)], nil
}

func (c *fakeChain) SyncBalance(ctx context.Context, kind domain.SyncKind, wallet string, amount int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syncErr != nil {
		return "", c.syncErr
	}
	w := strings.ToLower(wallet)
	if kind == domain.SyncCredit {
		c.vault[w] += amount
	} else {
		c.vault[w] -= amount
	}
	c.nonces[w]++
	c.syncs = append(c.syncs, syncCall{Kind: kind, Wallet: w, Amount: amount})
	return c.hash(), nil
}

func (c *fakeChain) AuthorizeWithdrawal(ctx context.Context, wallet string, amount int64, deadline time.Time) (*chain.WithdrawalAuth, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authorized++
	return &chain.WithdrawalAuth{
		AmountWei: big.NewInt(amount).String(),
		Nonce:     c.nonces[strings.ToLower(wallet)],
		Deadline:  deadline.Unix(),
		Signature: "0xsig",
	}, nil
}

func (c *fakeChain) FindDeposit(ctx context.Context, txHash string) (*chain.Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.deposits[strings.ToLower(txHash)]
	if !ok {
		return nil, chain.ErrTxNotFound
	}
	return t, nil
}

func (c *fakeChain) FindWithdrawal(ctx context.Context, txHash string) (*chain.Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.withdrawals[strings.ToLower(txHash)]
	if !ok {
		return nil, chain.ErrEventNotFound
	}
	return t, nil
}

func (c *fakeChain) SignBurn(ctx context.Context, amount int64) (*chain.SignedTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hash()
	raw := "0xf8" + h[2:]
	c.signed[raw] = signedBurn{hash: h, amount: amount}
	c.signatures++
	return &chain.SignedTx{Hash: h, Raw: raw}, nil
}

// SendRawTx records a burn the first time its raw transaction reaches the node.
func (c *fakeChain) SendRawTx(ctx context.Context, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.burnErr != nil {
		return c.burnErr
	}
	if c.burnFails > 0 {
		c.burnFails--
		return errors.New("rpc unavailable")
	}
	if c.nonceUsed {
		return fmt.Errorf("nonce too low: %w", chain.ErrNonceUsed)
	}
	b, ok := c.signed[raw]
	if !ok {
		return errors.New("unknown raw transaction")
	}
	if !c.broadcast[b.hash] {
		c.broadcast[b.hash] = true
		c.burns = append(c.burns, b.amount)
	}
	return nil
}

func (c *fakeChain) Receipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.receipts[txHash]; ok {
		return r, nil
	}
	if !c.broadcast[txHash] {
		return nil, chain.ErrTxNotFound
	}
	return &chain.Receipt{TxHash: txHash, Success: true, BlockNumber: 100}, nil
}

func (c *fakeChain) WaitTx(ctx context.Context, txHash string) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waitErr != nil {
		return nil, c.waitErr
	}
	if r, ok := c.receipts[txHash]; ok {
		return r, nil
	}
	return &chain.Receipt{TxHash: txHash, Success: true, BlockNumber: 100}, nil
}

// deposit simulates a vault deposit and returns its tx hash.
func (c *fakeChain) deposit(wallet string, amount int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hash()
	w := strings.ToLower(wallet)
	c.vault[w] += amount
	c.deposits[h] = &chain.Transfer{TxHash: h, User: w, Amount: amount, AmountWei: big.NewInt(amount), BlockNumber: 10}
	return h
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *fakeNotifier) Notify(ctx context.Context, m notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	ctx      context.Context
	store    *memory.Store
	clock    *testClock
	chain    *fakeChain
	notifier *fakeNotifier
	tickets  *TicketService
	bets     *BetService
	lottery  *LotteryService
	burns    *BurnService
	sync     *ContractSync
	wallets  *WalletService
	weekID   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: testNow}
	store := memory.NewStore().WithClock(clock.Now)
	ch := newFakeChain()
	n := &fakeNotifier{}
	tickets := NewTicketService(store)

	env := &testEnv{
		ctx:      context.Background(),
		store:    store,
		clock:    clock,
		chain:    ch,
		notifier: n,
		tickets:  tickets,
		bets: NewBetService(store, tickets, nil, BetConfig{
			MinBet: 1_000,
			MaxBet: 1_000_000,
			Window: week.Window{AlwaysOpen: true},
		}).WithClock(clock.Now),
		lottery: NewLotteryService(store, tickets, nil, ch, n).WithClock(clock.Now),
		burns:   NewBurnService(store, nil, ch, n).WithClock(clock.Now),
		sync:    NewContractSync(store, ch).WithClock(clock.Now),
		wallets: NewWalletService(store, ch, WalletConfig{WithdrawalTTL: 30 * time.Minute}).WithClock(clock.Now),
		weekID:  week.ID(testNow),
	}
	env.burns.retryBase = time.Millisecond
	env.burns.waitTimeout = time.Second
	env.sync.waitTimeout = time.Second

	seedQuestions(t, store)
	return env
}

func seedQuestions(t *testing.T, store *memory.Store) {
	t.Helper()
	var qs []domain.Question
	for _, d := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard, domain.DifficultyExpert} {
		for i := 0; i < 5; i++ {
			qs = append(qs, domain.Question{
				QuestionID:   fmt.Sprintf("%s-%d", d, i),
				Text:         fmt.Sprintf("%s question %d", d, i),
				Options:      []string{"a", "b", "c", "d"},
				CorrectIndex: i % 4,
				Difficulty:   d,
				Active:       true,
			})
		}
	}
	require.NoError(t, store.Questions().Insert(context.Background(), qs))
}

func (e *testEnv) fund(t *testing.T, fid, amount int64) {
	t.Helper()
	_, err := e.store.Accounts().Apply(e.ctx, fid, domain.AccountDelta{Balance: amount, Deposited: amount})
	require.NoError(t, err)
}

func (e *testEnv) account(t *testing.T, fid int64) *domain.Account {
	t.Helper()
	a, err := e.store.Accounts().GetOrCreate(e.ctx, fid)
	require.NoError(t, err)
	return a
}

func (e *testEnv) start(t *testing.T, fid, bet int64) string {
	t.Helper()
	res, err := e.bets.Start(e.ctx, fid, bet)
	require.NoError(t, err)
	return res.Game.GameID
}

// answerIndex returns the answer index of the game's current question, or a wrong one.
func (e *testEnv) answerIndex(t *testing.T, gameID string, right bool) int {
	t.Helper()
	g, err := e.store.Games().Get(e.ctx, gameID)
	require.NoError(t, err)
	require.NotNil(t, g)
	idx := g.Questions[g.CurrentQuestion-1].CorrectIndex
	if right {
		return idx
	}
	return (idx + 1) % len(g.Questions[g.CurrentQuestion-1].Options)
}

func (e *testEnv) answer(t *testing.T, fid int64, gameID string, right bool) *AnswerOutcome {
	t.Helper()
	out, err := e.bets.Answer(e.ctx, fid, gameID, e.answerIndex(t, gameID, right))
	require.NoError(t, err)
	return out
}

func (e *testEnv) outbox(fid int64) []*domain.OutboxEntry {
	var out []*domain.OutboxEntry
	for _, o := range e.store.OutboxEntries() {
		if o.FID == fid {
			out = append(out, o)
		}
	}
	return out
}

// endWeek moves the clock into the following week.
func (e *testEnv) endWeek(t *testing.T) {
	t.Helper()
	_, end, err := week.Bounds(e.weekID)
	require.NoError(t, err)
	e.clock.Set(end.Add(time.Hour))
}
