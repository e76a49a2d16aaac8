package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"staking-ledger/config"
	"staking-ledger/models"
	"staking-ledger/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testLedger struct {
	*LedgerService
	repo  *store.Repository
	clock *fakeClock
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	kv, err := store.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	logger := zap.NewNop().Sugar()
	repo := store.NewRepository(kv, logger)
	clock := newFakeClock()
	ledger := NewLedgerService(repo, config.DefaultRules(), NewBcryptVerifier(bcrypt.MinCost), logger)
	ledger.Now = clock.Now
	return &testLedger{LedgerService: ledger, repo: repo, clock: clock}
}

func (l *testLedger) register(t *testing.T, username, referrer string) *models.Account {
	t.Helper()
	acct, err := l.Register(context.Background(), RegisterRequest{
		Username:   username,
		Credential: "secret-" + username,
		Referrer:   referrer,
	})
	require.NoError(t, err)
	return acct
}

func (l *testLedger) reload(t *testing.T, id int64) *models.Account {
	t.Helper()
	acct, err := l.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acct
}

// fund approves a deposit so the account holds amount more.
func (l *testLedger) fund(t *testing.T, id int64, amount int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := l.RequestDeposit(ctx, id, decimal.NewFromInt(amount))
	require.NoError(t, err)
	_, err = l.Approve(ctx, tx.ID)
	require.NoError(t, err)
}

// makeEligible gives the account ten referrals and a qualifying deposit
// without going through the bonus rules.
func (l *testLedger) makeEligible(t *testing.T, id int64) {
	t.Helper()
	_, err := l.repo.MutateAccount(context.Background(), id, func(a *models.Account) error {
		for i := 0; i < 10; i++ {
			a.Referrals = append(a.Referrals, fmt.Sprintf("ref%d", i))
		}
		a.DepositAmount = decimal.NewFromInt(100)
		return nil
	})
	require.NoError(t, err)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertBalance(t *testing.T, want int64, a *models.Account) {
	t.Helper()
	require.Truef(t, a.Balance.Equal(dec(want)), "balance: want %d, got %s", want, a.Balance)
}
