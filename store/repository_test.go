package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"staking-ledger/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r := NewRepository(newMemKV(t), zap.NewNop().Sugar())
	r.retry = fastRetry()
	return r
}

func newAccount(id int64, username string) *models.Account {
	return &models.Account{
		ID:        id,
		Username:  username,
		Balance:   decimal.Zero,
		Referrals: []string{},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRepository_NextAccountID(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	for want := int64(1); want <= 3; want++ {
		got, err := r.NextAccountID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRepository_CreateAccountMovesSequencePastImportedID(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.CreateAccount(ctx, newAccount(1700000000000, "legacy")))
	next, err := r.NextAccountID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000001), next)
}

func TestRepository_CreateAccountUniqueUsername(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.CreateAccount(ctx, newAccount(1, "alice")))
	err := r.CreateAccount(ctx, newAccount(2, "alice"))
	assert.ErrorIs(t, err, ErrExists)

	// usernames are case-sensitive
	require.NoError(t, r.CreateAccount(ctx, newAccount(3, "Alice")))

	got, err := r.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, uint64(1), got.Version)
}

func TestRepository_CreateAccountDuplicateIDReleasesUsername(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.CreateAccount(ctx, newAccount(1, "alice")))
	assert.ErrorIs(t, r.CreateAccount(ctx, newAccount(1, "bob")), ErrExists)

	_, err := r.GetAccountByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, r.CreateAccount(ctx, newAccount(2, "bob")))
}

func TestRepository_CreateAccountReclaimsOrphanedUsername(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	// index entry whose record was never written
	require.NoError(t, r.kv.Put(ctx, usernameKey("ghost"), []byte("99")))
	require.NoError(t, r.CreateAccount(ctx, newAccount(5, "ghost")))

	got, err := r.GetAccountByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
}

// hookKV runs hook once, just before the first swap on key.
type hookKV struct {
	KV
	key  string
	hook func()
	done bool
}

func (h *hookKV) CompareAndSwap(ctx context.Context, key string, old, next []byte) error {
	if key == h.key && !h.done {
		h.done = true
		h.hook()
	}
	return h.KV.CompareAndSwap(ctx, key, old, next)
}

func TestRepository_CreateAccountConcurrentSameUsername(t *testing.T) {
	cases := map[string]string{
		"second create lands before the first record": accountKey(1),
		"second create lands before the first claim":  usernameKey("dup"),
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := &hookKV{KV: newMemKV(t), key: key}
			r := NewRepository(kv, zap.NewNop().Sugar())
			r.retry = fastRetry()

			var errB error
			kv.hook = func() { errB = r.CreateAccount(ctx, newAccount(2, "dup")) }
			errA := r.CreateAccount(ctx, newAccount(1, "dup"))

			require.NoError(t, errB)
			assert.ErrorIs(t, errA, ErrExists)

			accounts, err := r.ListAccounts(ctx)
			require.NoError(t, err)
			require.Len(t, accounts, 1)
			assert.Equal(t, int64(2), accounts[0].ID)

			got, err := r.GetAccountByUsername(ctx, "dup")
			require.NoError(t, err)
			assert.Equal(t, int64(2), got.ID)
		})
	}
}

func TestRepository_CreateAccountIndexPointingAtOtherUser(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.CreateAccount(ctx, newAccount(7, "owner")))
	// stale entry naming a record that belongs to someone else
	require.NoError(t, r.kv.Put(ctx, usernameKey("stale"), []byte("7")))

	require.NoError(t, r.CreateAccount(ctx, newAccount(8, "stale")))
	got, err := r.GetAccountByUsername(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.ID)
}

func TestRepository_MutateAccount(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	require.NoError(t, r.CreateAccount(ctx, newAccount(1, "alice")))

	updated, err := r.MutateAccount(ctx, 1, func(a *models.Account) error {
		a.Balance = a.Balance.Add(decimal.NewFromInt(25))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), updated.Version)
	assert.True(t, updated.Balance.Equal(decimal.NewFromInt(25)))

	// an error from fn aborts the write
	stop := errors.New("stop")
	_, err = r.MutateAccount(ctx, 1, func(a *models.Account) error {
		a.Balance = decimal.NewFromInt(1000)
		return stop
	})
	assert.ErrorIs(t, err, stop)

	got, err := r.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, uint64(2), got.Version)

	_, err = r.MutateAccount(ctx, 42, func(a *models.Account) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_MutateAccountRetriesAfterConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	require.NoError(t, r.CreateAccount(ctx, newAccount(1, "alice")))

	calls := 0
	updated, err := r.MutateAccount(ctx, 1, func(a *models.Account) error {
		calls++
		if calls == 1 {
			// another writer lands between our read and our swap
			_, err := r.MutateAccount(ctx, 1, func(b *models.Account) error {
				b.Balance = b.Balance.Add(decimal.NewFromInt(10))
				return nil
			})
			require.NoError(t, err)
		}
		a.Balance = a.Balance.Add(decimal.NewFromInt(1))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, updated.Balance.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, uint64(3), updated.Version)
}

func TestRepository_Transactions(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	txs := []*models.Transaction{
		{ID: "t3", AccountID: 1, Kind: models.TransactionKindWithdrawal, Amount: decimal.NewFromInt(5), Status: models.TransactionStatusPending, Timestamp: base.Add(3 * time.Minute)},
		{ID: "t1", AccountID: 1, Kind: models.TransactionKindDeposit, Amount: decimal.NewFromInt(50), Status: models.TransactionStatusPending, Timestamp: base.Add(time.Minute)},
		{ID: "t2", AccountID: 2, Kind: models.TransactionKindDeposit, Amount: decimal.NewFromInt(70), Status: models.TransactionStatusPending, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, tx := range txs {
		require.NoError(t, r.CreateTransaction(ctx, tx))
	}
	assert.ErrorIs(t, r.CreateTransaction(ctx, &models.Transaction{ID: "t1", Status: models.TransactionStatusPending}), ErrExists)

	all, err := r.ListTransactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(all))

	acct := int64(1)
	mine, err := r.ListTransactions(ctx, TransactionFilter{AccountID: &acct})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, ids(mine))

	_, err = r.MutateTransaction(ctx, "t1", func(tx *models.Transaction) error {
		tx.Status = models.TransactionStatusApproved
		return nil
	})
	require.NoError(t, err)

	pending := models.TransactionStatusPending
	open, err := r.ListTransactions(ctx, TransactionFilter{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3"}, ids(open))

	approved := models.TransactionStatusApproved
	done, err := r.ListTransactions(ctx, TransactionFilter{AccountID: &acct, Status: &approved})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids(done))

	got, err := r.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
}

func TestRepository_Sessions(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	now := time.Now().UTC()

	s := &models.Session{ID: "s1", AccountID: 7, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, r.PutSession(ctx, s))

	got, err := r.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.AccountID)

	list, err := r.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, r.DeleteSession(ctx, "s1"))
	_, err = r.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func ids(txs []*models.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}
