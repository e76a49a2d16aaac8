package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"staking-ledger/models"
)

const (
	accountPrefix     = "account/"
	usernamePrefix    = "account-by-username/"
	txPrefix          = "tx/"
	txByAccountPrefix = "tx-by-account/"
	txByStatusPrefix  = "tx-by-status/"
	sessionPrefix     = "session/"
	accountSeqKey     = "seq/account"
)

func accountKey(id int64) string {
	// zero padded so iteration follows id order
	return fmt.Sprintf("%s%020d", accountPrefix, id)
}

func usernameKey(username string) string {
	return usernamePrefix + username
}

func txKey(id string) string {
	return txPrefix + id
}

func txByAccountKey(accountID int64, txID string) string {
	return fmt.Sprintf("%s%020d/%s", txByAccountPrefix, accountID, txID)
}

func txByStatusKey(status models.TransactionStatus, txID string) string {
	return txByStatusPrefix + string(status) + "/" + txID
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	AccountID *int64
	Status    *models.TransactionStatus
}

// Repository maps accounts, transactions and sessions onto a KV backend.
// Every record write is a compare-and-swap against the bytes that were read.
type Repository struct {
	kv     KV
	retry  RetryConfig
	logger *zap.SugaredLogger
}

func NewRepository(kv KV, logger *zap.SugaredLogger) *Repository {
	return &Repository{
		kv:     kv,
		retry:  DefaultRetryConfig(),
		logger: logger.Named("store"),
	}
}

func (r *Repository) KV() KV {
	return r.kv
}

// --- Accounts ---

// NextAccountID advances the account sequence.
func (r *Repository) NextAccountID(ctx context.Context) (int64, error) {
	var next int64
	err := retryOnConflict(ctx, r.retry, r.logger, "sequence", func() error {
		raw, err := r.kv.Get(ctx, accountSeqKey)
		var cur int64
		switch {
		case errors.Is(err, ErrNotFound):
			raw = nil
		case err != nil:
			return err
		default:
			cur, err = strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt account sequence: %w", err)
			}
		}
		next = cur + 1
		return r.kv.CompareAndSwap(ctx, accountSeqKey, raw, []byte(strconv.FormatInt(next, 10)))
	})
	return next, err
}

// ensureSequenceAtLeast moves the sequence forward past an imported id.
func (r *Repository) ensureSequenceAtLeast(ctx context.Context, id int64) error {
	return retryOnConflict(ctx, r.retry, r.logger, "sequence", func() error {
		raw, err := r.kv.Get(ctx, accountSeqKey)
		var cur int64
		switch {
		case errors.Is(err, ErrNotFound):
			raw = nil
		case err != nil:
			return err
		default:
			if cur, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
				return fmt.Errorf("corrupt account sequence: %w", err)
			}
		}
		if cur >= id {
			return nil
		}
		return r.kv.CompareAndSwap(ctx, accountSeqKey, raw, []byte(strconv.FormatInt(id, 10)))
	})
}

// CreateAccount writes the record, then claims the username index. An index
// entry therefore only ever lacks a record when its create failed.
// Returns ErrExists when the username or id is taken.
func (r *Repository) CreateAccount(ctx context.Context, acct *models.Account) error {
	acct.Version = 1
	raw, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	if err := r.kv.CompareAndSwap(ctx, accountKey(acct.ID), nil, raw); err != nil {
		if errors.Is(err, ErrConflict) {
			return fmt.Errorf("account id %d: %w", acct.ID, ErrExists)
		}
		return err
	}

	if err := r.claimUsername(ctx, acct.Username, acct.ID); err != nil {
		if delErr := r.kv.Delete(ctx, accountKey(acct.ID)); delErr != nil {
			r.logger.Errorf("[STORE] failed to remove account %d after index claim failed: %v", acct.ID, delErr)
		}
		return err
	}
	return r.ensureSequenceAtLeast(ctx, acct.ID)
}

func (r *Repository) claimUsername(ctx context.Context, username string, id int64) error {
	idBytes := []byte(strconv.FormatInt(id, 10))
	err := r.kv.CompareAndSwap(ctx, usernameKey(username), nil, idBytes)
	if !errors.Is(err, ErrConflict) {
		return err
	}

	cur, err := r.kv.Get(ctx, usernameKey(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return r.kv.CompareAndSwap(ctx, usernameKey(username), nil, idBytes)
		}
		return err
	}
	ownerID, err := strconv.ParseInt(string(cur), 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt username index for %q: %w", username, err)
	}
	owner, err := r.GetAccount(ctx, ownerID)
	switch {
	case err == nil && owner.Username == username:
		return fmt.Errorf("username %q: %w", username, ErrExists)
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	// orphaned: the owner's record was never kept
	if err := r.kv.CompareAndSwap(ctx, usernameKey(username), cur, idBytes); err != nil {
		if errors.Is(err, ErrConflict) {
			return fmt.Errorf("username %q: %w", username, ErrExists)
		}
		return err
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	acct, _, err := r.readAccount(ctx, id)
	return acct, err
}

func (r *Repository) readAccount(ctx context.Context, id int64) (*models.Account, []byte, error) {
	raw, err := r.kv.Get(ctx, accountKey(id))
	if err != nil {
		return nil, nil, err
	}
	var acct models.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, nil, fmt.Errorf("decode account %d: %w", id, err)
	}
	return &acct, raw, nil
}

func (r *Repository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	raw, err := r.kv.Get(ctx, usernameKey(username))
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt username index for %q: %w", username, err)
	}
	acct, err := r.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.Username != username {
		return nil, ErrNotFound
	}
	return acct, nil
}

func (r *Repository) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	err := r.kv.Iterate(ctx, accountPrefix, func(key string, value []byte) error {
		var acct models.Account
		if err := json.Unmarshal(value, &acct); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, &acct)
		return nil
	})
	return out, err
}

// MutateAccount applies fn to a fresh copy of the account and writes it back
// with compare-and-swap, retrying on conflict. An error from fn aborts without writing.
func (r *Repository) MutateAccount(ctx context.Context, id int64, fn func(*models.Account) error) (*models.Account, error) {
	var result *models.Account
	err := retryOnConflict(ctx, r.retry, r.logger, "account", func() error {
		acct, raw, err := r.readAccount(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(acct); err != nil {
			return err
		}
		acct.Version++
		next, err := json.Marshal(acct)
		if err != nil {
			return err
		}
		if err := r.kv.CompareAndSwap(ctx, accountKey(id), raw, next); err != nil {
			return err
		}
		result = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- Transactions ---

func (r *Repository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	tx.Version = 1
	raw, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	if err := r.kv.CompareAndSwap(ctx, txKey(tx.ID), nil, raw); err != nil {
		if errors.Is(err, ErrConflict) {
			return fmt.Errorf("transaction %s: %w", tx.ID, ErrExists)
		}
		return err
	}
	if err := r.kv.Put(ctx, txByAccountKey(tx.AccountID, tx.ID), []byte{}); err != nil {
		return err
	}
	return r.kv.Put(ctx, txByStatusKey(tx.Status, tx.ID), []byte{})
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, _, err := r.readTransaction(ctx, id)
	return tx, err
}

func (r *Repository) readTransaction(ctx context.Context, id string) (*models.Transaction, []byte, error) {
	raw, err := r.kv.Get(ctx, txKey(id))
	if err != nil {
		return nil, nil, err
	}
	var tx models.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, nil, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	return &tx, raw, nil
}

// ListTransactions returns matching transactions oldest first.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error) {
	var out []*models.Transaction

	match := func(tx *models.Transaction) bool {
		if filter.AccountID != nil && tx.AccountID != *filter.AccountID {
			return false
		}
		if filter.Status != nil && tx.Status != *filter.Status {
			return false
		}
		return true
	}

	var prefix string
	switch {
	case filter.AccountID != nil:
		prefix = fmt.Sprintf("%s%020d/", txByAccountPrefix, *filter.AccountID)
	case filter.Status != nil:
		prefix = txByStatusPrefix + string(*filter.Status) + "/"
	}

	var err error
	if prefix != "" {
		err = r.kv.Iterate(ctx, prefix, func(key string, _ []byte) error {
			id := key[strings.LastIndex(key, "/")+1:]
			tx, err := r.GetTransaction(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			// indexes can lag a status change; the record is authoritative
			if match(tx) {
				out = append(out, tx)
			}
			return nil
		})
	} else {
		err = r.kv.Iterate(ctx, txPrefix, func(key string, value []byte) error {
			var tx models.Transaction
			if err := json.Unmarshal(value, &tx); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			out = append(out, &tx)
			return nil
		})
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// MutateTransaction is MutateAccount for transactions; the status index follows the record.
func (r *Repository) MutateTransaction(ctx context.Context, id string, fn func(*models.Transaction) error) (*models.Transaction, error) {
	var (
		result    *models.Transaction
		oldStatus models.TransactionStatus
	)
	err := retryOnConflict(ctx, r.retry, r.logger, "transaction", func() error {
		tx, raw, err := r.readTransaction(ctx, id)
		if err != nil {
			return err
		}
		oldStatus = tx.Status
		if err := fn(tx); err != nil {
			return err
		}
		tx.Version++
		next, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		if err := r.kv.CompareAndSwap(ctx, txKey(id), raw, next); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status != oldStatus {
		if err := r.kv.Put(ctx, txByStatusKey(result.Status, id), []byte{}); err != nil {
			return nil, err
		}
		if err := r.kv.Delete(ctx, txByStatusKey(oldStatus, id)); err != nil {
			r.logger.Warnf("[STORE] stale status index for transaction %s: %v", id, err)
		}
	}
	return result, nil
}

// --- Sessions ---

func (r *Repository) PutSession(ctx context.Context, s *models.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.kv.Put(ctx, sessionKey(s.ID), raw)
}

func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.kv.Get(ctx, sessionKey(id))
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	return r.kv.Delete(ctx, sessionKey(id))
}

func (r *Repository) ListSessions(ctx context.Context) ([]*models.Session, error) {
	var out []*models.Session
	err := r.kv.Iterate(ctx, sessionPrefix, func(key string, value []byte) error {
		var s models.Session
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, &s)
		return nil
	})
	return out, err
}
