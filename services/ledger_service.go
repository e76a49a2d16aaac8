package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"staking-ledger/config"
	"staking-ledger/metrics"
	"staking-ledger/models"
	"staking-ledger/store"
)

// LedgerService owns every balance-changing rule. The repository record is the
// only copy of an account; callers hold ids and re-read after each call.
type LedgerService struct {
	repo     *store.Repository
	rules    config.Rules
	verifier CredentialVerifier
	locks    *accountLocks
	logger   *zap.SugaredLogger

	// usernames that self-registration may not take
	reserved map[string]struct{}

	// Now is the clock used for timestamps and staking; tests replace it.
	Now func() time.Time
}

func NewLedgerService(repo *store.Repository, rules config.Rules, verifier CredentialVerifier, logger *zap.SugaredLogger) *LedgerService {
	return &LedgerService{
		repo:     repo,
		rules:    rules,
		verifier: verifier,
		locks:    newAccountLocks(),
		logger:   logger.Named("ledger"),
		reserved: map[string]struct{}{},
		Now:      time.Now,
	}
}

func (s *LedgerService) Rules() config.Rules {
	return s.rules
}

// ReserveUsernames keeps names (the admin accounts) out of self-registration.
func (s *LedgerService) ReserveUsernames(names ...string) {
	for _, n := range names {
		s.reserved[n] = struct{}{}
	}
}

func (s *LedgerService) now() time.Time {
	return s.Now().UTC()
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Username   string
	Credential string
	Email      *string
	Phone      *string
	Referrer   string

	// AllowReserved lets operator tooling create reserved accounts.
	AllowReserved bool
}

// Register creates an account. A referrer that resolves is credited the
// referral bonus immediately; an unknown referrer is ignored.
func (s *LedgerService) Register(ctx context.Context, req RegisterRequest) (*models.Account, error) {
	if req.Username == "" || req.Credential == "" {
		return nil, ErrMissingField
	}
	if _, ok := s.reserved[req.Username]; ok && !req.AllowReserved {
		return nil, ErrReservedUsername
	}

	if _, err := s.repo.GetAccountByUsername(ctx, req.Username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := s.verifier.Hash(req.Credential)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	var referrer *models.Account
	if req.Referrer != "" {
		referrer, err = s.repo.GetAccountByUsername(ctx, req.Referrer)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Infof("[REGISTER] referrer %q not found, registering %q without one", req.Referrer, req.Username)
			referrer = nil
		} else if err != nil {
			return nil, err
		}
	}

	id, err := s.repo.NextAccountID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate account id: %w", err)
	}

	now := s.now()
	acct := &models.Account{
		ID:             id,
		Username:       req.Username,
		Email:          req.Email,
		Phone:          req.Phone,
		CredentialHash: hash,
		Balance:        decimal.Zero,
		Referrals:      []string{},
		DepositAmount:  decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if referrer != nil {
		name := referrer.Username
		acct.Referrer = &name
	}

	if err := s.repo.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	s.logger.Infof("[REGISTER] account %d (%s) created", acct.ID, acct.Username)

	if referrer != nil {
		if _, err := s.creditReferrer(ctx, referrer.ID, acct.Username); err != nil {
			// the account exists either way; the bonus is the only thing lost
			s.logger.Errorf("[REGISTER] failed to credit referrer %s for %s: %v", referrer.Username, acct.Username, err)
		}
	}
	return acct, nil
}

func (s *LedgerService) creditReferrer(ctx context.Context, referrerID int64, username string) (*models.Account, error) {
	unlock := s.locks.lock(referrerID)
	defer unlock()

	var tier *models.ReferralBonusTier
	acct, err := s.repo.MutateAccount(ctx, referrerID, func(a *models.Account) error {
		if a.HasReferral(username) {
			return ErrDuplicateReferral
		}
		tier = s.appendReferral(a, username)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordReferralMetrics(tier)
	return acct, nil
}

// Login checks the credential against the stored verifier.
func (s *LedgerService) Login(ctx context.Context, username, credential string) (*models.Account, error) {
	acct, err := s.repo.GetAccountByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.verifier.Verify(acct.CredentialHash, credential) {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	acct, err := s.repo.GetAccount(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return acct, err
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	return s.repo.ListAccounts(ctx)
}

// RequestDeposit queues a pending deposit. The balance moves only on approval.
func (s *LedgerService) RequestDeposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      models.TransactionKindDeposit,
		Amount:    amount,
		Status:    models.TransactionStatusPending,
		Timestamp: s.now(),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	metrics.TransactionsRequested.WithLabelValues(string(tx.Kind)).Inc()
	s.logger.Infof("[DEPOSIT] %s requested by account %d: %s", tx.ID, accountID, amount.StringFixed(2))
	return tx, nil
}

// RequestWithdraw queues a pending withdrawal. The balance check here is a
// usability guard; Approve checks again.
func (s *LedgerService) RequestWithdraw(ctx context.Context, accountID int64, amount decimal.Decimal, address string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(acct.Balance) {
		return nil, ErrInsufficientBalance
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrMissingAddress
	}

	tx := &models.Transaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      models.TransactionKindWithdrawal,
		Amount:    amount,
		Status:    models.TransactionStatusPending,
		Address:   address,
		Timestamp: s.now(),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	metrics.TransactionsRequested.WithLabelValues(string(tx.Kind)).Inc()
	s.logger.Infof("[WITHDRAW] %s requested by account %d: %s to %s", tx.ID, accountID, amount.StringFixed(2), address)
	return tx, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	return tx, err
}

func (s *LedgerService) pendingTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !tx.Pending() {
		return nil, ErrTransactionNotPending
	}
	return tx, nil
}

// Approve applies a pending transaction to its account. A withdrawal larger
// than the current balance fails and stays pending.
func (s *LedgerService) Approve(ctx context.Context, transactionID string) (*models.Account, error) {
	tx, err := s.pendingTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(tx.AccountID)
	defer unlock()

	// re-read under the account lock
	if tx, err = s.pendingTransaction(ctx, transactionID); err != nil {
		return nil, err
	}

	now := s.now()
	var prevDeposit decimal.Decimal
	acct, err := s.repo.MutateAccount(ctx, tx.AccountID, func(a *models.Account) error {
		prevDeposit = a.DepositAmount
		switch tx.Kind {
		case models.TransactionKindDeposit:
			a.Balance = a.Balance.Add(tx.Amount)
			if tx.Amount.GreaterThan(a.DepositAmount) {
				a.DepositAmount = tx.Amount
			}
		case models.TransactionKindWithdrawal:
			if a.Balance.LessThan(tx.Amount) {
				return ErrInsufficientBalance
			}
			a.Balance = a.Balance.Sub(tx.Amount)
		default:
			return fmt.Errorf("unknown transaction kind %q", tx.Kind)
		}
		a.UpdatedAt = now
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.MutateTransaction(ctx, tx.ID, func(t *models.Transaction) error {
		if !t.Pending() {
			return ErrTransactionNotPending
		}
		t.Status = models.TransactionStatusApproved
		t.DecidedAt = &now
		return nil
	}); err != nil {
		// decided elsewhere between our read and write: undo the balance change
		s.revertApproval(ctx, tx, prevDeposit)
		return nil, err
	}

	metrics.TransactionsDecided.WithLabelValues(string(tx.Kind), string(models.TransactionStatusApproved)).Inc()
	s.logger.Infof("[ADMIN] %s %s of %s approved for account %d, balance now %s",
		tx.Kind, tx.ID, tx.Amount.StringFixed(2), acct.ID, acct.Balance.StringFixed(2))
	return acct, nil
}

func (s *LedgerService) revertApproval(ctx context.Context, tx *models.Transaction, prevDeposit decimal.Decimal) {
	_, err := s.repo.MutateAccount(ctx, tx.AccountID, func(a *models.Account) error {
		switch tx.Kind {
		case models.TransactionKindDeposit:
			a.Balance = a.Balance.Sub(tx.Amount)
			if a.DepositAmount.Equal(tx.Amount) {
				a.DepositAmount = prevDeposit
			}
		case models.TransactionKindWithdrawal:
			a.Balance = a.Balance.Add(tx.Amount)
		}
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logger.Errorf("[ADMIN] failed to revert approval of %s on account %d: %v", tx.ID, tx.AccountID, err)
	}
}

// Reject closes a pending transaction without touching any balance.
func (s *LedgerService) Reject(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.pendingTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(tx.AccountID)
	defer unlock()

	now := s.now()
	updated, err := s.repo.MutateTransaction(ctx, transactionID, func(t *models.Transaction) error {
		if !t.Pending() {
			return ErrTransactionNotPending
		}
		t.Status = models.TransactionStatusRejected
		t.DecidedAt = &now
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	metrics.TransactionsDecided.WithLabelValues(string(updated.Kind), string(models.TransactionStatusRejected)).Inc()
	s.logger.Infof("[ADMIN] transaction %s rejected", updated.ID)
	return updated, nil
}

// TransactionQuery is the admin list filter.
type TransactionQuery struct {
	Search    string
	Status    *models.TransactionStatus
	AccountID *int64
}

// TransactionView pairs a transaction with its owner's username.
type TransactionView struct {
	*models.Transaction
	Username string `json:"username"`
}

const unknownUser = "Unknown User"

// ListTransactions matches Search (case-insensitive) against the owner's
// username, the kind and the status.
func (s *LedgerService) ListTransactions(ctx context.Context, q TransactionQuery) ([]TransactionView, error) {
	txs, err := s.repo.ListTransactions(ctx, store.TransactionFilter{AccountID: q.AccountID, Status: q.Status})
	if err != nil {
		return nil, err
	}

	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Username
	}

	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		name, ok := names[tx.AccountID]
		if !ok {
			name = unknownUser
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(name), term) &&
			!strings.Contains(string(tx.Kind), term) &&
			!strings.Contains(string(tx.Status), term) {
			continue
		}
		out = append(out, TransactionView{Transaction: tx, Username: name})
	}
	return out, nil
}

// UsernameByID never fails; unknown ids read as "Unknown User".
func (s *LedgerService) UsernameByID(ctx context.Context, id int64) string {
	acct, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return unknownUser
	}
	return acct.Username
}

// AccountSummary is the dashboard view of one account.
type AccountSummary struct {
	Account       models.AccountView         `json:"account"`
	Staking       models.StakingStatus       `json:"staking"`
	NextMilestone *models.ReferralBonusTier  `json:"next_milestone,omitempty"`
	Tiers         []models.ReferralBonusTier `json:"tiers"`
	Pending       []*models.Transaction      `json:"pending_transactions"`
}

func (s *LedgerService) Summary(ctx context.Context, accountID int64) (*AccountSummary, error) {
	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	pending := models.TransactionStatusPending
	txs, err := s.repo.ListTransactions(ctx, store.TransactionFilter{AccountID: &accountID, Status: &pending})
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp.After(txs[j].Timestamp) })

	return &AccountSummary{
		Account:       acct.View(),
		Staking:       s.StakingStatus(acct, s.now()),
		NextMilestone: s.NextMilestone(acct),
		Tiers:         s.rules.Tiers,
		Pending:       txs,
	}, nil
}

// Ping checks that the store answers.
func (s *LedgerService) Ping(ctx context.Context) error {
	_, err := s.repo.KV().Has(ctx, "health")
	return err
}
