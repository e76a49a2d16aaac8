package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"staking-ledger/models"
	"staking-ledger/store"
)

// LegacyUser is a user record as exported by the browser-storage version.
type LegacyUser struct {
	ID                int64           `json:"id"`
	Username          string          `json:"username"`
	Password          string          `json:"password"`
	Balance           decimal.Decimal `json:"balance"`
	Referrer          *string         `json:"referrer"`
	CreatedAt         string          `json:"created_at"`
	Referrals         []string        `json:"referrals"`
	DepositAmount     decimal.Decimal `json:"depositAmount"`
	LastStakingReward *string         `json:"lastStakingReward"`
	Email             *string         `json:"email"`
	Phone             *string         `json:"phone"`
}

type LegacyTransaction struct {
	ID        string                   `json:"id"`
	UserID    int64                    `json:"userId"`
	Type      models.TransactionKind   `json:"type"`
	Amount    decimal.Decimal          `json:"amount"`
	Status    models.TransactionStatus `json:"status"`
	Address   string                   `json:"address"`
	Timestamp string                   `json:"timestamp"`
}

type ImportReport struct {
	AccountsImported     int `json:"accounts_imported"`
	AccountsSkipped      int `json:"accounts_skipped"`
	TransactionsImported int `json:"transactions_imported"`
	TransactionsSkipped  int `json:"transactions_skipped"`
}

// ImportLegacy loads exported records, skipping any id or username that
// already exists. Plaintext passwords are hashed on the way in. Tiers at or
// below an imported referral count are marked paid.
func (s *LedgerService) ImportLegacy(ctx context.Context, users []LegacyUser, txs []LegacyTransaction) (*ImportReport, error) {
	report := &ImportReport{}
	now := s.now()

	for _, u := range users {
		if u.Username == "" || u.ID <= 0 {
			s.logger.Warnf("[IMPORT] skipping user with id %d: missing id or username", u.ID)
			report.AccountsSkipped++
			continue
		}
		hash, err := s.legacyCredential(u.Password)
		if err != nil {
			s.logger.Warnf("[IMPORT] skipping user %d (%s): %v", u.ID, u.Username, err)
			report.AccountsSkipped++
			continue
		}

		acct := &models.Account{
			ID:                u.ID,
			Username:          u.Username,
			Email:             u.Email,
			Phone:             u.Phone,
			CredentialHash:    hash,
			Balance:           u.Balance,
			Referrer:          u.Referrer,
			Referrals:         u.Referrals,
			DepositAmount:     u.DepositAmount,
			LastStakingReward: parseLegacyTimePtr(u.LastStakingReward),
			CreatedAt:         parseLegacyTime(u.CreatedAt, now),
			UpdatedAt:         now,
		}
		if acct.Referrals == nil {
			acct.Referrals = []string{}
		}
		for _, t := range s.rules.Tiers {
			if t.Count <= acct.ReferralCount() {
				acct.PaidTiers = append(acct.PaidTiers, t.Count)
			}
		}

		if err := s.repo.CreateAccount(ctx, acct); err != nil {
			if errors.Is(err, store.ErrExists) {
				s.logger.Infof("[IMPORT] user %d (%s) already exists, skipping", u.ID, u.Username)
				report.AccountsSkipped++
				continue
			}
			return report, err
		}
		report.AccountsImported++
	}

	for _, lt := range txs {
		if lt.ID == "" || !lt.Status.Valid() {
			s.logger.Warnf("[IMPORT] skipping malformed transaction %q", lt.ID)
			report.TransactionsSkipped++
			continue
		}
		tx := &models.Transaction{
			ID:        lt.ID,
			AccountID: lt.UserID,
			Kind:      lt.Type,
			Amount:    lt.Amount,
			Status:    lt.Status,
			Address:   lt.Address,
			Timestamp: parseLegacyTime(lt.Timestamp, now),
		}
		if err := s.repo.CreateTransaction(ctx, tx); err != nil {
			if errors.Is(err, store.ErrExists) {
				s.logger.Infof("[IMPORT] transaction %s already exists, skipping", lt.ID)
				report.TransactionsSkipped++
				continue
			}
			return report, err
		}
		report.TransactionsImported++
	}

	s.logger.Infof("[IMPORT] accounts %d imported / %d skipped, transactions %d imported / %d skipped",
		report.AccountsImported, report.AccountsSkipped, report.TransactionsImported, report.TransactionsSkipped)
	return report, nil
}

// legacyCredential keeps an exported bcrypt hash as is and hashes anything
// else as a plaintext password.
func (s *LedgerService) legacyCredential(password string) (string, error) {
	if isBcryptHash(password) {
		return password, nil
	}
	return s.verifier.Hash(password)
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

func parseLegacyTime(v string, fallback time.Time) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

func parseLegacyTimePtr(v *string) *time.Time {
	if v == nil || *v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *v)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
