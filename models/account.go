package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the canonical record of a registered user and its ledger state.
// Sessions and handlers only ever hold the ID and re-read this record.
type Account struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"` // case-sensitive, unique
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`

	// CredentialHash is the verifier output, never the secret itself.
	CredentialHash string `json:"credential_hash"`

	Balance  decimal.Decimal `json:"balance"`
	Referrer *string         `json:"referrer,omitempty"` // username lookup only, not ownership

	Referrals []string `json:"referrals"` // insertion order = referral order

	// DepositAmount is the largest single approved deposit (high-water mark).
	DepositAmount decimal.Decimal `json:"deposit_amount"`

	// PaidTiers holds the referral thresholds whose one-time bonus was paid.
	PaidTiers []int `json:"paid_tiers,omitempty"`

	LastStakingReward *time.Time `json:"last_staking_reward,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version increments on every persisted write.
	Version uint64 `json:"version"`
}

// ReferralCount is the count used for milestone and staking checks.
func (a *Account) ReferralCount() int {
	return len(a.Referrals)
}

func (a *Account) HasReferral(username string) bool {
	for _, r := range a.Referrals {
		if r == username {
			return true
		}
	}
	return false
}

func (a *Account) TierPaid(threshold int) bool {
	for _, t := range a.PaidTiers {
		if t == threshold {
			return true
		}
	}
	return false
}

// AccountView is the public projection returned to API callers.
type AccountView struct {
	ID                int64           `json:"id"`
	Username          string          `json:"username"`
	Email             *string         `json:"email,omitempty"`
	Phone             *string         `json:"phone,omitempty"`
	Balance           decimal.Decimal `json:"balance"`
	Referrer          *string         `json:"referrer,omitempty"`
	Referrals         []string        `json:"referrals"`
	ReferralCount     int             `json:"referral_count"`
	DepositAmount     decimal.Decimal `json:"deposit_amount"`
	LastStakingReward *time.Time      `json:"last_staking_reward,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (a *Account) View() AccountView {
	refs := a.Referrals
	if refs == nil {
		refs = []string{}
	}
	return AccountView{
		ID:                a.ID,
		Username:          a.Username,
		Email:             a.Email,
		Phone:             a.Phone,
		Balance:           a.Balance,
		Referrer:          a.Referrer,
		Referrals:         refs,
		ReferralCount:     len(refs),
		DepositAmount:     a.DepositAmount,
		LastStakingReward: a.LastStakingReward,
		CreatedAt:         a.CreatedAt,
	}
}
