package services

import (
	"context"
	"errors"
	"strings"

	"staking-ledger/metrics"
	"staking-ledger/models"
	"staking-ledger/store"
)

// AddReferral records that the actor referred username. The actor is paid the
// flat referral bonus, plus a tier bonus when the new count hits a threshold
// that has not paid before. The referred account's referrer is overwritten.
func (s *LedgerService) AddReferral(ctx context.Context, actorID int64, username string) (*models.Account, *models.ReferralBonusTier, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil, ErrMissingField
	}

	actor, err := s.GetAccount(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Username == username {
		return nil, nil, ErrSelfReferral
	}
	if actor.HasReferral(username) {
		return nil, nil, ErrDuplicateReferral
	}

	referred, err := s.repo.GetAccountByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrReferralNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	unlock := s.locks.lock(actorID, referred.ID)
	defer unlock()

	var tier *models.ReferralBonusTier
	actor, err = s.repo.MutateAccount(ctx, actorID, func(a *models.Account) error {
		if a.HasReferral(username) {
			return ErrDuplicateReferral
		}
		tier = s.appendReferral(a, username)
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	s.recordReferralMetrics(tier)

	referrer := actor.Username
	if _, err := s.repo.MutateAccount(ctx, referred.ID, func(a *models.Account) error {
		a.Referrer = &referrer
		a.UpdatedAt = s.now()
		return nil
	}); err != nil {
		s.logger.Errorf("[REFERRAL] credited %s but could not set referrer on %s: %v", actor.Username, username, err)
	}

	s.logger.Infof("[REFERRAL] %s referred %s (%d referrals, balance %s)",
		actor.Username, username, actor.ReferralCount(), actor.Balance.StringFixed(2))
	return actor, tier, nil
}

// appendReferral mutates a in place and returns the tier it paid, if any.
func (s *LedgerService) appendReferral(a *models.Account, username string) *models.ReferralBonusTier {
	a.Referrals = append(a.Referrals, username)
	a.Balance = a.Balance.Add(s.rules.ReferralBonus)
	a.UpdatedAt = s.now()

	tier := s.TierReached(a.ReferralCount())
	if tier == nil || a.TierPaid(tier.Count) {
		return nil
	}
	a.Balance = a.Balance.Add(tier.Bonus)
	a.PaidTiers = append(a.PaidTiers, tier.Count)
	return tier
}

func (s *LedgerService) recordReferralMetrics(tier *models.ReferralBonusTier) {
	metrics.ReferralBonusesPaid.WithLabelValues("referral").Inc()
	if tier != nil {
		metrics.ReferralBonusesPaid.WithLabelValues("milestone").Inc()
	}
}

// TierReached returns the tier whose threshold equals count exactly.
func (s *LedgerService) TierReached(count int) *models.ReferralBonusTier {
	for i := range s.rules.Tiers {
		if s.rules.Tiers[i].Count == count {
			t := s.rules.Tiers[i]
			return &t
		}
	}
	return nil
}

// NextMilestone is the first tier above the account's current count, or nil
// once every tier is behind it.
func (s *LedgerService) NextMilestone(a *models.Account) *models.ReferralBonusTier {
	n := a.ReferralCount()
	for i := range s.rules.Tiers {
		if s.rules.Tiers[i].Count > n {
			t := s.rules.Tiers[i]
			return &t
		}
	}
	return nil
}
