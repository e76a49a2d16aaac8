package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staking-ledger/metrics"
	"staking-ledger/models"
	"staking-ledger/store"
)

var errNoAccrual = errors.New("no staking accrual due")

// StakingStatus evaluates the staking state machine without writing.
func (s *LedgerService) StakingStatus(a *models.Account, now time.Time) models.StakingStatus {
	if a.ReferralCount() < s.rules.StakingMinReferrals {
		return models.StakingStatus{
			State:  models.StakingInactive,
			Reason: fmt.Sprintf("Need %d referrals", s.rules.StakingMinReferrals),
		}
	}
	if a.DepositAmount.LessThan(s.rules.StakingMinDeposit) {
		return models.StakingStatus{
			State:  models.StakingInactive,
			Reason: fmt.Sprintf("Deposit $%s to activate", s.rules.StakingMinDeposit.StringFixed(0)),
		}
	}
	if a.LastStakingReward == nil {
		next := now
		return models.StakingStatus{State: models.StakingEligible, NextRewardAt: &next}
	}
	next := a.LastStakingReward.Add(s.rules.StakingInterval)
	return models.StakingStatus{State: models.StakingActive, NextRewardAt: &next}
}

// AccrueStaking is one evaluation tick. An Eligible account is paid on its
// first tick and becomes Active; an Active account is paid once the interval
// since its last reward has elapsed. At most one payout per tick.
func (s *LedgerService) AccrueStaking(ctx context.Context, accountID int64) (*models.AccrualResult, error) {
	unlock := s.locks.lock(accountID)
	defer unlock()

	now := s.now()
	var seen models.Account
	acct, err := s.repo.MutateAccount(ctx, accountID, func(a *models.Account) error {
		seen = *a
		st := s.StakingStatus(a, now)
		switch st.State {
		case models.StakingInactive:
			return errNoAccrual
		case models.StakingActive:
			if now.Sub(*a.LastStakingReward) < s.rules.StakingInterval {
				return errNoAccrual
			}
		}
		a.Balance = a.Balance.Add(s.rules.StakingReward)
		paidAt := now
		a.LastStakingReward = &paidAt
		a.UpdatedAt = now
		return nil
	})
	switch {
	case errors.Is(err, errNoAccrual):
		return &models.AccrualResult{Status: s.StakingStatus(&seen, now), Account: &seen}, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrAccountNotFound
	case err != nil:
		return nil, err
	}

	metrics.StakingRewardsPaid.Inc()
	s.logger.Infof("[STAKING] paid %s to account %d, balance now %s",
		s.rules.StakingReward.StringFixed(2), acct.ID, acct.Balance.StringFixed(2))
	return &models.AccrualResult{Paid: true, Status: s.StakingStatus(acct, now), Account: acct}, nil
}
