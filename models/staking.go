package models

import "time"

// StakingState is Inactive -> Eligible -> Active.
type StakingState string

const (
	StakingInactive StakingState = "inactive"
	StakingEligible StakingState = "eligible"
	StakingActive   StakingState = "active"
)

// StakingStatus is what a dashboard shows for an account.
type StakingStatus struct {
	State        StakingState `json:"state"`
	Reason       string       `json:"reason,omitempty"` // what is still missing while inactive
	NextRewardAt *time.Time   `json:"next_reward_at,omitempty"`
}

// AccrualResult describes one evaluation tick.
type AccrualResult struct {
	Paid    bool          `json:"paid"`
	Status  StakingStatus `json:"status"`
	Account *Account      `json:"-"`
}
