package models

import "github.com/shopspring/decimal"

// ReferralBonusTier pays a one-time bonus when an account's referral count
// reaches Count exactly.
type ReferralBonusTier struct {
	Count int             `json:"count"`
	Bonus decimal.Decimal `json:"bonus"`
}

// DefaultReferralBonusTiers is the ten-tier milestone table, ordered by Count.
var DefaultReferralBonusTiers = []ReferralBonusTier{
	{Count: 10, Bonus: decimal.NewFromInt(100)},
	{Count: 20, Bonus: decimal.NewFromInt(200)},
	{Count: 30, Bonus: decimal.NewFromInt(300)},
	{Count: 40, Bonus: decimal.NewFromInt(400)},
	{Count: 50, Bonus: decimal.NewFromInt(500)},
	{Count: 60, Bonus: decimal.NewFromInt(600)},
	{Count: 70, Bonus: decimal.NewFromInt(700)},
	{Count: 80, Bonus: decimal.NewFromInt(800)},
	{Count: 90, Bonus: decimal.NewFromInt(900)},
	{Count: 100, Bonus: decimal.NewFromInt(1500)},
}
