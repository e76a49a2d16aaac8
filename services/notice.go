package services

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"staking-ledger/models"
)

// Notices are the one-line messages shown to the user after an operation.
var printer = message.NewPrinter(language.English)

func money(d decimal.Decimal) string {
	return printer.Sprintf("$%.2f", d.InexactFloat64())
}

func RegisteredNotice(a *models.Account) string {
	return printer.Sprintf("Welcome, %s! Your account is ready", a.Username)
}

func DepositRequestedNotice() string {
	return "Your deposit request is pending admin approval"
}

func WithdrawalRequestedNotice() string {
	return "Your withdrawal request is pending admin approval"
}

func ApprovedNotice(tx *models.Transaction, username string) string {
	if tx.Kind == models.TransactionKindWithdrawal {
		return printer.Sprintf("Withdrawal of %s approved for %s", money(tx.Amount), username)
	}
	return printer.Sprintf("Deposit of %s approved for %s", money(tx.Amount), username)
}

func RejectedNotice(tx *models.Transaction) string {
	return printer.Sprintf("Transaction %s rejected", tx.ID)
}

func StakingRewardNotice(amount decimal.Decimal) string {
	return printer.Sprintf("You received %s staking reward!", money(amount))
}

// ReferralNotice covers the flat bonus and, when tier is set, the milestone.
func ReferralNotice(username string, bonus decimal.Decimal, tier *models.ReferralBonusTier) string {
	if tier != nil {
		return printer.Sprintf("Congratulations! You completed %d referrals and earned a %s bonus!", tier.Count, money(tier.Bonus))
	}
	return printer.Sprintf("Referral %s added, you earned %s", username, money(bonus))
}
