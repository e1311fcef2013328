// Package ledger implements the revolving-credit account state machine:
// user id generation and the pure borrow/repay transitions. The ledger
// store persists the results; this package never touches storage.
package ledger

import (
	"fmt"
	"time"

	"github.com/ken860819/loan-ai-system/internal/domain"
)

// FormatUserID builds the account's primary key from the applicant's name,
// a zero-padded 5-digit serial and the national-id-last-4, e.g.
// "wang_00012_1234".
func FormatUserID(name string, serial int64, nidLast4 string) string {
	return fmt.Sprintf("%s_%05d_%s", name, serial, nidLast4)
}

// NewAccount returns a freshly provisioned account: the full limit is
// available and nothing is outstanding.
func NewAccount(userID, name string, pd float64, limit int64, now time.Time) domain.Account {
	return domain.Account{
		UserID:             userID,
		Name:               name,
		PD:                 pd,
		LimitAmount:        limit,
		AvailableCredit:    limit,
		OutstandingBalance: 0,
		CreatedAt:          now,
	}
}

// ApplyBorrow moves amount from available credit to outstanding balance.
// On failure the account is left unmodified. A zero-amount borrow is
// allowed; rejecting negative amounts is the caller's job.
func ApplyBorrow(a *domain.Account, amount int64) error {
	if amount > a.AvailableCredit {
		return &domain.ErrInsufficientCredit{Available: a.AvailableCredit, Requested: amount}
	}
	a.AvailableCredit -= amount
	a.OutstandingBalance += amount
	return nil
}

// ApplyRepay moves amount from outstanding balance back to available
// credit. On failure the account is left unmodified.
func ApplyRepay(a *domain.Account, amount int64) error {
	if amount > a.OutstandingBalance {
		return &domain.ErrOverRepayment{Outstanding: a.OutstandingBalance, Requested: amount}
	}
	a.OutstandingBalance -= amount
	a.AvailableCredit += amount
	return nil
}

// CheckInvariants verifies the balance identity the whole engine relies on:
// available + outstanding == limit, both within [0, limit].
func CheckInvariants(a *domain.Account) error {
	if a.AvailableCredit+a.OutstandingBalance != a.LimitAmount {
		return fmt.Errorf("account %s: available (%d) + outstanding (%d) != limit (%d)",
			a.UserID, a.AvailableCredit, a.OutstandingBalance, a.LimitAmount)
	}
	if a.AvailableCredit < 0 || a.AvailableCredit > a.LimitAmount {
		return fmt.Errorf("account %s: available credit %d outside [0, %d]",
			a.UserID, a.AvailableCredit, a.LimitAmount)
	}
	if a.OutstandingBalance < 0 || a.OutstandingBalance > a.LimitAmount {
		return fmt.Errorf("account %s: outstanding balance %d outside [0, %d]",
			a.UserID, a.OutstandingBalance, a.LimitAmount)
	}
	return nil
}
