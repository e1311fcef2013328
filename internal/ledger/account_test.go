package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/ledger"
)

func TestFormatUserID(t *testing.T) {
	cases := []struct {
		name   string
		serial int64
		nid4   string
		want   string
	}{
		{"wang", 1, "1234", "wang_00001_1234"},
		{"chen", 99999, "0000", "chen_99999_0000"},
		{"li", 12, "5678", "li_00012_5678"},
	}
	for _, tc := range cases {
		if got := ledger.FormatUserID(tc.name, tc.serial, tc.nid4); got != tc.want {
			t.Errorf("FormatUserID(%q, %d, %q) = %q, want %q", tc.name, tc.serial, tc.nid4, got, tc.want)
		}
	}
}

func TestNewAccount(t *testing.T) {
	now := time.Now()
	a := ledger.NewAccount("wang_00001_1234", "wang", 0.07, 25000, now)

	if a.AvailableCredit != 25000 {
		t.Errorf("expected full limit available, got %d", a.AvailableCredit)
	}
	if a.OutstandingBalance != 0 {
		t.Errorf("expected zero outstanding, got %d", a.OutstandingBalance)
	}
	if err := ledger.CheckInvariants(&a); err != nil {
		t.Errorf("fresh account violates invariants: %v", err)
	}
}

func TestApplyBorrow(t *testing.T) {
	a := ledger.NewAccount("u", "u", 0.1, 1000, time.Now())

	if err := ledger.ApplyBorrow(&a, 400); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if a.AvailableCredit != 600 || a.OutstandingBalance != 400 {
		t.Errorf("after borrow: available=%d outstanding=%d", a.AvailableCredit, a.OutstandingBalance)
	}
	if err := ledger.CheckInvariants(&a); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
}

func TestApplyBorrow_ExactlyAvailable(t *testing.T) {
	a := ledger.NewAccount("u", "u", 0.1, 1000, time.Now())

	if err := ledger.ApplyBorrow(&a, 1000); err != nil {
		t.Fatalf("borrowing the full available credit should succeed: %v", err)
	}
	if a.AvailableCredit != 0 {
		t.Errorf("expected zero available, got %d", a.AvailableCredit)
	}
}

func TestApplyBorrow_Zero(t *testing.T) {
	a := ledger.NewAccount("u", "u", 0.1, 1000, time.Now())

	if err := ledger.ApplyBorrow(&a, 0); err != nil {
		t.Fatalf("zero-amount borrow should succeed: %v", err)
	}
	if a.AvailableCredit != 1000 || a.OutstandingBalance != 0 {
		t.Errorf("zero borrow changed balances: %+v", a)
	}
}

func TestApplyBorrow_InsufficientCredit(t *testing.T) {
	a := ledger.NewAccount("u", "u", 0.1, 1000, time.Now())

	err := ledger.ApplyBorrow(&a, 1001)
	var insufficient *domain.ErrInsufficientCredit
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientCredit, got %v", err)
	}
	if a.AvailableCredit != 1000 || a.OutstandingBalance != 0 {
		t.Errorf("failed borrow modified the account: %+v", a)
	}
}

func TestApplyRepay(t *testing.T) {
	a := ledger.NewAccount("u", "u", 0.1, 1000, time.Now())
	if err := ledger.ApplyBorrow(&a, 700); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := ledger.ApplyRepay(&a, 300); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if a.AvailableCredit != 600 || a.OutstandingBalance != 400 {
		t.Errorf("after repay: available=%d outstanding=%d", a.AvailableCredit, a.OutstandingBalance)
	}
	if err := ledger.CheckInvariants(&a); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
}

func TestApplyRepay_ExactlyOutstanding(t *testing.T) {
	a := ledger.NewAccount("u", "u", 0.1, 1000, time.Now())
	if err := ledger.ApplyBorrow(&a, 700); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := ledger.ApplyRepay(&a, 700); err != nil {
		t.Fatalf("repaying the full outstanding balance should succeed: %v", err)
	}
	if a.OutstandingBalance != 0 || a.AvailableCredit != 1000 {
		t.Errorf("after full repay: %+v", a)
	}
}

func TestApplyRepay_OverRepayment(t *testing.T) {
	a := ledger.NewAccount("u", "u", 0.1, 1000, time.Now())
	if err := ledger.ApplyBorrow(&a, 200); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	err := ledger.ApplyRepay(&a, 201)
	var over *domain.ErrOverRepayment
	if !errors.As(err, &over) {
		t.Fatalf("expected ErrOverRepayment, got %v", err)
	}
	if a.OutstandingBalance != 200 {
		t.Errorf("failed repay modified the account: %+v", a)
	}
}

func TestCheckInvariants_Violations(t *testing.T) {
	cases := []struct {
		name    string
		account domain.Account
	}{
		{"identity broken", domain.Account{UserID: "u", LimitAmount: 100, AvailableCredit: 50, OutstandingBalance: 60}},
		{"negative available", domain.Account{UserID: "u", LimitAmount: 100, AvailableCredit: -10, OutstandingBalance: 110}},
		{"outstanding over limit", domain.Account{UserID: "u", LimitAmount: 100, AvailableCredit: -50, OutstandingBalance: 150}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ledger.CheckInvariants(&tc.account); err == nil {
				t.Error("expected invariant violation")
			}
		})
	}
}
