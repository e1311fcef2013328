package domain

import "fmt"

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found. For accounts this is a
// normal state ("not yet provisioned"), never a panic.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientCredit indicates a borrow larger than the available credit.
type ErrInsufficientCredit struct {
	Available int64
	Requested int64
}

func (e *ErrInsufficientCredit) Error() string {
	return fmt.Sprintf("insufficient credit: available=%d requested=%d", e.Available, e.Requested)
}

// ErrOverRepayment indicates a repayment larger than the outstanding balance.
type ErrOverRepayment struct {
	Outstanding int64
	Requested   int64
}

func (e *ErrOverRepayment) Error() string {
	return fmt.Sprintf("over-repayment: outstanding=%d requested=%d", e.Outstanding, e.Requested)
}

// ErrConfiguration indicates fatal misconfiguration detected at startup
// (e.g. missing predictor with the fallback disallowed). Never recoverable
// per-request.
type ErrConfiguration struct {
	Reason string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ErrPersistence indicates a ledger store failure. The failed operation is
// never partially applied.
type ErrPersistence struct {
	Op  string
	Err error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persistence error [%s]: %v", e.Op, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}
