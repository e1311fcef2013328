// Package port defines the interfaces (ports) for the engine's pluggable
// dependencies. Following hexagonal architecture, these ports decouple the
// service layer from concrete implementations.
package port

import (
	"context"

	"github.com/ken860819/loan-ai-system/internal/domain"
)

// LedgerStore is the sole mutator of persisted state: accounts and their
// append-only transaction log. Every operation is atomic; in particular a
// borrow/repay applies the balance delta and appends the transaction record
// as a single unit, serialized per account.
type LedgerStore interface {
	// CreateAccount provisions a new account with available credit equal
	// to the limit and zero outstanding balance. The user id is generated
	// from the applicant's name, an atomically allocated serial number and
	// the national-id-last-4. Two calls for the same applicant create two
	// distinct accounts.
	CreateAccount(ctx context.Context, kyc domain.KYCRecord, pd float64, limit int64) (*domain.Account, error)

	// GetAccount returns *domain.ErrNotFound for unknown ids.
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)

	// Borrow atomically moves amount from available credit to outstanding
	// balance and appends a borrow transaction. Fails with
	// *domain.ErrNotFound or *domain.ErrInsufficientCredit, leaving the
	// account untouched.
	Borrow(ctx context.Context, userID string, amount int64) (*domain.Account, error)

	// Repay atomically moves amount from outstanding balance back to
	// available credit and appends a repay transaction. Fails with
	// *domain.ErrNotFound or *domain.ErrOverRepayment, leaving the
	// account untouched.
	Repay(ctx context.Context, userID string, amount int64) (*domain.Account, error)

	// ListTransactions returns the account's transactions newest-first.
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)

	Ping(ctx context.Context) error
	Close() error
}

// Predictor estimates the probability of default for an ordered numeric
// feature tuple. Concrete implementations: the trained-model adapter and
// the uniform-random fallback.
type Predictor interface {
	PredictDefault(features domain.FeatureVector) (float64, error)
}

// Cache provides generic caching with TTL. Used for evaluation sessions.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
