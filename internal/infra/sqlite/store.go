// Package sqlite implements the ledger store on an embedded SQLite
// database. All balance mutations run inside a transaction so the balance
// update and the transaction-log append land together or not at all.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/ledger"
)

var tracer = otel.Tracer("sqlite")

// timestampLayout is fixed-width so lexicographic order in the TEXT column
// matches chronological order. time.RFC3339Nano trims trailing zeros and
// would break that.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id             TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	pd                  REAL NOT NULL,
	limit_amount        INTEGER NOT NULL,
	available_credit    INTEGER NOT NULL,
	outstanding_balance INTEGER NOT NULL,
	created_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id        TEXT PRIMARY KEY,
	user_id   TEXT NOT NULL REFERENCES accounts(user_id),
	type      TEXT NOT NULL CHECK (type IN ('borrow', 'repay')),
	amount    INTEGER NOT NULL,
	timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS account_serial (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	next_serial INTEGER NOT NULL
);

INSERT OR IGNORE INTO account_serial (id, next_serial) VALUES (1, 1);
`

// Store is the SQLite-backed ledger store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (or creates) the database at path, applies connection pragmas
// and ensures the schema exists.
func New(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// CreateAccount allocates the next serial number, builds the user id and
// inserts the account, all in one transaction. Repeated calls for the same
// applicant get distinct serials and therefore distinct accounts.
func (s *Store) CreateAccount(ctx context.Context, kyc domain.KYCRecord, pd float64, limit int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateAccount")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "create_account", Err: err}
	}
	defer tx.Rollback()

	var serial int64
	if err := tx.QueryRowContext(ctx,
		`UPDATE account_serial SET next_serial = next_serial + 1 WHERE id = 1 RETURNING next_serial - 1`,
	).Scan(&serial); err != nil {
		return nil, &domain.ErrPersistence{Op: "allocate_serial", Err: err}
	}

	account := ledger.NewAccount(
		ledger.FormatUserID(kyc.Name, serial, kyc.NationalIDLast4),
		kyc.Name, pd, limit, time.Now().UTC(),
	)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, pd, limit_amount, available_credit, outstanding_balance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.UserID, account.Name, account.PD, account.LimitAmount,
		account.AvailableCredit, account.OutstandingBalance,
		account.CreatedAt.Format(timestampLayout),
	); err != nil {
		return nil, &domain.ErrPersistence{Op: "create_account", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.ErrPersistence{Op: "create_account", Err: err}
	}

	span.SetAttributes(attribute.String("user_id", account.UserID))
	s.logger.Info("account provisioned",
		zap.String("user_id", account.UserID),
		zap.Int64("limit", limit))
	return &account, nil
}

// GetAccount fetches one account. Unknown ids yield *domain.ErrNotFound.
func (s *Store) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.GetAccount")
	defer span.End()

	account, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT user_id, name, pd, limit_amount, available_credit, outstanding_balance, created_at
		 FROM accounts WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: userID}
	}
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "get_account", Err: err}
	}
	return account, nil
}

// Borrow applies a borrow transition and appends the ledger entry atomically.
func (s *Store) Borrow(ctx context.Context, userID string, amount int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.Borrow")
	defer span.End()

	return s.applyTransition(ctx, userID, amount, domain.TransactionBorrow, ledger.ApplyBorrow)
}

// Repay applies a repay transition and appends the ledger entry atomically.
func (s *Store) Repay(ctx context.Context, userID string, amount int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.Repay")
	defer span.End()

	return s.applyTransition(ctx, userID, amount, domain.TransactionRepay, ledger.ApplyRepay)
}

// applyTransition loads the account row, runs the pure transition and, if it
// succeeds, writes the new balances plus the transaction record in one
// database transaction. Domain rejections roll back untouched.
func (s *Store) applyTransition(
	ctx context.Context,
	userID string,
	amount int64,
	txType domain.TransactionType,
	transition func(*domain.Account, int64) error,
) (*domain.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: string(txType), Err: err}
	}
	defer tx.Rollback()

	account, err := scanAccount(tx.QueryRowContext(ctx,
		`SELECT user_id, name, pd, limit_amount, available_credit, outstanding_balance, created_at
		 FROM accounts WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: userID}
	}
	if err != nil {
		return nil, &domain.ErrPersistence{Op: string(txType), Err: err}
	}

	if err := transition(account, amount); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET available_credit = ?, outstanding_balance = ? WHERE user_id = ?`,
		account.AvailableCredit, account.OutstandingBalance, userID,
	); err != nil {
		return nil, &domain.ErrPersistence{Op: string(txType), Err: err}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, timestamp) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, string(txType), amount,
		time.Now().UTC().Format(timestampLayout),
	); err != nil {
		return nil, &domain.ErrPersistence{Op: string(txType), Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.ErrPersistence{Op: string(txType), Err: err}
	}

	s.logger.Info("ledger transition",
		zap.String("user_id", userID),
		zap.String("type", string(txType)),
		zap.Int64("amount", amount))
	return account, nil
}

// ListTransactions returns the account's ledger entries newest-first.
// rowid breaks ties between entries written within the same nanosecond.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.ListTransactions")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, amount, timestamp
		 FROM transactions WHERE user_id = ?
		 ORDER BY timestamp DESC, rowid DESC`, userID)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "list_transactions", Err: err}
	}
	defer rows.Close()

	txs := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		var txType, ts string
		if err := rows.Scan(&t.ID, &t.UserID, &txType, &t.Amount, &ts); err != nil {
			return nil, &domain.ErrPersistence{Op: "list_transactions", Err: err}
		}
		t.Type = domain.TransactionType(txType)
		if t.Timestamp, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, &domain.ErrPersistence{Op: "list_transactions", Err: err}
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrPersistence{Op: "list_transactions", Err: err}
	}
	return txs, nil
}

// ListAccounts returns every account ordered by creation time. Used by the
// operator CLI, not the HTTP surface.
func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, pd, limit_amount, available_credit, outstanding_balance, created_at
		 FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "list_accounts", Err: err}
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, &domain.ErrPersistence{Op: "list_accounts", Err: err}
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrPersistence{Op: "list_accounts", Err: err}
	}
	return accounts, nil
}

// Ping reports database liveness for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	var createdAt string
	if err := row.Scan(&a.UserID, &a.Name, &a.PD, &a.LimitAmount,
		&a.AvailableCredit, &a.OutstandingBalance, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if a.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}
