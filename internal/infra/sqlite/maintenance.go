package sqlite

import "context"

// Reset drops every table and recreates the schema empty, including the
// serial counter. Destructive; used by the loanctl initdb command only.
func (s *Store) Reset(ctx context.Context) error {
	drop := `
DROP TABLE IF EXISTS transactions;
DROP TABLE IF EXISTS accounts;
DROP TABLE IF EXISTS account_serial;
`
	if _, err := s.db.ExecContext(ctx, drop); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	s.logger.Warn("database reset, all accounts and transactions dropped")
	return nil
}
