package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"metaledger/internal/config"
)

// Store manages ledger persistence.
type Store struct {
	db      *sql.DB
	dialect dialect
	dsn     string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = s.dialect.rebind(query)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// withTx runs fn inside a transaction, retrying the whole unit when SQLite
// reports the database busy.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlTx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		raw, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		tx := &sqlTx{tx: raw, dialect: s.dialect}
		if err := fn(tx); err != nil {
			_ = raw.Rollback()
			return err
		}
		if err := raw.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// sqlTx rebinds placeholders for the active dialect.
type sqlTx struct {
	tx      *sql.Tx
	dialect dialect
}

func (t *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (t *sqlTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

func (s *Store) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ensureContext(ctx), s.dialect.rebind(query), args...)
}

func (s *Store) queryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ensureContext(ctx), s.dialect.rebind(query), args...)
}

// Open connects to the ledger configured in cfg and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenDSN(context.Background(), cfg.Store.Driver, cfg.LedgerDSN())
}

// OpenDSN connects to a ledger database by driver name and DSN.
func OpenDSN(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driverName, d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", d.name, err)
	}
	if d.name == config.DriverSQLite {
		// One writer connection; WAL readers would still contend on upserts.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, dialect: d, dsn: dsn}
	if err := store.applyMigrations(ensureContext(ctx)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Driver reports the configured database dialect.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
