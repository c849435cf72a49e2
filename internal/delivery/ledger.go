// Package delivery tracks webhook delivery IDs that have already been
// accepted, so a replayed request cannot trigger a second deploy.
package delivery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Retention is how long seen delivery IDs are kept before pruning.
// GitHub redeliveries are only possible for a few days, so 90 days is
// comfortably past any legitimate retry window.
const Retention = 90 * 24 * time.Hour

// Ledger records delivery IDs in SQLite.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens (or creates) the ledger database at dbPath.
func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db}

	if err := l.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if _, err := l.Prune(context.Background(), Retention); err != nil {
		return nil, fmt.Errorf("failed to prune old deliveries: %w", err)
	}

	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) initSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			received_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = l.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deliveries_received
		ON deliveries(received_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// MarkSeen records a delivery ID and reports whether it had been seen
// before. The insert and the check are a single statement, so two
// concurrent requests with the same ID cannot both observe it as new.
func (l *Ledger) MarkSeen(ctx context.Context, id, event string) (bool, error) {
	result, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO deliveries (id, event, received_at)
		VALUES (?, ?, ?)
	`, id, event, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to record delivery: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Zero rows affected means the ID was already present.
	return affected == 0, nil
}

// Prune deletes deliveries older than the given retention and returns
// how many rows were removed.
func (l *Ledger) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	result, err := l.db.ExecContext(ctx, `
		DELETE FROM deliveries WHERE received_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old deliveries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of recorded deliveries.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deliveries`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count deliveries: %w", err)
	}
	return n, nil
}
