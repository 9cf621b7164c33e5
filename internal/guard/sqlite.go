package guard

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger (
    path_key       TEXT PRIMARY KEY,
    last_seen_ms   INTEGER NOT NULL,
    occurrences    INTEGER NOT NULL DEFAULT 1,
    prev_seen_ms   INTEGER,
    prev_occur     INTEGER,
    provisional    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_ledger_seen ON ledger(last_seen_ms);
`

// SQLiteStore persists the ledger across restarts so cooldowns survive a
// crash. Pure-Go driver, no CGo.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("guard: open sqlite %q: %w", path, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("guard: apply ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var seenMs int64
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seen_ms, occurrences FROM ledger WHERE path_key = ?`, key,
	).Scan(&seenMs, &count)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("guard: get %q: %w", key, err)
	}
	return Entry{PathKey: key, LastSeen: time.UnixMilli(seenMs).UTC(), Count: count}, true, nil
}

func (s *SQLiteStore) Reserve(ctx context.Context, key string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ledger (path_key, last_seen_ms, occurrences, provisional)
VALUES (?, ?, 1, 1)
ON CONFLICT(path_key) DO UPDATE SET
    prev_seen_ms = ledger.last_seen_ms,
    prev_occur   = ledger.occurrences,
    last_seen_ms = excluded.last_seen_ms,
    occurrences  = ledger.occurrences + 1,
    provisional  = 1`,
		key, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("guard: reserve %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Commit(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ledger SET provisional = 0, prev_seen_ms = NULL, prev_occur = NULL WHERE path_key = ?`, key)
	if err != nil {
		return fmt.Errorf("guard: commit %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Rollback(ctx context.Context, key string) error {
	// Entries without saved previous state were created by the reservation
	// itself and are removed outright.
	res, err := s.db.ExecContext(ctx, `
UPDATE ledger SET
    last_seen_ms = prev_seen_ms,
    occurrences  = prev_occur,
    prev_seen_ms = NULL,
    prev_occur   = NULL,
    provisional  = 0
WHERE path_key = ? AND provisional = 1 AND prev_seen_ms IS NOT NULL`, key)
	if err != nil {
		return fmt.Errorf("guard: rollback %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM ledger WHERE path_key = ? AND provisional = 1`, key); err != nil {
			return fmt.Errorf("guard: rollback delete %q: %w", key, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ledger WHERE last_seen_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("guard: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger`).Scan(&n); err != nil {
		return 0, fmt.Errorf("guard: count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
