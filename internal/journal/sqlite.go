package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ Recorder = (*SQLite)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	time     INTEGER NOT NULL,
	kind     TEXT    NOT NULL,
	symbol   TEXT    NOT NULL,
	order_id TEXT    NOT NULL DEFAULT '',
	status   TEXT    NOT NULL DEFAULT '',
	qty      REAL    NOT NULL DEFAULT 0,
	price    REAL    NOT NULL DEFAULT 0,
	note     TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_journal_time ON journal(time);
CREATE INDEX IF NOT EXISTS idx_journal_symbol ON journal(symbol);
`

// SQLite is the durable journal backend. Record failures are logged, not
// returned: the journal must never block or fail the trading path.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (creating if needed) the journal database at path.
func OpenSQLite(path string, log *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal db %s: %w", path, err)
	}
	// One writer at a time keeps modernc/sqlite happy under concurrency.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL on %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	return &SQLite{db: db, log: log.With("component", "journal")}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// Record inserts one entry.
func (s *SQLite) Record(ctx context.Context, e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (time, kind, symbol, order_id, status, qty, price, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UnixNano(), e.Kind, e.Symbol, e.OrderID, e.Status, e.Qty, e.Price, e.Note)
	if err != nil {
		s.log.Error("journal insert failed", "kind", e.Kind, "symbol", e.Symbol, "error", err)
	}
}

// Recent returns the newest entries, most recent first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT time, kind, symbol, order_id, status, qty, price, note
		 FROM journal ORDER BY id DESC LIMIT ?`, limit)
}

// BySymbol returns the newest entries for one symbol, most recent first.
func (s *SQLite) BySymbol(ctx context.Context, symbol string, limit int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT time, kind, symbol, order_id, status, qty, price, note
		 FROM journal WHERE symbol = ? ORDER BY id DESC LIMIT ?`, symbol, limit)
}

// Between returns entries with from <= time < to, oldest first.
func (s *SQLite) Between(ctx context.Context, from, to time.Time) ([]Entry, error) {
	return s.query(ctx,
		`SELECT time, kind, symbol, order_id, status, qty, price, note
		 FROM journal WHERE time >= ? AND time < ? ORDER BY id ASC`,
		from.UnixNano(), to.UnixNano())
}

// DeleteBetween prunes entries with from <= time < to and returns the count.
func (s *SQLite) DeleteBetween(ctx context.Context, from, to time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal WHERE time >= ? AND time < ?`,
		from.UnixNano(), to.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning journal range: %w", err)
	}
	return res.RowsAffected()
}

// DeleteBefore prunes entries older than cutoff and returns the count.
func (s *SQLite) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal WHERE time < ?`,
		cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning journal before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return res.RowsAffected()
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ns int64
		if err := rows.Scan(&ns, &e.Kind, &e.Symbol, &e.OrderID, &e.Status, &e.Qty, &e.Price, &e.Note); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.Time = time.Unix(0, ns).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
