package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	name         TEXT PRIMARY KEY,
	symbol       TEXT NOT NULL,
	run_id       TEXT NOT NULL,
	format       TEXT NOT NULL,
	collected_at TEXT NOT NULL,
	health_tier  TEXT NOT NULL DEFAULT '',
	health_score REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS reports_symbol ON reports(symbol, collected_at);
`

// Fixed width so collected_at sorts as text.
const indexTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one row of the report index.
type Entry struct {
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol"`
	RunID       string    `json:"run_id"`
	Format      string    `json:"format"`
	CollectedAt time.Time `json:"collected_at"`
	HealthTier  string    `json:"health_tier,omitempty"`
	HealthScore float64   `json:"health_score,omitempty"`
}

// Index records written reports in SQLite so runs can be listed without
// parsing every file. The files stay authoritative.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the index at path. ":memory:" works for tests.
func OpenIndex(ctx context.Context, path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Index{db: db}, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

// Record upserts e, keyed by filename.
func (x *Index) Record(ctx context.Context, e Entry) error {
	_, err := x.db.ExecContext(ctx, `
INSERT INTO reports (name, symbol, run_id, format, collected_at, health_tier, health_score)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	symbol = excluded.symbol,
	run_id = excluded.run_id,
	format = excluded.format,
	collected_at = excluded.collected_at,
	health_tier = excluded.health_tier,
	health_score = excluded.health_score`,
		e.Name, e.Symbol, e.RunID, e.Format, e.CollectedAt.UTC().Format(indexTimeLayout), e.HealthTier, e.HealthScore)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Name, err)
	}
	return nil
}

// Remove drops name from the index. Unknown names are not an error.
func (x *Index) Remove(ctx context.Context, name string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM reports WHERE name = ?`, name); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Recent lists up to limit entries, newest first. An empty symbol matches all.
func (x *Index) Recent(ctx context.Context, symbol string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := x.db.QueryContext(ctx, `
SELECT name, symbol, run_id, format, collected_at, health_tier, health_score
FROM reports
WHERE ? = '' OR symbol = ?
ORDER BY collected_at DESC, name
LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.Name, &e.Symbol, &e.RunID, &e.Format, &ts, &e.HealthTier, &e.HealthScore); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		e.CollectedAt, _ = time.Parse(indexTimeLayout, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
