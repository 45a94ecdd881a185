package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

//go:generate mockgen -source ./database.go -destination=./mocks/mock_database.go -package=mock_database

// Open opens (creating if needed) the single-file ledger. The store has
// exactly one writer process, so a modest busy timeout is enough.
func Open(ctx context.Context, path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", url.PathEscape(path))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ledger %s: %w", path, err)
	}

	return NewDatabase(conn), nil
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    order_number            TEXT PRIMARY KEY,
    status_processo         TEXT NOT NULL,
    latest_volume_state     TEXT NOT NULL DEFAULT 'NONE',
    created_at              TEXT,
    estimated_delivery_date TEXT,
    delivery_method_id      TEXT,
    raw_snapshot            TEXT,
    late_delivery_flag      INTEGER NOT NULL DEFAULT 0,
    created_in_db           TEXT NOT NULL,
    updated_in_db           TEXT NOT NULL,
    trigger_in_transit      TEXT,
    trigger_to_be_delivered TEXT,
    trigger_delivered       TEXT
);

CREATE TABLE IF NOT EXISTS event_outbox (
    id             TEXT PRIMARY KEY,
    order_number   TEXT NOT NULL,
    seq            INTEGER NOT NULL,
    event_code     TEXT NOT NULL,
    event_date     TEXT NOT NULL,
    to_state       TEXT NOT NULL,
    complete_order INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL,
    attempts       INTEGER NOT NULL DEFAULT 0,
    last_error     TEXT,
    created_in_db  TEXT NOT NULL,
    updated_in_db  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status_processo);
CREATE INDEX IF NOT EXISTS idx_event_outbox_order ON event_outbox(order_number, status);
`

// Migrate bootstraps the ledger schema. Safe to run on every start.
func (db *Database) Migrate(ctx context.Context) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to bootstrap ledger schema: %w", err)
	}
	return nil
}
