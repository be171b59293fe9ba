package db

import (
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS orders (
    cl_ord_id TEXT PRIMARY KEY,
    req_id TEXT NOT NULL,
    inst_id TEXT NOT NULL,
    side TEXT NOT NULL,
    size TEXT NOT NULL,
    tgt_ccy TEXT,
    td_mode TEXT NOT NULL,
    reason TEXT NOT NULL,
    ord_id TEXT,
    ack_code TEXT,
    ack_msg TEXT,
    created_at DATETIME NOT NULL,
    acked_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_orders_inst ON orders(inst_id, created_at);
CREATE INDEX IF NOT EXISTS idx_orders_req ON orders(req_id);

CREATE TABLE IF NOT EXISTS positions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    inst_id TEXT NOT NULL,
    entry_cl_ord_id TEXT NOT NULL,
    entry_price REAL NOT NULL,
    quote_size TEXT NOT NULL,
    base_size TEXT NOT NULL,
    opened_at DATETIME NOT NULL,
    exit_bid REAL,
    net_pct REAL,
    exit_reason TEXT,
    held_ms INTEGER,
    exit_cl_ord_id TEXT,
    closed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(inst_id, closed_at);

CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    state TEXT NOT NULL,
    attempt INTEGER NOT NULL,
    error TEXT,
    created_at DATETIME NOT NULL
);
`

// ApplyMigrations bootstraps the journal schema.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
