package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tracked_markets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id TEXT NOT NULL,
    question TEXT NOT NULL DEFAULT '',
    outcome_type TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    do_resolve TEXT NOT NULL,
    resolve_to TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    check_rate_hours REAL NOT NULL DEFAULT 1,
    last_checked TEXT,
    added_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_tracked_markets_market ON tracked_markets(market_id);

CREATE TABLE IF NOT EXISTS market_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id TEXT NOT NULL,
    probability REAL,
    answer_probs TEXT,
    volume REAL NOT NULL,
    total_liquidity REAL NOT NULL,
    is_resolved INTEGER NOT NULL DEFAULT 0,
    snapshot_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_snapshots_market_time ON market_snapshots(market_id, snapshot_at);
`
