package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	start_date DATETIME,
	end_date DATETIME,
	final_net_worth REAL NOT NULL,
	return_pct REAL NOT NULL,
	win_rate_pct REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	trade_count INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	net_pnl REAL NOT NULL,
	profit_factor REAL NOT NULL,
	created DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	seq INTEGER NOT NULL,
	date DATETIME NOT NULL,
	kind TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	realized_pnl REAL,
	commission REAL NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS daily (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	seq INTEGER NOT NULL,
	date DATETIME NOT NULL,
	cash REAL NOT NULL,
	side INTEGER NOT NULL,
	entry_price REAL,
	close REAL NOT NULL,
	unrealized REAL NOT NULL,
	net_worth REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol);
`
