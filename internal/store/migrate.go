package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrate 建表与基础 PRAGMA
func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			coin TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			action TEXT NOT NULL,
			result TEXT NOT NULL,
			bet_amount REAL NOT NULL,
			odds REAL NOT NULL,
			entry_price REAL NOT NULL,
			open_price REAL NOT NULL,
			exit_price REAL NOT NULL DEFAULT 0,
			estimated_prob REAL NOT NULL DEFAULT 0,
			ev REAL NOT NULL DEFAULT 0,
			gap REAL NOT NULL DEFAULT 0,
			price_diff_pct REAL NOT NULL DEFAULT 0,
			pnl REAL NOT NULL DEFAULT 0,
			balance_after REAL NOT NULL DEFAULT 0,
			market_id TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			strategy TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			resolved_at TEXT,
			scan_to_trade_ms INTEGER NOT NULL DEFAULT 0,
			order_status TEXT NOT NULL DEFAULT '',
			order_id TEXT NOT NULL DEFAULT '',
			balance_at_bet REAL NOT NULL DEFAULT 0,
			token_id TEXT NOT NULL DEFAULT '',
			actual_size REAL NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_result ON trades(result);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("迁移失败: %w", err)
		}
	}
	return nil
}
