package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/betbot/sniper/internal/domain"
)

// Store 交易记录仓库
// 写入方约定：扫描器负责创建（PENDING），对账器负责终态更新
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）sqlite 数据库并执行迁移
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// modernc sqlite 单写者
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertTrade 写入新交易（返回自增 id）
func (s *Store) InsertTrade(ctx context.Context, t *domain.Trade) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			coin, timeframe, action, result, bet_amount, odds,
			entry_price, open_price, exit_price, estimated_prob, ev, gap,
			price_diff_pct, pnl, balance_after, market_id, reason, detail,
			strategy, created_at, resolved_at, scan_to_trade_ms,
			order_status, order_id, balance_at_bet, token_id, actual_size
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Coin, t.Timeframe, string(t.Action), string(t.Result), t.BetAmount, t.Odds,
		t.EntryPrice, t.OpenPrice, t.ExitPrice, t.EstimatedProb, t.Ev, t.Gap,
		t.PriceDiffPct, t.Pnl, t.BalanceAfter, t.MarketID, t.Reason, t.Detail,
		t.Strategy, t.CreatedAt.UTC().Format(time.RFC3339Nano), nullTime(t.ResolvedAt), t.ScanToTradeMs,
		t.OrderStatus, t.OrderID, t.BalanceAtBet, t.TokenID, t.ActualSize,
	)
	if err != nil {
		return 0, fmt.Errorf("写入交易失败: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

// ResolveTrade 将 PENDING 交易置为终态（幂等：已终态的行不再改写）
func (s *Store) ResolveTrade(ctx context.Context, id int64, result domain.TradeResult, exitPrice, pnl float64, resolvedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades
		SET result = ?, exit_price = ?, pnl = ?, resolved_at = ?
		WHERE id = ? AND result = ?`,
		string(result), exitPrice, pnl, resolvedAt.UTC().Format(time.RFC3339Nano),
		id, string(domain.ResultPending),
	)
	if err != nil {
		return false, fmt.Errorf("更新交易失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PendingTrades 所有待结算交易（按 id 升序，最旧优先）
func (s *Store) PendingTrades(ctx context.Context) ([]*domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE result = ? ORDER BY id ASC`, string(domain.ResultPending))
	if err != nil {
		return nil, fmt.Errorf("查询待结算交易失败: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// RecentResolved 最近 limit 条已结算（WIN/LOSE）交易，按 id 降序
// 排除 FOK_FAIL 观测行
func (s *Store) RecentResolved(ctx context.Context, limit int) ([]*domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE result IN (?, ?) AND strategy != ?
		ORDER BY id DESC LIMIT ?`,
		string(domain.ResultWin), string(domain.ResultLose), domain.StrategyFokFail, limit)
	if err != nil {
		return nil, fmt.Errorf("查询已结算交易失败: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// RecentTrades 最近 limit 条交易（不分状态与策略），按 id 降序
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询交易失败: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// TerminalPnlSum 终态交易的 pnl 合计（dry-run 账本重放用）
func (s *Store) TerminalPnlSum(ctx context.Context) (float64, error) {
	var sum sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(pnl) FROM trades WHERE result != ?`,
		string(domain.ResultPending)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("汇总盈亏失败: %w", err)
	}
	return sum.Float64, nil
}

// TradeStats 胜负累计
type TradeStats struct {
	Total  int
	Wins   int
	Losses int
}

// Stats 统计已结算交易（排除 FOK_FAIL）
func (s *Store) Stats(ctx context.Context) (*TradeStats, error) {
	var st TradeStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN result = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN result = ? THEN 1 ELSE 0 END), 0)
		FROM trades WHERE strategy != ?`,
		string(domain.ResultWin), string(domain.ResultLose), domain.StrategyFokFail).
		Scan(&st.Total, &st.Wins, &st.Losses)
	if err != nil {
		return nil, fmt.Errorf("统计失败: %w", err)
	}
	return &st, nil
}

const selectColumns = `
	SELECT id, coin, timeframe, action, result, bet_amount, odds,
	       entry_price, open_price, exit_price, estimated_prob, ev, gap,
	       price_diff_pct, pnl, balance_after, market_id, reason, detail,
	       strategy, created_at, resolved_at, scan_to_trade_ms,
	       order_status, order_id, balance_at_bet, token_id, actual_size
	FROM trades`

func scanTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	var out []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrade(rows *sql.Rows) (*domain.Trade, error) {
	var (
		t          domain.Trade
		action     string
		result     string
		createdAt  string
		resolvedAt sql.NullString
	)
	err := rows.Scan(
		&t.ID, &t.Coin, &t.Timeframe, &action, &result, &t.BetAmount, &t.Odds,
		&t.EntryPrice, &t.OpenPrice, &t.ExitPrice, &t.EstimatedProb, &t.Ev, &t.Gap,
		&t.PriceDiffPct, &t.Pnl, &t.BalanceAfter, &t.MarketID, &t.Reason, &t.Detail,
		&t.Strategy, &createdAt, &resolvedAt, &t.ScanToTradeMs,
		&t.OrderStatus, &t.OrderID, &t.BalanceAtBet, &t.TokenID, &t.ActualSize,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描交易行失败: %w", err)
	}
	t.Action = domain.TradeAction(action)
	t.Result = domain.TradeResult(result)

	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		t.CreatedAt = ts
	}
	if resolvedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, resolvedAt.String); err == nil {
			t.ResolvedAt = &ts
		}
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
