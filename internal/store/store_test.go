package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/betbot/sniper/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("打开存储失败: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleTrade() *domain.Trade {
	return &domain.Trade{
		Coin:          domain.Coin,
		Timeframe:     domain.Timeframe,
		Action:        domain.ActionBuyYes,
		Result:        domain.ResultPending,
		BetAmount:     3.30,
		Odds:          0.55,
		EntryPrice:    100120,
		OpenPrice:     100000,
		EstimatedProb: 0.77,
		Ev:            0.71,
		Gap:           0.32,
		PriceDiffPct:  0.12,
		BalanceAfter:  96.70,
		MarketID:      "0xcond",
		Reason:        "UP Δ0.120% 추정0.77 오즈0.45 EV71.1%",
		Strategy:      domain.StrategySniper,
		CreatedAt:     time.Now(),
		OrderStatus:   "matched",
		OrderID:       "0xabc",
		BalanceAtBet:  100,
		TokenID:       "111",
		ActualSize:    6,
	}
}

func TestInsertAndPending(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.InsertTrade(ctx, sampleTrade())
	if err != nil {
		t.Fatalf("InsertTrade error: %v", err)
	}
	if id <= 0 {
		t.Fatalf("无效的自增 id: %d", id)
	}

	pending, err := st.PendingTrades(ctx)
	if err != nil {
		t.Fatalf("PendingTrades error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("PENDING 行数 got=%d want=1", len(pending))
	}
	tr := pending[0]
	if tr.ID != id || tr.Action != domain.ActionBuyYes || tr.TokenID != "111" {
		t.Fatalf("回读字段异常: %+v", tr)
	}
	if tr.ResolvedAt != nil {
		t.Fatalf("PENDING 不应有结算时间")
	}
}

// 结算幂等：同一行第二次结算必须是空操作
func TestResolveIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, _ := st.InsertTrade(ctx, sampleTrade())

	ok, err := st.ResolveTrade(ctx, id, domain.ResultWin, 100200, 2.70, time.Now())
	if err != nil || !ok {
		t.Fatalf("首次结算失败: ok=%v err=%v", ok, err)
	}

	ok, err = st.ResolveTrade(ctx, id, domain.ResultLose, 99000, -3.30, time.Now())
	if err != nil {
		t.Fatalf("二次结算错误: %v", err)
	}
	if ok {
		t.Fatalf("已终态的行不应被改写")
	}

	pending, _ := st.PendingTrades(ctx)
	if len(pending) != 0 {
		t.Fatalf("结算后不应有 PENDING 行")
	}

	sum, err := st.TerminalPnlSum(ctx)
	if err != nil || math.Abs(sum-2.70) > 1e-9 {
		t.Fatalf("pnl 合计 got=%.2f want=2.70 err=%v", sum, err)
	}
}

// RecentResolved 排除 FOK_FAIL 观测行和 CANCELLED
func TestRecentResolvedExcludesNoise(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	win := sampleTrade()
	id1, _ := st.InsertTrade(ctx, win)
	st.ResolveTrade(ctx, id1, domain.ResultWin, 100200, 2.70, time.Now())

	lose := sampleTrade()
	id2, _ := st.InsertTrade(ctx, lose)
	st.ResolveTrade(ctx, id2, domain.ResultLose, 99900, -3.30, time.Now())

	now := time.Now()
	fok := sampleTrade()
	fok.Result = domain.ResultCancelled
	fok.Strategy = domain.StrategyFokFail
	fok.ResolvedAt = &now
	st.InsertTrade(ctx, fok)

	cancelled := sampleTrade()
	id4, _ := st.InsertTrade(ctx, cancelled)
	st.ResolveTrade(ctx, id4, domain.ResultCancelled, 0, 0, now)

	resolved, err := st.RecentResolved(ctx, 10)
	if err != nil {
		t.Fatalf("RecentResolved error: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("已结算行数 got=%d want=2", len(resolved))
	}
	// id 降序：最新在前
	if resolved[0].ID != id2 || resolved[1].ID != id1 {
		t.Fatalf("排序异常: %d, %d", resolved[0].ID, resolved[1].ID)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Wins != 1 || stats.Losses != 1 {
		t.Fatalf("胜负统计 got=%d/%d want=1/1", stats.Wins, stats.Losses)
	}
}

// dry-run 账本重放口径：终态行（含 CANCELLED 的 0 pnl）求和
func TestTerminalPnlSumReplay(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id1, _ := st.InsertTrade(ctx, sampleTrade())
	st.ResolveTrade(ctx, id1, domain.ResultWin, 100200, 2.70, time.Now())

	id2, _ := st.InsertTrade(ctx, sampleTrade())
	st.ResolveTrade(ctx, id2, domain.ResultLose, 99900, -3.30, time.Now())

	// PENDING 行不计入
	st.InsertTrade(ctx, sampleTrade())

	sum, err := st.TerminalPnlSum(ctx)
	if err != nil {
		t.Fatalf("TerminalPnlSum error: %v", err)
	}
	if math.Abs(sum-(-0.60)) > 1e-9 {
		t.Fatalf("合计 got=%.2f want=-0.60", sum)
	}
}

func TestRecentTradesIncludesAll(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	st.InsertTrade(ctx, sampleTrade())
	now := time.Now()
	fok := sampleTrade()
	fok.Result = domain.ResultCancelled
	fok.Strategy = domain.StrategyFokFail
	fok.ResolvedAt = &now
	st.InsertTrade(ctx, fok)

	all, err := st.RecentTrades(ctx, 10)
	if err != nil {
		t.Fatalf("RecentTrades error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("全量行数 got=%d want=2", len(all))
	}
}
