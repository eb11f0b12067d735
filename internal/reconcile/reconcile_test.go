package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/betbot/sniper/clob/types"
	"github.com/betbot/sniper/internal/balance"
	"github.com/betbot/sniper/internal/domain"
	"github.com/betbot/sniper/internal/pricefeed"
	"github.com/betbot/sniper/internal/redeem"
	"github.com/betbot/sniper/internal/store"
)

// fakeMarketAPI 可编程的市场查询桩
type fakeMarketAPI struct {
	market     *types.GammaMarket
	err        error
	closePrice float64
}

func (f *fakeMarketAPI) GetMarketByCondition(context.Context, string) (*types.GammaMarket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.market, nil
}

func (f *fakeMarketAPI) GetEventBySlug(context.Context, string) (*types.GammaEvent, error) {
	if f.err != nil || f.market == nil {
		return nil, errors.New("未找到事件")
	}
	return &types.GammaEvent{Markets: []types.GammaMarket{*f.market}}, nil
}

func (f *fakeMarketAPI) GetBTCCloseAt(context.Context, int64) (float64, error) {
	if f.closePrice > 0 {
		return f.closePrice, nil
	}
	return 0, errors.New("K线不可用")
}

// recordingRedeemer 记录每次赎回调用
type recordingRedeemer struct {
	mu         sync.Mutex
	conditions []string
}

func (r *recordingRedeemer) Redeem(_ context.Context, conditionID string, _ bool) redeem.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions = append(r.conditions, conditionID)
	return redeem.Result{Status: redeem.StatusSuccess, TxHash: "0xtx"}
}

func (r *recordingRedeemer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conditions)
}

func newTestReconciler(t *testing.T, api marketAPI, dryRun bool) (*Reconciler, *store.Store, *balance.Manager, *recordingRedeemer) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bal, err := balance.NewDryRun(ctx, 100, st)
	require.NoError(t, err)

	red := &recordingRedeemer{}
	q := redeem.NewQueue(red)
	q.Start(ctx)
	t.Cleanup(q.Stop)

	r := New(st, bal, pricefeed.New(""), api, q, nil, dryRun, false)
	return r, st, bal, red
}

func insertPending(t *testing.T, st *store.Store, created time.Time) *domain.Trade {
	t.Helper()
	tr := &domain.Trade{
		Coin:         domain.Coin,
		Timeframe:    domain.Timeframe,
		Action:       domain.ActionBuyYes,
		Result:       domain.ResultPending,
		BetAmount:    3.30,
		Odds:         0.55,
		OpenPrice:    100000,
		EntryPrice:   100120,
		MarketID:     "0xcond",
		Strategy:     domain.StrategySniper,
		CreatedAt:    created,
		BalanceAtBet: 100,
		ActualSize:   6,
	}
	_, err := st.InsertTrade(context.Background(), tr)
	require.NoError(t, err)
	return tr
}

// 市场终态 WIN：入账 actualSize、盈亏、赎回排队
func TestSettleWinFromMarket(t *testing.T) {
	ctx := context.Background()
	api := &fakeMarketAPI{
		market: &types.GammaMarket{
			Closed: true,
			Tokens: []types.MarketToken{{Outcome: "Up", Winner: true}},
		},
		closePrice: 100150,
	}
	r, st, bal, red := newTestReconciler(t, api, false)
	tr := insertPending(t, st, time.Now().Add(-8*time.Minute))

	r.settleOne(ctx, tr)

	resolved, err := st.RecentResolved(ctx, 1)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, domain.ResultWin, resolved[0].Result)
	require.InDelta(t, 2.70, resolved[0].Pnl, 1e-9)
	require.InDelta(t, 100150, resolved[0].ExitPrice, 1e-9)
	require.InDelta(t, 106, bal.Balance(), 1e-9)

	require.Eventually(t, func() bool { return red.count() == 1 },
		2*time.Second, 10*time.Millisecond, "赎回应入队一次")
}

// 重复结算同一笔交易不得二次入账或二次赎回
func TestSettleWinIdempotent(t *testing.T) {
	ctx := context.Background()
	api := &fakeMarketAPI{
		market: &types.GammaMarket{
			Closed: true,
			Tokens: []types.MarketToken{{Outcome: "Up", Winner: true}},
		},
		closePrice: 100150,
	}
	r, st, bal, red := newTestReconciler(t, api, false)
	tr := insertPending(t, st, time.Now().Add(-8*time.Minute))

	r.settleOne(ctx, tr)
	r.settleOne(ctx, tr) // 内存副本仍是 PENDING，落库时应被幂等拦截

	require.InDelta(t, 106, bal.Balance(), 1e-9, "不得二次入账")
	pending, err := st.PendingTrades(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.Eventually(t, func() bool { return red.count() >= 1 },
		2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, red.count(), "不得二次赎回")
}

// 市场终态 LOSE：只记亏损，不动资金
func TestSettleLoseFromMarket(t *testing.T) {
	ctx := context.Background()
	api := &fakeMarketAPI{
		market: &types.GammaMarket{
			Closed: true,
			Tokens: []types.MarketToken{{Outcome: "Down", Winner: true}},
		},
	}
	r, st, bal, _ := newTestReconciler(t, api, false)
	tr := insertPending(t, st, time.Now().Add(-8*time.Minute))

	r.settleOne(ctx, tr)

	resolved, err := st.RecentResolved(ctx, 1)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, domain.ResultLose, resolved[0].Result)
	require.InDelta(t, -3.30, resolved[0].Pnl, 1e-9)
	require.InDelta(t, 100, bal.Balance(), 1e-9)
}

// 收盘后超过 20 分钟仍无结论：取消并退回本金，pnl 记 0
func TestSettleTimeoutRefund(t *testing.T) {
	ctx := context.Background()
	api := &fakeMarketAPI{err: errors.New("目录不可用")}
	r, st, bal, red := newTestReconciler(t, api, false)
	tr := insertPending(t, st, time.Now().Add(-30*time.Minute))

	r.settleOne(ctx, tr)

	trades, err := st.RecentTrades(ctx, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, domain.ResultCancelled, trades[0].Result)
	require.Zero(t, trades[0].Pnl)
	require.InDelta(t, 103.30, bal.Balance(), 1e-9, "本金应退回")
	require.Zero(t, red.count(), "取消不应触发赎回")
}

// 证据不足且未到放弃线：保持 PENDING 等下一轮
func TestSettleWaitsForEvidence(t *testing.T) {
	ctx := context.Background()
	api := &fakeMarketAPI{err: errors.New("目录不可用")}
	r, st, bal, _ := newTestReconciler(t, api, false)
	tr := insertPending(t, st, time.Now().Add(-7*time.Minute))

	r.settleOne(ctx, tr)

	pending, err := st.PendingTrades(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.InDelta(t, 100, bal.Balance(), 1e-9)
}

// 放弃线从收盘起算，而不是从下单起算
func TestSettleDeadlineFromClose(t *testing.T) {
	created := time.Unix(1700000110, 0) // 窗口 1700000100 ~ 1700000400
	d := settleDeadline(created)
	require.EqualValues(t, 1700000400+int64(pendingTTL.Seconds()), d.Unix())
}

// dry-run 兜底：权威收盘价对比开盘价
func TestDryRunPriceOutcome(t *testing.T) {
	ctx := context.Background()

	api := &fakeMarketAPI{err: errors.New("目录不可用"), closePrice: 100150}
	r, st, bal, _ := newTestReconciler(t, api, true)
	tr := insertPending(t, st, time.Now().Add(-8*time.Minute))

	r.settleOne(ctx, tr)

	resolved, err := st.RecentResolved(ctx, 1)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, domain.ResultWin, resolved[0].Result)
	require.InDelta(t, 100150, resolved[0].ExitPrice, 1e-9)
	require.InDelta(t, 106, bal.Balance(), 1e-9)
}

func TestDryRunPriceOutcomeTieLoses(t *testing.T) {
	ctx := context.Background()

	api := &fakeMarketAPI{err: errors.New("目录不可用"), closePrice: 100000}
	r, st, _, _ := newTestReconciler(t, api, true)
	tr := insertPending(t, st, time.Now().Add(-8*time.Minute))

	r.settleOne(ctx, tr)

	resolved, err := st.RecentResolved(ctx, 1)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, domain.ResultLose, resolved[0].Result, "收盘持平 BUY_YES 应判负")
}

// 余额增量判定的基准是下注前余额
func TestBalanceWinBaseline(t *testing.T) {
	tr := &domain.Trade{BalanceAtBet: 100, BetAmount: 3.30, ActualSize: 6}

	require.True(t, balanceWin(103.1, tr))  // 增量 3.1 > 0.5×6
	require.False(t, balanceWin(102.9, tr)) // 增量 2.9 < 3
	// 相对扣款后余额 96.70 增量是 4.3 会误判，基准必须是 100
	require.False(t, balanceWin(101, tr))

	require.False(t, balanceWin(200, &domain.Trade{BalanceAtBet: 100}), "无赔付预期不判定")
}

// 展示价兜底分层：K 线收盘 2 分钟后才问，现价 5 分钟后才用
func TestExitPriceTiering(t *testing.T) {
	ctx := context.Background()
	api := &fakeMarketAPI{closePrice: 100200}
	r, _, _, _ := newTestReconciler(t, api, true)

	tr := &domain.Trade{CreatedAt: time.Now().Add(-3 * time.Minute)}
	require.InDelta(t, 100200, r.exitPrice(ctx, tr, time.Now().Add(-3*time.Minute)), 1e-9)
	require.Zero(t, r.exitPrice(ctx, tr, time.Now().Add(-30*time.Second)), "收盘 2 分钟内不应退到 K 线")
}

func TestMarketWinnerByToken(t *testing.T) {
	m := &types.GammaMarket{
		Closed: true,
		Tokens: []types.MarketToken{
			{Outcome: "Up", Winner: true},
			{Outcome: "Down", Winner: false},
		},
	}
	upWon, ok := marketWinner(m)
	require.True(t, ok)
	require.True(t, upWon, "Up winner 应判定 upWon")

	m.Tokens[0].Winner = false
	m.Tokens[1].Winner = true
	upWon, ok = marketWinner(m)
	require.True(t, ok)
	require.False(t, upWon, "Down winner 应判定 downWon")
}

// 部分市场用 Yes/No 命名结果
func TestMarketWinnerYesNoNaming(t *testing.T) {
	m := &types.GammaMarket{
		Closed: true,
		Tokens: []types.MarketToken{{Outcome: "Yes", Winner: true}},
	}
	upWon, ok := marketWinner(m)
	require.True(t, ok)
	require.True(t, upWon)
}

// winner 未标但已关闭：outcomePrices 收敛值兜底
func TestMarketWinnerByOutcomePrices(t *testing.T) {
	m := &types.GammaMarket{
		Closed:        true,
		OutcomePrices: `["1", "0"]`,
	}
	upWon, ok := marketWinner(m)
	require.True(t, ok)
	require.True(t, upWon)

	m.OutcomePrices = `["0.005", "0.995"]`
	upWon, ok = marketWinner(m)
	require.True(t, ok)
	require.False(t, upWon)

	// 未收敛：无法判定
	m.OutcomePrices = `["0.6", "0.4"]`
	_, ok = marketWinner(m)
	require.False(t, ok, "未收敛价格不应给出结论")
}

func TestMarketWinnerOpenMarket(t *testing.T) {
	m := &types.GammaMarket{Closed: false}
	_, ok := marketWinner(m)
	require.False(t, ok, "未关闭市场不应给出结论")
}
