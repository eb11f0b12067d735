package reconcile

import (
	"context"
	"strings"
	"time"

	clobclient "github.com/betbot/sniper/clob/client"
	"github.com/betbot/sniper/clob/types"
	"github.com/betbot/sniper/internal/balance"
	"github.com/betbot/sniper/internal/domain"
	"github.com/betbot/sniper/internal/pricefeed"
	"github.com/betbot/sniper/internal/redeem"
	"github.com/betbot/sniper/internal/store"
	"github.com/betbot/sniper/pkg/logger"
	"github.com/betbot/sniper/pkg/sigchan"
)

const (
	pollInterval = 5 * time.Second
	settleGrace  = 10 * time.Second // 窗口结束后留给预言机落定的时间
	pendingTTL   = 20 * time.Minute // 收盘后超时放弃，按取消退款

	winnerPriceFloor = 0.99 // outcomePrices 判定获胜方的下限
	payoutTolerance  = 0.5  // 余额增量法：超过预期赔付一半即认定赢单

	// 结算展示价兜底分层：K 线要等交易所落定，现价是最后手段
	klineFallbackAfter = 2 * time.Minute
	spotFallbackAfter  = 5 * time.Minute
)

// marketAPI 对账需要的市场与行情查询面
type marketAPI interface {
	GetMarketByCondition(ctx context.Context, conditionID string) (*types.GammaMarket, error)
	GetEventBySlug(ctx context.Context, slug string) (*types.GammaEvent, error)
	GetBTCCloseAt(ctx context.Context, startMs int64) (float64, error)
}

// Reconciler 结算对账
// 轮询 PENDING 交易，从市场终态 / 价格 / 余额增量推断胜负并落账
type Reconciler struct {
	st     *store.Store
	bal    *balance.Manager
	feed   *pricefeed.Feed
	client marketAPI
	queue  *redeem.Queue

	// 胜负落账后通知扫描器（可为 nil）
	settled *sigchan.Chan

	dryRun  bool
	negRisk bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New 创建对账器
func New(st *store.Store, bal *balance.Manager, feed *pricefeed.Feed,
	client marketAPI, queue *redeem.Queue, settled *sigchan.Chan,
	dryRun, negRisk bool) *Reconciler {

	return &Reconciler{
		st:      st,
		bal:     bal,
		feed:    feed,
		client:  client,
		queue:   queue,
		settled: settled,
		dryRun:  dryRun,
		negRisk: negRisk,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start 启动对账循环
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()
}

// Stop 停止对账
func (r *Reconciler) Stop() {
	close(r.stopCh)
	select {
	case <-r.doneCh:
	case <-time.After(3 * time.Second):
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	trades, err := r.st.PendingTrades(ctx)
	if err != nil {
		logger.Warnf("查询待结算交易失败: %v", err)
		return
	}
	for _, t := range trades {
		r.settleOne(ctx, t)
	}
}

// settleOne 尝试结算单笔交易；证据不足时跳过等下一轮
func (r *Reconciler) settleOne(ctx context.Context, t *domain.Trade) {
	now := time.Now()

	// 窗口没结束前市场不可能有终态
	end := domain.WindowEnd(t.CreatedAt)
	if now.Before(end.Add(settleGrace)) {
		return
	}

	// 收盘后 20 分钟仍无结论：视为结算失败，取消并退款
	if now.After(settleDeadline(t.CreatedAt)) {
		r.cancelTimeout(ctx, t, now)
		return
	}

	won, ok := r.marketOutcome(ctx, t)
	if !ok && r.dryRun {
		won, ok = r.priceOutcome(ctx, t, end)
	}
	if !ok && !r.dryRun {
		won, ok = r.balanceOutcome(t)
	}
	if !ok {
		return
	}

	exit := r.exitPrice(ctx, t, end)
	if won {
		r.settleWin(ctx, t, exit, now)
	} else {
		r.settleLose(ctx, t, exit, now)
	}
}

func (r *Reconciler) settleWin(ctx context.Context, t *domain.Trade, exit float64, now time.Time) {
	payout := t.ExpectedPayout()
	pnl := payout - t.BetAmount

	updated, err := r.st.ResolveTrade(ctx, t.ID, domain.ResultWin, exit, pnl, now)
	if err != nil {
		logger.Errorf("结算更新失败 id=%d: %v", t.ID, err)
		return
	}
	if !updated {
		return // 已被其它路径结算
	}

	r.bal.Credit(payout)
	r.notifySettled()
	logger.Infof("✅ WIN id=%d %s 赔付=%.2f 盈亏=%+.2f 余额=%.2f",
		t.ID, t.Action, payout, pnl, r.bal.Balance())

	if !r.dryRun {
		r.queue.Enqueue(t.MarketID, r.negRisk)
		r.bal.StartRedeemPolling(payout)
	}
}

func (r *Reconciler) settleLose(ctx context.Context, t *domain.Trade, exit float64, now time.Time) {
	pnl := -t.BetAmount
	updated, err := r.st.ResolveTrade(ctx, t.ID, domain.ResultLose, exit, pnl, now)
	if err != nil {
		logger.Errorf("结算更新失败 id=%d: %v", t.ID, err)
		return
	}
	if updated {
		r.notifySettled()
		logger.Infof("❌ LOSE id=%d %s 盈亏=%+.2f 余额=%.2f", t.ID, t.Action, pnl, r.bal.Balance())
	}
}

func (r *Reconciler) notifySettled() {
	if r.settled != nil {
		r.settled.Emit()
	}
}

// cancelTimeout 超时取消：退回本金，pnl 记 0
func (r *Reconciler) cancelTimeout(ctx context.Context, t *domain.Trade, now time.Time) {
	updated, err := r.st.ResolveTrade(ctx, t.ID, domain.ResultCancelled, 0, 0, now)
	if err != nil {
		logger.Errorf("超时取消失败 id=%d: %v", t.ID, err)
		return
	}
	if updated {
		r.bal.Refund(t.BetAmount)
		logger.Warnf("⏰ 结算超时取消 id=%d，退款 %.2f", t.ID, t.BetAmount)
	}
}

// marketOutcome 首选路径：市场终态
// conditionId 直查失败或未关闭时，按下单时间重建 slug 走事件目录兜底
func (r *Reconciler) marketOutcome(ctx context.Context, t *domain.Trade) (won, ok bool) {
	var m *types.GammaMarket

	if t.MarketID != "" {
		if got, err := r.client.GetMarketByCondition(ctx, t.MarketID); err == nil {
			m = got
		}
	}
	if m == nil || !m.Closed {
		slug := domain.Slug(t.CreatedAt)
		ev, err := r.client.GetEventBySlug(ctx, slug)
		if err != nil || len(ev.Markets) == 0 {
			return false, false
		}
		m = &ev.Markets[0]
	}

	upWon, ok := marketWinner(m)
	if !ok {
		return false, false
	}
	return upWon == (t.Action == domain.ActionBuyYes), true
}

// marketWinner 判定 Up 方是否获胜
func marketWinner(m *types.GammaMarket) (upWon, ok bool) {
	for _, tok := range m.Tokens {
		if tok.Winner {
			up := strings.EqualFold(tok.Outcome, "Yes") || strings.EqualFold(tok.Outcome, "Up")
			return up, true
		}
	}
	if !m.Closed {
		return false, false
	}
	// 已关闭但 winner 未标：用 outcomePrices 收敛值兜底
	prices, err := clobclient.ParseOutcomePrices(m)
	if err != nil || len(prices) < 2 {
		return false, false
	}
	if prices[0] >= winnerPriceFloor {
		return true, true
	}
	if prices[1] >= winnerPriceFloor {
		return false, true
	}
	return false, false
}

// priceOutcome dry-run 兜底：用权威收盘价比开盘价
// Up 获胜要求严格高于开盘，持平归 Down
func (r *Reconciler) priceOutcome(ctx context.Context, t *domain.Trade, end time.Time) (won, ok bool) {
	if t.OpenPrice <= 0 {
		return false, false
	}
	close, ok := r.authoritativeClose(ctx, t, end)
	if !ok {
		return false, false
	}
	upWon := close > t.OpenPrice
	return upWon == (t.Action == domain.ActionBuyYes), true
}

// balanceOutcome 实盘兜底：链上余额增量明显超过半个赔付即认定赢单
// 只能给出 WIN 信号，LOSE 交给市场终态或超时
func (r *Reconciler) balanceOutcome(t *domain.Trade) (won, ok bool) {
	if balanceWin(r.bal.LiveBalance(), t) {
		return true, true
	}
	return false, false
}

// balanceWin 余额增量判定，基准是下注前余额
func balanceWin(live float64, t *domain.Trade) bool {
	if t.ExpectedPayout() <= 0 {
		return false
	}
	return live-t.BalanceAtBet > payoutTolerance*t.ExpectedPayout()
}

// settleDeadline 结算放弃线：收盘后 20 分钟
func settleDeadline(created time.Time) time.Time {
	return domain.WindowEnd(created).Add(pendingTTL)
}

// authoritativeClose 权威收盘价：本地蜡烛快照 → Binance K 线
// K 线要等交易所落定，收盘 2 分钟内不问
func (r *Reconciler) authoritativeClose(ctx context.Context, t *domain.Trade, end time.Time) (float64, bool) {
	if p, ok := r.feed.CloseAt(end.Unix()); ok {
		return p, true
	}
	if time.Since(end) < klineFallbackAfter {
		return 0, false
	}
	start := domain.WindowStart(t.CreatedAt)
	if p, err := r.client.GetBTCCloseAt(ctx, start.UnixMilli()); err == nil && p > 0 {
		return p, true
	}
	return 0, false
}

// exitPrice 结算展示价：权威收盘价拿不到且收盘超过 5 分钟才退化为当前价
func (r *Reconciler) exitPrice(ctx context.Context, t *domain.Trade, end time.Time) float64 {
	if p, ok := r.authoritativeClose(ctx, t, end); ok {
		return p
	}
	if time.Since(end) >= spotFallbackAfter {
		return r.feed.Snapshot().Price
	}
	return 0
}
