package scanner

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	clobclient "github.com/betbot/sniper/clob/client"
	"github.com/betbot/sniper/clob/types"
	"github.com/betbot/sniper/internal/balance"
	"github.com/betbot/sniper/internal/domain"
	"github.com/betbot/sniper/internal/ev"
	"github.com/betbot/sniper/internal/odds"
	"github.com/betbot/sniper/internal/pricefeed"
	"github.com/betbot/sniper/internal/store"
	"github.com/betbot/sniper/pkg/logger"
	"github.com/betbot/sniper/pkg/sigchan"
)

// 过滤器名（仪表盘观测用，来自运营面板的固定标签）
const (
	filterStandby  = "대기"
	filterConn     = "연결"
	filterCircuit  = "서킷"
	filterCooldown = "쿨다운"
	filterScan     = "스캔"
	filterChop     = "횡보"
	filterRange    = "레인지"
	filterCusum    = "CUSUM"
	filterCandle   = "캔들"
	filterEarly    = "조기진입"
	filterOdds     = "오즈"
	filterSpread   = "스프레드"
	filterCeiling  = "오즈상한"
	filterBalance  = "잔액"
	filterMomentum = "모멘텀"
	filterAnalysis = "분석"
	filterBetting  = "배팅"
)

const (
	fokMaxRetries     = 3
	fokRetryBackoff   = 50 * time.Millisecond
	postOrderRefresh  = 2 * time.Second
	winRateCacheSpan  = 30 * time.Second
	winRateSampleSize = 50
	winRateMinSamples = 5

	earlyWindowSec    = 40.0
	earlyT1MinDiff    = 0.10
	earlyT1MaxTarget  = 0.45
	earlyT2MinElapsed = 30.0
	earlyT2MinDiff    = 0.08
	earlyT2MaxTarget  = 0.50
)

// Config 扫描器配置
type Config struct {
	Interval time.Duration
	MinBet   float64
	MaxBet   float64
	DryRun   bool
}

// Scanner 信号扫描与下单决策
// 每蜡烛窗口严格一单；窗口在成交或 FOK 耗尽时烧毁
type Scanner struct {
	cfg  Config
	feed *pricefeed.Feed
	odds *odds.Service
	bal  *balance.Manager
	calc *ev.Calculator
	st   *store.Store
	exec OrderExecutor

	enabled atomic.Bool
	metrics metrics
	logs    *logRing
	breaker circuitBreaker

	// 扫描循环私有状态
	lastBoundary     int64
	lastTradedWindow string
	velocity         velocityTracker
	momentum         momentumRing
	crosses          crossCounter
	ranger           rangeTracker
	cusum            cusumFilter

	// 对账器结算后发信号，胜率缓存立即失效
	settled *sigchan.Chan

	winRateMu sync.Mutex
	winRate   float64
	winRateAt time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New 创建扫描器
func New(cfg Config, feed *pricefeed.Feed, oddsSvc *odds.Service, bal *balance.Manager,
	calc *ev.Calculator, st *store.Store, exec OrderExecutor) *Scanner {

	s := &Scanner{
		cfg:     cfg,
		feed:    feed,
		odds:    oddsSvc,
		bal:     bal,
		calc:    calc,
		st:      st,
		exec:    exec,
		logs:    newLogRing(),
		settled: sigchan.New(1),
		winRate: 0.50,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	s.enabled.Store(true)
	return s
}

// Start 启动扫描循环
func (s *Scanner) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop 停止扫描
func (s *Scanner) Stop() {
	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(3 * time.Second):
	}
}

// SetEnabled 主开关
func (s *Scanner) SetEnabled(on bool) {
	s.enabled.Store(on)
	state := "OFF"
	if on {
		state = "ON"
	}
	s.logs.add("🎛", "스위치", "마스터 스위치 "+state)
	logger.Infof("마스터 스위치: %s", state)
}

// Enabled 当前开关状态
func (s *Scanner) Enabled() bool {
	return s.enabled.Load()
}

// Metrics 指标快照（附当前窗口 slug）
func (s *Scanner) Metrics() MetricsSnapshot {
	m := s.metrics.snapshot()
	m.Market = s.odds.CurrentSlug()
	return m
}

// Logs 活动日志
func (s *Scanner) Logs() []LogEntry {
	return s.logs.recent()
}

// Stats 累计统计（胜负来自存储）
func (s *Scanner) Stats(ctx context.Context) (StatsSnapshot, error) {
	totalScans, totalTrades, avgUs := s.metrics.stats()
	out := StatsSnapshot{
		TotalScans:    totalScans,
		TotalTrades:   totalTrades,
		AvgScanTimeUs: avgUs,
		Enabled:       s.enabled.Load(),
		DryRun:        s.cfg.DryRun,
		Balance:       s.bal.Balance(),
	}
	st, err := s.st.Stats(ctx)
	if err != nil {
		return out, err
	}
	out.Wins = int64(st.Wins)
	out.Losses = int64(st.Losses)
	if st.Wins+st.Losses > 0 {
		out.WinRate = float64(st.Wins) / float64(st.Wins+st.Losses)
	}
	return out, nil
}

// ResetStats 清空累计计数与过滤器状态
func (s *Scanner) ResetStats() {
	s.metrics.reset()
	s.logs.add("🧹", "통계", "통계 초기화")
}

func (s *Scanner) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

// scanOnce 单次扫描：过滤级联，首个未通过的过滤器短路
func (s *Scanner) scanOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		s.metrics.onScan(time.Since(start).Microseconds())
	}()

	// 1. 主开关
	if !s.enabled.Load() {
		s.metrics.setFilter(filterStandby)
		return
	}

	// 2. 数据源健康
	if !s.feed.IsConnected() {
		s.metrics.setFilter(filterConn)
		s.logs.addThrottled("📡", filterConn, "가격 피드 연결 대기")
		return
	}
	snap := s.feed.Snapshot()
	if !snap.WarmedUp {
		s.metrics.setFilter(filterStandby)
		s.logs.addThrottled("⏳", filterStandby, "첫 캔들 전환 대기 (웜업)")
		return
	}

	// 3. 蜡烛翻转时重置每蜡烛状态
	if snap.Boundary != s.lastBoundary {
		s.resetCandleState(snap)
	}

	// 4. 熔断
	if s.breaker.shouldCheck() {
		s.checkBreaker(ctx)
	}
	if s.breaker.armed() {
		s.metrics.setFilter(filterCircuit)
		s.logs.addThrottled("🛑", filterCircuit, fmt.Sprintf("서킷 브레이커 %.0fs 남음", s.breaker.remaining().Seconds()))
		return
	}

	// 5. 一窗一单
	now := time.Now()
	windowID := domain.WindowID(now)
	if windowID == s.lastTradedWindow {
		s.metrics.setFilter(filterCooldown)
		return
	}

	// 6. 价格偏离
	if snap.Open <= 0 {
		s.metrics.setFilter(filterConn)
		return
	}
	diff := (snap.Price - snap.Open) / snap.Open * 100

	// 7-10. 信号更新
	vel := s.velocity.update(snap.Price, now.UnixMilli())
	sign := 0
	if diff > 0 {
		sign = 1
	} else if diff < 0 {
		sign = -1
	}
	s.momentum.add(sign)
	crossCount := s.crosses.update(sign)
	s.ranger.add(snap.Price)

	th := thresholdsFor(snap.Regime)
	minMove := dynamicMinMove(snap.AtrPct, snap.AtrReady, th.entryMult)
	h := cusumThreshold(snap.AtrPct, snap.AtrReady, th.cusumMult)
	s.cusum.update(snap.Price, h)

	s.metrics.setSignals(snap.AtrPct, minMove, snap.Regime.String(), CusumState{
		Pos:       s.cusum.sPos,
		Neg:       s.cusum.sNeg,
		Triggered: s.cusum.triggered,
		Threshold: h,
	})

	if s.momentum.size() < momentumMinFill {
		s.metrics.setFilter(filterMomentum)
		return
	}

	// 9. 震荡：符号翻转过多
	if crossCount >= maxCrossCount {
		s.metrics.setFilter(filterChop)
		s.logs.addThrottled("🌀", filterChop, fmt.Sprintf("교차 %d회, 관망", crossCount))
		return
	}

	// 10. 区间过窄
	if snap.AtrReady {
		if rangePct := s.ranger.rangePct(); rangePct < snap.AtrPct*th.rangeMult {
			s.metrics.setFilter(filterRange)
			s.logs.addThrottled("📏", filterRange, fmt.Sprintf("레인지 %.3f%% < %.3f%%", rangePct, snap.AtrPct*th.rangeMult))
			return
		}
	}

	// 11. CUSUM 未确认 / 过期
	if !s.cusum.triggered {
		s.metrics.setFilter(filterCusum)
		if s.cusum.expired() {
			s.logs.addThrottled("📉", filterCusum, "CUSUM 10틱 내 미발화")
		}
		return
	}

	// 13. 最小波动
	if math.Abs(diff) < minMove {
		s.metrics.setFilter(filterScan)
		s.logs.addThrottled("🔍", filterScan, fmt.Sprintf("$%.2f %+.3f%% < %.3f%%", snap.Price, diff, minMove))
		return
	}

	// 14. 蜡烛阶段
	elapsed := float64(now.Unix() - snap.Boundary)
	switch candlePosition(elapsed) {
	case 0:
		s.metrics.setFilter(filterCandle)
		return
	case -1:
		s.metrics.setFilter(filterCandle)
		s.logs.addThrottled("🕯", filterCandle, "마감 직전, 관망")
		return
	}

	// 15-16. 赔率
	o := s.odds.GetOdds()
	if o == nil {
		s.metrics.setFilter(filterOdds)
		s.logs.addThrottled("🎲", filterOdds, "오즈 캐시 없음")
		return
	}
	target := o.UpPrice
	if diff <= 0 {
		target = o.DownPrice
	}

	// 早期入场只允许强信号分级放行
	if elapsed < earlyWindowSec {
		t1 := math.Abs(diff) >= earlyT1MinDiff && target <= earlyT1MaxTarget
		t2 := elapsed >= earlyT2MinElapsed && math.Abs(diff) >= earlyT2MinDiff && target <= earlyT2MaxTarget
		if !t1 && !t2 {
			s.metrics.setFilter(filterEarly)
			return
		}
	}

	if spread := o.Spread(); spread > maxSpread {
		s.metrics.setFilter(filterSpread)
		s.logs.addThrottled("↔️", filterSpread, fmt.Sprintf("스프레드 %.3f > %.2f", spread, maxSpread))
		return
	}

	// 市场已定价，赔率没有边际
	if target > oddsCeiling {
		s.metrics.setFilter(filterCeiling)
		s.logs.addThrottled("🚫", filterCeiling, fmt.Sprintf("오즈 %.2f > %.2f, 진입 무의미", target, oddsCeiling))
		return
	}

	// 17. 余额
	verified := s.bal.GetVerifiedBalance(ctx)
	if verified < minBalance {
		s.metrics.setFilter(filterBalance)
		s.logs.addThrottled("💰", filterBalance, fmt.Sprintf("잔액 %.2f < %.2f", verified, minBalance))
		return
	}

	// 18. 动量门槛
	consistency := s.momentum.score()
	if math.Abs(consistency) < th.momentumMin {
		s.metrics.setFilter(filterMomentum)
		return
	}
	if (diff > 0 && consistency < 0) || (diff < 0 && consistency > 0) {
		s.metrics.setFilter(filterMomentum)
		return
	}

	// 19-20. EV 评估
	tb := timeBonus(elapsed)
	directedMomentum := consistency
	if diff < 0 {
		directedMomentum = -consistency
	}

	res := s.calc.Evaluate(ev.Input{
		PriceDiffPct:  diff,
		UpOdds:        o.UpPrice,
		DownOdds:      o.DownPrice,
		Velocity:      vel,
		MomentumScore: directedMomentum,
		TimeBonus:     tb,
		Balance:       verified,
	})

	adaptiveGap := baseGap + winRateAdj(s.cachedWinRate(ctx)) + th.gapAdj
	if res.IsHold() || res.Gap < adaptiveGap {
		s.metrics.setFilter(filterAnalysis)
		s.logs.addThrottled("🔍", filterAnalysis,
			fmt.Sprintf("$%.2f %+.3f%% | 추정%.0f%% 갭%.1f%%<%.1f%% EV%+.1f%% → HOLD",
				snap.Price, diff, res.Estimate*100, res.Gap*100, adaptiveGap*100, res.Ev*100))
		return
	}

	// 21. 执行
	s.execute(ctx, start, snap, o, res, diff, consistency, windowID)
}

// resetCandleState 蜡烛翻转：清零每蜡烛信号状态
func (s *Scanner) resetCandleState(snap pricefeed.Snapshot) {
	s.lastBoundary = snap.Boundary
	s.momentum.reset()
	s.crosses.reset()
	s.ranger.reset()
	s.cusum.reset(snap.Open)
}

// checkBreaker 检查最近 3 笔已结算是否全败
func (s *Scanner) checkBreaker(ctx context.Context) {
	trades, err := s.st.RecentResolved(ctx, breakerLossStreak)
	if err != nil || len(trades) < breakerLossStreak {
		return
	}
	for _, t := range trades {
		if t.Result != domain.ResultLose {
			return
		}
	}
	// 最新 id 大于上次触发点才重新熔断
	if trades[0].ID > s.breaker.lastArmedTradeID.Load() {
		s.breaker.arm(trades[0].ID)
		s.logs.add("🛑", filterCircuit, fmt.Sprintf("%d연패, %.0f분 휴식", breakerLossStreak, breakerHaltDuration.Minutes()))
	}
}

// SettleSignal 结算通知入口（对账器持有）
func (s *Scanner) SettleSignal() *sigchan.Chan {
	return s.settled
}

// cachedWinRate 胜率缓存：最多 30s 刷新一次，样本不足回退 0.50
// 收到结算信号时立即失效
func (s *Scanner) cachedWinRate(ctx context.Context) float64 {
	s.winRateMu.Lock()
	defer s.winRateMu.Unlock()

	select {
	case <-s.settled.C():
		s.winRateAt = time.Time{}
	default:
	}

	if time.Since(s.winRateAt) < winRateCacheSpan {
		return s.winRate
	}
	s.winRateAt = time.Now()

	trades, err := s.st.RecentResolved(ctx, winRateSampleSize)
	if err != nil || len(trades) < winRateMinSamples {
		s.winRate = 0.50
		return s.winRate
	}
	wins := 0
	for _, t := range trades {
		if t.Result == domain.ResultWin {
			wins++
		}
	}
	s.winRate = float64(wins) / float64(len(trades))
	return s.winRate
}

// execute FOK 下单循环：未成交则加一档滑点重试，限价破顶线放弃并烧窗口
func (s *Scanner) execute(ctx context.Context, scanStart time.Time, snap pricefeed.Snapshot,
	o *domain.MarketOdds, res domain.EvResult, diff, consistency float64, windowID string) {

	token := o.UpTokenID
	price := o.UpPrice
	if res.Direction == domain.ActionBuyNo {
		token = o.DownTokenID
		price = o.DownPrice
	}

	balanceAtBet := s.bal.Balance()
	if res.Stake > balanceAtBet {
		s.metrics.setFilter(filterBalance)
		return
	}

	for retry := 0; retry <= fokMaxRetries; retry++ {
		limit := clobclient.LimitPrice(price, types.SideBuy, retry)
		if limit > oddsCeiling {
			// 滑点追价超出顶线：放弃并烧掉本窗口，避免循环追价
			s.metrics.setFilter(filterCeiling)
			s.logs.add("🚫", filterCeiling, fmt.Sprintf("추격 한계 %.2f > %.2f, 캔들 포기", limit, oddsCeiling))
			s.lastTradedWindow = windowID
			return
		}

		// 5 token 最小量会把实际成交金额抬到本金之上，按抬量后的成本校验
		if cost := clobclient.OrderSize(res.Stake, limit) * limit; cost > balanceAtBet {
			s.metrics.setFilter(filterBalance)
			s.logs.add("💰", filterBalance, fmt.Sprintf("최소 수량 비용 %.2f > 잔액 %.2f, 주문 거부", cost, balanceAtBet))
			return
		}

		result, err := s.exec.Place(ctx, token, res.Stake, price, types.SideBuy, retry)
		if err != nil {
			logger.Warnf("주문 오류 (재시도 %d): %v", retry, err)
			s.persistFokFail(ctx, snap, o, res, diff, token, retry, "error: "+err.Error())
			time.Sleep(fokRetryBackoff)
			continue
		}

		if result.Matched() {
			s.commitTrade(ctx, scanStart, snap, o, res, diff, consistency, windowID, token, balanceAtBet, result)
			return
		}

		reason := result.Status
		if result.ErrMsg != "" {
			reason = result.ErrMsg
		}
		s.persistFokFail(ctx, snap, o, res, diff, token, retry, reason)
		time.Sleep(fokRetryBackoff)
	}

	// FOK 耗尽：同样烧掉窗口
	s.metrics.setFilter(filterBetting)
	s.logs.add("❌", filterBetting, "FOK 소진, 캔들 포기")
	s.lastTradedWindow = windowID
}

// commitTrade 成交：扣款、落库、烧窗口、安排余额刷新
func (s *Scanner) commitTrade(ctx context.Context, scanStart time.Time, snap pricefeed.Snapshot,
	o *domain.MarketOdds, res domain.EvResult, diff, consistency float64,
	windowID, token string, balanceAtBet float64, result *types.OrderResult) {

	// 成交即有仓位：扣款失败也必须落库并烧窗口，余额以链上同步纠偏
	if err := s.bal.Deduct(result.ActualAmount); err != nil {
		logger.Errorf("成交扣款失败（继续落账）: %v", err)
	}

	now := time.Now()
	t := &domain.Trade{
		Coin:          domain.Coin,
		Timeframe:     domain.Timeframe,
		Action:        res.Direction,
		Result:        domain.ResultPending,
		BetAmount:     result.ActualAmount,
		Odds:          result.LimitPrice,
		EntryPrice:    snap.Price,
		OpenPrice:     snap.Open,
		EstimatedProb: res.Estimate,
		Ev:            res.Ev,
		Gap:           res.Gap,
		PriceDiffPct:  diff,
		BalanceAfter:  s.bal.Balance(),
		MarketID:      o.ConditionID,
		Reason:        res.Reason,
		Detail: fmt.Sprintf("orderId=%s | scanMs=%d | oddsFetchMs=%d | momentum=%.2f",
			result.OrderID, time.Since(scanStart).Milliseconds(), o.FetchDurationMs, consistency),
		Strategy:      domain.StrategySniper,
		CreatedAt:     now,
		ScanToTradeMs: time.Since(scanStart).Milliseconds(),
		OrderStatus:   result.Status,
		OrderID:       result.OrderID,
		BalanceAtBet:  balanceAtBet,
		TokenID:       token,
		ActualSize:    result.ActualSize,
	}

	if _, err := s.st.InsertTrade(ctx, t); err != nil {
		logger.Errorf("거래 저장 실패: %v", err)
	}

	s.lastTradedWindow = windowID
	s.metrics.setFilter(filterBetting)
	s.metrics.onTrade()
	s.bal.ScheduleRefresh(ctx, postOrderRefresh)

	side := "UP"
	if res.Direction == domain.ActionBuyNo {
		side = "DOWN"
	}
	s.logs.add("🎯", filterBetting,
		fmt.Sprintf("%s %.2f@%.2f | EV%+.1f%% | 잔액 %.2f", side, result.ActualAmount, result.LimitPrice, res.Ev*100, s.bal.Balance()))
	logger.Infof("배팅 완료: %s 금액=%.2f 오즈=%.2f size=%.2f orderId=%s",
		side, result.ActualAmount, result.LimitPrice, result.ActualSize, result.OrderID)
}

// persistFokFail FOK 未成交观测记录（CANCELLED，不占窗口配额、不动资金）
func (s *Scanner) persistFokFail(ctx context.Context, snap pricefeed.Snapshot, o *domain.MarketOdds,
	res domain.EvResult, diff float64, token string, retry int, reason string) {

	now := time.Now()
	t := &domain.Trade{
		Coin:          domain.Coin,
		Timeframe:     domain.Timeframe,
		Action:        res.Direction,
		Result:        domain.ResultCancelled,
		BetAmount:     res.Stake,
		EntryPrice:    snap.Price,
		OpenPrice:     snap.Open,
		EstimatedProb: res.Estimate,
		Ev:            res.Ev,
		Gap:           res.Gap,
		PriceDiffPct:  diff,
		BalanceAfter:  s.bal.Balance(),
		MarketID:      o.ConditionID,
		Reason:        fmt.Sprintf("FOK 미체결 #%d: %s", retry, reason),
		Strategy:      domain.StrategyFokFail,
		CreatedAt:     now,
		ResolvedAt:    &now,
		OrderStatus:   "UNMATCHED",
		TokenID:       token,
	}
	if _, err := s.st.InsertTrade(ctx, t); err != nil {
		logger.Errorf("FOK 실패 기록 저장 실패: %v", err)
	}
}
