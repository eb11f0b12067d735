package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	clobclient "github.com/betbot/sniper/clob/client"
	"github.com/betbot/sniper/internal/store"
	"github.com/betbot/sniper/pkg/logger"
)

const (
	syncInterval = 10 * time.Second

	verifyThrottle        = 5 * time.Second  // 常规验证节流
	verifyThrottlePolling = 10 * time.Second // 赎回轮询期间的节流
	redeemPollTimeout     = 180 * time.Second
	redeemTolerance       = 0.8 // 预期赔付的 80% 即视为到账（容忍手续费/滑点）
)

// Manager 资金管理
// dry-run 用初始资金 + 账本重放；实盘以链上余额为准，每 10s 同步
type Manager struct {
	dryRun bool
	client *clobclient.Client

	mu             sync.Mutex
	balance        float64 // 工作余额
	liveBalance    float64 // 最近观测到的链上余额
	initialBalance float64
	lastLiveSync   time.Time

	polling        bool
	pollingStart   time.Time
	expectedTarget float64

	lastVerifiedAt      time.Time
	lastVerifiedBalance float64

	stopCh chan struct{}
}

// NewDryRun 创建 dry-run 资金管理：初始资金 + 终态交易盈亏重放
func NewDryRun(ctx context.Context, initial float64, st *store.Store) (*Manager, error) {
	m := &Manager{
		dryRun:         true,
		initialBalance: initial,
		balance:        initial,
		stopCh:         make(chan struct{}),
	}
	if st != nil {
		pnl, err := st.TerminalPnlSum(ctx)
		if err != nil {
			return nil, fmt.Errorf("账本重放失败: %w", err)
		}
		m.balance = initial + pnl
		logger.Infof("dry-run 余额重放: 初始=%.2f 累计盈亏=%.2f 工作余额=%.2f", initial, pnl, m.balance)
	}
	return m, nil
}

// NewLive 创建实盘资金管理：启动时抓取链上余额作为初始资金
func NewLive(ctx context.Context, c *clobclient.Client) (*Manager, error) {
	live, err := c.GetCollateralBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取初始链上余额失败: %w", err)
	}
	m := &Manager{
		client:         c,
		balance:        live,
		liveBalance:    live,
		initialBalance: live,
		lastLiveSync:   time.Now(),
		stopCh:         make(chan struct{}),
	}
	logger.Infof("实盘初始余额: %.2f USDC", live)
	return m, nil
}

// StartSyncLoop 启动链上同步循环（dry-run 为空操作）
func (m *Manager) StartSyncLoop(ctx context.Context) {
	if m.dryRun {
		return
	}
	go func() {
		ticker := time.NewTicker(syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.syncLive(ctx)
			}
		}
	}()
}

// Stop 停止同步循环
func (m *Manager) Stop() {
	close(m.stopCh)
}

// syncLive 以链上余额覆盖工作余额（远端为真相）
func (m *Manager) syncLive(ctx context.Context) {
	live, err := m.client.GetCollateralBalance(ctx)
	if err != nil {
		logger.Debugf("链上余额同步失败: %v", err)
		return
	}
	m.mu.Lock()
	m.liveBalance = live
	m.balance = live
	m.lastLiveSync = time.Now()
	m.mu.Unlock()
}

// Balance 工作余额
func (m *Manager) Balance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance
}

// LiveBalance 最近观测到的链上余额
func (m *Manager) LiveBalance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveBalance
}

// InitialBalance 初始资金
func (m *Manager) InitialBalance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialBalance
}

// Deduct 下单时扣除本金；余额不足时拒绝而不是透支
func (m *Manager) Deduct(stake float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stake > m.balance {
		return fmt.Errorf("余额不足: 需要 %.2f，可用 %.2f", stake, m.balance)
	}
	m.balance -= stake
	return nil
}

// Credit 赢单入账
func (m *Manager) Credit(amount float64) {
	m.mu.Lock()
	m.balance += amount
	m.mu.Unlock()
}

// Refund 取消退款（FOK 未成交或结算超时）
func (m *Manager) Refund(stake float64) {
	m.mu.Lock()
	m.balance += stake
	m.mu.Unlock()
}

// StartRedeemPolling 赢单后开始等待赔付到账
// 目标 = 当前链上余额 + 0.8 × 预期赔付
func (m *Manager) StartRedeemPolling(expectedPayout float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polling = true
	m.pollingStart = time.Now()
	m.expectedTarget = m.liveBalance + redeemTolerance*expectedPayout
	logger.Infof("开始赎回轮询: 目标余额 %.2f", m.expectedTarget)
}

// GetVerifiedBalance 节流的权威余额读取（下单前置校验用）
// 轮询中：到账或超时则结束轮询；未到账返回当前值（可能不足）
func (m *Manager) GetVerifiedBalance(ctx context.Context) float64 {
	if m.dryRun {
		return m.Balance()
	}

	m.mu.Lock()
	throttle := verifyThrottle
	if m.polling {
		throttle = verifyThrottlePolling
	}
	if time.Since(m.lastVerifiedAt) < throttle {
		v := m.lastVerifiedBalance
		m.mu.Unlock()
		return v
	}
	polling := m.polling
	m.mu.Unlock()

	live, err := m.client.GetCollateralBalance(ctx)
	if err != nil {
		logger.Debugf("验证余额失败: %v", err)
		return m.Balance()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveBalance = live
	m.balance = live
	m.lastVerifiedAt = time.Now()
	m.lastVerifiedBalance = live

	if polling {
		switch {
		case live >= m.expectedTarget:
			m.polling = false
			logger.Infof("赎回到账: %.2f ≥ %.2f", live, m.expectedTarget)
		case time.Since(m.pollingStart) > redeemPollTimeout:
			m.polling = false
			logger.Warnf("赎回轮询超时(%.0fs)，当前 %.2f 未达 %.2f",
				redeemPollTimeout.Seconds(), live, m.expectedTarget)
		}
	}
	return live
}

// ScheduleRefresh 延迟刷新链上余额（下单后 2s 用）
func (m *Manager) ScheduleRefresh(ctx context.Context, delay time.Duration) {
	if m.dryRun {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			m.syncLive(ctx)
		}
	}()
}
