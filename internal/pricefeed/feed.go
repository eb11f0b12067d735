package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/betbot/sniper/pkg/logger"
)

const (
	pingInterval       = 20 * time.Second
	supervisorInterval = 10 * time.Second
	zombieThreshold    = 30 * time.Second // 超过无数据判定僵尸连接
	freshThreshold     = 10 * time.Second // isConnected 的价格新鲜度要求
	minReconnectDelay  = 5 * time.Second
	maxReconnectDelay  = 60 * time.Second
	readTimeout        = 90 * time.Second
)

// oracleMessage 预言机推送帧
type oracleMessage struct {
	Topic   string `json:"topic"`
	Payload struct {
		Symbol    string  `json:"symbol"`
		Value     float64 `json:"value"`
		Timestamp float64 `json:"timestamp"`
	} `json:"payload"`
}

// Feed Chainlink BTC/USD 实时价格源
// 单写者：只有读循环写入蜡烛状态
type Feed struct {
	url string

	conn   *websocket.Conn
	connMu sync.Mutex

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	connected  atomic.Bool
	lastTickMs atomic.Int64 // 最近有效 tick 的本地毫秒时间

	reconnectDelay time.Duration

	mu      sync.Mutex
	tracker *CandleTracker
}

// Snapshot 扫描器消费的一致性快照
type Snapshot struct {
	Price    float64
	Open     float64
	Boundary int64
	WarmedUp bool
	AtrPct   float64
	AtrReady bool
	Regime   Regime
}

// New 创建价格源
func New(url string) *Feed {
	return &Feed{
		url:            url,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
		reconnectDelay: minReconnectDelay,
		tracker:        NewCandleTracker(),
	}
}

// Start 建立连接并启动读循环、心跳与监督任务
func (f *Feed) Start(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return fmt.Errorf("价格源已在运行")
	}

	if err := f.connect(); err != nil {
		// 初次失败交给读循环重连
		logger.Warnf("价格源首次连接失败: %v", err)
	}

	go f.readLoop(ctx)
	go f.pingLoop(ctx)
	go f.superviseLoop(ctx)

	logger.Infof("价格源已启动: %s", f.url)
	return nil
}

// Stop 优雅关闭（关闭码 1000）
func (f *Feed) Stop() {
	if !f.running.CompareAndSwap(true, false) {
		return
	}
	close(f.stopCh)

	f.connMu.Lock()
	if f.conn != nil {
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		f.conn.Close()
	}
	f.connMu.Unlock()

	select {
	case <-f.doneCh:
	case <-time.After(5 * time.Second):
		logger.Warn("价格源关闭超时")
	}
	logger.Info("价格源已停止")
}

// IsConnected 连接且价格足够新鲜
func (f *Feed) IsConnected() bool {
	return f.connected.Load() && f.PriceAge() < freshThreshold
}

// PriceAge 最近有效 tick 距今时长
func (f *Feed) PriceAge() time.Duration {
	last := f.lastTickMs.Load()
	if last == 0 {
		return time.Duration(1<<62 - 1)
	}
	return time.Duration(time.Now().UnixMilli()-last) * time.Millisecond
}

// Snapshot 读取当前状态快照
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	atrPct, ready := f.tracker.ATRPct()
	return Snapshot{
		Price:    f.tracker.LastPrice(),
		Open:     f.tracker.OpenPrice(),
		Boundary: f.tracker.CurrentBoundary(),
		WarmedUp: f.tracker.WarmedUp(),
		AtrPct:   atrPct,
		AtrReady: ready,
		Regime:   RegimeFor(atrPct, ready),
	}
}

// CloseAt 指定边界的收盘快照
func (f *Feed) CloseAt(boundary int64) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracker.CloseAt(boundary)
}

func (f *Feed) connect() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn != nil {
		f.conn.Close()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "https://polymarket.com")

	conn, _, err := dialer.Dial(f.url, headers)
	if err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}

	// 订阅 Chainlink 价格主题
	sub := map[string]any{
		"action": "subscribe",
		"subscriptions": []map[string]any{
			{"topic": "crypto_prices_chainlink", "type": "*", "filters": ""},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("发送订阅失败: %w", err)
	}

	f.conn = conn
	f.connected.Store(true)
	f.reconnectDelay = minReconnectDelay
	logger.Info("价格源连接就绪，已订阅 crypto_prices_chainlink")
	return nil
}

func (f *Feed) readLoop(ctx context.Context) {
	defer close(f.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil || !f.connected.Load() {
			f.waitAndReconnect(ctx)
			continue
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !f.running.Load() {
				return
			}
			f.connected.Store(false)
			logger.Warnf("价格源读取错误: %v", err)
			f.waitAndReconnect(ctx)
			continue
		}

		f.handleMessage(message)
	}
}

// waitAndReconnect 指数退避后重连（5s 起步，封顶 60s）
func (f *Feed) waitAndReconnect(ctx context.Context) {
	delay := f.reconnectDelay
	f.reconnectDelay *= 2
	if f.reconnectDelay > maxReconnectDelay {
		f.reconnectDelay = maxReconnectDelay
	}

	logger.Infof("价格源 %v 后重连", delay)
	select {
	case <-ctx.Done():
		return
	case <-f.stopCh:
		return
	case <-time.After(delay):
	}

	if err := f.connect(); err != nil {
		logger.Warnf("价格源重连失败: %v", err)
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.connMu.Lock()
			conn := f.conn
			f.connMu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				logger.Debugf("价格源 ping 失败: %v", err)
			}
		}
	}
}

// superviseLoop 每 10s 检查连接；僵尸连接（30s 无数据）强制断开
func (f *Feed) superviseLoop(ctx context.Context) {
	ticker := time.NewTicker(supervisorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			if !f.connected.Load() {
				continue // 读循环正在退避重连
			}
			if f.PriceAge() > zombieThreshold {
				logger.Warnf("价格源 %v 无数据，强制重连", zombieThreshold)
				f.forceReconnect()
			}
		}
	}
}

// forceReconnect 关闭当前连接，读循环随即进入重连
func (f *Feed) forceReconnect() {
	f.connected.Store(false)
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()
}

func (f *Feed) handleMessage(data []byte) {
	var msg oracleMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// 忽略非 JSON 帧（连接确认等），速度优先
		return
	}
	if msg.Topic != "crypto_prices_chainlink" {
		return
	}
	if msg.Payload.Symbol != "btc/usd" || msg.Payload.Value <= 0 {
		return
	}

	epoch := int64(msg.Payload.Timestamp)
	if epoch > 1_000_000_000_000 {
		// 毫秒时间戳归一到秒
		epoch /= 1000
	}

	f.mu.Lock()
	f.tracker.OnTick(epoch, msg.Payload.Value)
	f.mu.Unlock()

	f.lastTickMs.Store(time.Now().UnixMilli())
}
