package scanner

import (
	"sync/atomic"
	"time"

	"github.com/betbot/sniper/pkg/logger"
)

const (
	breakerCheckInterval = 30 * time.Second
	breakerHaltDuration  = 5 * time.Minute
	breakerLossStreak    = 3
)

// circuitBreaker 连败熔断
// 最近 3 笔已结算全部 LOSE 时熔断 5 分钟；同一批交易只触发一次
type circuitBreaker struct {
	armedUntilMs     atomic.Int64
	lastCheckMs      atomic.Int64
	lastArmedTradeID atomic.Int64
}

// armed 是否处于熔断中
func (b *circuitBreaker) armed() bool {
	return time.Now().UnixMilli() < b.armedUntilMs.Load()
}

// shouldCheck 30s 节流（CAS 保证单次通过）
func (b *circuitBreaker) shouldCheck() bool {
	now := time.Now().UnixMilli()
	last := b.lastCheckMs.Load()
	if now-last < breakerCheckInterval.Milliseconds() {
		return false
	}
	return b.lastCheckMs.CompareAndSwap(last, now)
}

// arm 熔断；latestTradeID 用于防止同一连败反复触发
func (b *circuitBreaker) arm(latestTradeID int64) {
	if latestTradeID <= b.lastArmedTradeID.Load() {
		return
	}
	b.lastArmedTradeID.Store(latestTradeID)
	b.armedUntilMs.Store(time.Now().Add(breakerHaltDuration).UnixMilli())
	logger.Warnf("서킷 브레이커 발동: %d연패, %v 휴식", breakerLossStreak, breakerHaltDuration)
}

// remaining 剩余熔断时长
func (b *circuitBreaker) remaining() time.Duration {
	ms := b.armedUntilMs.Load() - time.Now().UnixMilli()
	if ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
