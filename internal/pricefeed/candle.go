package pricefeed

import (
	"math"
	"time"
)

const (
	// CandleSeconds 蜡烛周期
	CandleSeconds = 300
	// tickRingCap 价格环容量
	tickRingCap = 600
	// trRingCap 真实波幅环容量
	trRingCap = 14
	// atrMinSamples ATR 就绪所需最少样本
	atrMinSamples = 3
	// snapshotTTL 收盘快照保留时长
	snapshotTTL = time.Hour
)

// PriceTick 单笔预言机报价
type PriceTick struct {
	Epoch int64 // 秒
	Price float64
}

// CandleTracker 蜡烛状态机：价格环、边界翻转、ATR
// 非并发安全，调用方持锁
type CandleTracker struct {
	ticks []PriceTick // 追加环，满 600 淘汰最旧

	lastBoundary  int64
	open          float64
	high          float64
	low           float64
	prevClose     float64
	havePrevClose bool
	started       bool
	warmedUp      bool

	trRing []float64
	atr    float64

	lastPrice float64

	closeSnapshots map[int64]float64 // 边界 → 收盘价
}

// NewCandleTracker 创建蜡烛状态机
func NewCandleTracker() *CandleTracker {
	return &CandleTracker{
		ticks:          make([]PriceTick, 0, tickRingCap),
		closeSnapshots: make(map[int64]float64),
	}
}

// Boundary 对齐到 5 分钟边界
func Boundary(epochSec int64) int64 {
	return epochSec / CandleSeconds * CandleSeconds
}

// OnTick 处理一笔报价
func (c *CandleTracker) OnTick(epochSec int64, price float64) {
	c.lastPrice = price

	if c.started {
		if price > c.high {
			c.high = price
		}
		if price < c.low {
			c.low = price
		}
	}

	c.ticks = append(c.ticks, PriceTick{Epoch: epochSec, Price: price})
	if len(c.ticks) > tickRingCap {
		c.ticks = c.ticks[1:]
	}

	c.updateBoundary(epochSec, price)
}

func (c *CandleTracker) updateBoundary(epochSec int64, price float64) {
	boundary := Boundary(epochSec)

	if !c.started {
		c.started = true
		c.lastBoundary = boundary
		c.open = c.findClosestPrice(boundary, price)
		c.high = price
		c.low = price
		return
	}

	if boundary == c.lastBoundary {
		return
	}

	// 边界翻转：先定上一根的收盘
	closePrice := c.findPriceBefore(boundary, price)
	c.closeSnapshots[boundary] = closePrice
	c.evictSnapshots(boundary)

	// 真实波幅
	if c.high > 0 && c.low > 0 {
		tr := c.high - c.low
		if c.havePrevClose {
			tr = math.Max(tr, math.Max(
				math.Abs(c.high-c.prevClose),
				math.Abs(c.low-c.prevClose)))
		}
		c.pushTrueRange(tr)
	}

	c.prevClose = closePrice
	c.havePrevClose = true

	// 新蜡烛
	c.lastBoundary = boundary
	c.open = c.findClosestPrice(boundary, price)
	c.high = price
	c.low = price
	c.warmedUp = true
}

// findClosestPrice 距边界时间最近的 tick 价格（无历史时用当前价）
func (c *CandleTracker) findClosestPrice(boundary int64, fallback float64) float64 {
	best := fallback
	bestDiff := int64(math.MaxInt64)
	for _, t := range c.ticks {
		diff := t.Epoch - boundary
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = t.Price
		}
	}
	return best
}

// findPriceBefore 边界之前最新的 tick 价格
func (c *CandleTracker) findPriceBefore(boundary int64, fallback float64) float64 {
	best := fallback
	var bestEpoch int64 = -1
	for _, t := range c.ticks {
		if t.Epoch < boundary && t.Epoch > bestEpoch {
			bestEpoch = t.Epoch
			best = t.Price
		}
	}
	return best
}

func (c *CandleTracker) pushTrueRange(tr float64) {
	c.trRing = append(c.trRing, tr)
	if len(c.trRing) > trRingCap {
		c.trRing = c.trRing[1:]
	}

	// EMA 全量重算，乘数 2/(n+1)
	n := len(c.trRing)
	k := 2.0 / float64(n+1)
	ema := c.trRing[0]
	for i := 1; i < n; i++ {
		ema = c.trRing[i]*k + ema*(1-k)
	}
	c.atr = ema
}

func (c *CandleTracker) evictSnapshots(now int64) {
	cutoff := now - int64(snapshotTTL.Seconds())
	for b := range c.closeSnapshots {
		if b < cutoff {
			delete(c.closeSnapshots, b)
		}
	}
}

// LastPrice 最新价格
func (c *CandleTracker) LastPrice() float64 { return c.lastPrice }

// OpenPrice 当前蜡烛开盘价
func (c *CandleTracker) OpenPrice() float64 { return c.open }

// CurrentBoundary 当前蜡烛边界
func (c *CandleTracker) CurrentBoundary() int64 { return c.lastBoundary }

// WarmedUp 是否已经历至少一次完整翻转
func (c *CandleTracker) WarmedUp() bool { return c.warmedUp }

// CloseAt 指定边界的收盘快照
func (c *CandleTracker) CloseAt(boundary int64) (float64, bool) {
	v, ok := c.closeSnapshots[boundary]
	return v, ok
}

// ATR 当前 ATR 与就绪标志（至少 3 个样本）
func (c *CandleTracker) ATR() (float64, bool) {
	return c.atr, len(c.trRing) >= atrMinSamples
}

// ATRPct ATR 相对最近收盘价的百分比
func (c *CandleTracker) ATRPct() (float64, bool) {
	atr, ready := c.ATR()
	if !ready || !c.havePrevClose || c.prevClose <= 0 {
		return 0, false
	}
	return atr / c.prevClose * 100, true
}

// TickCount 环内 tick 数
func (c *CandleTracker) TickCount() int { return len(c.ticks) }
