package scanner

// 信号跟踪器：速度 EMA、动量环、震荡计数、区间极值、CUSUM
// 均为单任务（扫描循环）私有状态，不做并发保护

const (
	velocityAlpha   = 0.3
	minVelocityMs   = 50 // 小于该间隔的窗口跳过，避免除零噪声
	momentumRingCap = 10
	momentumMinFill = 3
	rangeRingCap    = 60
	maxCrossCount   = 5
	cusumMaxTicks   = 10
)

// velocityTracker 价格速度 EMA（%/秒）
type velocityTracker struct {
	lastPrice float64
	lastAtMs  int64
	ema       float64
	primed    bool
}

func (v *velocityTracker) update(price float64, nowMs int64) float64 {
	if !v.primed {
		v.lastPrice = price
		v.lastAtMs = nowMs
		v.primed = true
		return 0
	}
	dtMs := nowMs - v.lastAtMs
	if dtMs < minVelocityMs {
		return v.ema
	}
	raw := (price - v.lastPrice) / v.lastPrice * 100 / (float64(dtMs) / 1000)
	v.ema = velocityAlpha*raw + (1-velocityAlpha)*v.ema
	v.lastPrice = price
	v.lastAtMs = nowMs
	return v.ema
}

func (v *velocityTracker) reset() {
	*v = velocityTracker{}
}

// momentumRing 最近 10 个 priceDiffPct 符号
type momentumRing struct {
	ring [momentumRingCap]int
	n    int
	idx  int
}

func (m *momentumRing) add(sign int) {
	m.ring[m.idx] = sign
	m.idx = (m.idx + 1) % momentumRingCap
	if m.n < momentumRingCap {
		m.n++
	}
}

func (m *momentumRing) size() int { return m.n }

// score 一致性 = 符号均值，[-1, +1]
func (m *momentumRing) score() float64 {
	if m.n == 0 {
		return 0
	}
	sum := 0
	for i := 0; i < m.n; i++ {
		sum += m.ring[i]
	}
	return float64(sum) / float64(m.n)
}

func (m *momentumRing) reset() {
	*m = momentumRing{}
}

// crossCounter priceDiffPct 符号翻转计数（震荡检测）
type crossCounter struct {
	lastSign int
	count    int
}

func (c *crossCounter) update(sign int) int {
	if sign != 0 && c.lastSign != 0 && sign != c.lastSign {
		c.count++
	}
	if sign != 0 {
		c.lastSign = sign
	}
	return c.count
}

func (c *crossCounter) reset() {
	*c = crossCounter{}
}

// rangeTracker 最近 60 tick 的高低区间
type rangeTracker struct {
	ring [rangeRingCap]float64
	n    int
	idx  int
}

func (r *rangeTracker) add(price float64) {
	r.ring[r.idx] = price
	r.idx = (r.idx + 1) % rangeRingCap
	if r.n < rangeRingCap {
		r.n++
	}
}

// rangePct (max-min)/min × 100
func (r *rangeTracker) rangePct() float64 {
	if r.n == 0 {
		return 0
	}
	lo, hi := r.ring[0], r.ring[0]
	for i := 1; i < r.n; i++ {
		if r.ring[i] < lo {
			lo = r.ring[i]
		}
		if r.ring[i] > hi {
			hi = r.ring[i]
		}
	}
	if lo <= 0 {
		return 0
	}
	return (hi - lo) / lo * 100
}

func (r *rangeTracker) reset() {
	*r = rangeTracker{}
}

// cusumFilter Lopez de Prado 原始收益 CUSUM
// 每 tick 收益相对上一参考价；边界重置归零
type cusumFilter struct {
	sPos      float64
	sNeg      float64
	refPrice  float64
	ticks     int
	triggered bool
}

// reset 蜡烛边界归零，参考价取开盘
func (c *cusumFilter) reset(refPrice float64) {
	c.sPos = 0
	c.sNeg = 0
	c.refPrice = refPrice
	c.ticks = 0
	c.triggered = false
}

// update 推进滤波器；h 为触发阈值（百分比）
func (c *cusumFilter) update(price, h float64) {
	if c.refPrice <= 0 {
		c.refPrice = price
		return
	}
	r := (price - c.refPrice) / c.refPrice * 100
	c.refPrice = price
	c.ticks++

	c.sPos += r
	if c.sPos < 0 {
		c.sPos = 0
	}
	c.sNeg += r
	if c.sNeg > 0 {
		c.sNeg = 0
	}

	if !c.triggered && (c.sPos > h || -c.sNeg > h) {
		c.triggered = true
	}
}

// expired 10 tick 内未触发
func (c *cusumFilter) expired() bool {
	return !c.triggered && c.ticks >= cusumMaxTicks
}
