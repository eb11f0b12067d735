package scanner

import (
	"sync"
	"time"
)

// CusumState CUSUM 观测值
type CusumState struct {
	Pos       float64 `json:"pos"`
	Neg       float64 `json:"neg"`
	Triggered bool    `json:"triggered"`
	Threshold float64 `json:"threshold"`
}

// MetricsSnapshot 仪表盘读取的指标快照
type MetricsSnapshot struct {
	Market             string     `json:"market"`
	TotalScans         int64      `json:"totalScans"`
	ScansPerSec        int64      `json:"scansPerSec"`
	LastScanDurationUs int64      `json:"lastScanDurationUs"`
	LastFilter         string     `json:"lastFilter"`
	AtrPct             float64    `json:"atrPct"`
	DynamicMinMove     float64    `json:"dynamicMinMove"`
	Regime             string     `json:"regime"`
	Cusum              CusumState `json:"cusum"`
}

// StatsSnapshot 累计统计
type StatsSnapshot struct {
	TotalScans    int64   `json:"totalScans"`
	TotalTrades   int64   `json:"totalTrades"`
	Wins          int64   `json:"wins"`
	Losses        int64   `json:"losses"`
	WinRate       float64 `json:"winRate"`
	AvgScanTimeUs int64   `json:"avgScanTimeUs"`
	Enabled       bool    `json:"enabled"`
	DryRun        bool    `json:"dryRun"`
	Balance       float64 `json:"balance"`
}

// metrics 扫描指标（单写者：扫描循环；dashboard 只读）
type metrics struct {
	mu sync.Mutex

	totalScans         int64
	secEpoch           int64
	scansThisSec       int64
	scansPerSec        int64
	lastScanDurationUs int64
	scanDurTotalUs     int64
	lastFilter         string
	atrPct             float64
	dynamicMinMove     float64
	regime             string
	cusum              CusumState

	totalTrades int64
}

// onScan 记录一次扫描
func (m *metrics) onScan(durUs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalScans++
	m.lastScanDurationUs = durUs
	m.scanDurTotalUs += durUs

	// 滚动 1 秒窗口
	sec := time.Now().Unix()
	if sec != m.secEpoch {
		m.scansPerSec = m.scansThisSec
		m.scansThisSec = 0
		m.secEpoch = sec
	}
	m.scansThisSec++
}

func (m *metrics) setFilter(name string) {
	m.mu.Lock()
	m.lastFilter = name
	m.mu.Unlock()
}

func (m *metrics) setSignals(atrPct, minMove float64, regime string, cusum CusumState) {
	m.mu.Lock()
	m.atrPct = atrPct
	m.dynamicMinMove = minMove
	m.regime = regime
	m.cusum = cusum
	m.mu.Unlock()
}

func (m *metrics) onTrade() {
	m.mu.Lock()
	m.totalTrades++
	m.mu.Unlock()
}

func (m *metrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		TotalScans:         m.totalScans,
		ScansPerSec:        m.scansPerSec,
		LastScanDurationUs: m.lastScanDurationUs,
		LastFilter:         m.lastFilter,
		AtrPct:             m.atrPct,
		DynamicMinMove:     m.dynamicMinMove,
		Regime:             m.regime,
		Cusum:              m.cusum,
	}
}

func (m *metrics) stats() (totalScans, totalTrades, avgUs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	avg := int64(0)
	if m.totalScans > 0 {
		avg = m.scanDurTotalUs / m.totalScans
	}
	return m.totalScans, m.totalTrades, avg
}

// reset 清空累计计数（lastFilter 保留最后值）
func (m *metrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalScans = 0
	m.scansThisSec = 0
	m.scansPerSec = 0
	m.scanDurTotalUs = 0
	m.lastScanDurationUs = 0
	m.totalTrades = 0
}
