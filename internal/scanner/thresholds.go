package scanner

import "github.com/betbot/sniper/internal/pricefeed"

// 过滤阈值常量
const (
	baseGap          = 0.03
	minBalance       = 1.0
	maxSpread        = 1.05
	oddsCeiling      = 0.60
	fallbackMinMove  = 0.03
	fallbackCusumH   = 0.025
	candleMinElapsed = 5.0   // 预言机同步窗口
	candleMaxElapsed = 285.0 // 收盘护栏
)

// regimeThresholds 波动率档位对应的动态阈值
type regimeThresholds struct {
	entryMult   float64
	rangeMult   float64
	momentumMin float64
	cusumMult   float64
	gapAdj      float64
}

var regimeTable = map[pricefeed.Regime]regimeThresholds{
	pricefeed.RegimeLow:     {0.40, 0.25, 0.35, 0.35, -0.01},
	pricefeed.RegimeNormal:  {0.50, 0.30, 0.40, 0.40, 0.00},
	pricefeed.RegimeHigh:    {0.60, 0.35, 0.50, 0.50, 0.01},
	pricefeed.RegimeExtreme: {0.70, 0.40, 0.60, 0.60, 0.02},
}

func thresholdsFor(r pricefeed.Regime) regimeThresholds {
	if t, ok := regimeTable[r]; ok {
		return t
	}
	return regimeTable[pricefeed.RegimeNormal]
}

// dynamicMinMove 入场最小波动 = ATR% × entryMult，钳制 [0.01, 0.10]
func dynamicMinMove(atrPct float64, ready bool, entryMult float64) float64 {
	if !ready {
		return fallbackMinMove
	}
	v := atrPct * entryMult
	if v < 0.01 {
		return 0.01
	}
	if v > 0.10 {
		return 0.10
	}
	return v
}

// cusumThreshold CUSUM 触发阈值 = ATR% × cusumMult
func cusumThreshold(atrPct float64, ready bool, cusumMult float64) float64 {
	if !ready {
		return fallbackCusumH
	}
	return atrPct * cusumMult
}

// timeBonus 蜡烛进行度加成（按分钟阶梯）
func timeBonus(elapsedSec float64) float64 {
	minute := int(elapsedSec) / 60
	switch {
	case minute >= 4:
		return 0.07
	case minute >= 3:
		return 0.05
	case minute >= 2:
		return 0.03
	case minute >= 1:
		return 0.01
	default:
		return 0
	}
}

// winRateAdj 胜率对入场门槛的调节
func winRateAdj(winRate float64) float64 {
	switch {
	case winRate >= 0.65:
		return -0.01
	case winRate >= 0.55:
		return 0
	case winRate >= 0.45:
		return 0.02
	default:
		return 0.04
	}
}

// candlePosition 蜡烛阶段：-1 收盘护栏，0 同步窗口，1/2/3 为可入场阶段
func candlePosition(elapsedSec float64) int {
	switch {
	case elapsedSec >= candleMaxElapsed:
		return -1
	case elapsedSec < candleMinElapsed:
		return 0
	case elapsedSec < 90:
		return 1
	case elapsedSec < 210:
		return 2
	default:
		return 3
	}
}
