package pricefeed

// Regime 波动率档位（按 ATR%）
type Regime int

const (
	RegimeLow Regime = iota
	RegimeNormal
	RegimeHigh
	RegimeExtreme
)

// String 档位名
func (r Regime) String() string {
	switch r {
	case RegimeLow:
		return "LOW"
	case RegimeNormal:
		return "NORMAL"
	case RegimeHigh:
		return "HIGH"
	case RegimeExtreme:
		return "EXTREME"
	}
	return "UNKNOWN"
}

// RegimeFor 按 ATR% 划分档位；ATR 未就绪时报 NORMAL
func RegimeFor(atrPct float64, ready bool) Regime {
	if !ready {
		return RegimeNormal
	}
	switch {
	case atrPct < 0.04:
		return RegimeLow
	case atrPct < 0.10:
		return RegimeNormal
	case atrPct < 0.18:
		return RegimeHigh
	default:
		return RegimeExtreme
	}
}
