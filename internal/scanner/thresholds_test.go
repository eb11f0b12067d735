package scanner

import (
	"math"
	"testing"

	"github.com/betbot/sniper/internal/pricefeed"
)

func TestCandlePositionBoundaries(t *testing.T) {
	cases := []struct {
		elapsed float64
		want    int
	}{
		{0, 0},
		{4.9, 0},
		{5, 1},
		{89.9, 1},
		{90, 2},
		{209.9, 2},
		{210, 3},
		{284.9, 3},
		{285, -1},
		{299, -1},
	}
	for _, tc := range cases {
		if got := candlePosition(tc.elapsed); got != tc.want {
			t.Fatalf("candlePosition(%.1f) got=%d want=%d", tc.elapsed, got, tc.want)
		}
	}
}

func TestTimeBonusTiers(t *testing.T) {
	cases := []struct {
		elapsed float64
		want    float64
	}{
		{30, 0},
		{60, 0.01},
		{119, 0.01},
		{120, 0.03},
		{180, 0.05},
		{240, 0.07},
		{284, 0.07},
	}
	for _, tc := range cases {
		if got := timeBonus(tc.elapsed); got != tc.want {
			t.Fatalf("timeBonus(%.0f) got=%.2f want=%.2f", tc.elapsed, got, tc.want)
		}
	}
}

func TestWinRateAdj(t *testing.T) {
	cases := []struct {
		winRate float64
		want    float64
	}{
		{0.70, -0.01},
		{0.65, -0.01},
		{0.60, 0},
		{0.50, 0.02},
		{0.40, 0.04},
	}
	for _, tc := range cases {
		if got := winRateAdj(tc.winRate); got != tc.want {
			t.Fatalf("winRateAdj(%.2f) got=%.2f want=%.2f", tc.winRate, got, tc.want)
		}
	}
}

func TestDynamicMinMove(t *testing.T) {
	// ATR 未就绪：固定回退值
	if got := dynamicMinMove(0.50, false, 0.50); got != fallbackMinMove {
		t.Fatalf("未就绪 got=%.3f want=%.3f", got, fallbackMinMove)
	}
	// 常规：0.07×0.50 = 0.035
	if got := dynamicMinMove(0.07, true, 0.50); math.Abs(got-0.035) > 1e-9 {
		t.Fatalf("NORMAL got=%.4f want=0.035", got)
	}
	// 钳制上下限
	if got := dynamicMinMove(0.001, true, 0.40); got != 0.01 {
		t.Fatalf("下限 got=%.3f want=0.01", got)
	}
	if got := dynamicMinMove(0.50, true, 0.70); got != 0.10 {
		t.Fatalf("上限 got=%.3f want=0.10", got)
	}
}

func TestThresholdsForUnknownRegimeFallsBack(t *testing.T) {
	got := thresholdsFor(pricefeed.Regime(99))
	want := regimeTable[pricefeed.RegimeNormal]
	if got != want {
		t.Fatalf("未知档位应回退 NORMAL: got=%+v", got)
	}
}

func TestRegimeTableMonotone(t *testing.T) {
	// 波动越高，门槛越严
	order := []pricefeed.Regime{
		pricefeed.RegimeLow, pricefeed.RegimeNormal, pricefeed.RegimeHigh, pricefeed.RegimeExtreme,
	}
	for i := 1; i < len(order); i++ {
		lo, hi := regimeTable[order[i-1]], regimeTable[order[i]]
		if hi.entryMult <= lo.entryMult || hi.momentumMin <= lo.momentumMin || hi.gapAdj <= lo.gapAdj {
			t.Fatalf("档位 %v → %v 门槛未递增", order[i-1], order[i])
		}
	}
}
