package client

import (
	"math"
	"testing"

	"github.com/betbot/sniper/clob/types"
)

func TestLimitPriceSlippageLadder(t *testing.T) {
	// FOK 重试阶梯：1 / 3 / 5 / 7 tick
	cases := []struct {
		retry int
		want  float64
	}{
		{0, 0.55},
		{1, 0.57},
		{2, 0.59},
		{3, 0.61},
	}
	for _, tc := range cases {
		if got := LimitPrice(0.54, types.SideBuy, tc.retry); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("retry=%d got=%.2f want=%.2f", tc.retry, got, tc.want)
		}
	}
}

func TestLimitPriceSellAndClamp(t *testing.T) {
	if got := LimitPrice(0.54, types.SideSell, 0); math.Abs(got-0.53) > 1e-9 {
		t.Fatalf("SELL got=%.2f want=0.53", got)
	}
	if got := LimitPrice(0.005, types.SideSell, 2); got != 0.01 {
		t.Fatalf("下限 got=%.2f want=0.01", got)
	}
	if got := LimitPrice(0.97, types.SideBuy, 3); got != 0.99 {
		t.Fatalf("上限 got=%.2f want=0.99", got)
	}
}

// 数量换算：分截断，低于 5 token 抬到最小量
func TestOrderSizeMinimum(t *testing.T) {
	if got := OrderSize(3.0, 0.55); math.Abs(got-5.45) > 1e-9 {
		t.Fatalf("size got=%.2f want=5.45", got)
	}
	if got := OrderSize(1.0, 0.55); got != 5 {
		t.Fatalf("最小量 got=%.2f want=5", got)
	}
	if got := OrderSize(6.0, 0.55); math.Abs(got-10.90) > 1e-9 {
		t.Fatalf("size got=%.2f want=10.90", got)
	}
}

// 链上数量换算：maker 取整到 1e4 的倍数，taker 到 1e2
func TestOrderAmountsFlooring(t *testing.T) {
	makerRaw, takerRaw := orderAmounts(5.45, 0.55)

	// 5.45×0.55×1e6 = 2_997_500 → 2_990_000
	if makerRaw.IntPart() != 2_990_000 {
		t.Fatalf("maker got=%d want=2990000", makerRaw.IntPart())
	}
	if makerRaw.IntPart()%10_000 != 0 {
		t.Fatalf("maker 必须是 1e4 的倍数")
	}
	// 5.45×1e6 = 5_450_000
	if takerRaw.IntPart() != 5_450_000 {
		t.Fatalf("taker got=%d want=5450000", takerRaw.IntPart())
	}
	if takerRaw.IntPart()%100 != 0 {
		t.Fatalf("taker 必须是 1e2 的倍数")
	}
}

// 二进制浮点不能污染链上整数：0.1×3 这类值必须精确换算
func TestOrderAmountsDecimalSafety(t *testing.T) {
	makerRaw, takerRaw := orderAmounts(6, 0.55)
	if makerRaw.IntPart() != 3_300_000 {
		t.Fatalf("maker got=%d want=3300000", makerRaw.IntPart())
	}
	if takerRaw.IntPart() != 6_000_000 {
		t.Fatalf("taker got=%d want=6000000", takerRaw.IntPart())
	}
}

func TestOrderResultMatched(t *testing.T) {
	r := &types.OrderResult{Success: true, Status: "matched"}
	if !r.Matched() {
		t.Fatalf("matched 应判定成交")
	}
	r.Status = "MATCHED"
	if !r.Matched() {
		t.Fatalf("大写 MATCHED 应判定成交")
	}
	r.Status = "delayed"
	if r.Matched() {
		t.Fatalf("delayed 不应判定成交")
	}
	r = &types.OrderResult{Success: false, Status: "matched"}
	if r.Matched() {
		t.Fatalf("success=false 不应判定成交")
	}
}

// 只读客户端：无凭证时拒绝下单路径
func TestReadOnlyClient(t *testing.T) {
	c, err := New(Config{
		ClobBaseURL:    "https://clob.example.com",
		GammaBaseURL:   "https://gamma.example.com",
		BinanceBaseURL: "https://api.example.com",
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.CanTrade() {
		t.Fatalf("无凭证不应可交易")
	}
}
