package odds

import (
	"testing"

	"github.com/betbot/sniper/clob/types"
)

func TestBestAskPicksLowestWithDepth(t *testing.T) {
	asks := []types.OrderSummary{
		{Price: "0.58", Size: "120"},
		{Price: "0.54", Size: "3"},  // 深度不足，跳过
		{Price: "0.55", Size: "40"},
	}
	got, err := BestAsk(asks)
	if err != nil {
		t.Fatalf("BestAsk error: %v", err)
	}
	if got != 0.55 {
		t.Fatalf("best ask got=%.2f want=0.55", got)
	}
}

func TestBestAskRejectsEdges(t *testing.T) {
	// 0.01 / 0.99 的挂单是结算尘埃，不可成交
	asks := []types.OrderSummary{
		{Price: "0.99", Size: "1000"},
		{Price: "0.01", Size: "1000"},
	}
	if _, err := BestAsk(asks); err == nil {
		t.Fatalf("边缘价格不应产生报价")
	}
}

// 最优价踩在边缘时整个快照作废，不顺延次优价
func TestBestAskEdgeBestInvalidatesSnapshot(t *testing.T) {
	asks := []types.OrderSummary{
		{Price: "0.01", Size: "1000"},
		{Price: "0.55", Size: "40"},
	}
	if _, err := BestAsk(asks); err == nil {
		t.Fatalf("边缘最优价应作废整个快照")
	}
}

func TestBestAskEmpty(t *testing.T) {
	if _, err := BestAsk(nil); err == nil {
		t.Fatalf("空订单簿应报错")
	}
}

func TestBestAskMalformedEntries(t *testing.T) {
	asks := []types.OrderSummary{
		{Price: "abc", Size: "10"},
		{Price: "0.47", Size: "xyz"},
		{Price: "0.52", Size: "30"},
	}
	got, err := BestAsk(asks)
	if err != nil {
		t.Fatalf("BestAsk error: %v", err)
	}
	if got != 0.52 {
		t.Fatalf("坏条目应跳过, got=%.2f want=0.52", got)
	}
}
