package domain

import (
	"math"
	"testing"
	"time"
)

// slug 正好在 epoch%300==0 处切换
func TestSlugBoundary(t *testing.T) {
	boundary := time.Unix(1700000100, 0) // 1700000100 % 300 == 0

	before := boundary.Add(-time.Second)
	at := boundary
	after := boundary.Add(299 * time.Second)
	next := boundary.Add(300 * time.Second)

	if Slug(before) == Slug(at) {
		t.Fatalf("边界前后 slug 不应相同: %s", Slug(at))
	}
	if Slug(at) != Slug(after) {
		t.Fatalf("同一窗口内 slug 应相同: %s vs %s", Slug(at), Slug(after))
	}
	if Slug(at) == Slug(next) {
		t.Fatalf("下一窗口 slug 应变化")
	}
	if got, want := Slug(at), "btc-updown-5m-1700000100"; got != want {
		t.Fatalf("slug got=%s want=%s", got, want)
	}
}

func TestWindowStartEnd(t *testing.T) {
	ts := time.Unix(1700000100+123, 0)
	start := WindowStart(ts)
	end := WindowEnd(ts)

	if start.Unix() != 1700000100 {
		t.Fatalf("start got=%d want=1700000100", start.Unix())
	}
	if end.Sub(start) != WindowSeconds*time.Second {
		t.Fatalf("窗口长度 got=%v", end.Sub(start))
	}
}

// windowID 对同一窗口内任意时刻稳定，跨窗口变化
func TestWindowID(t *testing.T) {
	ts := time.Unix(1700000100, 0)
	if WindowID(ts) != WindowID(ts.Add(299*time.Second)) {
		t.Fatalf("同窗口 windowID 应一致")
	}
	if WindowID(ts) == WindowID(ts.Add(300*time.Second)) {
		t.Fatalf("跨窗口 windowID 应变化")
	}
}

func TestTradeTerminalAndPayout(t *testing.T) {
	tr := &Trade{Result: ResultPending, ActualSize: 6.5}
	if tr.IsTerminal() {
		t.Fatalf("PENDING 不是终态")
	}
	if tr.ExpectedPayout() != 6.5 {
		t.Fatalf("payout got=%.2f want=6.5", tr.ExpectedPayout())
	}
	tr.Result = ResultWin
	if !tr.IsTerminal() {
		t.Fatalf("WIN 是终态")
	}
}

func TestMarketOddsSpread(t *testing.T) {
	o := MarketOdds{UpPrice: 0.54, DownPrice: 0.48}
	if got := o.Spread(); math.Abs(got-1.02) > 1e-9 {
		t.Fatalf("spread got=%.4f want=1.02", got)
	}
}
