package domain

// MarketOdds 当前窗口市场的赔率快照
// 预取成功时整体替换，slug 切换时清空
type MarketOdds struct {
	UpPrice         float64
	DownPrice       float64
	ConditionID     string
	UpTokenID       string
	DownTokenID     string
	FetchDurationMs int64
}

// Spread 买一价差和
func (o *MarketOdds) Spread() float64 {
	return o.UpPrice + o.DownPrice
}

// EvResult EV 计算结果（值对象，不落库）
type EvResult struct {
	Direction TradeAction
	Ev        float64
	Estimate  float64
	Gap       float64
	Stake     float64
	Strategy  string
	Reason    string
}

// IsHold 是否放弃本次机会
func (r *EvResult) IsHold() bool {
	return r.Direction == ActionHold
}
