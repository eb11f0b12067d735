package domain

import "time"

// TradeAction 下注方向
type TradeAction string

const (
	ActionBuyYes TradeAction = "BUY_YES" // 押涨（Up/Yes）
	ActionBuyNo  TradeAction = "BUY_NO"  // 押跌（Down/No）
	ActionHold   TradeAction = "HOLD"
)

// TradeResult 交易状态
type TradeResult string

const (
	ResultPending   TradeResult = "PENDING"
	ResultWin       TradeResult = "WIN"
	ResultLose      TradeResult = "LOSE"
	ResultCancelled TradeResult = "CANCELLED"
)

// 策略标签
const (
	StrategySniper  = "SNIPER"
	StrategyFokFail = "FOK_FAIL" // FOK 未成交的观测记录，不占用蜡烛窗口配额
)

// Trade 交易记录
type Trade struct {
	ID            int64
	Coin          string // "BTC"
	Timeframe     string // "5m"
	Action        TradeAction
	Result        TradeResult
	BetAmount     float64 // 下注金额
	Odds          float64 // 成交赔率
	EntryPrice    float64 // 下单时 BTC 价格
	OpenPrice     float64 // 蜡烛开盘价
	ExitPrice     float64 // 结算展示价
	EstimatedProb float64
	Ev            float64
	Gap           float64
	PriceDiffPct  float64
	Pnl           float64
	BalanceAfter  float64
	MarketID      string // conditionId
	Reason        string
	Detail        string
	Strategy      string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	ScanToTradeMs int64
	OrderStatus   string
	OrderID       string
	BalanceAtBet  float64
	TokenID       string
	ActualSize    float64 // 成交代币数量（1 token 结算 $1）
}

// ExpectedPayout 预期赢得的赔付
func (t *Trade) ExpectedPayout() float64 {
	return t.ActualSize
}

// IsTerminal 是否已终态
func (t *Trade) IsTerminal() bool {
	return t.Result != ResultPending
}
