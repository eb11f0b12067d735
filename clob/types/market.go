package types

// OrderSummary 订单簿单档
type OrderSummary struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderBookSummary 订单簿快照
type OrderBookSummary struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Timestamp string         `json:"timestamp"`
	Bids      []OrderSummary `json:"bids"`
	Asks      []OrderSummary `json:"asks"`
	TickSize  string         `json:"tick_size"`
	NegRisk   bool           `json:"neg_risk"`
}

// MarketToken 市场结果代币
type MarketToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Winner  bool   `json:"winner"`
}

// GammaMarket Gamma 目录里的单个市场
// clobTokenIds / outcomePrices 是字符串编码的 JSON 数组
type GammaMarket struct {
	ID            string        `json:"id"`
	Question      string        `json:"question"`
	ConditionID   string        `json:"conditionId"`
	Slug          string        `json:"slug"`
	ClobTokenIDs  string        `json:"clobTokenIds"`
	OutcomePrices string        `json:"outcomePrices"`
	Closed        bool          `json:"closed"`
	Tokens        []MarketToken `json:"tokens"`
}

// GammaEvent Gamma 事件（包含市场列表）
type GammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Markets []GammaMarket `json:"markets"`
}

// BalanceAllowanceParams 余额查询参数
type BalanceAllowanceParams struct {
	AssetType     AssetType
	TokenID       *string
	SignatureType *SignatureType
}

// BalanceAllowanceResponse 余额和授权响应
// balance 可能是 USDC 微单位原始值，也可能是十进制值
type BalanceAllowanceResponse struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}
