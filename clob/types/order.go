package types

// SignedOrderPayload 提交到 CLOB 的已签名订单
// makerAmount / takerAmount / feeRateBps 以字符串传输
type SignedOrderPayload struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          Side   `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// PostOrderRequest POST /order 请求体
type PostOrderRequest struct {
	Order     SignedOrderPayload `json:"order"`
	Owner     string             `json:"owner"`
	OrderType OrderType          `json:"orderType"`
	PostOnly  bool               `json:"postOnly"`
}

// PostOrderResponse POST /order 响应
type PostOrderResponse struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderID"`
	Status    string `json:"status"`
	ErrorMsg  string `json:"errorMsg"`
	TakingAmt string `json:"takingAmount"`
	MakingAmt string `json:"makingAmount"`
}

// 订单状态
const (
	OrderStatusMatched   = "matched"
	OrderStatusDelayed   = "delayed"
	OrderStatusUnmatched = "unmatched"
)

// OrderResult 下单结果（含本地换算的成交量）
type OrderResult struct {
	Success      bool
	OrderID      string
	Status       string
	ActualAmount float64 // size × limit，实际投入金额
	ActualSize   float64 // 成交代币数量
	LimitPrice   float64
	ErrMsg       string
}

// Matched 判断 FOK 是否完全成交
func (r *OrderResult) Matched() bool {
	return r.Success && (r.Status == OrderStatusMatched || r.Status == "MATCHED")
}
