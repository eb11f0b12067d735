package types

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeFOK OrderType = "FOK" // Fill or Kill - 全部成交或全部取消
	OrderTypeGTC OrderType = "GTC" // Good Till Cancel
)

// Chain 链 ID
type Chain int

const (
	ChainPolygon Chain = 137
	ChainAmoy    Chain = 80002
)

// SignatureType 签名类型
type SignatureType int

const (
	SignatureTypeEOA   SignatureType = 0 // 标准以太坊钱包直签
	SignatureTypeProxy SignatureType = 1 // 代理钱包（funder 与 signer 分离）
)

// AssetType 资产类型
type AssetType string

const (
	AssetTypeCollateral  AssetType = "COLLATERAL"
	AssetTypeConditional AssetType = "CONDITIONAL"
)

// ApiKeyCreds L2 API 凭证
type ApiKeyCreds struct {
	Key        string
	Secret     string
	Passphrase string
}
