package signing

// Polymarket CTF Exchange EIP712 域参数
const (
	ExchangeDomainName    = "Polymarket CTF Exchange"
	ExchangeDomainVersion = "1"

	// ExchangeAddress Polygon 主网 CTF Exchange 合约
	ExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
)

// OrderStructType Order 结构体的 EIP712 类型串（typehash 输入）
const OrderStructType = "Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"

// EIP712DomainType 域结构体的类型串
const EIP712DomainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

// FeeRateBps 固定费率（万分比）
const FeeRateBps = 1000
