package client

// CLOB REST 端点
const (
	EndpointPostOrder        = "/order"
	EndpointGetOrderBook     = "/book"
	EndpointBalanceAllowance = "/balance-allowance"
	EndpointTime             = "/time"
)

// Gamma 目录端点
const (
	EndpointGammaEvents  = "/events"
	EndpointGammaMarkets = "/markets"
)

// Binance 行情端点（结算价兜底）
const (
	EndpointBinanceKlines = "/api/v3/klines"
)
