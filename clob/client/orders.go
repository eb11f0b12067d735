package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/sniper/clob/signing"
	"github.com/betbot/sniper/clob/types"
	"github.com/betbot/sniper/pkg/logger"
)

var (
	oneMillion  = decimal.NewFromInt(1_000_000)
	tenThousand = decimal.NewFromInt(10_000)
	oneHundred  = decimal.NewFromInt(100)
)

// LimitPrice 计算含滑点的限价
// slippageTicks = 1 + retryCount×2，每 tick 0.01；BUY 加价，SELL 减价
// 结果钳制到 [0.01, 0.99] 并取整到分
func LimitPrice(price float64, side types.Side, retryCount int) float64 {
	adj := float64(1+retryCount*2) / 100.0
	limit := price + adj
	if side == types.SideSell {
		limit = price - adj
	}
	if limit < 0.01 {
		limit = 0.01
	}
	if limit > 0.99 {
		limit = 0.99
	}
	return math.Round(limit*100) / 100
}

// OrderSize 按限价换算成交 token 数量，不足 CLOB 最小量时抬到 5
// 抬量会把实际成交金额推高到计划金额之上，调用方需按抬量后的成本校验资金
func OrderSize(amount, limit float64) float64 {
	size := math.Floor(amount/limit*100) / 100
	if size < 5 {
		size = 5
	}
	return size
}

// orderAmounts 换算链上原始数量
// makerAmountRaw 向下取整到 1e4 的倍数，takerAmountRaw 到 1e2 的倍数
func orderAmounts(size, limit float64) (makerRaw, takerRaw decimal.Decimal) {
	sizeDec := decimal.NewFromFloat(size)
	limitDec := decimal.NewFromFloat(limit)

	makerRaw = sizeDec.Mul(limitDec).Mul(oneMillion).Round(0)
	makerRaw = makerRaw.Sub(makerRaw.Mod(tenThousand))

	takerRaw = sizeDec.Mul(oneMillion).Round(0)
	takerRaw = takerRaw.Sub(takerRaw.Mod(oneHundred))
	return makerRaw, takerRaw
}

// PlaceOrder 签名并提交 FOK 订单
// amount 为计划投入的 USDC 金额；size 按 5 token 最小量约束换算
// FOK 重试由调用方控制（escalate retryCount 后再次调用）
func (c *Client) PlaceOrder(ctx context.Context, tokenID string, amount, price float64, side types.Side, retryCount int) (*types.OrderResult, error) {
	if !c.CanTrade() {
		return nil, fmt.Errorf("客户端未配置签名凭证")
	}

	limit := LimitPrice(price, side, retryCount)
	size := OrderSize(amount, limit)

	makerRaw, takerRaw := orderAmounts(size, limit)
	if makerRaw.Sign() <= 0 || takerRaw.Sign() <= 0 {
		return nil, fmt.Errorf("订单数量换算无效: maker=%s taker=%s", makerRaw, takerRaw)
	}

	salt := time.Now().UnixMilli()
	orderHash, err := c.hasher.HashOrder(salt, tokenID, makerRaw.BigInt(), takerRaw.BigInt(), side == types.SideBuy)
	if err != nil {
		return nil, err
	}
	sig, err := c.hasher.SignOrderHash(orderHash, c.privateKey)
	if err != nil {
		return nil, err
	}

	req := types.PostOrderRequest{
		Order: types.SignedOrderPayload{
			Salt:          salt,
			Maker:         c.maker.Hex(),
			Signer:        c.signer.Hex(),
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       tokenID,
			MakerAmount:   makerRaw.String(),
			TakerAmount:   takerRaw.String(),
			Expiration:    "0",
			Nonce:         "0",
			FeeRateBps:    strconv.Itoa(signing.FeeRateBps),
			Side:          side,
			SignatureType: int(c.sigType),
			Signature:     sig,
		},
		Owner:     c.creds.Key,
		OrderType: types.OrderTypeFOK,
		PostOnly:  false,
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化订单失败: %w", err)
	}
	body := string(bodyBytes)

	headers := c.l2Headers("POST", EndpointPostOrder, &body)

	resp, err := c.clob.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(EndpointPostOrder)
	if err != nil {
		return nil, fmt.Errorf("提交订单失败: %w", err)
	}

	result := &types.OrderResult{
		ActualAmount: size * limit,
		ActualSize:   size,
		LimitPrice:   limit,
	}

	if !resp.IsSuccess() {
		result.Success = false
		result.ErrMsg = string(resp.Body())
		logger.Warnf("下单被拒 (%d): %s", resp.StatusCode(), result.ErrMsg)
		return result, nil
	}

	var out types.PostOrderResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("解析下单响应失败: %w", err)
	}

	result.Success = out.Success
	result.OrderID = out.OrderID
	result.Status = out.Status
	result.ErrMsg = out.ErrorMsg
	return result, nil
}

// GetOrderBook 获取订单簿
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	resp, err := c.clob.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		Get(EndpointGetOrderBook)
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("获取订单簿失败: %w", err)
	}

	var book types.OrderBookSummary
	if err := json.Unmarshal(resp.Body(), &book); err != nil {
		return nil, fmt.Errorf("解析订单簿失败: %w", err)
	}
	return &book, nil
}

// GetBalanceAllowance 查询余额与授权
// 冷路径（10s 级同步循环），L2 头走通用构建而不是下单热路径
func (c *Client) GetBalanceAllowance(ctx context.Context, params types.BalanceAllowanceParams) (*types.BalanceAllowanceResponse, error) {
	if !c.CanTrade() {
		return nil, fmt.Errorf("客户端未配置签名凭证")
	}

	headers, err := signing.CreateL2Headers(c.privateKey, &c.creds, &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: EndpointBalanceAllowance,
	}, nil)
	if err != nil {
		return nil, err
	}

	sigType := c.sigType
	if params.SignatureType != nil {
		sigType = *params.SignatureType
	}

	req := c.clob.R().
		SetContext(ctx).
		SetHeaders(headers.Map()).
		SetQueryParam("asset_type", string(params.AssetType)).
		SetQueryParam("signature_type", strconv.Itoa(int(sigType)))
	if params.TokenID != nil {
		req.SetQueryParam("token_id", *params.TokenID)
	}

	resp, err := req.Get(EndpointBalanceAllowance)
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}

	var out types.BalanceAllowanceResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("解析余额响应失败: %w", err)
	}
	return &out, nil
}

// GetCollateralBalance 查询链上 USDC 余额
// 余额字段可能是微单位原始值或十进制值，>1_000_000 按微单位解释
func (c *Client) GetCollateralBalance(ctx context.Context) (float64, error) {
	out, err := c.GetBalanceAllowance(ctx, types.BalanceAllowanceParams{
		AssetType: types.AssetTypeCollateral,
	})
	if err != nil {
		return 0, err
	}

	raw, err := strconv.ParseFloat(out.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("无效的余额值 %q: %w", out.Balance, err)
	}
	if raw > 1_000_000 {
		return raw / 1e6, nil
	}
	return raw, nil
}
