package scanner

import (
	"context"

	"github.com/google/uuid"

	clobclient "github.com/betbot/sniper/clob/client"
	"github.com/betbot/sniper/clob/types"
)

// OrderExecutor 下单能力抽象（实盘 / dry-run）
type OrderExecutor interface {
	Place(ctx context.Context, tokenID string, amount, price float64, side types.Side, retryCount int) (*types.OrderResult, error)
}

// LiveExecutor 实盘下单
type LiveExecutor struct {
	Client *clobclient.Client
}

// Place 提交真实 FOK 订单
func (e *LiveExecutor) Place(ctx context.Context, tokenID string, amount, price float64, side types.Side, retryCount int) (*types.OrderResult, error) {
	return e.Client.PlaceOrder(ctx, tokenID, amount, price, side, retryCount)
}

// DryRunExecutor 模拟下单：与实盘相同的限价/数量换算，总是成交
type DryRunExecutor struct{}

// Place 生成模拟成交结果
func (e *DryRunExecutor) Place(_ context.Context, _ string, amount, price float64, side types.Side, retryCount int) (*types.OrderResult, error) {
	limit := clobclient.LimitPrice(price, side, retryCount)
	size := clobclient.OrderSize(amount, limit)
	return &types.OrderResult{
		Success:      true,
		OrderID:      "dry-" + uuid.NewString(),
		Status:       types.OrderStatusMatched,
		ActualAmount: size * limit,
		ActualSize:   size,
		LimitPrice:   limit,
	}, nil
}
