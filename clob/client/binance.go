package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// GetBTCCloseAt 查询指定 5 分钟 K 线的收盘价（结算展示价兜底）
// startMs 为 K 线起始毫秒时间戳
func (c *Client) GetBTCCloseAt(ctx context.Context, startMs int64) (float64, error) {
	resp, err := c.binance.R().
		SetContext(ctx).
		SetQueryParam("symbol", "BTCUSDT").
		SetQueryParam("interval", "5m").
		SetQueryParam("startTime", strconv.FormatInt(startMs, 10)).
		SetQueryParam("limit", "1").
		Get(EndpointBinanceKlines)
	if err := checkResponse(resp, err); err != nil {
		return 0, fmt.Errorf("查询K线失败: %w", err)
	}

	// 响应形如 [[openTime, open, high, low, close, ...]]
	var klines [][]any
	if err := json.Unmarshal(resp.Body(), &klines); err != nil {
		return 0, fmt.Errorf("解析K线失败: %w", err)
	}
	if len(klines) == 0 || len(klines[0]) < 5 {
		return 0, fmt.Errorf("K线为空")
	}
	closeStr, ok := klines[0][4].(string)
	if !ok {
		return 0, fmt.Errorf("无效的收盘价类型")
	}
	closePrice, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return 0, fmt.Errorf("无效的收盘价 %q: %w", closeStr, err)
	}
	return closePrice, nil
}
