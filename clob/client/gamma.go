package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/betbot/sniper/clob/types"
)

// GetEventBySlug 按 slug 查询事件目录
// 返回第一个匹配事件；未找到返回错误
func (c *Client) GetEventBySlug(ctx context.Context, slug string) (*types.GammaEvent, error) {
	if err := c.gammaLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("限流等待失败: %w", err)
	}

	resp, err := c.gamma.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		Get(EndpointGammaEvents)
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("查询事件失败: %w", err)
	}

	var events []types.GammaEvent
	if err := json.Unmarshal(resp.Body(), &events); err != nil {
		return nil, fmt.Errorf("解析事件响应失败: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("未找到事件: %s", slug)
	}
	return &events[0], nil
}

// GetMarketByCondition 按 conditionId 查询单个市场
func (c *Client) GetMarketByCondition(ctx context.Context, conditionID string) (*types.GammaMarket, error) {
	if err := c.gammaLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("限流等待失败: %w", err)
	}

	resp, err := c.gamma.R().
		SetContext(ctx).
		Get(EndpointGammaMarkets + "/" + conditionID)
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("查询市场失败: %w", err)
	}

	var market types.GammaMarket
	if err := json.Unmarshal(resp.Body(), &market); err != nil {
		return nil, fmt.Errorf("解析市场响应失败: %w", err)
	}
	return &market, nil
}

// ParseClobTokenIDs 解析字符串编码的 token 数组，返回 [up, down]
func ParseClobTokenIDs(m *types.GammaMarket) (string, string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return "", "", fmt.Errorf("解析 clobTokenIds 失败: %w", err)
	}
	if len(ids) < 2 {
		return "", "", fmt.Errorf("clobTokenIds 数量不足: %d", len(ids))
	}
	return ids[0], ids[1], nil
}

// ParseOutcomePrices 解析字符串编码的结果价格数组
func ParseOutcomePrices(m *types.GammaMarket) ([]float64, error) {
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil {
		return nil, fmt.Errorf("解析 outcomePrices 失败: %w", err)
	}
	prices := make([]float64, 0, len(raw))
	for _, s := range raw {
		var f float64
		if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
			return nil, fmt.Errorf("无效的价格 %q: %w", s, err)
		}
		prices = append(prices, f)
	}
	return prices, nil
}
