package client

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// newRestyClient 构建基础 resty 客户端
// retryCount 仅用于目录/兜底请求；下单热路径必须传 0，FOK 重试由扫描器控制
func newRestyClient(baseURL string, timeout time.Duration, retryCount int) *resty.Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "btc-sniper/1.0")

	if retryCount > 0 {
		c.SetRetryCount(retryCount).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
				// 429 限流时优先使用 Retry-After 头
				if resp.StatusCode() == 429 {
					if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
						if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
							return d, nil
						}
					}
					return 5 * time.Second, nil
				}
				return 0, nil
			})
	}

	return c
}

// checkResponse 非 2xx 响应转换为错误
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	var body any
	b := resp.Body()
	_ = json.Unmarshal(b, &body)
	if body == nil {
		body = string(b)
	}
	return errors.Errorf("http non-2xx (%d): %v", resp.StatusCode(), body)
}
