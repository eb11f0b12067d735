package client

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/betbot/sniper/clob/signing"
	"github.com/betbot/sniper/clob/types"
	"github.com/betbot/sniper/pkg/logger"
)

// Config 客户端配置
type Config struct {
	ClobBaseURL    string
	GammaBaseURL   string
	BinanceBaseURL string

	// 签名配置（只读用途可留空）
	PrivateKeyHex string
	Creds         types.ApiKeyCreds
	Funder        string // 代理钱包地址；为空则 maker = signer

	Timeout time.Duration // 热路径超时
}

// Client Polymarket CLOB / Gamma / Binance 访问层
type Client struct {
	clob    *resty.Client
	gamma   *resty.Client
	binance *resty.Client

	privateKey *ecdsa.PrivateKey
	creds      types.ApiKeyCreds
	hmacKey    []byte

	signer  common.Address
	maker   common.Address
	sigType types.SignatureType
	hasher  *signing.OrderHasher

	// Gamma 目录限流（预取循环 + 对账共用）
	gammaLimiter *rate.Limiter
}

// New 创建客户端
// 未提供私钥时为只读客户端：下单与余额查询会返回错误
func New(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	c := &Client{
		clob:         newRestyClient(cfg.ClobBaseURL, timeout, 0),
		gamma:        newRestyClient(cfg.GammaBaseURL, 5*time.Second, 2),
		binance:      newRestyClient(cfg.BinanceBaseURL, 5*time.Second, 2),
		creds:        cfg.Creds,
		gammaLimiter: rate.NewLimiter(rate.Limit(20), 40),
	}

	if cfg.PrivateKeyHex != "" {
		pk, err := signing.PrivateKeyFromHex(cfg.PrivateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("解析私钥失败: %w", err)
		}
		c.privateKey = pk
		c.signer = signing.GetAddressFromPrivateKey(pk)

		// funder 存在时走代理钱包签名
		if cfg.Funder != "" {
			c.maker = common.HexToAddress(cfg.Funder)
			c.sigType = types.SignatureTypeProxy
		} else {
			c.maker = c.signer
			c.sigType = types.SignatureTypeEOA
		}
		c.hasher = signing.NewOrderHasher(c.maker, c.signer, int(c.sigType), int64(types.ChainPolygon))

		if cfg.Creds.Secret != "" {
			keyData, err := signing.DecodeApiSecret(cfg.Creds.Secret)
			if err != nil {
				return nil, err
			}
			c.hmacKey = keyData
		}
	}

	return c, nil
}

// CanTrade 是否具备下单能力
func (c *Client) CanTrade() bool {
	return c.privateKey != nil && c.hmacKey != nil && c.creds.Key != ""
}

// SignerAddress 签名地址
func (c *Client) SignerAddress() common.Address {
	return c.signer
}

// MakerAddress 资金地址
func (c *Client) MakerAddress() common.Address {
	return c.maker
}

// SigType 签名类型
func (c *Client) SigType() types.SignatureType {
	return c.sigType
}

// Warmup 预热 HTTPS 连接池，降低首单延迟
func (c *Client) Warmup(ctx context.Context) {
	resp, err := c.clob.R().SetContext(ctx).Get(EndpointTime)
	if err != nil {
		logger.Debugf("连接预热失败: %v", err)
		return
	}
	logger.Debugf("连接预热完成: status=%d", resp.StatusCode())
}

// l2Headers 构建 L2 认证头（下单热路径复用已解码的 HMAC 密钥）
func (c *Client) l2Headers(method, path string, body *string) map[string]string {
	ts := time.Now().Unix()
	sig := signing.HmacSign(c.hmacKey, ts, method, path, body)
	h := &types.L2PolyHeader{
		PolyAddress:    c.signer.Hex(),
		PolySignature:  sig,
		PolyTimestamp:  fmt.Sprintf("%d", ts),
		PolyAPIKey:     c.creds.Key,
		PolyPassphrase: c.creds.Passphrase,
	}
	return h.Map()
}
