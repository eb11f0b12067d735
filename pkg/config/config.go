package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认外部端点
const (
	DefaultClobBaseURL    = "https://clob.polymarket.com"
	DefaultGammaBaseURL   = "https://gamma-api.polymarket.com"
	DefaultOracleWSURL    = "wss://ws-live-data.polymarket.com"
	DefaultBinanceBaseURL = "https://api.binance.com"
)

// SniperConfig 引擎配置
type SniperConfig struct {
	Enabled                bool    `yaml:"enabled"`
	DryRun                 bool    `yaml:"dry-run"`
	InitialBalance         float64 `yaml:"initial-balance"`
	ScanIntervalMs         int     `yaml:"scan-interval-ms"`
	OddsPrefetchIntervalMs int     `yaml:"odds-prefetch-interval-ms"`
	HTTPTimeoutMs          int     `yaml:"http-timeout-ms"`
	MinBet                 float64 `yaml:"min-bet"`
	MaxBet                 float64 `yaml:"max-bet"`
	DBPath                 string  `yaml:"db-path"`
	DashboardAddr          string  `yaml:"dashboard-addr"`
	RedeemScript           string  `yaml:"redeem-script"`
}

// PolymarketConfig Polymarket 接入配置
type PolymarketConfig struct {
	PrivateKey     string `yaml:"private-key"`
	APIKey         string `yaml:"api-key"`
	APISecret      string `yaml:"api-secret"`
	Passphrase     string `yaml:"passphrase"`
	Funder         string `yaml:"funder"`
	ClobBaseURL    string `yaml:"clob-base-url"`
	GammaBaseURL   string `yaml:"gamma-base-url"`
	OracleWSURL    string `yaml:"oracle-ws-url"`
	BinanceBaseURL string `yaml:"binance-base-url"`
	NegRisk        bool   `yaml:"neg-risk"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output-file"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
}

// ConfigFile 顶层配置文件结构
type ConfigFile struct {
	Sniper     SniperConfig     `yaml:"sniper"`
	Polymarket PolymarketConfig `yaml:"polymarket"`
	Log        LogConfig        `yaml:"log"`
}

// Default 返回带默认值的配置
func Default() *ConfigFile {
	return &ConfigFile{
		Sniper: SniperConfig{
			Enabled:                true,
			DryRun:                 true,
			InitialBalance:         100.0,
			ScanIntervalMs:         100,
			OddsPrefetchIntervalMs: 100,
			HTTPTimeoutMs:          2000,
			MinBet:                 1.0,
			MaxBet:                 50.0,
			DBPath:                 "data/sniper.db",
			DashboardAddr:          ":8080",
		},
		Polymarket: PolymarketConfig{
			ClobBaseURL:    DefaultClobBaseURL,
			GammaBaseURL:   DefaultGammaBaseURL,
			OracleWSURL:    DefaultOracleWSURL,
			BinanceBaseURL: DefaultBinanceBaseURL,
		},
		Log: LogConfig{
			Level:      "info",
			OutputFile: "logs/sniper.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 加载配置：默认值 <- yaml 文件（可选）<- 环境变量
func Load(path string) (*ConfigFile, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
			// 文件不存在时只用默认值 + 环境变量
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖（环境变量优先级最高）
func (c *ConfigFile) applyEnv() {
	setBoolEnv("SNIPER_ENABLED", &c.Sniper.Enabled)
	setBoolEnv("SNIPER_DRY_RUN", &c.Sniper.DryRun)
	setFloatEnv("SNIPER_INITIAL_BALANCE", &c.Sniper.InitialBalance)
	setIntEnv("SNIPER_SCAN_INTERVAL_MS", &c.Sniper.ScanIntervalMs)
	setIntEnv("SNIPER_ODDS_PREFETCH_INTERVAL_MS", &c.Sniper.OddsPrefetchIntervalMs)
	setIntEnv("SNIPER_HTTP_TIMEOUT_MS", &c.Sniper.HTTPTimeoutMs)
	setFloatEnv("SNIPER_MIN_BET", &c.Sniper.MinBet)
	setFloatEnv("SNIPER_MAX_BET", &c.Sniper.MaxBet)
	setStringEnv("SNIPER_DB_PATH", &c.Sniper.DBPath)
	setStringEnv("SNIPER_DASHBOARD_ADDR", &c.Sniper.DashboardAddr)
	setStringEnv("SNIPER_REDEEM_SCRIPT", &c.Sniper.RedeemScript)

	setStringEnv("POLYMARKET_PRIVATE_KEY", &c.Polymarket.PrivateKey)
	setStringEnv("POLYMARKET_API_KEY", &c.Polymarket.APIKey)
	setStringEnv("POLYMARKET_API_SECRET", &c.Polymarket.APISecret)
	setStringEnv("POLYMARKET_PASSPHRASE", &c.Polymarket.Passphrase)
	setStringEnv("POLYMARKET_FUNDER", &c.Polymarket.Funder)
	setStringEnv("POLYMARKET_CLOB_URL", &c.Polymarket.ClobBaseURL)
	setStringEnv("POLYMARKET_GAMMA_URL", &c.Polymarket.GammaBaseURL)
	setStringEnv("POLYMARKET_ORACLE_WS_URL", &c.Polymarket.OracleWSURL)
	setBoolEnv("POLYMARKET_NEG_RISK", &c.Polymarket.NegRisk)

	setStringEnv("SNIPER_LOG_LEVEL", &c.Log.Level)
	setStringEnv("SNIPER_LOG_FILE", &c.Log.OutputFile)
}

// Validate 校验配置
func (c *ConfigFile) Validate() error {
	if c.Sniper.ScanIntervalMs <= 0 {
		return fmt.Errorf("sniper.scan-interval-ms 必须为正数: %d", c.Sniper.ScanIntervalMs)
	}
	if c.Sniper.OddsPrefetchIntervalMs <= 0 {
		return fmt.Errorf("sniper.odds-prefetch-interval-ms 必须为正数: %d", c.Sniper.OddsPrefetchIntervalMs)
	}
	if c.Sniper.HTTPTimeoutMs <= 0 {
		return fmt.Errorf("sniper.http-timeout-ms 必须为正数: %d", c.Sniper.HTTPTimeoutMs)
	}
	if c.Sniper.MinBet <= 0 || c.Sniper.MaxBet < c.Sniper.MinBet {
		return fmt.Errorf("无效的下注区间: min=%.2f max=%.2f", c.Sniper.MinBet, c.Sniper.MaxBet)
	}
	if !c.Sniper.DryRun {
		// 实盘模式必须提供完整凭证
		if c.Polymarket.PrivateKey == "" {
			return fmt.Errorf("实盘模式需要 POLYMARKET_PRIVATE_KEY")
		}
		if c.Polymarket.APIKey == "" || c.Polymarket.APISecret == "" || c.Polymarket.Passphrase == "" {
			return fmt.Errorf("实盘模式需要完整的 L2 API 凭证")
		}
	}
	return nil
}

// HTTPTimeout 热路径 HTTP 超时
func (c *ConfigFile) HTTPTimeout() time.Duration {
	return time.Duration(c.Sniper.HTTPTimeoutMs) * time.Millisecond
}

// ScanInterval 扫描间隔
func (c *ConfigFile) ScanInterval() time.Duration {
	return time.Duration(c.Sniper.ScanIntervalMs) * time.Millisecond
}

// OddsPrefetchInterval 赔率预取间隔
func (c *ConfigFile) OddsPrefetchInterval() time.Duration {
	return time.Duration(c.Sniper.OddsPrefetchIntervalMs) * time.Millisecond
}

func setStringEnv(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBoolEnv(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setIntEnv(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloatEnv(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
