package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if !cfg.Sniper.DryRun {
		t.Fatalf("默认必须是 dry-run")
	}
	if cfg.ScanInterval() != 100*time.Millisecond {
		t.Fatalf("扫描间隔 got=%v", cfg.ScanInterval())
	}
	if cfg.HTTPTimeout() != 2*time.Second {
		t.Fatalf("HTTP 超时 got=%v", cfg.HTTPTimeout())
	}
	if cfg.Polymarket.ClobBaseURL != DefaultClobBaseURL {
		t.Fatalf("clob url got=%s", cfg.Polymarket.ClobBaseURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("默认配置应通过校验: %v", err)
	}
}

func TestLoadYamlAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
sniper:
  min-bet: 2
  max-bet: 20
  scan-interval-ms: 50
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("写配置失败: %v", err)
	}

	// 环境变量优先级最高
	t.Setenv("SNIPER_MAX_BET", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Sniper.MinBet != 2 {
		t.Fatalf("yaml 未生效: min-bet=%.0f", cfg.Sniper.MinBet)
	}
	if cfg.Sniper.MaxBet != 30 {
		t.Fatalf("env 覆盖失败: max-bet=%.0f", cfg.Sniper.MaxBet)
	}
	if cfg.ScanInterval() != 50*time.Millisecond {
		t.Fatalf("扫描间隔 got=%v", cfg.ScanInterval())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("缺失文件应回退默认: %v", err)
	}
	if cfg.Sniper.MaxBet != 50 {
		t.Fatalf("默认 max-bet got=%.0f", cfg.Sniper.MaxBet)
	}
}

// 实盘模式必须带全凭证
func TestValidateLiveRequiresCreds(t *testing.T) {
	cfg := Default()
	cfg.Sniper.DryRun = false
	if err := cfg.Validate(); err == nil {
		t.Fatalf("无凭证实盘应报错")
	}

	cfg.Polymarket.PrivateKey = "0xabc"
	cfg.Polymarket.APIKey = "k"
	cfg.Polymarket.APISecret = "s"
	cfg.Polymarket.Passphrase = "p"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("完整凭证应通过: %v", err)
	}
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cfg := Default()
	cfg.Sniper.ScanIntervalMs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("零扫描间隔应报错")
	}

	cfg = Default()
	cfg.Sniper.MinBet = 10
	cfg.Sniper.MaxBet = 5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("min>max 应报错")
	}
}
