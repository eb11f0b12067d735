package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	clobclient "github.com/betbot/sniper/clob/client"
	"github.com/betbot/sniper/clob/types"
	"github.com/betbot/sniper/internal/balance"
	"github.com/betbot/sniper/internal/dashboard"
	"github.com/betbot/sniper/internal/ev"
	"github.com/betbot/sniper/internal/odds"
	"github.com/betbot/sniper/internal/pricefeed"
	"github.com/betbot/sniper/internal/reconcile"
	"github.com/betbot/sniper/internal/redeem"
	"github.com/betbot/sniper/internal/scanner"
	"github.com/betbot/sniper/internal/store"
	"github.com/betbot/sniper/pkg/config"
	"github.com/betbot/sniper/pkg/logger"
	"github.com/betbot/sniper/pkg/shutdown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	confPath := flag.String("c", "config.yaml", "配置文件路径")
	flag.Parse()

	// .env 可选，缺失不报错
	_ = godotenv.Load()

	if err := run(*confPath); err != nil {
		fmt.Fprintf(os.Stderr, "启动失败: %v\n", err)
		os.Exit(1)
	}
}

func run(confPath string) error {
	cfg, err := config.Load(confPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return err
	}

	mode := "LIVE"
	if cfg.Sniper.DryRun {
		mode = "DRY-RUN"
	}
	logger.Infof("===== BTC 5m 狙击引擎启动 [%s] =====", mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.Sniper.DBPath)
	if err != nil {
		return err
	}

	client, err := clobclient.New(clobclient.Config{
		ClobBaseURL:    cfg.Polymarket.ClobBaseURL,
		GammaBaseURL:   cfg.Polymarket.GammaBaseURL,
		BinanceBaseURL: cfg.Polymarket.BinanceBaseURL,
		PrivateKeyHex:  cfg.Polymarket.PrivateKey,
		Creds: types.ApiKeyCreds{
			Key:        cfg.Polymarket.APIKey,
			Secret:     cfg.Polymarket.APISecret,
			Passphrase: cfg.Polymarket.Passphrase,
		},
		Funder:  cfg.Polymarket.Funder,
		Timeout: cfg.HTTPTimeout(),
	})
	if err != nil {
		return err
	}
	if !cfg.Sniper.DryRun && !client.CanTrade() {
		return fmt.Errorf("实盘模式缺少完整下单凭证")
	}
	client.Warmup(ctx)

	// 资金
	var bal *balance.Manager
	if cfg.Sniper.DryRun {
		bal, err = balance.NewDryRun(ctx, cfg.Sniper.InitialBalance, st)
	} else {
		bal, err = balance.NewLive(ctx, client)
	}
	if err != nil {
		return err
	}
	bal.StartSyncLoop(ctx)

	// 数据面
	feed := pricefeed.New(cfg.Polymarket.OracleWSURL)
	if err := feed.Start(ctx); err != nil {
		return err
	}
	oddsSvc := odds.New(client, cfg.OddsPrefetchInterval())
	oddsSvc.Start(ctx)

	// 赎回
	var redeemer redeem.Redeemer = redeem.NoopRedeemer{}
	if !cfg.Sniper.DryRun {
		redeemer = &redeem.ScriptRedeemer{Script: cfg.Sniper.RedeemScript}
	}
	queue := redeem.NewQueue(redeemer)
	queue.Start(ctx)

	// 决策面
	calc := &ev.Calculator{
		MinBet:         cfg.Sniper.MinBet,
		MaxBet:         cfg.Sniper.MaxBet,
		InitialBalance: bal.InitialBalance(),
	}
	var exec scanner.OrderExecutor = &scanner.DryRunExecutor{}
	if !cfg.Sniper.DryRun {
		exec = &scanner.LiveExecutor{Client: client}
	}
	sc := scanner.New(scanner.Config{
		Interval: cfg.ScanInterval(),
		MinBet:   cfg.Sniper.MinBet,
		MaxBet:   cfg.Sniper.MaxBet,
		DryRun:   cfg.Sniper.DryRun,
	}, feed, oddsSvc, bal, calc, st, exec)
	sc.SetEnabled(cfg.Sniper.Enabled)
	sc.Start(ctx)

	// 对账（结算后通知扫描器刷新胜率）
	rec := reconcile.New(st, bal, feed, client, queue, sc.SettleSignal(),
		cfg.Sniper.DryRun, cfg.Polymarket.NegRisk)
	rec.Start(ctx)

	// 面板
	dash := dashboard.New(cfg.Sniper.DashboardAddr, sc)
	dash.Start()

	// 关闭顺序：先停决策面，再停数据面，最后落库
	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context, _ *sync.WaitGroup) {
		sc.Stop()
		rec.Stop()
	})
	mgr.OnShutdown(func(ctx context.Context, _ *sync.WaitGroup) {
		oddsSvc.Stop()
		feed.Stop()
		bal.Stop()
	})
	mgr.OnShutdown(func(ctx context.Context, _ *sync.WaitGroup) {
		queue.Stop()
		_ = dash.Shutdown(ctx)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("收到信号 %v，开始关闭", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	mgr.Shutdown(shutdownCtx)

	if err := st.Close(); err != nil {
		logger.Warnf("关闭数据库失败: %v", err)
	}
	logger.Info("引擎已退出")
	return nil
}
