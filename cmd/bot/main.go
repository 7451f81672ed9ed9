package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/swapbot/goswap/internal/exchange/okx"
	"github.com/swapbot/goswap/internal/notify"
	"github.com/swapbot/goswap/internal/services"
	"github.com/swapbot/goswap/internal/status"
	"github.com/swapbot/goswap/pkg/config"
	"github.com/swapbot/goswap/pkg/logger"
	"github.com/swapbot/goswap/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	envFile := flag.String("env", ".env", "环境变量文件（OKX API 凭证）")
	flag.Parse()

	// .env 不存在不算错误（凭证也可以直接来自进程环境）
	_ = godotenv.Load(*envFile)

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if cfg.OKX.APIKey == "" || cfg.OKX.SecretKey == "" || cfg.OKX.Passphrase == "" {
		logrus.Warn("OKX API 凭证不完整，私有接口调用将被交易所拒绝")
	}

	client := okx.NewClient(okx.Options{
		BaseURL:    cfg.OKX.BaseURL,
		APIKey:     cfg.OKX.APIKey,
		SecretKey:  cfg.OKX.SecretKey,
		Passphrase: cfg.OKX.Passphrase,
		Demo:       cfg.OKX.Demo,
	})

	notifier := notify.NewFeishu(cfg.FeishuWebhook)
	registry := services.NewInstrumentRegistry(client)
	marketData := services.NewMarketDataService(client)
	trading := services.NewTradingService(client, registry, marketData, notifier, cfg.Leverage)
	scheduler := services.NewScheduler(cfg, trading, registry, notifier)

	shutdownMgr := shutdown.NewManager()

	if cfg.StatusAddr != "" {
		statusSrv := status.NewServer(cfg.StatusAddr, scheduler)
		statusSrv.Start()
		shutdownMgr.OnShutdown(func(ctx context.Context) {
			statusSrv.Shutdown(ctx)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logrus.Infof("收到信号 %v，开始退出", sig)
		cancel()
	}()

	// 调度循环永不自行结束，进程崩溃由外部监管（systemd 等）重启
	if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
		msg := fmt.Sprintf("调度器启动失败: %v", err)
		logrus.Error(msg)
		notifier.Notify(msg)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	shutdownMgr.Shutdown(shutdownCtx)
}
