package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/pkg/config"
)

func schedulerConfig(t *testing.T, batchSize int, instIDs ...string) *config.Config {
	t.Helper()
	pairs := make(map[string]*config.PairConfig, len(instIDs))
	for _, id := range instIDs {
		pairs[id] = &config.PairConfig{}
	}
	cfg := &config.Config{
		MonitorInterval: 3600, // 测试内只跑一轮
		BatchSize:       batchSize,
		TradingPairs:    pairs,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config validate: %v", err)
	}
	return cfg
}

func startScheduler(t *testing.T, fake *fakeExchange, cfg *config.Config) (*Scheduler, *fakeNotifier, context.CancelFunc, chan error) {
	t.Helper()
	registry := NewInstrumentRegistry(fake)
	notifier := &fakeNotifier{}
	trading := NewTradingService(fake, registry, NewMarketDataService(fake), notifier, cfg.Leverage)
	sched := NewScheduler(cfg, trading, registry, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	return sched, notifier, cancel, done
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("条件在超时前未满足")
}

// 批内并发不超过 batch_size，单元故障互不影响，缺失合约被剔除并告警
func TestSchedulerCycle(t *testing.T) {
	ids := []string{
		"BTC-USDT-SWAP", "ETH-USDT-SWAP", "SOL-USDT-SWAP",
		"XRP-USDT-SWAP", "DOGE-USDT-SWAP", "BAD-USDT-SWAP",
	}
	fake := newFakeExchange()
	for _, id := range ids {
		fake.instruments = append(fake.instruments, domain.Instrument{
			InstID: id, TickSize: decimal.RequireFromString("0.1"),
		})
	}
	fake.candles = flatWindow(61, 100)
	fake.priceDelay = 20 * time.Millisecond
	fake.failPriceFor["BAD-USDT-SWAP"] = true

	// 配置里多一个注册表中不存在的合约
	cfg := schedulerConfig(t, 3, append(ids, "MISSING-USDT-SWAP")...)
	sched, notifier, cancel, done := startScheduler(t, fake, cfg)
	defer cancel()

	waitFor(t, 5*time.Second, func() bool { return len(sched.Snapshot()) == len(ids) })

	// 并发上界：每批最多 batch_size 个单元同时在飞
	fake.mu.Lock()
	maxInFlight := fake.maxInFlight
	fake.mu.Unlock()
	if maxInFlight > cfg.BatchSize {
		t.Fatalf("并发超出批大小: maxInFlight=%d batch_size=%d", maxInFlight, cfg.BatchSize)
	}

	// 缺失合约：启动时剔除 + 告警，绝不出现在结果里
	reports := sched.Snapshot()
	for _, r := range reports {
		if r.InstID == "MISSING-USDT-SWAP" {
			t.Fatal("被剔除的合约不应出现在结果中")
		}
	}
	missingNotified := false
	for _, msg := range notifier.all() {
		if strings.Contains(msg, "MISSING-USDT-SWAP") {
			missingNotified = true
		}
	}
	if !missingNotified {
		t.Fatal("缺失合约应触发告警")
	}

	// 故障单元：自身记录错误，同批其它合约正常完成
	for _, r := range reports {
		if r.InstID == "BAD-USDT-SWAP" {
			if len(r.Errors) == 0 {
				t.Fatal("故障合约的结果应包含错误")
			}
			continue
		}
		if len(r.Errors) != 0 {
			t.Fatalf("%s 不应受故障合约影响: %v", r.InstID, r.Errors)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("取消后调度器未退出")
	}
}

// panic 在单元边界被兜住：告警、不影响同批，也不拖垮循环
func TestSchedulerUnitPanicIsolated(t *testing.T) {
	ids := []string{"BTC-USDT-SWAP", "PANIC-USDT-SWAP", "ETH-USDT-SWAP"}
	fake := newFakeExchange()
	for _, id := range ids {
		fake.instruments = append(fake.instruments, domain.Instrument{
			InstID: id, TickSize: decimal.RequireFromString("0.1"),
		})
	}
	fake.candles = flatWindow(61, 100)
	fake.panicFor["PANIC-USDT-SWAP"] = true

	cfg := schedulerConfig(t, 5, ids...)
	sched, notifier, cancel, done := startScheduler(t, fake, cfg)
	defer cancel()

	// panic 的单元不产生结果，其余两个必须完成
	waitFor(t, 5*time.Second, func() bool { return len(sched.Snapshot()) == 2 })
	waitFor(t, 5*time.Second, func() bool {
		for _, msg := range notifier.all() {
			if strings.Contains(msg, "panic") {
				return true
			}
		}
		return false
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("取消后调度器未退出")
	}
}

// 手动触发立即开始下一轮，不等监控间隔
func TestSchedulerManualKick(t *testing.T) {
	fake := newFakeExchange()
	fake.instruments = []domain.Instrument{{InstID: "BTC-USDT-SWAP", TickSize: decimal.RequireFromString("0.1")}}
	fake.candles = flatWindow(61, 100)

	cfg := schedulerConfig(t, 5, "BTC-USDT-SWAP")
	sched, _, cancel, done := startScheduler(t, fake, cfg)
	defer cancel()

	waitFor(t, 5*time.Second, func() bool { return len(sched.Snapshot()) == 1 })
	afterFirst := fake.callCount()

	sched.Kick()
	waitFor(t, 5*time.Second, func() bool { return fake.callCount() > afterFirst })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("取消后调度器未退出")
	}
}

// 启动刷新失败是唯一的致命路径
func TestSchedulerFatalOnRefreshFailure(t *testing.T) {
	fake := newFakeExchange()
	fake.listErr = context.DeadlineExceeded
	cfg := schedulerConfig(t, 5, "BTC-USDT-SWAP")

	registry := NewInstrumentRegistry(fake)
	trading := NewTradingService(fake, registry, NewMarketDataService(fake), nil, cfg.Leverage)
	sched := NewScheduler(cfg, trading, registry, nil)

	if err := sched.Run(context.Background()); err == nil {
		t.Fatal("刷新失败时 Run 应返回错误")
	}
}

func TestUnitTimeout(t *testing.T) {
	cfg := schedulerConfig(t, 5, "BTC-USDT-SWAP")
	sched := NewScheduler(cfg, nil, nil, nil)

	cfg.MonitorInterval = 60
	if got := sched.unitTimeout(); got != 30*time.Second {
		t.Fatalf("interval=60 got=%v want=30s", got)
	}
	cfg.MonitorInterval = 10
	if got := sched.unitTimeout(); got != 30*time.Second {
		t.Fatalf("下限应为 30s, got=%v", got)
	}
	cfg.MonitorInterval = 600
	if got := sched.unitTimeout(); got != 5*time.Minute {
		t.Fatalf("interval=600 got=%v want=5m", got)
	}
}
