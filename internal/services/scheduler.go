package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/swapbot/goswap/pkg/config"
	"github.com/swapbot/goswap/pkg/sigchan"
	"github.com/swapbot/goswap/pkg/syncgroup"
)

var schedulerLog = logrus.WithField("component", "scheduler")

// Scheduler 按固定间隔驱动所有合约的处理循环
// 启动流程：刷新合约注册表（失败即致命）-> 校验交易集 -> 永久循环：
// 按 batch_size 分批，批内并发，批间严格串行，整轮结束后休眠 monitor_interval
type Scheduler struct {
	cfg      *config.Config
	trading  *TradingService
	registry *InstrumentRegistry
	notifier Notifier

	instIDs []string // 启动校验后的交易集（稳定排序）
	kick    *sigchan.Chan

	mu          sync.RWMutex
	lastReports map[string]CycleReport
}

// NewScheduler 创建调度器
func NewScheduler(cfg *config.Config, trading *TradingService, registry *InstrumentRegistry, notifier Notifier) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		trading:     trading,
		registry:    registry,
		notifier:    notifier,
		kick:        sigchan.New(1),
		lastReports: make(map[string]CycleReport),
	}
}

// Run 执行启动流程并进入循环，阻塞直到 ctx 取消
// 注册表刷新失败是唯一的致命路径：没有合约元数据无法交易
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.registry.Refresh(ctx, "SWAP"); err != nil {
		return errors.Wrap(err, "启动时刷新合约注册表失败")
	}

	// 配置里引用的合约必须都在注册表中，缺失的从交易集中剔除
	ids := s.cfg.InstIDs()
	sort.Strings(ids)
	valid := ids[:0]
	for _, instID := range ids {
		if _, ok := s.registry.Lookup(instID); !ok {
			msg := fmt.Sprintf("%s 不在合约注册表中，已从交易集剔除", instID)
			schedulerLog.Error(msg)
			s.notify(msg)
			continue
		}
		valid = append(valid, instID)
	}
	if len(valid) == 0 {
		return errors.New("没有可交易的合约")
	}
	s.instIDs = valid

	interval := time.Duration(s.cfg.MonitorInterval) * time.Second
	schedulerLog.Infof("调度器启动: %d 个合约, batch_size=%d, 间隔 %s", len(s.instIDs), s.cfg.BatchSize, interval)

	for {
		s.runCycle(ctx)

		select {
		case <-ctx.Done():
			schedulerLog.Info("调度器退出")
			return ctx.Err()
		case <-s.kick.C():
			schedulerLog.Info("收到手动触发，立即开始下一轮")
		case <-time.After(interval):
		}
	}
}

// runCycle 一个完整周期：所有合约按批次处理，批内并发，批间等待
func (s *Scheduler) runCycle(ctx context.Context) {
	batchSize := s.cfg.BatchSize
	for i := 0; i < len(s.instIDs); i += batchSize {
		if ctx.Err() != nil {
			return
		}
		end := i + batchSize
		if end > len(s.instIDs) {
			end = len(s.instIDs)
		}
		batch := s.instIDs[i:end]

		sg := syncgroup.NewSyncGroup()
		for _, instID := range batch {
			id := instID
			sg.Add(func() { s.runUnit(ctx, id) })
		}
		sg.Run()
		sg.WaitAndClear()
	}
}

// runUnit 一个合约的独立处理单元
// 错误和 panic 都在这里兜住：记日志 + 外部告警，绝不影响同批其它合约或后续批次
func (s *Scheduler) runUnit(ctx context.Context, instID string) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Error processing %s: panic: %v", instID, r)
			schedulerLog.Error(msg)
			s.notify(msg)
		}
	}()

	unitCtx, cancel := context.WithTimeout(ctx, s.unitTimeout())
	defer cancel()

	pc := s.cfg.TradingPairs[instID]
	report, err := s.trading.ProcessInstrument(unitCtx, instID, pc)
	if err != nil {
		msg := fmt.Sprintf("Error processing %s: %v", instID, err)
		schedulerLog.Error(msg)
		s.notify(msg)
		report.Errors = append(report.Errors, err.Error())
	}

	s.mu.Lock()
	s.lastReports[instID] = report
	s.mu.Unlock()
}

// unitTimeout 单个合约处理的硬超时：半个监控间隔，最少 30 秒
func (s *Scheduler) unitTimeout() time.Duration {
	t := time.Duration(s.cfg.MonitorInterval) * time.Second / 2
	if t < 30*time.Second {
		t = 30 * time.Second
	}
	return t
}

func (s *Scheduler) notify(msg string) {
	if s.notifier != nil {
		s.notifier.Notify(msg)
	}
}

// Kick 请求立即开始下一轮（非阻塞，供状态服务调用）
func (s *Scheduler) Kick() {
	s.kick.Emit()
}

// Snapshot 返回每个合约最近一轮的处理结果（按合约 ID 排序的副本）
func (s *Scheduler) Snapshot() []CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CycleReport, 0, len(s.lastReports))
	for _, report := range s.lastReports {
		out = append(out, report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstID < out[j].InstID })
	return out
}
