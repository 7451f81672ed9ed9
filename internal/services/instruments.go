package services

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/swapbot/goswap/internal/domain"
	"github.com/swapbot/goswap/internal/exchange"
)

var registryLog = logrus.WithField("component", "instrument_registry")

// InstrumentRegistry 合约元数据注册表
// 启动时整体加载一次，交易循环期间只读；刷新是全量替换，不做增量合并
type InstrumentRegistry struct {
	ex exchange.Exchange

	mu          sync.RWMutex
	instruments map[string]domain.Instrument
}

// NewInstrumentRegistry 创建合约注册表
func NewInstrumentRegistry(ex exchange.Exchange) *InstrumentRegistry {
	return &InstrumentRegistry{
		ex:          ex,
		instruments: make(map[string]domain.Instrument),
	}
}

// Refresh 拉取指定类型的全部合约并原子替换注册表内容
// 响应为空或结构异常时返回 ErrDataUnavailable，保持旧内容不变
// 启动时第一次 Refresh 失败是致命的（没有元数据无法交易）
func (r *InstrumentRegistry) Refresh(ctx context.Context, instType string) error {
	registryLog.Infof("Fetching all instruments for type: %s", instType)

	list, err := r.ex.ListInstruments(ctx, instType)
	if err != nil {
		registryLog.Errorf("获取合约列表失败: %v", err)
		return err
	}
	if len(list) == 0 {
		// 空响应不算成功：保持旧内容，让调用方按数据不可用处理
		registryLog.Errorf("合约列表为空，保留原注册表内容")
		return errors.Wrapf(domain.ErrDataUnavailable, "%s 合约列表为空", instType)
	}

	next := make(map[string]domain.Instrument, len(list))
	for _, inst := range list {
		next[inst.InstID] = inst
	}

	r.mu.Lock()
	r.instruments = next
	r.mu.Unlock()

	registryLog.Infof("合约注册表已刷新: %d 个 %s", len(next), instType)
	return nil
}

// Lookup 查找合约
func (r *InstrumentRegistry) Lookup(instID string) (domain.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instruments[instID]
	return inst, ok
}

// Size 返回注册表内的合约数量
func (r *InstrumentRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instruments)
}
