package syncgroup

import (
	"sync"
)

type unitFunc func()

// SyncGroup 是 sync.WaitGroup 的包装器，用于一批 goroutine 的 fan-out/join。
// 自动管理 Add() 和 Done()，减少遗漏 Done() 的风险。
// 调度器按批次使用：Add 本批所有单元 -> Run -> WaitAndClear，然后进入下一批。
type SyncGroup struct {
	wg sync.WaitGroup

	mu           sync.Mutex
	units        []unitFunc
	hasRun       bool
	runningCount int
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 添加一个单元函数
// 注意：Add() 应该在 Run() 之前调用；上一批未 WaitAndClear() 之前不允许加入新单元
func (g *SyncGroup) Add(fn unitFunc) {
	if fn == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hasRun && g.runningCount > 0 {
		// 上一批还在运行，跳过（调用方必须先 WaitAndClear）
		return
	}

	g.units = append(g.units, fn)
}

// Run 启动所有已添加的单元，每个单元一个 goroutine
func (g *SyncGroup) Run() {
	g.mu.Lock()

	if g.hasRun && g.runningCount > 0 {
		g.mu.Unlock()
		return
	}

	fns := g.units
	g.units = nil
	g.hasRun = true
	g.runningCount = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(doFunc unitFunc) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.runningCount--
				g.mu.Unlock()
			}()
			doFunc()
		}(fn)
	}
}

// WaitAndClear 等待本批所有单元完成并复位，之后可以开始下一批
func (g *SyncGroup) WaitAndClear() {
	g.wg.Wait()

	g.mu.Lock()
	g.units = nil
	g.hasRun = false
	g.runningCount = 0
	g.mu.Unlock()
}

// Wait 等待所有单元完成（不复位）
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}
