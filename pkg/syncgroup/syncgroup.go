package syncgroup

import "sync"

// SyncGroup 包装 sync.WaitGroup，用于跟踪后台 goroutine
type SyncGroup struct {
	wg sync.WaitGroup
}

// Add 增加计数
func (g *SyncGroup) Add(delta int) {
	g.wg.Add(delta)
}

// Done 减少计数
func (g *SyncGroup) Done() {
	g.wg.Done()
}

// Run 启动一个被跟踪的 goroutine
func (g *SyncGroup) Run(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait 等待所有 goroutine 结束
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}
