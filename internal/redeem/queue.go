package redeem

import (
	"context"
	"sync"

	"github.com/betbot/sniper/pkg/logger"
	"github.com/betbot/sniper/pkg/syncgroup"
)

const queueDepth = 32

type job struct {
	conditionID string
	negRisk     bool
}

// Queue 单消费者异步赎回队列
// 赎回是链上慢操作，排队执行避免阻塞对账循环
type Queue struct {
	redeemer Redeemer
	jobs     chan job
	stopCh   chan struct{}
	stopOnce sync.Once
	workers  syncgroup.SyncGroup
}

// NewQueue 创建队列
func NewQueue(r Redeemer) *Queue {
	return &Queue{
		redeemer: r,
		jobs:     make(chan job, queueDepth),
		stopCh:   make(chan struct{}),
	}
}

// Start 启动消费者
func (q *Queue) Start(ctx context.Context) {
	q.workers.Run(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stopCh:
				return
			case j := <-q.jobs:
				res := q.redeemer.Redeem(ctx, j.conditionID, j.negRisk)
				switch res.Status {
				case StatusSuccess:
					logger.Infof("赎回成功: condition=%s tx=%s", j.conditionID, res.TxHash)
				case StatusSkipped:
					logger.Debugf("赎回跳过: condition=%s (%s)", j.conditionID, res.Message)
				default:
					logger.Warnf("赎回失败: condition=%s %s", j.conditionID, res.Message)
				}
			}
		}
	})
}

// Enqueue 非阻塞入队；队列满时丢弃并返回 false（赎回可以靠下次赢单或人工补）
func (q *Queue) Enqueue(conditionID string, negRisk bool) bool {
	select {
	case q.jobs <- job{conditionID: conditionID, negRisk: negRisk}:
		return true
	default:
		logger.Warnf("赎回队列已满，丢弃: %s", conditionID)
		return false
	}
}

// Stop 停止消费者并等待当前任务结束
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.workers.Wait()
}
