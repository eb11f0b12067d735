package odds

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	clobclient "github.com/betbot/sniper/clob/client"
	"github.com/betbot/sniper/clob/types"
	"github.com/betbot/sniper/internal/domain"
	"github.com/betbot/sniper/pkg/logger"
)

// minAskDepth 有效买一档的最小挂单量（token）
const minAskDepth = 5.0

// Service 赔率预取服务
// 预取循环是唯一写者；快照整体替换，slug 切换先清空再读
type Service struct {
	client   *clobclient.Client
	interval time.Duration

	snapshot atomic.Pointer[domain.MarketOdds]
	slug     atomic.Pointer[string]

	lastFetchMs atomic.Int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New 创建赔率服务
func New(c *clobclient.Client, interval time.Duration) *Service {
	s := &Service{
		client:   c,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	empty := ""
	s.slug.Store(&empty)
	return s
}

// Start 启动预取循环
func (s *Service) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop 停止预取
func (s *Service) Stop() {
	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(3 * time.Second):
	}
}

// GetOdds 当前快照（首个成功前为 nil），永不阻塞
func (s *Service) GetOdds() *domain.MarketOdds {
	return s.snapshot.Load()
}

// CurrentSlug 当前窗口 slug
func (s *Service) CurrentSlug() string {
	return *s.slug.Load()
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.prefetch(ctx)
		}
	}
}

func (s *Service) prefetch(ctx context.Context) {
	slug := domain.Slug(time.Now())

	// slug 翻转：先失效缓存，再尝试取新窗口
	if prev := *s.slug.Load(); prev != slug {
		s.snapshot.Store(nil)
		s.slug.Store(&slug)
		if prev != "" {
			logger.Debugf("窗口切换: %s -> %s", prev, slug)
		}
	}

	start := time.Now()
	snap, err := s.fetch(ctx, slug)
	if err != nil {
		// 保留旧快照：准确优先于新鲜，绝不用目录价兜底
		logger.Debugf("赔率预取失败: %v", err)
		return
	}
	snap.FetchDurationMs = time.Since(start).Milliseconds()
	s.snapshot.Store(snap)
	s.lastFetchMs.Store(time.Now().UnixMilli())
}

func (s *Service) fetch(ctx context.Context, slug string) (*domain.MarketOdds, error) {
	event, err := s.client.GetEventBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if len(event.Markets) == 0 {
		return nil, fmt.Errorf("事件无市场: %s", slug)
	}
	market := &event.Markets[0]

	upToken, downToken, err := clobclient.ParseClobTokenIDs(market)
	if err != nil {
		return nil, err
	}

	upAsk, err := s.fetchBestAsk(ctx, upToken)
	if err != nil {
		return nil, err
	}
	downAsk, err := s.fetchBestAsk(ctx, downToken)
	if err != nil {
		return nil, err
	}

	return &domain.MarketOdds{
		UpPrice:     upAsk,
		DownPrice:   downAsk,
		ConditionID: market.ConditionID,
		UpTokenID:   upToken,
		DownTokenID: downToken,
	}, nil
}

// fetchBestAsk 订单簿中价格最低、挂单量 ≥5 token 的卖单
func (s *Service) fetchBestAsk(ctx context.Context, tokenID string) (float64, error) {
	book, err := s.client.GetOrderBook(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return BestAsk(book.Asks)
}

// BestAsk 先取满足深度约束的最低卖价，再整体校验
// 最优价落在 0.01 / 0.99 说明市场已定局，整个快照作废而不是顺延次优价
func BestAsk(asks []types.OrderSummary) (float64, error) {
	best := 0.0
	found := false
	for _, a := range asks {
		price, err := strconv.ParseFloat(a.Price, 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(a.Size, 64)
		if err != nil {
			continue
		}
		if size < minAskDepth {
			continue
		}
		if !found || price < best {
			best = price
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("订单簿无满足深度的卖单")
	}
	if !validAsk(best) {
		return 0, fmt.Errorf("最优卖价 %.2f 处于结算边缘", best)
	}
	return best, nil
}

func validAsk(p float64) bool {
	return p > 0.01 && p < 0.99
}
