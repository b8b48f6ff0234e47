package service

import (
	"context"
	"time"

	"WhaleSync/internal/adapter/polymarket"
	"WhaleSync/internal/interfaces"
	"WhaleSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// 回填单次运行最多翻页数，防止分页策略退化时无限翻下去
const backfillMaxPages = 200

// BackfillResult 回填运行结果摘要
type BackfillResult struct {
	Pages      int    `json:"pages"`       // 实际翻页数
	Scanned    int    `json:"scanned"`     // 扫描的原始记录数
	Saved      int    `json:"saved"`       // 入库的鲸鱼成交数
	Strategy   string `json:"strategy"`    // 最终锁定的分页策略
	OldestSeen string `json:"oldest_seen"` // 扫到的最早成交时间（RFC3339）
}

// BackfillService 历史成交回填：沿翻页器向更早翻，直到页内最早成交
// 早于截止时间或翻完/达到页数上限。入库完全复用幂等路径，可安全重跑。
type BackfillService struct {
	newPager   func() interfaces.TradePager
	tradeRepo  repository.TradeRepository
	whaleRepo  repository.WhaleRepository
	classifier *Classifier
	logger     *logrus.Logger
}

// NewBackfillService 创建回填服务。pager是一次性游标，所以注入工厂而非实例。
func NewBackfillService(
	newPager func() interfaces.TradePager,
	tradeRepo repository.TradeRepository,
	whaleRepo repository.WhaleRepository,
	classifier *Classifier,
	logger *logrus.Logger,
) *BackfillService {
	return &BackfillService{
		newPager:   newPager,
		tradeRepo:  tradeRepo,
		whaleRepo:  whaleRepo,
		classifier: classifier,
		logger:     logger,
	}
}

// Run 回填最近days天的鲸鱼成交。同步执行，由调用方决定是否放后台跑。
func (s *BackfillService) Run(ctx context.Context, days int) (*BackfillResult, error) {
	if days <= 0 {
		days = 1
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	pager := s.newPager()
	result := &BackfillResult{}
	var oldest time.Time

	s.logger.Infof("开始回填: days=%d, cutoff=%s", days, cutoff.Format(time.RFC3339))

	for result.Pages < backfillMaxPages {
		items, err := pager.Next(ctx)
		if err != nil {
			return result, err
		}
		if items == nil {
			break
		}
		result.Pages++
		result.Scanned += len(items)

		reachedCutoff := false
		for _, item := range items {
			trade, err := polymarket.NormalizeTrade(item)
			if err != nil {
				s.logger.WithError(err).Warn("回填记录解析失败，跳过")
				continue
			}
			if oldest.IsZero() || trade.Timestamp.Before(oldest) {
				oldest = trade.Timestamp
			}
			if trade.Timestamp.Before(cutoff) {
				reachedCutoff = true
				continue
			}
			if !s.classifier.IsWhale(trade.Size) {
				continue
			}
			if err := s.tradeRepo.SaveTrade(ctx, trade); err != nil {
				s.logger.WithError(err).WithField("trade_id", trade.ID).Warn("回填入库失败")
				continue
			}
			if err := s.whaleRepo.EnsureWhale(ctx, trade.TraderAddress); err != nil {
				s.logger.WithError(err).WithField("address", trade.TraderAddress).Warn("鲸鱼建档失败")
				continue
			}
			if err := s.whaleRepo.RefreshStats(ctx, trade.TraderAddress); err != nil {
				s.logger.WithError(err).WithField("address", trade.TraderAddress).Warn("鲸鱼统计刷新失败")
			}
			result.Saved++
		}

		// 整页最早成交已早于截止时间，再翻只会更早
		if reachedCutoff {
			break
		}
	}

	result.Strategy = pager.Strategy()
	if !oldest.IsZero() {
		result.OldestSeen = oldest.Format(time.RFC3339)
	}
	s.logger.Infof("回填完成: pages=%d, scanned=%d, saved=%d, strategy=%s",
		result.Pages, result.Scanned, result.Saved, result.Strategy)
	return result, nil
}
