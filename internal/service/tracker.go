package service

import (
	"context"
	"time"

	"WhaleSync/internal/adapter/polymarket"
	"WhaleSync/internal/config"
	"WhaleSync/internal/dedupe"
	"WhaleSync/internal/interfaces"
	"WhaleSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// WhaleTracker 成交轮询服务：定时拉最近成交→规范化→判定→幂等入库→刷新鲸鱼档案。
// 内存seen缓存只做快速跳过，权威去重是trades表的upsert（缓存重启即失、不跨实例）。
type WhaleTracker struct {
	source     interfaces.TradeSource
	tradeRepo  repository.TradeRepository
	whaleRepo  repository.WhaleRepository
	classifier *Classifier
	seen       *dedupe.SeenCache
	cfg        *config.TrackerConfig
	logger     *logrus.Logger
}

// NewWhaleTracker 创建成交轮询服务
func NewWhaleTracker(
	source interfaces.TradeSource,
	tradeRepo repository.TradeRepository,
	whaleRepo repository.WhaleRepository,
	classifier *Classifier,
	cfg *config.TrackerConfig,
	logger *logrus.Logger,
) *WhaleTracker {
	return &WhaleTracker{
		source:     source,
		tradeRepo:  tradeRepo,
		whaleRepo:  whaleRepo,
		classifier: classifier,
		seen:       dedupe.NewSeenCache(cfg.SeenCacheSize),
		cfg:        cfg,
		logger:     logger,
	}
}

// Start 轮询主循环。ctx取消时在迭代顶部退出，不打断进行中的拉取/入库。
// 单次失败只记日志，按正常间隔进入下一轮——上游瞬时故障是预期内情况。
func (t *WhaleTracker) Start(ctx context.Context) {
	t.logger.Infof("成交轮询已启动: interval=%s, limit=%d", t.cfg.PollInterval, t.cfg.FetchLimit)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	// 启动先跑一轮，不等首个tick
	if err := t.runOnce(ctx); err != nil {
		t.logger.WithError(err).Error("轮询单轮失败")
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("成交轮询已停止")
			return
		case <-ticker.C:
			if err := t.runOnce(ctx); err != nil {
				t.logger.WithError(err).Error("轮询单轮失败")
			}
		}
	}
}

// runOnce 单轮：拉一页→逐条处理。页内按上游返回顺序处理，
// 跨页顺序无保证也无所谓——入库幂等，顺序不影响正确性。
func (t *WhaleTracker) runOnce(ctx context.Context) error {
	items, err := t.source.FetchRecentTrades(ctx, t.cfg.FetchLimit)
	if err != nil {
		return err
	}

	newWhales := 0
	for _, item := range items {
		trade, err := polymarket.NormalizeTrade(item)
		if err != nil {
			// 单条坏数据丢弃，整批继续
			t.logger.WithError(err).Warn("成交记录解析失败，跳过")
			continue
		}

		// 快速跳过已处理过的ID
		if t.seen.Seen(trade.ID) {
			continue
		}

		if !t.classifier.IsWhale(trade.Size) {
			continue
		}

		if err := t.tradeRepo.SaveTrade(ctx, trade); err != nil {
			t.logger.WithError(err).WithField("trade_id", trade.ID).Warn("成交入库失败")
			continue
		}

		// 首次见到的地址惰性建档，然后从trades重算统计
		if err := t.whaleRepo.EnsureWhale(ctx, trade.TraderAddress); err != nil {
			t.logger.WithError(err).WithField("address", trade.TraderAddress).Warn("鲸鱼建档失败")
			continue
		}
		if err := t.whaleRepo.RefreshStats(ctx, trade.TraderAddress); err != nil {
			t.logger.WithError(err).WithField("address", trade.TraderAddress).Warn("鲸鱼统计刷新失败")
		}
		newWhales++
	}

	if newWhales > 0 {
		t.logger.Infof("本轮新增 %d 笔鲸鱼成交", newWhales)
	}
	return nil
}
