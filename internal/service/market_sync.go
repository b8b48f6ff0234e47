package service

import (
	"context"
	"time"

	"WhaleSync/internal/config"
	"WhaleSync/internal/interfaces"
	"WhaleSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// MarketSyncService 市场目录同步：周期性拉取gamma市场元数据并upsert到markets表，
// 供聚合查询JOIN出市场标题/分类（成交流水里只有market_id和标题快照）。
type MarketSyncService struct {
	source     interfaces.TradeSource
	marketRepo repository.MarketRepository
	cfg        *config.MarketsConfig
	logger     *logrus.Logger
}

// NewMarketSyncService 创建市场目录同步服务
func NewMarketSyncService(
	source interfaces.TradeSource,
	marketRepo repository.MarketRepository,
	cfg *config.MarketsConfig,
	logger *logrus.Logger,
) *MarketSyncService {
	return &MarketSyncService{
		source:     source,
		marketRepo: marketRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start 同步主循环，启动先同步一次
func (s *MarketSyncService) Start(ctx context.Context) {
	s.logger.Infof("市场目录同步已启动: interval=%s", s.cfg.SyncInterval)

	if err := s.SyncOnce(ctx); err != nil {
		s.logger.WithError(err).Error("市场目录同步失败")
	}

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("市场目录同步已停止")
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.logger.WithError(err).Error("市场目录同步失败")
			}
		}
	}
}

// SyncOnce 单次同步：拉活跃市场→批量upsert。也被手动同步接口直接调用。
func (s *MarketSyncService) SyncOnce(ctx context.Context) error {
	markets, err := s.source.FetchMarkets(ctx, s.cfg.FetchLimit, true)
	if err != nil {
		return err
	}
	if len(markets) == 0 {
		return nil
	}
	if err := s.marketRepo.UpsertMarkets(ctx, markets); err != nil {
		return err
	}
	s.logger.Infof("市场目录已同步 %d 条", len(markets))
	return nil
}
