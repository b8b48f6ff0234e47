package service

import (
	"context"
	"fmt"
	"time"

	"WhaleSync/internal/config"
	"WhaleSync/internal/interfaces"
	"WhaleSync/internal/model"
	"WhaleSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// BroadcastService 频道播报服务：独立于轮询调度，每个tick播报
// 上一窗口内金额最大的一笔成交。窗口为连续不重叠的[lastTickEnd, now)，
// 本tick的end就是下tick的start，成交不会因落在tick间隙被漏掉。
// 两层防重：进程内记上次已发trade_id（省一次DB往返），
// 跨实例靠broadcast_log的原子登记，抢不到登记权就静默放弃。
type BroadcastService struct {
	tradeRepo     repository.TradeRepository
	broadcastRepo repository.BroadcastRepository
	notifier      interfaces.Notifier
	classifier    *Classifier
	cfg           *config.BroadcastConfig
	logger        *logrus.Logger

	lastTickEnd     time.Time
	lastSentTradeID string
}

// NewBroadcastService 创建频道播报服务
func NewBroadcastService(
	tradeRepo repository.TradeRepository,
	broadcastRepo repository.BroadcastRepository,
	notifier interfaces.Notifier,
	classifier *Classifier,
	cfg *config.BroadcastConfig,
	logger *logrus.Logger,
) *BroadcastService {
	return &BroadcastService{
		tradeRepo:     tradeRepo,
		broadcastRepo: broadcastRepo,
		notifier:      notifier,
		classifier:    classifier,
		cfg:           cfg,
		logger:        logger,
	}
}

// Start 播报主循环。首个窗口从启动时刻开始，不回溯历史。
func (b *BroadcastService) Start(ctx context.Context) {
	if !b.cfg.Enabled {
		b.logger.Info("频道播报未启用")
		return
	}
	b.logger.Infof("频道播报已启动: interval=%s, min_size=%.0f", b.cfg.Interval, b.cfg.MinSize)

	b.lastTickEnd = time.Now().UTC()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("频道播报已停止")
			return
		case <-ticker.C:
			if err := b.runOnce(ctx); err != nil {
				b.logger.WithError(err).Error("播报单轮失败")
			}
		}
	}
}

// runOnce 单轮播报。无论本轮是否发出消息，窗口游标都必须推进，
// 否则窗口会重叠导致重复候选。
func (b *BroadcastService) runOnce(ctx context.Context) error {
	start := b.lastTickEnd
	end := time.Now().UTC()
	b.lastTickEnd = end

	if b.cfg.ChannelID == "" {
		// 频道未配置时窗口照常推进，补上配置后不会把积压全量补发
		b.logger.Debug("播报频道未配置，跳过本轮")
		return nil
	}

	trade, err := b.tradeRepo.LargestTradeBetween(ctx, start, end, b.cfg.MinSize)
	if err != nil {
		return err
	}
	if trade == nil {
		return nil
	}

	// 进程内快速防重
	if trade.ID == b.lastSentTradeID {
		return nil
	}

	// 跨实例互斥：登记失败说明别的实例已播过这笔
	won, err := b.broadcastRepo.TryRecordBroadcast(ctx, trade.ID)
	if err != nil {
		return err
	}
	if !won {
		b.logger.WithField("trade_id", trade.ID).Debug("该成交已被其他实例播报，跳过")
		return nil
	}

	text := b.formatMessage(ctx, trade, end.Sub(start))
	if err := b.notifier.Send(ctx, b.cfg.ChannelID, text); err != nil {
		// 发送失败不回滚登记：宁可漏发一条也不向频道重复刷屏
		return fmt.Errorf("播报发送失败: %w", err)
	}

	b.lastSentTradeID = trade.ID
	b.logger.WithFields(logrus.Fields{
		"trade_id": trade.ID,
		"size":     trade.Size,
	}).Info("已播报窗口内最大成交")
	return nil
}

// formatMessage 组装播报文案（Markdown）。全历史聚合查询失败只降级为省略该行
func (b *BroadcastService) formatMessage(ctx context.Context, trade *model.Trade, window time.Duration) string {
	name := trade.TraderName
	if name == "" {
		name = trade.TraderPseudonym
	}
	if name == "" {
		name = model.ShortenAddress(trade.TraderAddress)
	}

	text := fmt.Sprintf(
		"🔥 *近%d秒最大鲸鱼成交* %s\n\n"+
			"👤 交易者: [%s](%s)\n"+
			"💰 金额: *%s* — %s @ %.3f\n"+
			"📊 市场: %s\n",
		int(window.Seconds()),
		b.classifier.TierEmoji(trade.Size),
		name, model.ProfileURL(trade.TraderAddress),
		model.FormatUSD(trade.Size), trade.Side, trade.Price,
		trade.MarketName,
	)

	agg, err := b.tradeRepo.TraderLifetimeAggregate(ctx, trade.TraderAddress)
	if err != nil {
		b.logger.WithError(err).Warn("查询交易者全历史聚合失败")
		return text
	}
	return text + fmt.Sprintf("📈 历史: %d 笔 | %s 总量\n", agg.TotalTrades, model.FormatUSD(agg.TotalVolume))
}
