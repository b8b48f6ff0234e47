package repository

import (
	"context"
	"errors"
	"time"

	"WhaleSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TraderStat 窗口内单个交易者的聚合（排行榜行）
type TraderStat struct {
	Address      string  `json:"address"`
	TotalVolume  float64 `json:"total_volume"`
	TradeCount   int     `json:"trade_count"`
	LargestTrade float64 `json:"largest_trade"`
}

// TraderAggregate 单个交易者的全历史聚合
type TraderAggregate struct {
	TotalTrades int64   `json:"total_trades"`
	TotalVolume float64 `json:"total_volume"`
}

// MarketActivity 窗口内单个市场的鲸鱼活跃度
type MarketActivity struct {
	MarketID    string     `json:"market_id"`
	Question    string     `json:"question"`
	Category    string     `json:"category"`
	EndDate     *time.Time `json:"end_date"`
	WhaleTrades int        `json:"whale_trades"`
	WhaleVolume float64    `json:"whale_volume"`
	TotalVolume float64    `json:"total_volume"`
}

// TradeRepository 成交存储与聚合查询。所有窗口均为半开区间[start,end)；
// 金额阈值由调用方从配置传入，仓储本身不持有阈值。
type TradeRepository interface {
	// SaveTrade 幂等入库：主键冲突时do nothing，已有记录永不覆盖
	SaveTrade(ctx context.Context, trade *model.Trade) error
	// RecentWhaleTrades timestamp>=since 且 size>=minSize，按时间倒序
	RecentWhaleTrades(ctx context.Context, since time.Time, minSize float64, limit int) ([]*model.Trade, error)
	// TopTradersSince 窗口内按交易者聚合，总量降序；并列按笔数降序（固定且已文档化的tie-break）
	TopTradersSince(ctx context.Context, since time.Time, minSize float64, limit int) ([]*TraderStat, error)
	// LargestTradeBetween [start,end)内金额最大的一笔；没有则返回(nil,nil)
	LargestTradeBetween(ctx context.Context, start, end time.Time, minSize float64) (*model.Trade, error)
	// TraderLifetimeAggregate 单地址全历史笔数与总量
	TraderLifetimeAggregate(ctx context.Context, address string) (*TraderAggregate, error)
	// TopMarketsByRecentActivity 窗口内按市场聚合鲸鱼笔数/量，按量降序
	TopMarketsByRecentActivity(ctx context.Context, since time.Time, minSize float64, limit int) ([]*MarketActivity, error)
	// TradesByTrader 单地址最近成交，按时间倒序
	TradesByTrader(ctx context.Context, address string, limit int) ([]*model.Trade, error)
	// CountWhaleTradesSince 窗口内鲸鱼成交计数
	CountWhaleTradesSince(ctx context.Context, since time.Time, minSize float64) (int64, error)
}

type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository 创建 TradeRepository 实例
func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{db: db}
}

// SaveTrade 幂等入库（ON CONFLICT (id) DO NOTHING）
func (r *tradeRepository) SaveTrade(ctx context.Context, trade *model.Trade) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(trade).Error
}

// RecentWhaleTrades 最近的鲸鱼成交
func (r *tradeRepository) RecentWhaleTrades(ctx context.Context, since time.Time, minSize float64, limit int) ([]*model.Trade, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var trades []*model.Trade
	if err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND size >= ?", since, minSize).
		Order("timestamp DESC").
		Limit(limit).
		Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// TopTradersSince 窗口内交易者排行
func (r *tradeRepository) TopTradersSince(ctx context.Context, since time.Time, minSize float64, limit int) ([]*TraderStat, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var stats []*TraderStat
	if err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Select("trader_address AS address, SUM(size) AS total_volume, COUNT(*) AS trade_count, MAX(size) AS largest_trade").
		Where("timestamp >= ? AND size >= ?", since, minSize).
		Group("trader_address").
		Order("total_volume DESC, trade_count DESC").
		Limit(limit).
		Scan(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// LargestTradeBetween [start,end)内最大一笔，金额并列取更新的
func (r *tradeRepository) LargestTradeBetween(ctx context.Context, start, end time.Time, minSize float64) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ? AND size >= ?", start, end, minSize).
		Order("size DESC, timestamp DESC").
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// TraderLifetimeAggregate 单地址全历史聚合
func (r *tradeRepository) TraderLifetimeAggregate(ctx context.Context, address string) (*TraderAggregate, error) {
	var agg TraderAggregate
	if err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Select("COUNT(*) AS total_trades, COALESCE(SUM(size), 0) AS total_volume").
		Where("trader_address = ?", model.NormalizeAddress(address)).
		Scan(&agg).Error; err != nil {
		return nil, err
	}
	return &agg, nil
}

// TopMarketsByRecentActivity 窗口内市场鲸鱼活跃度排行（LEFT JOIN保留无成交的活跃市场）
func (r *tradeRepository) TopMarketsByRecentActivity(ctx context.Context, since time.Time, minSize float64, limit int) ([]*MarketActivity, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var rows []*MarketActivity
	if err := r.db.WithContext(ctx).
		Table("markets m").
		Select(`m.market_id, m.question, m.category, m.end_date,
			COUNT(t.id) AS whale_trades,
			COALESCE(SUM(t.size), 0) AS whale_volume,
			m.volume AS total_volume`).
		Joins("LEFT JOIN trades t ON t.market_id = m.market_id AND t.timestamp >= ? AND t.size >= ?", since, minSize).
		Where("m.active = TRUE").
		Group("m.market_id, m.question, m.category, m.end_date, m.volume").
		Order("whale_volume DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TradesByTrader 单地址最近成交
func (r *tradeRepository) TradesByTrader(ctx context.Context, address string, limit int) ([]*model.Trade, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var trades []*model.Trade
	if err := r.db.WithContext(ctx).
		Where("trader_address = ?", model.NormalizeAddress(address)).
		Order("timestamp DESC").
		Limit(limit).
		Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// CountWhaleTradesSince 窗口内鲸鱼成交计数
func (r *tradeRepository) CountWhaleTradesSince(ctx context.Context, since time.Time, minSize float64) (int64, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("timestamp >= ? AND size >= ?", since, minSize).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}
