package repository

import (
	"context"
	"errors"

	"WhaleSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarketRepository 市场目录仓储（gamma同步写入，查询接口消费）
type MarketRepository interface {
	// UpsertMarkets 批量upsert：已存在则刷新元数据（目录数据以最新拉取为准）
	UpsertMarkets(ctx context.Context, markets []*model.Market) error
	// GetMarket 按ID查询；不存在返回(nil,nil)
	GetMarket(ctx context.Context, marketID string) (*model.Market, error)
	// ListActiveMarkets 活跃市场按总量降序
	ListActiveMarkets(ctx context.Context, limit int) ([]*model.Market, error)
}

type marketRepository struct {
	db *gorm.DB
}

// NewMarketRepository 创建 MarketRepository 实例
func NewMarketRepository(db *gorm.DB) MarketRepository {
	return &marketRepository{db: db}
}

// UpsertMarkets 批量upsert（ON CONFLICT (market_id) DO UPDATE）
func (r *marketRepository) UpsertMarkets(ctx context.Context, markets []*model.Market) error {
	if len(markets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "market_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"question", "slug", "description", "category",
				"end_date", "volume", "liquidity", "active", "last_updated",
			}),
		}).
		Create(markets).Error
}

// GetMarket 按ID查询
func (r *marketRepository) GetMarket(ctx context.Context, marketID string) (*model.Market, error) {
	var market model.Market
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		First(&market).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &market, nil
}

// ListActiveMarkets 活跃市场列表
func (r *marketRepository) ListActiveMarkets(ctx context.Context, limit int) ([]*model.Market, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var markets []*model.Market
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("volume DESC").
		Limit(limit).
		Find(&markets).Error; err != nil {
		return nil, err
	}
	return markets, nil
}
