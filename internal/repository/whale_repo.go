package repository

import (
	"context"
	"errors"
	"time"

	"WhaleSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WhaleRepository 鲸鱼档案仓储。whales表是trades的物化缓存，
// 所有统计字段都能从trades重算出来，RefreshStats幂等且与写入顺序无关。
type WhaleRepository interface {
	// GetWhale 按地址查询；不存在返回(nil,nil)
	GetWhale(ctx context.Context, address string) (*model.Whale, error)
	// EnsureWhale 首次出现的地址惰性建档（已存在为no-op）
	EnsureWhale(ctx context.Context, address string) error
	// RefreshStats 从trades重算该地址的累计量/笔数/最近成交时间
	RefreshStats(ctx context.Context, address string) error
	// TopWhales 按指定指标排行（win_rate/total_volume/total_trades，白名单外回落win_rate）
	TopWhales(ctx context.Context, orderBy string, limit int) ([]*model.Whale, error)
	// SetNickname 设置昵称
	SetNickname(ctx context.Context, address, nickname string) error
}

type whaleRepository struct {
	db *gorm.DB
}

// NewWhaleRepository 创建 WhaleRepository 实例
func NewWhaleRepository(db *gorm.DB) WhaleRepository {
	return &whaleRepository{db: db}
}

// GetWhale 按地址查询
func (r *whaleRepository) GetWhale(ctx context.Context, address string) (*model.Whale, error) {
	var whale model.Whale
	err := r.db.WithContext(ctx).
		Where("address = ?", model.NormalizeAddress(address)).
		First(&whale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &whale, nil
}

// EnsureWhale 惰性建档（冲突即已存在，do nothing）
func (r *whaleRepository) EnsureWhale(ctx context.Context, address string) error {
	whale := &model.Whale{
		Address:     model.NormalizeAddress(address),
		FirstSeenAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		Create(whale).Error
}

// RefreshStats 子查询重算，天然幂等、与成交到达顺序无关
func (r *whaleRepository) RefreshStats(ctx context.Context, address string) error {
	addr := model.NormalizeAddress(address)
	return r.db.WithContext(ctx).Exec(`
		UPDATE whales SET
			total_volume = (SELECT COALESCE(SUM(size), 0) FROM trades WHERE trader_address = ?),
			total_trades = (SELECT COUNT(*) FROM trades WHERE trader_address = ?),
			last_trade_at = (SELECT MAX(timestamp) FROM trades WHERE trader_address = ?)
		WHERE address = ?`,
		addr, addr, addr, addr).Error
}

// TopWhales 鲸鱼排行（至少10笔成交才进榜，避免小样本胜率霸榜）
func (r *whaleRepository) TopWhales(ctx context.Context, orderBy string, limit int) ([]*model.Whale, error) {
	validOrders := map[string]bool{
		"win_rate":     true,
		"total_volume": true,
		"total_trades": true,
	}
	if !validOrders[orderBy] {
		orderBy = "win_rate"
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var whales []*model.Whale
	if err := r.db.WithContext(ctx).
		Where("total_trades >= ?", 10).
		Order(orderBy + " DESC").
		Limit(limit).
		Find(&whales).Error; err != nil {
		return nil, err
	}
	return whales, nil
}

// SetNickname 设置昵称
func (r *whaleRepository) SetNickname(ctx context.Context, address, nickname string) error {
	return r.db.WithContext(ctx).
		Model(&model.Whale{}).
		Where("address = ?", model.NormalizeAddress(address)).
		Update("nickname", nickname).Error
}
