package repository

import (
	"context"
	"time"

	"WhaleSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BroadcastRepository 播报去重日志。TryRecordBroadcast是跨实例互斥原语：
// 靠主键唯一约束做原子的"插入或放弃"，绝不能写成先查后插。
type BroadcastRepository interface {
	// TryRecordBroadcast 尝试登记trade_id；返回false表示别的写入者已登记过
	TryRecordBroadcast(ctx context.Context, tradeID string) (bool, error)
}

type broadcastRepository struct {
	db *gorm.DB
}

// NewBroadcastRepository 创建 BroadcastRepository 实例
func NewBroadcastRepository(db *gorm.DB) BroadcastRepository {
	return &broadcastRepository{db: db}
}

// TryRecordBroadcast 原子登记：RowsAffected==1说明本次插入成功（赢得播报权）
func (r *broadcastRepository) TryRecordBroadcast(ctx context.Context, tradeID string) (bool, error) {
	entry := &model.BroadcastLog{
		TradeID: tradeID,
		SentAt:  time.Now().UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trade_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
