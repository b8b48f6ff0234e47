package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"WhaleSync/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 用户、关注关系与告警配置仓储
type UserRepository interface {
	// UpsertUser 注册或刷新用户（已存在则更新用户名并续last_active）
	UpsertUser(ctx context.Context, userID int64, username, firstName *string) error
	// GetUser 按ID查询；不存在返回(nil,nil)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	// MergeSettings jsonb合并更新用户偏好（只覆盖传入的键）
	MergeSettings(ctx context.Context, userID int64, settings map[string]any) error
	// TrackWhale 关注鲸鱼；重复关注为no-op（唯一约束兜底）
	TrackWhale(ctx context.Context, userID int64, whaleAddress string) error
	// UntrackWhale 取消关注
	UntrackWhale(ctx context.Context, userID int64, whaleAddress string) error
	// TrackedWhales 用户关注的鲸鱼档案，按最近成交倒序
	TrackedWhales(ctx context.Context, userID int64) ([]*model.Whale, error)
	// CreateAlert 新建告警配置（alert_uuid在此生成）
	CreateAlert(ctx context.Context, alert *model.Alert) error
	// ListActiveAlerts 用户启用中的告警配置
	ListActiveAlerts(ctx context.Context, userID int64) ([]*model.Alert, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建 UserRepository 实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// UpsertUser 注册或刷新用户
func (r *userRepository) UpsertUser(ctx context.Context, userID int64, username, firstName *string) error {
	user := &model.User{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		IsActive:  true,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"username":    username,
				"first_name":  firstName,
				"last_active": gorm.Expr("now()"),
			}),
		}).
		Create(user).Error
}

// GetUser 按ID查询
func (r *userRepository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MergeSettings jsonb合并（COALESCE(settings,'{}') || 新值）
func (r *userRepository) MergeSettings(ctx context.Context, userID int64, settings map[string]any) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("序列化settings失败: %w", err)
	}
	return r.db.WithContext(ctx).Exec(`
		UPDATE users
		SET settings = COALESCE(settings, '{}'::jsonb) || ?::jsonb,
		    last_active = now()
		WHERE user_id = ?`,
		string(payload), userID).Error
}

// TrackWhale 关注鲸鱼（幂等）
func (r *userRepository) TrackWhale(ctx context.Context, userID int64, whaleAddress string) error {
	row := &model.TrackedWhale{
		UserID:       userID,
		WhaleAddress: model.NormalizeAddress(whaleAddress),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

// UntrackWhale 取消关注
func (r *userRepository) UntrackWhale(ctx context.Context, userID int64, whaleAddress string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND whale_address = ?", userID, model.NormalizeAddress(whaleAddress)).
		Delete(&model.TrackedWhale{}).Error
}

// TrackedWhales 关注列表（连whales表取档案）
func (r *userRepository) TrackedWhales(ctx context.Context, userID int64) ([]*model.Whale, error) {
	var whales []*model.Whale
	if err := r.db.WithContext(ctx).
		Model(&model.Whale{}).
		Joins("JOIN tracked_whales tw ON tw.whale_address = whales.address").
		Where("tw.user_id = ?", userID).
		Order("whales.last_trade_at DESC NULLS LAST").
		Find(&whales).Error; err != nil {
		return nil, err
	}
	return whales, nil
}

// CreateAlert 新建告警配置
func (r *userRepository) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.AlertUUID == "" {
		alert.AlertUUID = uuid.NewString() // 生成全局唯一ID
	}
	return r.db.WithContext(ctx).Create(alert).Error
}

// ListActiveAlerts 启用中的告警配置
func (r *userRepository) ListActiveAlerts(ctx context.Context, userID int64) ([]*model.Alert, error) {
	var alerts []*model.Alert
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
