package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"WhaleSync/internal/model"
	"WhaleSync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TrackHandler 用户、关注与告警配置接口
type TrackHandler struct {
	userRepo  repository.UserRepository
	whaleRepo repository.WhaleRepository
	tradeRepo repository.TradeRepository
	logger    *logrus.Logger
}

// NewTrackHandler 创建 TrackHandler
func NewTrackHandler(db *gorm.DB, logger *logrus.Logger) *TrackHandler {
	return &TrackHandler{
		userRepo:  repository.NewUserRepository(db),
		whaleRepo: repository.NewWhaleRepository(db),
		tradeRepo: repository.NewTradeRepository(db),
		logger:    logger,
	}
}

func parseUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return id, true
}

// RegisterUser 注册或刷新用户
// POST /api/users  body: {"user_id":123,"username":"...","first_name":"..."}
func (h *TrackHandler) RegisterUser(c *gin.Context) {
	var req struct {
		UserID    int64   `json:"user_id" binding:"required"`
		Username  *string `json:"username"`
		FirstName *string `json:"first_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userRepo.UpsertUser(c.Request.Context(), req.UserID, req.Username, req.FirstName); err != nil {
		h.logger.WithError(err).Error("RegisterUser failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "用户已注册"})
}

// UpdateSettings 合并更新用户偏好（只覆盖传入的键）
// PUT /api/users/:user_id/settings  body: {"min_size":50000,"notifications":true}
func (h *TrackHandler) UpdateSettings(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var settings map[string]any
	if err := c.ShouldBindJSON(&settings); err != nil || len(settings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings payload is required"})
		return
	}

	if err := h.userRepo.MergeSettings(c.Request.Context(), userID, settings); err != nil {
		h.logger.WithError(err).Error("UpdateSettings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "偏好已更新"})
}

// TrackWhale 关注鲸鱼。目标地址会先惰性建档，关注不依赖鲸鱼已被抓到过。
// POST /api/users/:user_id/track  body: {"address":"0x..."}
func (h *TrackHandler) TrackWhale(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.whaleRepo.EnsureWhale(ctx, req.Address); err != nil {
		h.logger.WithError(err).Error("TrackWhale ensure failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.userRepo.TrackWhale(ctx, userID, req.Address); err != nil {
		h.logger.WithError(err).Error("TrackWhale failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已关注", "address": model.NormalizeAddress(req.Address)})
}

// UntrackWhale 取消关注
// DELETE /api/users/:user_id/track/:address
func (h *TrackHandler) UntrackWhale(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	address := c.Param("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	if err := h.userRepo.UntrackWhale(c.Request.Context(), userID, address); err != nil {
		h.logger.WithError(err).Error("UntrackWhale failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已取消关注"})
}

// TrackedWhales 用户关注列表
// GET /api/users/:user_id/whales
func (h *TrackHandler) TrackedWhales(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	whales, err := h.userRepo.TrackedWhales(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("TrackedWhales failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"whales": whales, "count": len(whales)})
}

// CreateAlert 新建告警配置
// POST /api/users/:user_id/alerts  body: {"alert_type":"whale_trade","filters":{"min_size":50000}}
func (h *TrackHandler) CreateAlert(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req struct {
		AlertType string             `json:"alert_type" binding:"required"`
		Filters   model.AlertFilters `json:"filters"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := json.Marshal(req.Filters)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert := &model.Alert{
		UserID:    userID,
		AlertType: req.AlertType,
		Filters:   datatypes.JSON(payload),
		IsActive:  true,
	}
	if err := h.userRepo.CreateAlert(c.Request.Context(), alert); err != nil {
		h.logger.WithError(err).Error("CreateAlert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alert_uuid": alert.AlertUUID})
}

// ListAlerts 用户启用中的告警配置
// GET /api/users/:user_id/alerts
func (h *TrackHandler) ListAlerts(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	alerts, err := h.userRepo.ListActiveAlerts(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("ListAlerts failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// AlertMatches 最近成交中命中该用户告警过滤条件的部分
// GET /api/users/:user_id/alerts/matches?hours=24&limit=50
func (h *TrackHandler) AlertMatches(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	ctx := c.Request.Context()
	alerts, err := h.userRepo.ListActiveAlerts(ctx, userID)
	if err != nil {
		h.logger.WithError(err).Error("AlertMatches failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(alerts) == 0 {
		c.JSON(http.StatusOK, gin.H{"matches": []any{}})
		return
	}

	// 候选集取窗口内全部成交（min_size由各告警自己的过滤条件判定）
	trades, err := h.tradeRepo.RecentWhaleTrades(ctx, windowStart(c), 0, limit)
	if err != nil {
		h.logger.WithError(err).Error("AlertMatches trades failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type match struct {
		AlertUUID string       `json:"alert_uuid"`
		Trade     *model.Trade `json:"trade"`
	}
	matches := make([]match, 0)
	for _, a := range alerts {
		for _, tr := range trades {
			if a.MatchesTrade(tr) {
				matches = append(matches, match{AlertUUID: a.AlertUUID, Trade: tr})
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}
