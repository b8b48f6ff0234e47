package api

import (
	"net/http"
	"strconv"
	"time"

	"WhaleSync/internal/config"
	"WhaleSync/internal/model"
	"WhaleSync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WhaleHandler 鲸鱼查询接口
type WhaleHandler struct {
	tradeRepo repository.TradeRepository
	whaleRepo repository.WhaleRepository
	whaleCfg  *config.WhaleConfig
	logger    *logrus.Logger
}

// NewWhaleHandler 创建 WhaleHandler
func NewWhaleHandler(db *gorm.DB, logger *logrus.Logger, whaleCfg *config.WhaleConfig) *WhaleHandler {
	return &WhaleHandler{
		tradeRepo: repository.NewTradeRepository(db),
		whaleRepo: repository.NewWhaleRepository(db),
		whaleCfg:  whaleCfg,
		logger:    logger,
	}
}

// minSize 阈值取查询参数，缺省回落到配置阈值
func (h *WhaleHandler) minSize(c *gin.Context) float64 {
	if v, err := strconv.ParseFloat(c.Query("min_size"), 64); err == nil && v > 0 {
		return v
	}
	return h.whaleCfg.Threshold
}

// windowStart 按hours参数算窗口起点（默认24小时）
func windowStart(c *gin.Context) time.Time {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 || hours > 24*30 {
		hours = 24
	}
	return time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
}

// RecentTrades 最近鲸鱼成交
// GET /api/whales/recent?hours=24&limit=10&min_size=10000
func (h *WhaleHandler) RecentTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	trades, err := h.tradeRepo.RecentWhaleTrades(c.Request.Context(), windowStart(c), h.minSize(c), limit)
	if err != nil {
		h.logger.WithError(err).Error("RecentTrades failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// TopTraders 窗口内交易者排行（从trades实时聚合）
// GET /api/whales/top?hours=24&limit=10
func (h *WhaleHandler) TopTraders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	stats, err := h.tradeRepo.TopTradersSince(c.Request.Context(), windowStart(c), h.minSize(c), limit)
	if err != nil {
		h.logger.WithError(err).Error("TopTraders failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"traders": stats})
}

// Leaderboard 鲸鱼全历史排行（从whales物化缓存读）
// GET /api/whales/leaderboard?by=total_volume&limit=10
func (h *WhaleHandler) Leaderboard(c *gin.Context) {
	orderBy := c.DefaultQuery("by", "total_volume")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	whales, err := h.whaleRepo.TopWhales(c.Request.Context(), orderBy, limit)
	if err != nil {
		h.logger.WithError(err).Error("Leaderboard failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"whales": whales})
}

// Profile 单鲸鱼档案：档案行 + 全历史聚合 + 最近成交
// GET /api/whales/:address?limit=10
func (h *WhaleHandler) Profile(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	ctx := c.Request.Context()
	whale, err := h.whaleRepo.GetWhale(ctx, address)
	if err != nil {
		h.logger.WithError(err).Error("Profile failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if whale == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "whale not found"})
		return
	}

	agg, err := h.tradeRepo.TraderLifetimeAggregate(ctx, address)
	if err != nil {
		h.logger.WithError(err).Error("Profile aggregate failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	trades, err := h.tradeRepo.TradesByTrader(ctx, address, limit)
	if err != nil {
		h.logger.WithError(err).Error("Profile trades failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"whale":         whale,
		"lifetime":      agg,
		"recent_trades": trades,
		"profile_url":   model.ProfileURL(whale.Address),
	})
}

// Stats 窗口内鲸鱼活动概览
// GET /api/whales/stats?hours=24
func (h *WhaleHandler) Stats(c *gin.Context) {
	since := windowStart(c)
	minSize := h.minSize(c)

	ctx := c.Request.Context()
	count, err := h.tradeRepo.CountWhaleTradesSince(ctx, since, minSize)
	if err != nil {
		h.logger.WithError(err).Error("Stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	largest, err := h.tradeRepo.LargestTradeBetween(ctx, since, time.Now().UTC(), minSize)
	if err != nil {
		h.logger.WithError(err).Error("Stats largest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"whale_trades":  count,
		"largest_trade": largest,
		"min_size":      minSize,
		"since":         since,
	})
}
