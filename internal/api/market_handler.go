package api

import (
	"net/http"
	"strconv"

	"WhaleSync/internal/config"
	"WhaleSync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MarketHandler 市场查询接口
type MarketHandler struct {
	marketRepo repository.MarketRepository
	tradeRepo  repository.TradeRepository
	whaleCfg   *config.WhaleConfig
	logger     *logrus.Logger
}

// NewMarketHandler 创建 MarketHandler
func NewMarketHandler(db *gorm.DB, logger *logrus.Logger, whaleCfg *config.WhaleConfig) *MarketHandler {
	return &MarketHandler{
		marketRepo: repository.NewMarketRepository(db),
		tradeRepo:  repository.NewTradeRepository(db),
		whaleCfg:   whaleCfg,
		logger:     logger,
	}
}

// HotMarkets 窗口内鲸鱼最活跃的市场
// GET /api/markets/hot?hours=24&limit=10
func (h *MarketHandler) HotMarkets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	rows, err := h.tradeRepo.TopMarketsByRecentActivity(c.Request.Context(), windowStart(c), h.whaleCfg.Threshold, limit)
	if err != nil {
		h.logger.WithError(err).Error("HotMarkets failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"markets": rows})
}

// ListMarkets 活跃市场目录（按总量降序）
// GET /api/markets?limit=20
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	markets, err := h.marketRepo.ListActiveMarkets(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("ListMarkets failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"markets": markets})
}

// GetMarket 市场详情
// GET /api/markets/:id
func (h *MarketHandler) GetMarket(c *gin.Context) {
	marketID := c.Param("id")
	if marketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	market, err := h.marketRepo.GetMarket(c.Request.Context(), marketID)
	if err != nil {
		h.logger.WithError(err).Error("GetMarket failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if market == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "market not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"market": market, "url": market.MarketURL()})
}
