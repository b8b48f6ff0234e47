package api

import (
	"net/http"
	"strconv"

	"WhaleSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SyncHandler 手动触发同步/回填的管理接口
type SyncHandler struct {
	backfill   *service.BackfillService
	marketSync *service.MarketSyncService
	logger     *logrus.Logger
}

// NewSyncHandler 创建 SyncHandler
func NewSyncHandler(backfill *service.BackfillService, marketSync *service.MarketSyncService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		backfill:   backfill,
		marketSync: marketSync,
		logger:     logger,
	}
}

// BackfillHandler 回填最近N天历史鲸鱼成交（同步执行，大窗口会跑一会儿）
// POST /sync/backfill?days=7
func (h *SyncHandler) BackfillHandler(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "1"))
	if days <= 0 || days > 30 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be 1-30"})
		return
	}

	result, err := h.backfill.Run(c.Request.Context(), days)
	if err != nil {
		h.logger.Errorf("回填失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "partial": result})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "回填完成", "result": result})
}

// SyncMarketsHandler 立即同步一次市场目录
// POST /sync/markets
func (h *SyncHandler) SyncMarketsHandler(c *gin.Context) {
	if err := h.marketSync.SyncOnce(c.Request.Context()); err != nil {
		h.logger.Errorf("市场目录同步失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "市场目录同步成功"})
}
