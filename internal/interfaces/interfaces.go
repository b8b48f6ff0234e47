package interfaces

import (
	"context"

	"WhaleSync/internal/model"
)

// TradeSource 上游成交/市场数据源（实现：adapter/polymarket）
type TradeSource interface {
	// FetchRecentTrades 拉取最近一页原始成交记录
	FetchRecentTrades(ctx context.Context, limit int) ([]map[string]any, error)
	// FetchMarkets 拉取市场目录元数据
	FetchMarkets(ctx context.Context, limit int, activeOnly bool) ([]*model.Market, error)
}

// TradePager 历史成交翻页器（实现：adapter/polymarket，分页策略自探测）
type TradePager interface {
	// Next 下一页原始成交；翻完返回(nil,nil)
	Next(ctx context.Context) ([]map[string]any, error)
	// Strategy 当前锁定的分页策略
	Strategy() string
}

// Notifier 出站消息推送（实现：notify/telegram）
type Notifier interface {
	// Send 向指定频道发送一条消息
	Send(ctx context.Context, channelID, text string) error
}
