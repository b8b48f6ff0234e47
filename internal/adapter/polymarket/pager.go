package polymarket

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// 上游/trades的分页机制不保证稳定：cursor、before时间串、数字offset都出现过。
// TradePager先探测cursor，没有就退回before翻页（本页最旧时间-1秒），
// 再不行退回纯offset；哪种先成功就锁定，整个回填过程沿用。
type pageStrategy string

const (
	strategyAuto   pageStrategy = "auto"
	strategyCursor pageStrategy = "cursor"
	strategyBefore pageStrategy = "before"
	strategyOffset pageStrategy = "offset"
)

// TradePager 成交历史翻页器（单协程使用）
type TradePager struct {
	client *Client
	logger *logrus.Logger
	limit  int

	strategy   pageStrategy
	cursor     string
	before     string
	offset     int
	prevOldest time.Time
	done       bool
}

// NewTradePager 创建翻页器；limit为单页条数
func NewTradePager(client *Client, logger *logrus.Logger, limit int) *TradePager {
	if limit <= 0 {
		limit = 200
	}
	return &TradePager{
		client:   client,
		logger:   logger,
		limit:    limit,
		strategy: strategyAuto,
	}
}

// Strategy 当前锁定的分页策略（探测前为auto）
func (p *TradePager) Strategy() string {
	return string(p.strategy)
}

// Next 拉取下一页原始成交；翻完返回(nil, nil)
func (p *TradePager) Next(ctx context.Context) ([]map[string]any, error) {
	if p.done {
		return nil, nil
	}

	params := tradePageParams{limit: p.limit}
	switch p.strategy {
	case strategyCursor:
		params.cursor = p.cursor
	case strategyBefore:
		params.before = p.before
	case strategyOffset:
		params.useOffset = true
		params.offset = p.offset
	}

	items, nextCursor, err := p.client.fetchTradesPage(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		p.done = true
		return nil, nil
	}

	p.advance(items, nextCursor)
	return items, nil
}

// advance 根据本页结果推进分页状态；auto时完成策略探测并锁定
func (p *TradePager) advance(items []map[string]any, nextCursor string) {
	if p.strategy == strategyAuto {
		switch {
		case nextCursor != "":
			p.strategy = strategyCursor
			p.cursor = nextCursor
			p.logger.Info("分页策略锁定: cursor")
		default:
			if oldest, ok := oldestTimestamp(items); ok {
				p.strategy = strategyBefore
				p.prevOldest = oldest
				p.before = oldest.Add(-time.Second).Format(time.RFC3339)
				p.logger.Info("分页策略锁定: before=<iso>")
			} else {
				p.strategy = strategyOffset
				p.offset += p.limit
				p.logger.Info("分页策略锁定: offset")
			}
		}
		return
	}

	switch p.strategy {
	case strategyCursor:
		p.cursor = nextCursor
		if p.cursor == "" {
			p.logger.Info("cursor已耗尽，翻页结束")
			p.done = true
		}
	case strategyBefore:
		oldest, ok := oldestTimestamp(items)
		switch {
		case !ok:
			p.logger.Warn("本页无可解析时间戳，退回offset分页")
			p.strategy = strategyOffset
			p.offset += p.limit
		case !oldest.Before(p.prevOldest):
			// before没有继续变旧，说明该参数未生效
			p.logger.Warn("before分页未产生更旧数据，退回offset分页")
			p.strategy = strategyOffset
			p.offset += p.limit
		default:
			p.prevOldest = oldest
			p.before = oldest.Add(-time.Second).Format(time.RFC3339)
		}
	case strategyOffset:
		p.offset += p.limit
	}
}

// oldestTimestamp 求一页条目中最旧的成交时间
func oldestTimestamp(items []map[string]any) (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, it := range items {
		ts, err := parseTimestamp(it["timestamp"])
		if err != nil {
			continue
		}
		if !found || ts.Before(oldest) {
			oldest = ts
			found = true
		}
	}
	return oldest, found
}
