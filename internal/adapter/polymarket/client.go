package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"WhaleSync/internal/config"
	"WhaleSync/internal/model"
	"WhaleSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// Client Polymarket只读客户端：data-api拉成交流水，gamma-api拉市场目录。
// 两个接口都无需鉴权，直接走通用httpclient（CLOB下单类SDK不在本项目范围）。
type Client struct {
	cfg        *config.PolymarketConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient 创建Polymarket客户端
func NewClient(cfg *config.PolymarketConfig, logger *logrus.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

// tradePageParams 成交分页参数（三种分页方式上游都可能出现）
type tradePageParams struct {
	limit     int
	cursor    string
	before    string // ISO时间串，拉取早于该时刻的成交
	offset    int
	useOffset bool
}

// FetchRecentTrades 拉取最近一页成交（原始键值记录，交给Normalizer转换）
func (c *Client) FetchRecentTrades(ctx context.Context, limit int) ([]map[string]any, error) {
	items, _, err := c.fetchTradesPage(ctx, tradePageParams{limit: limit})
	return items, err
}

// fetchTradesPage 拉取一页成交，返回(原始条目, 下一页cursor)
func (c *Client) fetchTradesPage(ctx context.Context, p tradePageParams) ([]map[string]any, string, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.limit))
	if p.cursor != "" {
		q.Set("cursor", p.cursor)
	}
	if p.before != "" {
		q.Set("before", p.before)
	}
	if p.useOffset {
		q.Set("offset", strconv.Itoa(p.offset))
	}

	tradesURL := fmt.Sprintf("%s/trades?%s", c.cfg.DataAPIBaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tradesURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("拉取成交失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("拉取成交失败: 非200响应 %d", resp.StatusCode)
	}

	// 响应可能是裸数组，也可能是带data/trades字段的对象
	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, "", fmt.Errorf("解析成交响应失败: %w", err)
	}
	items, cursor := extractTradeItems(raw)
	return items, cursor, nil
}

// extractTradeItems 从响应中取出条目列表与下一页cursor（字段名多个变体）
func extractTradeItems(raw any) ([]map[string]any, string) {
	toItems := func(list []any) []map[string]any {
		items := make([]map[string]any, 0, len(list))
		for _, v := range list {
			if m, ok := v.(map[string]any); ok {
				items = append(items, m)
			}
		}
		return items
	}

	switch data := raw.(type) {
	case []any:
		return toItems(data), ""
	case map[string]any:
		var list []any
		if l, ok := data["data"].([]any); ok {
			list = l
		} else if l, ok := data["trades"].([]any); ok {
			list = l
		} else {
			// 兜底：找第一个数组字段
			for _, v := range data {
				if l, ok := v.([]any); ok {
					list = l
					break
				}
			}
		}
		cursor := ""
		for _, key := range []string{"next", "cursor", "nextCursor", "next_page_token"} {
			if s, ok := data[key].(string); ok && s != "" {
				cursor = s
				break
			}
		}
		return toItems(list), cursor
	default:
		return nil, ""
	}
}

// gammaMarket gamma /markets 单条响应
type gammaMarket struct {
	ID          string `json:"id"`
	ConditionID string `json:"condition_id"`
	Question    string `json:"question"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Category    string `json:"category"`
	EndDateISO  string `json:"end_date_iso"`
	Volume      any    `json:"volume"`    // 数字或字符串都出现过
	Liquidity   any    `json:"liquidity"` // 同上
	Active      bool   `json:"active"`
}

// FetchMarkets 从gamma目录拉取市场元数据；单条解析失败跳过不中断
func (c *Client) FetchMarkets(ctx context.Context, limit int, activeOnly bool) ([]*model.Market, error) {
	closed := "true"
	if activeOnly {
		closed = "false"
	}
	marketsURL := fmt.Sprintf("%s/markets?limit=%d&closed=%s", c.cfg.GammaAPIBaseURL, limit, closed)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, marketsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("拉取市场目录失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("拉取市场目录失败: 非200响应 %d", resp.StatusCode)
	}

	var raw []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("解析市场目录失败: %w", err)
	}

	markets := make([]*model.Market, 0, len(raw))
	for _, g := range raw {
		id := g.ID
		if id == "" {
			id = g.ConditionID
		}
		if id == "" {
			c.logger.Warn("市场条目缺少ID，跳过")
			continue
		}
		question := g.Question
		if question == "" {
			question = "Unknown Question"
		}
		category := g.Category
		if category == "" {
			category = "Other"
		}

		m := &model.Market{
			MarketID:    id,
			Question:    question,
			Slug:        g.Slug,
			Description: g.Description,
			Category:    category,
			Volume:      anyToFloat(g.Volume),
			Liquidity:   anyToFloat(g.Liquidity),
			Active:      g.Active,
			LastUpdated: time.Now().UTC(),
		}
		if g.EndDateISO != "" {
			if t, err := parseISOTime(g.EndDateISO); err == nil {
				m.EndDate = &t
			} else {
				c.logger.WithError(err).WithField("market_id", id).Warn("市场end_date解析失败")
			}
		}
		markets = append(markets, m)
	}

	c.logger.Infof("已从gamma拉取 %d 个市场", len(markets))
	return markets, nil
}
