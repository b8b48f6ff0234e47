package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"WhaleSync/internal/model"
)

// 上游字段名不稳定：同一逻辑字段在不同版本/接口里名字不同。
// 解析时按下列顺序逐个尝试（provider当前命名优先，旧命名兜底）。
var (
	idKeys       = []string{"transactionHash", "transaction_hash"}
	traderKeys   = []string{"proxyWallet", "trader_address"}
	nameKeys     = []string{"name"}
	pseudoKeys   = []string{"pseudonym"}
	marketIDKeys = []string{"conditionId", "asset"}
	marketKeys   = []string{"title", "market"}
	slugKeys     = []string{"slug"}
	eventKeys    = []string{"eventSlug"}
	outcomeKeys  = []string{"outcome"}
	sideKeys     = []string{"side"}
)

// NormalizeTrade 把一条上游原始成交记录转为规范Trade。
// 纯转换，无副作用；单条坏数据返回error由调用方丢弃，绝不让整批失败。
// USD金额恒为 数量*价格——上游的预计算amount字段币种不可靠，不采信。
func NormalizeTrade(item map[string]any) (*model.Trade, error) {
	id := stringField(item, idKeys...)
	if id == "" {
		return nil, fmt.Errorf("缺少交易哈希")
	}

	quantity := floatField(item, "size")
	price := floatField(item, "price")
	size := quantity * price
	if size < 0 {
		return nil, fmt.Errorf("非法金额: size=%f price=%f", quantity, price)
	}

	ts, err := parseTimestamp(item["timestamp"])
	if err != nil {
		// 时间缺失/不可解析时退回当前UTC（与上游极少数脏数据兼容）
		ts = time.Now().UTC()
	}

	side := stringField(item, sideKeys...)
	if side == "" {
		side = "BUY"
	}
	marketName := stringField(item, marketKeys...)
	if marketName == "" {
		marketName = "Unknown Market"
	}

	return &model.Trade{
		ID:              id,
		TraderAddress:   model.NormalizeAddress(stringField(item, traderKeys...)),
		TraderName:      stringField(item, nameKeys...),
		TraderPseudonym: stringField(item, pseudoKeys...),
		MarketID:        stringField(item, marketIDKeys...),
		MarketName:      marketName,
		MarketSlug:      stringField(item, slugKeys...),
		EventSlug:       stringField(item, eventKeys...),
		Outcome:         stringField(item, outcomeKeys...),
		Side:            side,
		Size:            size,
		Price:           price,
		Timestamp:       ts,
		TransactionHash: id,
	}, nil
}

// stringField 按顺序尝试多个字段名，返回第一个非空字符串
func stringField(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := item[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// floatField 按顺序尝试多个字段名；数字、数字字符串、json.Number都兼容，取不到返回0
func floatField(item map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// parseTimestamp 时间戳两种编码都支持：Unix秒（偶见毫秒）或ISO-8601字符串
// （带时区或不带都可能）。统一转为naive UTC，保证能与窗口边界直接比较。
func parseTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case float64:
		return epochToUTC(int64(ts)), nil
	case int64:
		return epochToUTC(ts), nil
	case int:
		return epochToUTC(int64(ts)), nil
	case json.Number:
		if n, err := ts.Int64(); err == nil {
			return epochToUTC(n), nil
		}
		return time.Time{}, fmt.Errorf("时间戳数值非法: %s", ts.String())
	case string:
		return parseISOTime(ts)
	default:
		return time.Time{}, fmt.Errorf("时间戳类型未知: %T", v)
	}
}

// epochToUTC Unix秒转UTC；大于1e12按毫秒处理（CLOB侧历史上用过毫秒）
func epochToUTC(n int64) time.Time {
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// parseISOTime 解析ISO-8601（带偏移或naive），统一归到UTC
func parseISOTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("时间串解析失败: %q", s)
}

// anyToFloat gamma的数值字段有时是字符串，做一次宽松转换
func anyToFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return 0
}
