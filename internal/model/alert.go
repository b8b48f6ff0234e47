package model

import "encoding/json"

// AlertFilters 告警过滤条件（alerts.filters jsonb的结构化形式）
type AlertFilters struct {
	MinSize float64  `json:"min_size"` // 最低成交金额
	Markets []string `json:"markets"`  // 仅这些市场（空=不限）
	Whales  []string `json:"whales"`   // 仅这些鲸鱼地址（空=不限）
}

// ParseFilters 解析filters；空jsonb返回零值过滤器
func (a *Alert) ParseFilters() (AlertFilters, error) {
	var f AlertFilters
	if len(a.Filters) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(a.Filters, &f); err != nil {
		return f, err
	}
	return f, nil
}

// MatchesTrade 成交是否命中该告警的过滤条件
func (a *Alert) MatchesTrade(trade *Trade) bool {
	f, err := a.ParseFilters()
	if err != nil {
		return false
	}
	if trade.Size < f.MinSize {
		return false
	}
	if len(f.Markets) > 0 && !containsString(f.Markets, trade.MarketID) {
		return false
	}
	if len(f.Whales) > 0 && !containsString(f.Whales, trade.TraderAddress) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
