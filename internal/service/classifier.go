package service

import (
	"WhaleSync/internal/config"
)

// Classifier 鲸鱼判定器：纯函数，无副作用，对size单调。
// 阈值与分层边界全部来自配置（历史上多处硬编码不一致，现已收口到config.Whale）。
type Classifier struct {
	Threshold float64
	Tiers     [3]float64 // 升序：tier1/tier2/tier3下界
}

// NewClassifier 从配置构建判定器
func NewClassifier(cfg *config.WhaleConfig) *Classifier {
	c := &Classifier{Threshold: cfg.Threshold}
	copy(c.Tiers[:], cfg.Tiers)
	return c
}

// IsWhale size达到阈值即鲸鱼
func (c *Classifier) IsWhale(size float64) bool {
	return size >= c.Threshold
}

// Tier 分层：0=未达tier1，1/2/3按升序边界判定
func (c *Classifier) Tier(size float64) int {
	switch {
	case size >= c.Tiers[2]:
		return 3
	case size >= c.Tiers[1]:
		return 2
	case size >= c.Tiers[0]:
		return 1
	default:
		return 0
	}
}

// TierEmoji 分层对应的展示emoji
func (c *Classifier) TierEmoji(size float64) string {
	switch c.Tier(size) {
	case 3:
		return "🐋" // 大鲸
	case 2:
		return "🐳" // 中鲸
	case 1:
		return "🐬" // 小鲸
	default:
		return "🐟"
	}
}
