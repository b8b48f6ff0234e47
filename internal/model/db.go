package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Trade 单笔成交记录（不可变）。主键为链上交易哈希，作为入库幂等键；
// size 恒等于 quantity*price（USD名义金额），timestamp 统一存 naive UTC。
type Trade struct {
	ID              string    `gorm:"column:id;type:varchar(80);primaryKey;comment:交易哈希（幂等键）"`
	TraderAddress   string    `gorm:"column:trader_address;type:varchar(64);index;not null;comment:交易者钱包地址（小写）"`
	TraderName      string    `gorm:"column:trader_name;type:varchar(128);comment:交易者展示名"`
	TraderPseudonym string    `gorm:"column:trader_pseudonym;type:varchar(128);comment:交易者化名"`
	MarketID        string    `gorm:"column:market_id;type:varchar(80);index;not null;comment:市场ID"`
	MarketName      string    `gorm:"column:market_name;type:varchar(256);comment:市场标题"`
	MarketSlug      string    `gorm:"column:market_slug;type:varchar(128);comment:市场slug（深链用）"`
	EventSlug       string    `gorm:"column:event_slug;type:varchar(128);comment:事件slug"`
	Outcome         string    `gorm:"column:outcome;type:varchar(64);comment:结果选项"`
	Side            string    `gorm:"column:side;type:varchar(8);not null;comment:方向：BUY/SELL"`
	Size            float64   `gorm:"column:size;type:numeric(18,6);not null;comment:USD名义金额=数量*价格"`
	Price           float64   `gorm:"column:price;type:numeric(10,6);not null;comment:成交价（0-1概率）"`
	Timestamp       time.Time `gorm:"column:timestamp;type:timestamp;index;not null;comment:成交时间（naive UTC）"`
	TransactionHash string    `gorm:"column:transaction_hash;type:varchar(80);comment:链上交易哈希"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:入库时间"`
}

// Whale 鲸鱼聚合档案（可变缓存，真源是trades表，可随时重算）
type Whale struct {
	Address     string     `gorm:"column:address;type:varchar(64);primaryKey;comment:钱包地址（小写）"`
	Nickname    *string    `gorm:"column:nickname;type:varchar(64);comment:昵称"`
	TotalVolume float64    `gorm:"column:total_volume;type:numeric(18,6);default:0;comment:累计交易量"`
	TotalTrades int        `gorm:"column:total_trades;type:int;default:0;comment:累计交易笔数"`
	Wins        int        `gorm:"column:wins;type:int;default:0;comment:盈利笔数"`
	Losses      int        `gorm:"column:losses;type:int;default:0;comment:亏损笔数"`
	WinRate     float64    `gorm:"column:win_rate;type:numeric(8,4);default:0;comment:胜率百分比"`
	LastTradeAt *time.Time `gorm:"column:last_trade_at;type:timestamp;comment:最近成交时间"`
	FirstSeenAt time.Time  `gorm:"column:first_seen_at;type:timestamp;default:now();comment:首次发现时间"`
}

// Market 预测市场元数据（来自gamma目录，与成交管道独立刷新）
type Market struct {
	MarketID    string     `gorm:"column:market_id;type:varchar(80);primaryKey;comment:市场ID"`
	Question    string     `gorm:"column:question;type:varchar(256);not null;comment:市场问题"`
	Slug        string     `gorm:"column:slug;type:varchar(128);comment:URL slug"`
	Description string     `gorm:"column:description;type:text;comment:市场描述"`
	Category    string     `gorm:"column:category;type:varchar(64);comment:市场分类"`
	EndDate     *time.Time `gorm:"column:end_date;type:timestamp;comment:结束时间"`
	Volume      float64    `gorm:"column:volume;type:numeric(18,6);default:0;comment:总交易量"`
	Liquidity   float64    `gorm:"column:liquidity;type:numeric(18,6);default:0;comment:流动性"`
	Active      bool       `gorm:"column:active;type:boolean;default:true;comment:是否活跃"`
	LastUpdated time.Time  `gorm:"column:last_updated;type:timestamp;default:now();comment:最近刷新时间"`
}

// User Telegram用户
type User struct {
	UserID     int64          `gorm:"column:user_id;primaryKey;autoIncrement:false;comment:Telegram用户ID"`
	Username   *string        `gorm:"column:username;type:varchar(64);comment:Telegram用户名"`
	FirstName  *string        `gorm:"column:first_name;type:varchar(64);comment:名字"`
	Settings   datatypes.JSON `gorm:"column:settings;type:jsonb;comment:用户偏好（jsonb合并更新）"`
	IsActive   bool           `gorm:"column:is_active;type:boolean;default:true;comment:是否活跃"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:注册时间"`
	LastActive time.Time      `gorm:"column:last_active;type:timestamp;default:now();comment:最近活跃时间"`
}

// TrackedWhale 用户关注的鲸鱼（user_id+whale_address 唯一，重复关注为no-op）
type TrackedWhale struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	UserID       int64     `gorm:"column:user_id;uniqueIndex:uk_user_whale;not null;comment:用户ID"`
	WhaleAddress string    `gorm:"column:whale_address;type:varchar(64);uniqueIndex:uk_user_whale;not null;comment:鲸鱼地址"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:关注时间"`
}

// Alert 用户告警配置（filters为jsonb：min_size/markets/whales）
type Alert struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	AlertUUID string         `gorm:"column:alert_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	UserID    int64          `gorm:"column:user_id;index;not null;comment:用户ID"`
	AlertType string         `gorm:"column:alert_type;type:varchar(32);not null;comment:告警类型"`
	Filters   datatypes.JSON `gorm:"column:filters;type:jsonb;comment:过滤条件"`
	IsActive  bool           `gorm:"column:is_active;type:boolean;default:true;comment:是否启用"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
}

// BroadcastLog 播报去重日志：有行=已播报。插入由主键唯一约束保证原子性，
// 多实例并发时只有一个写入者能成功（跨进程互斥靠它，不用应用层锁）
type BroadcastLog struct {
	TradeID string    `gorm:"column:trade_id;type:varchar(80);primaryKey;comment:已播报交易ID"`
	SentAt  time.Time `gorm:"column:sent_at;type:timestamp;default:now();comment:播报时间"`
}

func (Trade) TableName() string        { return "trades" }
func (Whale) TableName() string        { return "whales" }
func (Market) TableName() string       { return "markets" }
func (User) TableName() string         { return "users" }
func (TrackedWhale) TableName() string { return "tracked_whales" }
func (Alert) TableName() string        { return "alerts" }
func (BroadcastLog) TableName() string { return "broadcast_log" }

// ShortAddress 地址缩写展示：0x1234...abcd
func (w *Whale) ShortAddress() string {
	return ShortenAddress(w.Address)
}

// DisplayName 昵称优先，否则用缩写地址
func (w *Whale) DisplayName() string {
	if w.Nickname != nil && *w.Nickname != "" {
		return *w.Nickname
	}
	return w.ShortAddress()
}

// ShortenAddress 地址缩写（不足10位原样返回）
func ShortenAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:6], addr[len(addr)-4:])
}

// FormatUSD 金额展示：$1.20M / $13.5k / $420.00
func FormatUSD(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.2fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.1fk", v/1_000)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

// ProfileURL 交易者的Polymarket主页
func ProfileURL(address string) string {
	return "https://polymarket.com/profile/" + address
}

// MarketURL slug存在时返回市场深链，否则回落到首页
func (m *Market) MarketURL() string {
	if m.Slug != "" {
		return "https://polymarket.com/market/" + m.Slug
	}
	return "https://polymarket.com"
}

// NormalizeAddress 地址统一小写（入库与比较前必须调用）
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
