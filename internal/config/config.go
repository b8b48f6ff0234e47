package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`     // 服务器配置
	Postgres   PostgresConfig   `mapstructure:"postgres"`   // PostgreSQL配置
	Polymarket PolymarketConfig `mapstructure:"polymarket"` // Polymarket上游API配置
	Whale      WhaleConfig      `mapstructure:"whale"`      // 鲸鱼判定配置（唯一权威来源）
	Tracker    TrackerConfig    `mapstructure:"tracker"`    // 交易轮询配置
	Broadcast  BroadcastConfig  `mapstructure:"broadcast"`  // 频道播报配置
	Telegram   TelegramConfig   `mapstructure:"telegram"`   // Telegram推送配置
	Markets    MarketsConfig    `mapstructure:"markets"`    // 市场目录同步配置
	Log        LogConfig        `mapstructure:"log"`        // 日志配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// PolymarketConfig Polymarket上游API配置（data-api为成交流水，gamma为市场目录）
type PolymarketConfig struct {
	DataAPIBaseURL  string `mapstructure:"data_api_base_url"`  // data-api基础地址
	GammaAPIBaseURL string `mapstructure:"gamma_api_base_url"` // gamma-api基础地址
	Timeout         int    `mapstructure:"timeout"`            // 请求超时（秒）
	Proxy           string `mapstructure:"proxy"`              // 代理地址
}

// WhaleConfig 鲸鱼阈值配置。历史版本各处阈值不一致（500/10000混用），
// 现统一从这里读取：默认 threshold=10000，tiers=10000/50000/100000
type WhaleConfig struct {
	Threshold float64   `mapstructure:"threshold"` // 鲸鱼最低USD金额
	Tiers     []float64 `mapstructure:"tiers"`     // 三级分层边界（升序，长度3）
}

// TrackerConfig 交易轮询配置
type TrackerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`   // 轮询间隔
	FetchLimit    int           `mapstructure:"fetch_limit"`     // 单页拉取条数
	SeenCacheSize int           `mapstructure:"seen_cache_size"` // 内存去重缓存容量
}

// BroadcastConfig 频道播报配置（与轮询独立调度）
type BroadcastConfig struct {
	Enabled   bool          `mapstructure:"enabled"`    // 是否启用播报
	Interval  time.Duration `mapstructure:"interval"`   // 播报间隔
	MinSize   float64       `mapstructure:"min_size"`   // 最低播报金额
	ChannelID string        `mapstructure:"channel_id"` // 目标频道（@channel或数字ID）
}

// TelegramConfig Telegram Bot API配置
type TelegramConfig struct {
	BotToken   string `mapstructure:"bot_token"`    // Bot Token（建议走.env）
	APIBaseURL string `mapstructure:"api_base_url"` // Bot API地址（默认官方）
}

// MarketsConfig 市场目录同步配置
type MarketsConfig struct {
	SyncInterval time.Duration `mapstructure:"sync_interval"` // 同步间隔
	FetchLimit   int           `mapstructure:"fetch_limit"`   // 单次拉取条数
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"` // 日志级别：debug/info/warn/error
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	// 4. 启动期校验：缺少必需配置直接拒绝启动
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHANNEL_ID"); v != "" {
		cfg.Broadcast.ChannelID = v
	}
}

// applyDefaults 填充未配置项的默认值
func applyDefaults(cfg *Config) {
	if cfg.Polymarket.DataAPIBaseURL == "" {
		cfg.Polymarket.DataAPIBaseURL = "https://data-api.polymarket.com"
	}
	if cfg.Polymarket.GammaAPIBaseURL == "" {
		cfg.Polymarket.GammaAPIBaseURL = "https://gamma-api.polymarket.com"
	}
	if cfg.Polymarket.Timeout <= 0 {
		cfg.Polymarket.Timeout = 30
	}
	if cfg.Whale.Threshold <= 0 {
		cfg.Whale.Threshold = 10000
	}
	if len(cfg.Whale.Tiers) != 3 {
		cfg.Whale.Tiers = []float64{10000, 50000, 100000}
	}
	if cfg.Tracker.PollInterval <= 0 {
		cfg.Tracker.PollInterval = 60 * time.Second
	}
	if cfg.Tracker.FetchLimit <= 0 {
		cfg.Tracker.FetchLimit = 100
	}
	if cfg.Tracker.SeenCacheSize <= 0 {
		cfg.Tracker.SeenCacheSize = 1000
	}
	if cfg.Broadcast.Interval <= 0 {
		cfg.Broadcast.Interval = 60 * time.Second
	}
	if cfg.Broadcast.MinSize <= 0 {
		cfg.Broadcast.MinSize = 1000
	}
	if cfg.Telegram.APIBaseURL == "" {
		cfg.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if cfg.Markets.SyncInterval <= 0 {
		cfg.Markets.SyncInterval = 5 * time.Minute
	}
	if cfg.Markets.FetchLimit <= 0 {
		cfg.Markets.FetchLimit = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate 校验必需配置；校验失败属于启动期致命错误
func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("缺少必需配置: postgres.dsn（或环境变量 POSTGRES_DSN）")
	}
	if c.Broadcast.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("播报已启用但缺少 telegram.bot_token（或环境变量 TELEGRAM_BOT_TOKEN）")
	}
	if !(c.Whale.Tiers[0] <= c.Whale.Tiers[1] && c.Whale.Tiers[1] <= c.Whale.Tiers[2]) {
		return fmt.Errorf("whale.tiers 必须为升序: %v", c.Whale.Tiers)
	}
	return nil
}
