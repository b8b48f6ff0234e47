package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"WhaleSync/internal/config"

	"github.com/sirupsen/logrus"
)

// TelegramNotifier Telegram Bot API推送器。未配置token时降级为no-op，
// 便于无播报环境（本地开发/纯查询实例）跑同一套二进制。
type TelegramNotifier struct {
	token      string
	apiBaseURL string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewTelegramNotifier 创建Telegram推送器
func NewTelegramNotifier(cfg *config.TelegramConfig, logger *logrus.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		token:      cfg.BotToken,
		apiBaseURL: cfg.APIBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Enabled 是否已配置token
func (n *TelegramNotifier) Enabled() bool {
	return n.token != ""
}

// Send 调用sendMessage向频道发送Markdown消息。
// channelID支持@频道名或数字chat_id，原样透传给Bot API。
func (n *TelegramNotifier) Send(ctx context.Context, channelID, text string) error {
	if !n.Enabled() {
		n.logger.Debug("Telegram未配置token，消息已丢弃")
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id":    channelID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBaseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("Telegram API返回 %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
