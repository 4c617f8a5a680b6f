package inherit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"

	"Heritage/pkg/logger"
)

// WebhookTrigger 通过 HTTP webhook 通知下游资产释放系统
type WebhookTrigger struct {
	client *client.Client
	url    string
	token  string
}

type releaseRequest struct {
	UserID      int64  `json:"user_id"`
	TriggeredAt string `json:"triggered_at"`
}

func NewWebhookTrigger(url, token string) (*WebhookTrigger, error) {
	if url == "" {
		return nil, fmt.Errorf("inheritance webhook url is required")
	}

	c, err := client.NewClient(
		client.WithDialTimeout(5*time.Second),
		client.WithClientReadTimeout(10*time.Second),
		client.WithWriteTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}

	return &WebhookTrigger{
		client: c,
		url:    url,
		token:  token,
	}, nil
}

// BeginRelease 同步投递，非 2xx 视为失败，由调用方负责重试
func (t *WebhookTrigger) BeginRelease(ctx context.Context, userID int64) error {
	body, err := json.Marshal(releaseRequest{
		UserID:      userID,
		TriggeredAt: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal release request: %w", err)
	}

	req := &protocol.Request{}
	resp := &protocol.Response{}
	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(t.url)
	req.SetBody(body)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	if err := t.client.Do(ctx, req, resp); err != nil {
		logger.Logger.Error("Failed to call inheritance webhook",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call inheritance webhook: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		logger.Logger.Error("Inheritance webhook returned error",
			zap.Int64("user_id", userID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("inheritance webhook error: status=%d", resp.StatusCode())
	}

	return nil
}
