package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"contracthub/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookEndpoint Webhook 端点配置
type WebhookEndpoint struct {
	Name    string
	URL     string
	Secret  string            // HMAC 签名密钥，为空时不签名
	Headers map[string]string // 自定义请求头
	Events  []EventType       // 订阅的事件类型，为空表示全部
}

// WebhookDelivery 单次投递结果
type WebhookDelivery struct {
	EventID      string
	URL          string
	ResponseCode int
	Duration     time.Duration
	Success      bool
	Err          error
}

// WebhookNotifier 将合同事件以 HMAC 签名的 JSON POST 投递到外部端点
// 自身不重试，投递失败返回错误，由队列负责重试
type WebhookNotifier struct {
	client    *http.Client
	endpoints []WebhookEndpoint
	logger    *zap.Logger
}

// WebhookOption Webhook 通知器选项
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(n *WebhookNotifier) { n.client = c }
}

// WithWebhookLogger 注入自定义日志器
func WithWebhookLogger(l *zap.Logger) WebhookOption {
	return func(n *WebhookNotifier) { n.logger = l }
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(endpoints []WebhookEndpoint, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		client:    &http.Client{Timeout: 10 * time.Second},
		endpoints: endpoints,
		logger:    logger.OrNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Notify 投递到所有订阅该事件的端点，返回失败端点的合并错误
func (n *WebhookNotifier) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for i := range n.endpoints {
		ep := &n.endpoints[i]
		if !ep.subscribes(evt.Type) {
			continue
		}
		delivery := n.deliver(ctx, ep, evt)
		if !delivery.Success {
			errs = append(errs, fmt.Errorf("webhook %s 投递失败: %w", ep.URL, delivery.Err))
			continue
		}
		n.logger.Debug("Webhook 投递完成",
			zap.String("url", ep.URL),
			zap.String("event_id", delivery.EventID),
			zap.Duration("duration", delivery.Duration),
		)
	}
	return errors.Join(errs...)
}

func (ep *WebhookEndpoint) subscribes(t EventType) bool {
	return len(ep.Events) == 0 || slices.Contains(ep.Events, t) || slices.Contains(ep.Events, "*")
}

func (n *WebhookNotifier) deliver(ctx context.Context, ep *WebhookEndpoint, evt Event) *WebhookDelivery {
	delivery := &WebhookDelivery{EventID: uuid.NewString(), URL: ep.URL}

	body, err := json.Marshal(evt)
	if err != nil {
		delivery.Err = fmt.Errorf("序列化事件失败: %w", err)
		return delivery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		delivery.Err = fmt.Errorf("创建请求失败: %w", err)
		return delivery
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ContractHub-Webhook/1.0")
	req.Header.Set("X-Webhook-ID", delivery.EventID)
	req.Header.Set("X-Webhook-Event", string(evt.Type))
	req.Header.Set("X-Webhook-Timestamp", evt.OccurredAt.UTC().Format(time.RFC3339))
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	if ep.Secret != "" {
		req.Header.Set("X-Webhook-Signature", SignWebhookPayload(body, ep.Secret))
	}

	start := time.Now()
	resp, err := n.client.Do(req)
	delivery.Duration = time.Since(start)
	if err != nil {
		delivery.Err = err
		return delivery
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10*1024))

	delivery.ResponseCode = resp.StatusCode
	delivery.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !delivery.Success {
		delivery.Err = fmt.Errorf("响应状态码 %d", resp.StatusCode)
	}
	return delivery
}

// SignWebhookPayload 计算请求体的 HMAC-SHA256 签名
func SignWebhookPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
