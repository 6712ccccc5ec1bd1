package webhook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// トピック名。
const (
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
	TopicAppUninstalled       = "app/uninstalled"
)

// ErrUnknownTopic はハンドラが登録されていないトピックの配信を受け取ったことを表す。
var ErrUnknownTopic = errors.New("webhook: unknown topic")

// Delivery は1件のWebhook配信。
type Delivery struct {
	// Topic はX-Shopify-Topicヘッダーの値。
	Topic string
	// Shop はX-Shopify-Shop-Domainヘッダーの値。
	Shop string
	// WebhookID はX-Shopify-Webhook-Idヘッダーの値。
	WebhookID string
	// APIVersion はX-Shopify-API-Versionヘッダーの値。
	APIVersion string
	// Body はリクエストボディ（JSON）。
	Body []byte
}

// Handler は1件の配信を処理する。エラーを返すと配信は失敗として応答される。
type Handler func(ctx context.Context, d Delivery) error

// Registry はトピックごとのハンドラを保持する。
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Handle はトピックのハンドラを登録する。同じトピックは上書きされる。
func (r *Registry) Handle(topic string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[normalizeTopic(topic)] = h
}

// Topics は登録済みのトピックを昇順で返す。
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Dispatch は配信をトピックのハンドラに渡す。
// ハンドラが無い場合はErrUnknownTopicを返す。
func (r *Registry) Dispatch(ctx context.Context, d Delivery) error {
	r.mu.RLock()
	h, ok := r.handlers[normalizeTopic(d.Topic)]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, d.Topic)
	}
	if err := h(ctx, d); err != nil {
		return fmt.Errorf("Webhookの処理に失敗: topic=%s, shop=%s: %w", d.Topic, d.Shop, err)
	}
	return nil
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
