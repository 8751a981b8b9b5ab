package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 30 * time.Second

// Webhook публикует пост POST-запросом с JSON-телом Request.
//
// Ответ 2xx — успех. Ответ >= 400 — ErrRejected с кодом и началом тела.
// Сетевые ошибки возвращаются как есть.
type Webhook struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
}

// NewWebhook создаёт Webhook с клиентом по умолчанию.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: defaultWebhookTimeout},
	}
}

// Publish отправляет запрос на URL.
func (w *Webhook) Publish(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.ScheduleID.String())
	for key, val := range w.Headers {
		httpReq.Header.Set(key, val)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", req.Platform, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, truncate(string(respBody), 200))
	}
	return nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
