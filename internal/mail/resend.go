package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultResendEndpoint Resend 官方发信地址
const DefaultResendEndpoint = "https://api.resend.com/emails"

// ResendClient 通过 Resend REST API 投递事务邮件（管理员 → 访客通道）。
type ResendClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewResendClient 创建 Resend 客户端。endpoint 为空时使用官方地址。
func NewResendClient(apiKey, endpoint string) *ResendClient {
	if endpoint == "" {
		endpoint = DefaultResendEndpoint
	}
	return &ResendClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type resendPayload struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	Text    string            `json:"text"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Send 发送一封事务邮件。非 2xx 响应视为失败，携带响应体返回。
func (r *ResendClient) Send(ctx context.Context, msg *Message) error {
	payload := resendPayload{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		Headers: map[string]string{
			LoopMarkerHeader: LoopMarkerValue,
		},
	}
	if msg.ReplyTo != "" {
		payload.Headers["Reply-To"] = msg.ReplyTo
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend responded %d: %s", resp.StatusCode, string(detail))
	}

	return nil
}

var _ Sender = (*ResendClient)(nil)
