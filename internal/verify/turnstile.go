// Package verify 对接 Cloudflare Turnstile 的服务端校验。
package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint Turnstile 官方校验地址
const DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

const genericFailureReason = "captcha verification failed"

// Result 是一次人机校验的结果。
type Result struct {
	Valid  bool
	Reason string // 失败原因，给调用方展示
}

// Verifier 人机校验器。
//
// 失败即拒绝（fail-closed）：非成功判定、响应畸形、网络错误
// 一律视为无效，不重试。
type Verifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

// NewVerifier 创建校验器。endpoint 为空时使用官方地址。
func NewVerifier(secret, endpoint string) *Verifier {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Verifier{
		secret:   secret,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify 将客户端令牌转发给校验服务。remoteIP 可为空。
func (v *Verifier) Verify(ctx context.Context, clientToken, remoteIP string) Result {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", clientToken)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Valid: false, Reason: genericFailureReason}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{Valid: false, Reason: genericFailureReason}
	}
	defer resp.Body.Close()

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{Valid: false, Reason: genericFailureReason}
	}

	if !body.Success {
		reason := strings.Join(body.ErrorCodes, ", ")
		if reason == "" {
			reason = genericFailureReason
		}
		return Result{Valid: false, Reason: reason}
	}

	return Result{Valid: true}
}
