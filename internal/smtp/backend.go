package smtp

import (
	"context"
	"io"
	"net/mail"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"mailbridge/backend/internal/pool"
	"mailbridge/backend/internal/service"
)

// 单封来信的最大体积与后台分发的时间上限。
const (
	maxMessageBytes = 10 << 20 // 10MB
	dispatchTimeout = 30 * time.Second
)

// Router 是入站邮件的分发入口。
type Router interface {
	Dispatch(ctx context.Context, msg *service.InboundMessage)
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 【安全说明】
// 这是一个只接收邮件的 SMTP 服务器（Receiving-Only SMTP Server）。
// 特性：
// - ✅ 只接收发送到服务域名的邮件
// - ✅ 严格验证收件人域名
// - ❌ 不支持对外中继（出站走独立的投递通道）
// - ❌ 不会成为垃圾邮件中继或开放中继
//
// 安全机制：
// 1. Rcpt() 方法严格验证收件人域名
// 2. 外部域名一律返回 550 错误拒绝
// 3. 本域内不存在的会话由分发器兜底，不在 SMTP 层拒绝
type Backend struct {
	router Router
	tasks  *pool.WorkerPool
	logger *zap.Logger
	domain string
}

// NewBackend 创建 SMTP Backend。
func NewBackend(router Router, tasks *pool.WorkerPool, logger *zap.Logger, domain string) *Backend {
	return &Backend{
		router: router,
		tasks:  tasks,
		logger: logger,
		domain: strings.ToLower(domain),
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &session{
		backend: b,
	}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 【安全关键】此方法是防止邮件中继的核心。
// 只接受发送到服务域名的邮件，拒绝所有外部地址。
// 未知令牌、未知 local part 不在这里拒绝：分发器会为它们
// 合成回退会话，SMTP 层只把关域名。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if !strings.EqualFold(parts[1], s.backend.domain) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 处理邮件内容。
//
// 解析在会话内完成，分发交给工作池异步执行，SMTP 会话
// 不等待转发结果。解析失败才向对端报错。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, maxMessageBytes))
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(rawBytes)
	if err != nil {
		s.backend.logger.Warn("inbound parse failed",
			zap.String("from", s.fromAddress),
			zap.Error(err),
		)
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "message could not be parsed",
		}
	}

	text := parsed.Text
	if text == "" {
		text = parsed.HTML
	}

	// To 头里的地址优先于信封收件人，部分转发链路只在头里保留令牌地址
	recipients := headerRecipients(parsed.To)
	recipients = append(recipients, s.recipients...)

	msg := &service.InboundMessage{
		EnvelopeFrom:  s.fromAddress,
		EnvelopeTo:    firstRecipient(s.recipients),
		FromAddress:   parsed.From,
		FromName:      parsed.FromName,
		Recipients:    recipients,
		Subject:       parsed.Subject,
		Text:          text,
		HasLoopMarker: parsed.HasLoopMarker,
	}

	s.backend.tasks.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		s.backend.router.Dispatch(ctx, msg)
	})

	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	return nil
}

func firstRecipient(recipients []string) string {
	if len(recipients) == 0 {
		return ""
	}
	return recipients[0]
}

func headerRecipients(header string) []string {
	if header == "" {
		return nil
	}

	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		return nil
	}

	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, strings.ToLower(a.Address))
	}
	return out
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
