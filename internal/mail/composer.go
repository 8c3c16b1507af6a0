// Package mail 构造并发送系统的出站邮件。
//
// 两条出站通道：
//   - 推送通知（SMTP smarthost）：访客新来信/回信 → 管理员邮箱
//   - 事务邮件（Resend REST）：管理员回复 → 访客
//
// 所有出站邮件都带防循环标记头，入站侧据此识别系统自身的产物。
package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/token"
)

// LoopMarkerHeader 防循环标记头。所有系统生成的邮件都会携带，
// 入站处理发现该标记且收发地址指向系统自身时直接丢弃。
const LoopMarkerHeader = "X-Mailbridge-Relay"

// LoopMarkerValue 标记头的固定值
const LoopMarkerValue = "1"

// Message 一封待发送的出站邮件。
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	ReplyTo string
}

// Sender 出站邮件通道的统一契约。
//
// 发送方不重试：单次失败即为该次投递的最终结果。
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// ComposerConfig 构造出站邮件所需的地址配置。
type ComposerConfig struct {
	Domain         string // 服务域名，回复地址的 @ 后缀
	ReplyLocalPart string // 回复地址的 local-part 前缀
	ContactFrom    string // 通知邮件的发件地址
	Destination    string // 管理员的真实收件邮箱
	ResendFrom     string // 事务邮件的发件地址
}

// Composer 按线程构造各类出站邮件。
type Composer struct {
	cfg ComposerConfig
}

// NewComposer 创建邮件构造器。
func NewComposer(cfg ComposerConfig) *Composer {
	return &Composer{cfg: cfg}
}

// ReplyAddress 返回线程的子地址回复地址。
func (c *Composer) ReplyAddress(thread *domain.Thread) string {
	return token.ReplyAddress(c.cfg.ReplyLocalPart, thread.Token, c.cfg.Domain)
}

// ContactNotification 构造"新访客来信"通知，发往管理员邮箱。
func (c *Composer) ContactNotification(thread *domain.Thread, message string) *Message {
	replyTo := c.ReplyAddress(thread)

	body := fmt.Sprintf(`New contact message.

From: %s
Email: %s
Subject: %s

Message:
%s

---
Reply to this email and the visitor will receive your answer at %s.

Quick reply: mailto:%s?subject=Re:%s`,
		thread.VisitorName, thread.VisitorEmail, thread.Subject,
		message,
		thread.VisitorEmail,
		replyTo, thread.Subject)

	return &Message{
		From:    c.cfg.ContactFrom,
		To:      c.cfg.Destination,
		Subject: fmt.Sprintf("[Contact] %s - %s", thread.VisitorName, thread.Subject),
		Text:    body,
		ReplyTo: replyTo,
	}
}

// VisitorReplyNotification 构造"访客回信"通知，发往管理员邮箱。
func (c *Composer) VisitorReplyNotification(thread *domain.Thread, message string) *Message {
	replyTo := c.ReplyAddress(thread)

	body := fmt.Sprintf(`The visitor replied to the conversation.

From: %s <%s>
Original subject: %s

Message:
%s

---
Reply to this email to answer.`,
		thread.VisitorName, thread.VisitorEmail, thread.Subject, message)

	return &Message{
		From:    c.cfg.ContactFrom,
		To:      c.cfg.Destination,
		Subject: fmt.Sprintf("[Visitor Reply] %s", thread.Subject),
		Text:    body,
		ReplyTo: replyTo,
	}
}

// AdminReply 构造管理员回复的转发邮件，发往访客。
func (c *Composer) AdminReply(thread *domain.Thread, text string) *Message {
	return &Message{
		From:    c.cfg.ResendFrom,
		To:      thread.VisitorEmail,
		Subject: "Re: " + thread.Subject,
		Text:    text,
		ReplyTo: c.ReplyAddress(thread),
	}
}

// Render 将出站邮件渲染为 MIME 原文，供 SMTP 通道投递。
func Render(msg *Message) ([]byte, error) {
	var h gomail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*gomail.Address{{Address: msg.From}})
	h.SetAddressList("To", []*gomail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	if msg.ReplyTo != "" {
		h.Set("Reply-To", msg.ReplyTo)
	}
	h.Set(LoopMarkerHeader, LoopMarkerValue)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mime writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Text); err != nil {
		w.Close()
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close mime writer: %w", err)
	}

	return buf.Bytes(), nil
}
