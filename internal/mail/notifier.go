package mail

import (
	"bytes"
	"context"
	"fmt"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// SMTPNotifier 通过 SMTP smarthost 投递通知邮件（推送通道）。
//
// 单发单收，不做队列与重试。
type SMTPNotifier struct {
	addr     string // smarthost 地址，host:port
	username string
	password string
}

// NewSMTPNotifier 创建 SMTP 通知通道。username 为空时匿名投递。
func NewSMTPNotifier(addr, username, password string) *SMTPNotifier {
	return &SMTPNotifier{addr: addr, username: username, password: password}
}

// Send 渲染并投递一封通知邮件。
func (n *SMTPNotifier) Send(ctx context.Context, msg *Message) error {
	raw, err := Render(msg)
	if err != nil {
		return err
	}

	var auth sasl.Client
	if n.username != "" {
		auth = sasl.NewPlainClient("", n.username, n.password)
	}

	if err := gosmtp.SendMail(n.addr, auth, msg.From, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

var _ Sender = (*SMTPNotifier)(nil)
