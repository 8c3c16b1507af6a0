package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/mail"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/quote"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/token"
)

// InboundMessage 是入站邮件事件的解析结果。
type InboundMessage struct {
	EnvelopeFrom  string   // SMTP 信封发件人
	EnvelopeTo    string   // SMTP 信封收件人
	FromAddress   string   // From 头的地址部分（可能为空，回退到信封）
	FromName      string   // From 头的显示名
	Recipients    []string // To 头的全部地址
	Subject       string
	Text          string
	HasLoopMarker bool // 是否携带系统的防循环标记头
}

// 入站路由决策，用于日志和指标
const (
	routeAdminReply   = "admin_reply"
	routeVisitorReply = "visitor_reply"
	routeNewThread    = "new_thread"
	routeLoopDropped  = "loop_dropped"
	routeEmptyReply   = "empty_reply"
	routeDropped      = "dropped"
)

// DispatcherConfig 入站路由的业务参数。
type DispatcherConfig struct {
	Domain         string // 服务域名
	ReplyLocalPart string // 回复地址 local-part 前缀
	AdminAddress   string // 管理员发信地址，入站分类的依据
	ContactFrom    string // 系统通知发件地址，防循环判断用
	Destination    string // 管理员真实邮箱，防循环判断用
	DefaultSubject string // 回退线程的默认主题
	ThreadTTL      time.Duration
}

// Dispatcher 是入站邮件的路由状态机。
//
// 每封来信独立分类、独立路由，进程内不保存状态。下游任何失败
// （存储、发信）都记录日志后丢弃事件——没有同步调用方可以上报。
type Dispatcher struct {
	store         storage.ThreadRepository
	composer      *mail.Composer
	notifier      mail.Sender // 推送通道：→ 管理员邮箱
	transactional mail.Sender // 事务通道：→ 访客
	metrics       *monitoring.Metrics
	logger        *zap.Logger
	cfg           DispatcherConfig

	now func() time.Time
}

// NewDispatcher 创建入站路由器。
func NewDispatcher(
	store storage.ThreadRepository,
	composer *mail.Composer,
	notifier mail.Sender,
	transactional mail.Sender,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	return &Dispatcher{
		store:         store,
		composer:      composer,
		notifier:      notifier,
		transactional: transactional,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch 处理一封入站邮件。所有结果单向：成功与否都不返回给投递方。
func (d *Dispatcher) Dispatch(ctx context.Context, msg *InboundMessage) {
	log := d.logger.With(zap.String("event_id", uuid.NewString()))

	fromEmail := token.BareAddress(msg.FromAddress)
	if fromEmail == "" {
		fromEmail = token.BareAddress(msg.EnvelopeFrom)
	}

	// 解析令牌：扫描全部收件地址，最后回退到信封收件人
	tok := d.resolveToken(msg)

	// 防循环：带标记且收发地址指向系统自身时直接丢弃
	if msg.HasLoopMarker && d.isOwnRelay(fromEmail, msg.EnvelopeTo) {
		log.Info("dropping own relay", zap.String("from", fromEmail))
		d.metrics.RecordInbound(routeLoopDropped)
		return
	}

	thread, created := d.resolveThread(ctx, log, tok, fromEmail, msg)
	if thread == nil {
		d.metrics.RecordInbound(routeDropped)
		return
	}

	if fromEmail == d.cfg.AdminAddress {
		d.relayAdminReply(ctx, log, thread, msg.Text)
		return
	}
	d.relayVisitorReply(ctx, log, thread, created, fromEmail, msg)
}

// resolveToken 从收件地址中提取线程令牌，找不到时返回空串。
func (d *Dispatcher) resolveToken(msg *InboundMessage) string {
	for _, addr := range msg.Recipients {
		if tok, ok := token.ExtractFromAddress(addr, d.cfg.ReplyLocalPart, d.cfg.Domain); ok {
			return tok
		}
	}
	if tok, ok := token.ExtractFromAddress(msg.EnvelopeTo, d.cfg.ReplyLocalPart, d.cfg.Domain); ok {
		return tok
	}
	return ""
}

// isOwnRelay 判断一封带标记的邮件是否为本系统转发的产物。
func (d *Dispatcher) isOwnRelay(fromEmail, envelopeTo string) bool {
	toEmail := token.BareAddress(envelopeTo)
	return strings.Contains(toEmail, d.cfg.Destination) || fromEmail == d.cfg.ContactFrom
}

// resolveThread 按令牌取线程；缺失或畸形时合成回退线程并持久化。
//
// 返回的第二个值表示线程是否由本次调用新建。持久化失败返回 nil，
// 事件丢弃。
func (d *Dispatcher) resolveThread(ctx context.Context, log *zap.Logger, tok, fromEmail string, msg *InboundMessage) (*domain.Thread, bool) {
	if tok != "" {
		thread, err := d.store.GetThread(ctx, tok)
		switch {
		case err == nil && thread.Token != "" && thread.VisitorEmail != "":
			return thread, false
		case err != nil && !errors.Is(err, storage.ErrThreadNotFound):
			log.Error("thread lookup failed", zap.String("token", tok), zap.Error(err))
			return nil, false
		}
	}

	// 回退线程：保证每封来信都有归宿
	newToken := tok
	if newToken == "" {
		generated, err := token.Generate()
		if err != nil {
			log.Error("token generation failed", zap.Error(err))
			return nil, false
		}
		newToken = generated
	}

	thread := &domain.Thread{
		Token:              newToken,
		VisitorEmail:       fromEmail,
		VisitorName:        visitorName(msg.FromName, fromEmail),
		Subject:            orDefault(msg.Subject, d.cfg.DefaultSubject),
		CreatedAt:          d.now(),
		LastVisitorMessage: msg.Text,
	}

	if err := d.store.SaveThread(ctx, thread, d.cfg.ThreadTTL); err != nil {
		log.Error("fallback thread save failed", zap.String("token", newToken), zap.Error(err))
		return nil, false
	}

	log.Info("fallback thread created", zap.String("token", newToken))
	return thread, true
}

// relayAdminReply 管理员回复：剥离引用后经事务通道转发给访客。
func (d *Dispatcher) relayAdminReply(ctx context.Context, log *zap.Logger, thread *domain.Thread, text string) {
	clean := quote.ExtractNewContent(text)
	if clean == "" {
		// 引用剥完没剩内容，视为非消息（如纯引用回复）
		log.Info("admin reply empty after quote stripping", zap.String("token", thread.Token))
		d.metrics.RecordInbound(routeEmptyReply)
		return
	}

	err := d.transactional.Send(ctx, d.composer.AdminReply(thread, clean))
	d.metrics.RecordRelay("transactional", err)
	if err != nil {
		log.Error("admin reply relay failed",
			zap.String("token", thread.Token),
			zap.Error(err),
		)
		return
	}

	now := d.now()
	thread.LastAdminReplyAt = &now
	if err := d.store.SaveThread(ctx, thread, d.cfg.ThreadTTL); err != nil {
		log.Error("thread update failed", zap.String("token", thread.Token), zap.Error(err))
	}

	d.metrics.RecordInbound(routeAdminReply)
	log.Info("admin reply relayed",
		zap.String("token", thread.Token),
		zap.String("to", thread.VisitorEmail),
	)
}

// relayVisitorReply 访客来信：通知管理员。发件人与线程访客不符时
// 另起独立线程，绝不并入原线程。
func (d *Dispatcher) relayVisitorReply(ctx context.Context, log *zap.Logger, thread *domain.Thread, created bool, fromEmail string, msg *InboundMessage) {
	if !strings.EqualFold(thread.VisitorEmail, fromEmail) {
		log.Info("sender does not match thread visitor",
			zap.String("token", thread.Token),
			zap.String("sender", fromEmail),
		)

		newToken, err := token.Generate()
		if err != nil {
			log.Error("token generation failed", zap.Error(err))
			return
		}

		newThread := &domain.Thread{
			Token:              newToken,
			VisitorEmail:       fromEmail,
			VisitorName:        visitorName(msg.FromName, fromEmail),
			Subject:            orDefault(msg.Subject, thread.Subject),
			CreatedAt:          d.now(),
			LastVisitorMessage: msg.Text,
		}
		if err := d.store.SaveThread(ctx, newThread, d.cfg.ThreadTTL); err != nil {
			log.Error("new thread save failed", zap.String("token", newToken), zap.Error(err))
			return
		}

		err = d.notifier.Send(ctx, d.composer.VisitorReplyNotification(newThread, msg.Text))
		d.metrics.RecordRelay("notify", err)
		if err != nil {
			log.Error("new thread notification failed", zap.String("token", newToken), zap.Error(err))
		}
		d.metrics.RecordInbound(routeNewThread)
		return
	}

	err := d.notifier.Send(ctx, d.composer.VisitorReplyNotification(thread, msg.Text))
	d.metrics.RecordRelay("notify", err)
	if err != nil {
		log.Error("visitor reply notification failed", zap.String("token", thread.Token), zap.Error(err))
	}

	thread.LastVisitorMessage = msg.Text
	if err := d.store.SaveThread(ctx, thread, d.cfg.ThreadTTL); err != nil {
		log.Error("thread update failed", zap.String("token", thread.Token), zap.Error(err))
	}

	d.metrics.RecordInbound(routeVisitorReply)
	log.Info("visitor reply relayed",
		zap.String("token", thread.Token),
		zap.Bool("fallback_thread", created),
	)
}

// visitorName 取显示名，缺失时退化到地址的 local-part。
func visitorName(name, email string) string {
	if name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
