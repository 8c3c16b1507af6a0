// Package service 承载路由核心的业务逻辑：
// 提交端点的编排（contact.go）与入站邮件的状态机（dispatch.go）。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/mail"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/pool"
	"mailbridge/backend/internal/ratelimit"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/token"
	"mailbridge/backend/internal/verify"
)

var (
	// ErrRateLimited 表示客户端在当前窗口内的配额已用尽。
	ErrRateLimited = errors.New("too many requests")
)

// VerificationError 表示人机校验未通过，Reason 可直接展示给调用方。
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return e.Reason
}

// Verifier 人机校验的契约，生产实现是 verify.Verifier。
type Verifier interface {
	Verify(ctx context.Context, clientToken, remoteIP string) verify.Result
}

// relayTimeout 单次后台转发的时间上限
const relayTimeout = 30 * time.Second

// ContactService 编排公开提交端点的完整流程。
type ContactService struct {
	store    storage.ThreadRepository
	limiter  *ratelimit.Limiter
	verifier Verifier
	composer *mail.Composer
	notifier mail.Sender
	tasks    *pool.WorkerPool
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	defaultSubject string
	threadTTL      time.Duration

	now func() time.Time
}

// ContactServiceConfig 提交服务的业务参数。
type ContactServiceConfig struct {
	DefaultSubject string
	ThreadTTL      time.Duration
}

// NewContactService 创建提交服务。
func NewContactService(
	store storage.ThreadRepository,
	limiter *ratelimit.Limiter,
	verifier Verifier,
	composer *mail.Composer,
	notifier mail.Sender,
	tasks *pool.WorkerPool,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	cfg ContactServiceConfig,
) *ContactService {
	return &ContactService{
		store:          store,
		limiter:        limiter,
		verifier:       verifier,
		composer:       composer,
		notifier:       notifier,
		tasks:          tasks,
		metrics:        metrics,
		logger:         logger,
		defaultSubject: cfg.DefaultSubject,
		threadTTL:      cfg.ThreadTTL,
		now:            time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (s *ContactService) SetClock(now func() time.Time) {
	s.now = now
}

// Submit 处理一次表单提交：校验、人机验证、限流，然后铸造线程并持久化。
//
// 管理员通知在响应确定后由后台任务池转发，投递失败只记录日志，
// 不影响已返回的成功结果（"已接收"不等于"已送达"）。
func (s *ContactService) Submit(ctx context.Context, req domain.ContactRequest, clientIP string) (*domain.Thread, error) {
	if err := req.Validate(); err != nil {
		s.metrics.RecordSubmission("validation")
		return nil, err
	}

	if res := s.verifier.Verify(ctx, req.BotToken, clientIP); !res.Valid {
		s.metrics.RecordSubmission("verification")
		return nil, &VerificationError{Reason: res.Reason}
	}

	rate, err := s.limiter.Check(ctx, clientIP)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !rate.Allowed {
		s.metrics.RecordSubmission("rate_limited")
		s.metrics.RateLimitBlocks.Inc()
		return nil, ErrRateLimited
	}

	tok, err := token.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	thread := &domain.Thread{
		Token:              tok,
		VisitorEmail:       req.Email,
		VisitorName:        req.Name,
		Subject:            req.FinalSubject(s.defaultSubject),
		CreatedAt:          s.now(),
		LastVisitorMessage: req.Message,
	}

	if err := s.store.SaveThread(ctx, thread, s.threadTTL); err != nil {
		return nil, fmt.Errorf("save thread: %w", err)
	}

	s.metrics.RecordSubmission("accepted")
	s.metrics.ThreadsCreated.Inc()

	// 响应已确定，通知转发交给后台任务池
	notification := s.composer.ContactNotification(thread, req.Message)
	s.tasks.Submit(func() {
		relayCtx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()

		err := s.notifier.Send(relayCtx, notification)
		s.metrics.RecordRelay("notify", err)
		if err != nil {
			s.logger.Error("contact notification relay failed",
				zap.String("token", thread.Token),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("contact notification relayed",
			zap.String("token", thread.Token),
		)
	})

	return thread, nil
}
