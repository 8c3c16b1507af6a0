package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/health"
	"mailbridge/backend/internal/logger"
	"mailbridge/backend/internal/mail"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/pool"
	"mailbridge/backend/internal/ratelimit"
	"mailbridge/backend/internal/service"
	"mailbridge/backend/internal/smtp"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/storage/memory"
	redisstore "mailbridge/backend/internal/storage/redis"
	httptransport "mailbridge/backend/internal/transport/http"
	"mailbridge/backend/internal/verify"
)

// main 启动同时包含公开提交 API 与入站 SMTP 的中继服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailbridge server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Redis.Address != "" {
		store, err = redisstore.NewStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic(fmt.Sprintf("failed to connect redis: %v", err))
		}
		log.Info("using redis storage", zap.String("address", cfg.Redis.Address))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, log)

	// 后台任务池：提交通知与入站分发都在这里执行
	tasks := pool.NewWorkerPool(4, 256, log)
	tasks.Start(context.Background())

	// 出站通道与协作方
	composer := mail.NewComposer(mail.ComposerConfig{
		Domain:         cfg.Mail.Domain,
		ReplyLocalPart: cfg.Mail.ReplyLocalPart,
		ContactFrom:    cfg.Mail.ContactFrom,
		Destination:    cfg.Mail.Destination,
		ResendFrom:     cfg.Resend.From,
	})
	notifier := mail.NewSMTPNotifier(cfg.Notify.Addr, cfg.Notify.Username, cfg.Notify.Password)
	transactional := mail.NewResendClient(cfg.Resend.APIKey, cfg.Resend.Endpoint)
	verifier := verify.NewVerifier(cfg.Turnstile.Secret, cfg.Turnstile.Endpoint)
	limiter := ratelimit.NewLimiter(store, cfg.Rate.Window, cfg.Rate.Max)

	// 初始化服务层
	contactService := service.NewContactService(
		store,
		limiter,
		verifier,
		composer,
		notifier,
		tasks,
		metrics,
		log,
		service.ContactServiceConfig{
			DefaultSubject: cfg.Mail.DefaultSubject,
			ThreadTTL:      cfg.Mail.ThreadTTL,
		},
	)
	dispatcher := service.NewDispatcher(
		store,
		composer,
		notifier,
		transactional,
		metrics,
		log,
		service.DispatcherConfig{
			Domain:         cfg.Mail.Domain,
			ReplyLocalPart: cfg.Mail.ReplyLocalPart,
			AdminAddress:   cfg.Mail.AdminAddress,
			ContactFrom:    cfg.Mail.ContactFrom,
			Destination:    cfg.Mail.Destination,
			DefaultSubject: cfg.Mail.DefaultSubject,
			ThreadTTL:      cfg.Mail.ThreadTTL,
		},
	)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		ContactService: contactService,
		HealthChecker:  healthChecker,
		Metrics:        metrics,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 创建入站 SMTP 服务器（只收不转）
	smtpBackend := smtp.NewBackend(dispatcher, tasks, log, cfg.Mail.Domain)
	smtpServer := gosmtp.NewServer(smtpBackend)
	smtpServer.Addr = cfg.SMTP.BindAddr
	smtpServer.Domain = cfg.SMTP.Domain
	smtpServer.ReadTimeout = 10 * time.Second
	smtpServer.WriteTimeout = 10 * time.Second
	smtpServer.MaxMessageBytes = 10 * 1024 * 1024 // 10MB
	smtpServer.MaxRecipients = 50

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
		)
		if err := smtpServer.ListenAndServe(); err != nil {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 关闭 HTTP 服务器
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 关闭 SMTP 服务器
		if err := smtpServer.Close(); err != nil {
			log.Warn("SMTP server close warning", zap.Error(err))
		}

		// 排空后台任务，让在途的转发跑完
		tasks.Stop()

		if err := store.Close(); err != nil {
			log.Warn("store close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
