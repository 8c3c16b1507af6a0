package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailConfig 定义邮件路由的核心业务配置
type MailConfig struct {
	Domain         string        // 服务域名，回复地址的 @ 后缀
	AdminAddress   string        // 管理员发信地址，入站分类的依据
	Destination    string        // 管理员真实收件邮箱，通知的目的地
	ContactFrom    string        // 系统通知的发件地址
	ReplyLocalPart string        // 回复地址 local-part 前缀，默认 "reply"
	DefaultSubject string        // 提交未填主题时的默认主题
	ThreadTTL      time.Duration // 线程存活时间，过期自动淘汰
}

// RateConfig 定义固定窗口限流配置
type RateConfig struct {
	Window time.Duration // 窗口长度，默认 1m
	Max    int           // 单窗口最大请求数，默认 5
}

// TurnstileConfig 定义人机校验配置
type TurnstileConfig struct {
	Secret   string // 共享密钥
	Endpoint string // 校验地址，留空用官方默认
}

// ResendConfig 定义事务邮件通道配置
type ResendConfig struct {
	APIKey   string // Bearer 凭证
	From     string // 事务邮件发件地址
	Endpoint string // API 地址，留空用官方默认
}

// NotifyConfig 定义通知推送通道（SMTP smarthost）配置
type NotifyConfig struct {
	Addr     string // smarthost 地址，host:port
	Username string // 留空则匿名投递
	Password string
}

// SMTPConfig 定义入站 SMTP 服务器配置
type SMTPConfig struct {
	BindAddr string // 监听地址，默认 ":25"
	Domain   string // HELO/EHLO 域名
}

// CORSConfig 定义跨域配置
type CORSConfig struct {
	AllowedOrigins []string // 来源白名单，提交端点只接受名单内的 Origin
}

// LogConfig 定义日志配置
type LogConfig struct {
	Level       string
	Development bool
}

// RedisConfig 定义 Redis 配置。Address 留空时使用内存存储（开发环境）。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Config 是系统配置的根结构体
type Config struct {
	Server    ServerConfig
	Mail      MailConfig
	Rate      RateConfig
	Turnstile TurnstileConfig
	Resend    ResendConfig
	Notify    NotifyConfig
	SMTP      SMTPConfig
	CORS      CORSConfig
	Log       LogConfig
	Redis     RedisConfig
}

// Load 从环境变量和 .env 文件加载配置。
//
// 优先级（从高到低）：系统环境变量 > .env 文件 > 默认值。
// 环境变量前缀 MAILBRIDGE_，如 MAILBRIDGE_MAIL_DOMAIN。
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("mailbridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mail.domain", "")
	viper.SetDefault("mail.admin_address", "")
	viper.SetDefault("mail.destination", "")
	viper.SetDefault("mail.contact_from", "")
	viper.SetDefault("mail.reply_local_part", "reply")
	viper.SetDefault("mail.default_subject", "Contact from website")
	viper.SetDefault("mail.thread_ttl", "720h") // 30 天
	viper.SetDefault("rate.window", "1m")
	viper.SetDefault("rate.max", 5)
	viper.SetDefault("turnstile.secret", "")
	viper.SetDefault("turnstile.endpoint", "")
	viper.SetDefault("resend.api_key", "")
	viper.SetDefault("resend.from", "")
	viper.SetDefault("resend.endpoint", "")
	viper.SetDefault("notify.addr", "")
	viper.SetDefault("notify.username", "")
	viper.SetDefault("notify.password", "")
	viper.SetDefault("smtp.bind_addr", ":25")
	viper.SetDefault("smtp.domain", "")
	viper.SetDefault("cors.allowed_origins", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	threadTTL, err := time.ParseDuration(viper.GetString("mail.thread_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid mail.thread_ttl: %w", err)
	}

	rateWindow, err := time.ParseDuration(viper.GetString("rate.window"))
	if err != nil {
		return nil, fmt.Errorf("invalid rate.window: %w", err)
	}
	if rateWindow < time.Second {
		return nil, fmt.Errorf("rate.window must be at least 1s")
	}

	rateMax := viper.GetInt("rate.max")
	if rateMax <= 0 {
		rateMax = 5
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mail: MailConfig{
			Domain:         strings.ToLower(viper.GetString("mail.domain")),
			AdminAddress:   strings.ToLower(viper.GetString("mail.admin_address")),
			Destination:    strings.ToLower(viper.GetString("mail.destination")),
			ContactFrom:    strings.ToLower(viper.GetString("mail.contact_from")),
			ReplyLocalPart: strings.ToLower(viper.GetString("mail.reply_local_part")),
			DefaultSubject: viper.GetString("mail.default_subject"),
			ThreadTTL:      threadTTL,
		},
		Rate: RateConfig{
			Window: rateWindow,
			Max:    rateMax,
		},
		Turnstile: TurnstileConfig{
			Secret:   viper.GetString("turnstile.secret"),
			Endpoint: viper.GetString("turnstile.endpoint"),
		},
		Resend: ResendConfig{
			APIKey:   viper.GetString("resend.api_key"),
			From:     viper.GetString("resend.from"),
			Endpoint: viper.GetString("resend.endpoint"),
		},
		Notify: NotifyConfig{
			Addr:     viper.GetString("notify.addr"),
			Username: viper.GetString("notify.username"),
			Password: viper.GetString("notify.password"),
		},
		SMTP: SMTPConfig{
			BindAddr: viper.GetString("smtp.bind_addr"),
			Domain:   viper.GetString("smtp.domain"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseList(viper.GetString("cors.allowed_origins")),
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	}

	if cfg.SMTP.Domain == "" {
		cfg.SMTP.Domain = cfg.Mail.Domain
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 校验部署必需项。开发模式放过，方便本地起服务。
func (c *Config) validate() error {
	if c.Log.Development {
		return nil
	}

	required := map[string]string{
		"mail.domain":        c.Mail.Domain,
		"mail.admin_address": c.Mail.AdminAddress,
		"mail.destination":   c.Mail.Destination,
		"mail.contact_from":  c.Mail.ContactFrom,
		"turnstile.secret":   c.Turnstile.Secret,
		"resend.api_key":     c.Resend.APIKey,
		"resend.from":        c.Resend.From,
		"notify.addr":        c.Notify.Addr,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins must not be empty")
	}

	return nil
}

// parseList 将逗号分隔的字符串解析为切片，去除空白项。
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件，不存在时静默跳过。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
