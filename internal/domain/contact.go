package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 提交表单的校验错误定义
var (
	ErrInvalidName    = errors.New("invalid name (1-100 characters)")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrInvalidMessage = errors.New("invalid message (1-4000 characters)")
	ErrMissingToken   = errors.New("verification token missing")
)

// 校验常量
const (
	MaxNameLength    = 100
	MinEmailLength   = 3
	MaxEmailLength   = 254 // RFC 5322 上限
	MaxSubjectLength = 120
	MaxMessageLength = 4000

	// MaxContactBodyBytes 提交请求体的字节上限
	MaxContactBodyBytes = 10000
)

// 基础邮箱形状：非空白 local-part @ 非空白域名 . 非空白 TLD
var emailShapeRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ContactRequest 是公开提交端点的请求载荷。
type ContactRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	BotToken string `json:"botToken"`
}

// Validate 按顺序校验各字段，返回第一个失败项。
//
// subject 是可选字段，超长或为空时由调用方替换为默认主题，
// 因此这里不会因 subject 返回错误。
func (r *ContactRequest) Validate() error {
	if r.Name == "" || len(r.Name) > MaxNameLength {
		return ErrInvalidName
	}
	if !ValidEmail(r.Email) {
		return ErrInvalidEmail
	}
	if r.Message == "" || len(r.Message) > MaxMessageLength {
		return ErrInvalidMessage
	}
	if r.BotToken == "" {
		return ErrMissingToken
	}
	return nil
}

// FinalSubject 返回用于线程的主题：合法时用提交值，否则用 fallback。
func (r *ContactRequest) FinalSubject(fallback string) string {
	subject := strings.TrimSpace(r.Subject)
	if subject != "" && len(subject) <= MaxSubjectLength {
		return subject
	}
	return fallback
}

// ValidEmail 校验邮箱地址的基础形状与长度。
func ValidEmail(email string) bool {
	if len(email) < MinEmailLength || len(email) > MaxEmailLength {
		return false
	}
	return emailShapeRegex.MatchString(email)
}
