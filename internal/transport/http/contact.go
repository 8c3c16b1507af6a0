package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/service"
)

// ContactHandler 处理公开的联系表单提交。
type ContactHandler struct {
	contacts *service.ContactService
	logger   *zap.Logger
}

// NewContactHandler 创建联系表单处理器。
func NewContactHandler(contacts *service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contacts: contacts,
		logger:   logger,
	}
}

// Submit 处理 POST 提交。
//
// 失败原因按发现顺序短路返回：体积、JSON 形态、字段校验、
// 人机校验、限流。通知转发在响应之后异步进行，不影响结果。
func (h *ContactHandler) Submit(c *gin.Context) {
	var req domain.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Fail(c, http.StatusBadRequest, "payload too large")
			return
		}
		Fail(c, http.StatusBadRequest, "malformed input")
		return
	}

	_, err := h.contacts.Submit(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		h.respondError(c, err)
		return
	}

	OK(c)
}

// respondError 将业务错误映射为响应状态与原因。
func (h *ContactHandler) respondError(c *gin.Context, err error) {
	var verificationErr *service.VerificationError

	switch {
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrMissingToken):
		Fail(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &verificationErr):
		Fail(c, http.StatusBadRequest, verificationErr.Reason)
	case errors.Is(err, service.ErrRateLimited):
		Fail(c, http.StatusTooManyRequests, "too many requests")
	default:
		h.logger.Error("contact submission failed", zap.Error(err))
		Fail(c, http.StatusInternalServerError, "internal server error")
	}
}
