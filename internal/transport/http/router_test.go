package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/health"
	"mailbridge/backend/internal/mail"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/pool"
	"mailbridge/backend/internal/ratelimit"
	"mailbridge/backend/internal/service"
	"mailbridge/backend/internal/storage/memory"
	"mailbridge/backend/internal/verify"
)

// 指标注册在全局 registry 上，整个测试二进制只建一次
var testMetrics = monitoring.NewMetrics()

type okVerifier struct{}

func (okVerifier) Verify(context.Context, string, string) verify.Result {
	return verify.Result{Valid: true}
}

type nullSender struct{}

func (nullSender) Send(context.Context, *mail.Message) error { return nil }

const allowedOrigin = "https://site.example.com"

func newTestRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	tasks := pool.NewWorkerPool(1, 8, zap.NewNop())
	tasks.Start(context.Background())

	composer := mail.NewComposer(mail.ComposerConfig{
		Domain:         "example.com",
		ReplyLocalPart: "reply",
		ContactFrom:    "contact@example.com",
		Destination:    "admin.inbox@gmail.com",
		ResendFrom:     "no-reply@example.com",
	})

	contacts := service.NewContactService(
		store,
		ratelimit.NewLimiter(store, time.Minute, 5),
		okVerifier{},
		composer,
		nullSender{},
		tasks,
		testMetrics,
		zap.NewNop(),
		service.ContactServiceConfig{
			DefaultSubject: "Contact from website",
			ThreadTTL:      time.Hour,
		},
	)

	cfg := &config.Config{}
	cfg.CORS.AllowedOrigins = []string{allowedOrigin}

	router := NewRouter(RouterDependencies{
		Config:         cfg,
		ContactService: contacts,
		HealthChecker:  health.NewHealthChecker(store, zap.NewNop()),
		Metrics:        testMetrics,
		Logger:         zap.NewNop(),
	})

	return router, tasks.Stop
}

func postContact(router *gin.Engine, origin, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmit_Success(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	w := postContact(router, allowedOrigin,
		`{"name":"Jane","email":"jane@example.org","message":"hello","botToken":"tok"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestSubmit_OriginRejected(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	rejected := testMetrics.SubmissionsTotal.WithLabelValues("origin")
	before := testutil.ToFloat64(rejected)

	for _, origin := range []string{"", "https://evil.example.net"} {
		w := postContact(router, origin,
			`{"name":"Jane","email":"jane@example.org","message":"hello","botToken":"tok"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"error":"origin rejected"}`, w.Body.String())
	}

	assert.Equal(t, before+2, testutil.ToFloat64(rejected))
}

func TestSubmit_PayloadTooLarge(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	big := strings.Repeat("x", 11000)
	w := postContact(router, allowedOrigin, big)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"payload too large"}`, w.Body.String())
}

func TestSubmit_MalformedJSON(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	w := postContact(router, allowedOrigin, `{not json`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"malformed input"}`, w.Body.String())
}

func TestSubmit_ValidationFailure(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	w := postContact(router, allowedOrigin,
		`{"name":"","email":"jane@example.org","message":"hello","botToken":"tok"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestSubmit_RateLimited(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	body := `{"name":"Jane","email":"jane@example.org","message":"hello","botToken":"tok"}`
	for i := 0; i < 5; i++ {
		w := postContact(router, allowedOrigin, body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postContact(router, allowedOrigin, body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/api/contact", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func TestPreflight_AllowedOrigin(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	req := httptest.NewRequest(http.MethodOptions, "/api/contact", nil)
	req.Header.Set("Origin", allowedOrigin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, allowedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight_DisallowedOriginGetsNoCORSHeaders(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	req := httptest.NewRequest(http.MethodOptions, "/api/contact", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestProbesAndMetricsExposed(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()

	for _, path := range []string{"/live", "/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
