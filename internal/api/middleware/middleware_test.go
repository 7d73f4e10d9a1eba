package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sipcheck/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return r
}

func serve(r *gin.Engine, method, path, body string) int {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2, time.Hour))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/echo", ""))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/echo", ""))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/echo", ""))
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	r := newEngine(d.Middleware())

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/echo", `{"name":"a"}`))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/echo", `{"name":"a"}`))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/echo", `{"name":"b"}`))

	// GET 不去重
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/echo", ""))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/echo", ""))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/echo", `{"name":"a"}`))
}

func TestDeduplicator_FailedRequestCanBeRetried(t *testing.T) {
	d := NewDeduplicator(time.Minute)
	r := newEngine(d.Middleware())

	assert.Equal(t, http.StatusBadGateway, serve(r, http.MethodPost, "/fail", `{"name":"a"}`))
	assert.Equal(t, http.StatusBadGateway, serve(r, http.MethodPost, "/fail", `{"name":"a"}`))
	assert.Empty(t, d.requests)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/echo", `{"name":"a"}`))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/echo", `{"name":"a"}`))
	assert.Len(t, d.requests, 1)
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(8))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/echo", "small"))

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("this body is too large"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), common.ErrCodePayloadTooLarge)

	// 0 表示不限制
	assert.Equal(t, http.StatusOK, serve(newEngine(BodySizeLimit(0)), http.MethodPost, "/echo", "this body is too large"))
}

func TestDeduplicator_UnknownLengthBodyOverLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(8), NewDeduplicator(time.Minute).Middleware())

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("this body is too large"))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestImageBodyLimit(t *testing.T) {
	assert.Equal(t, int64(0), ImageBodyLimit(0))
	// 3 bytes → 4 個 base64 字元
	assert.Equal(t, int64(4+imageEnvelopeBytes), ImageBodyLimit(3))
	assert.Greater(t, ImageBodyLimit(10<<20), int64(10<<20))
}

func TestRecovery(t *testing.T) {
	r := newEngine(Recovery(), Logger())

	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/panic", ""))
}
