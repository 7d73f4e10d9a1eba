package health

import (
	"net/http"
	"runtime"
	"time"

	"sipcheck/internal/core/advisor"
	"sipcheck/internal/core/ai/queue"
	"sipcheck/internal/core/store"

	"github.com/gin-gonic/gin"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Model     string                 `json:"model"`
	Drinks    int                    `json:"drinks"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
}

// Handler 健康檢查
type Handler struct {
	version string
	store   *store.Store
	advisor *advisor.Service
	queue   *queue.Manager
}

// NewHandler 創建健康檢查處理器
func NewHandler(version string, s *store.Store, a *advisor.Service, q *queue.Manager) *Handler {
	return &Handler{version: version, store: s, advisor: a, queue: q}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Model:     h.advisor.Model(),
		Drinks:    h.store.Len(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
		Queue: h.queue.GetQueueStatus(),
	})
}

// ReadinessCheck 就緒檢查：未設定憑證或上次寫入失敗時回報 degraded
func (h *Handler) ReadinessCheck(c *gin.Context) {
	checks := gin.H{
		"credential": h.advisor.HasCredential(),
		"storage":    h.store.LastSaveError() == nil,
	}
	if !h.advisor.HasCredential() || h.store.LastSaveError() != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"checks": checks,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": checks,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
