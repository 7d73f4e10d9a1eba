package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sipcheck/internal/api/handlers/check"
	"sipcheck/internal/api/handlers/drinks"
	"sipcheck/internal/api/handlers/health"
	"sipcheck/internal/api/middleware"
	"sipcheck/internal/core/advisor"
	"sipcheck/internal/core/ai/queue"
	"sipcheck/internal/core/store"
	"sipcheck/internal/infrastructure/config"
	"sipcheck/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies 路由需要的服務
type Dependencies struct {
	Store   *store.Store
	Advisor *advisor.Service
	Queue   *queue.Manager
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Store == nil || deps.Advisor == nil || deps.Queue == nil {
		return nil, errors.New("router dependencies are incomplete")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.String("model", deps.Advisor.Model()),
		zap.Int("queue_workers", cfg.Queue.Workers),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件；requestid 須在 Logger 之前才能記錄到 ID
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger("/health", "/ready", "/live"))

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg.App.Version, deps.Store, deps.Advisor, deps.Queue)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	// 請求體上限須在去重讀取 body 之前套用；圖片路由另有較大的上限
	dedup := middleware.NewDeduplicator(cfg.DedupWindow)
	imageLimit := middleware.ImageBodyLimit(cfg.Image.MaxSizeBytes)
	jsonRoutes := api.Group("", middleware.BodySizeLimit(cfg.Server.MaxBodyBytes), dedup.Middleware(), timeout(cfg.Server.RequestTimeout))
	imageRoutes := api.Group("", middleware.BodySizeLimit(imageLimit), dedup.Middleware(), timeout(cfg.Server.RequestTimeout))

	drinkHandler := drinks.NewHandler(deps.Store)
	drinkGroup := jsonRoutes.Group("/drinks")
	{
		drinkGroup.GET("", drinkHandler.List)
		drinkGroup.GET("/recent", drinkHandler.Recent)
		drinkGroup.GET("/match", drinkHandler.Match)
		drinkGroup.GET("/:id", drinkHandler.Get)
		drinkGroup.POST("", drinkHandler.Create)
		drinkGroup.PUT("/:id", drinkHandler.Update)
		drinkGroup.DELETE("/:id", drinkHandler.Delete)
	}

	checkHandler := check.NewHandler(deps.Advisor, deps.Store, deps.Queue)
	jsonRoutes.POST("/check", checkHandler.CheckByName)
	imageRoutes.POST("/check/image", checkHandler.CheckByImage)
	imageRoutes.POST("/extract", checkHandler.Extract)

	common.LogInfo("Router setup completed successfully",
		zap.Bool("credential_configured", deps.Advisor.HasCredential()),
		zap.Int("drinks", deps.Store.Len()),
		zap.Duration("timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
		zap.Int64("max_image_body_size", imageLimit),
	)

	return router, nil
}

// timeout 設置請求超時；處理器透過 context 感知
func timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", d),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
				Code:    common.ErrCodeRequestTimeout,
				Message: "Request timeout",
			})
		}
	}
}
