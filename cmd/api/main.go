package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sipcheck/internal/api"
	"sipcheck/internal/core/advisor"
	"sipcheck/internal/core/ai/image"
	"sipcheck/internal/core/ai/openai"
	"sipcheck/internal/core/ai/queue"
	"sipcheck/internal/core/store"
	"sipcheck/internal/infrastructure/config"
	"sipcheck/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("api_key", common.MaskAPIKey(cfg.Completion.APIKey)),
		zap.String("model", cfg.Completion.Model),
		zap.String("storage_driver", cfg.Storage.Driver),
	)
	if cfg.Completion.APIKey == "" {
		common.LogWarn("OPENAI_API_KEY is not set; check requests will fail until it is configured")
	}

	// 初始化儲存
	backend, err := newBackend(cfg.Storage)
	if err != nil {
		common.LogFatal("Failed to initialize storage backend", zap.Error(err))
	}
	drinkStore := store.Open(context.Background(), backend)
	defer drinkStore.Close()

	// 初始化推薦服務
	client := openai.NewClient(cfg.Completion)
	defer client.Close()

	images := image.NewProcessor(cfg.Image.MaxSizeBytes, cfg.Image.MaxDimension, cfg.Image.JPEGQuality)
	advisorService := advisor.NewService(client, images, advisor.Config{
		APIKey:       cfg.Completion.APIKey,
		MaxTokens:    cfg.Advisor.MaxTokens,
		HistoryLimit: cfg.Advisor.HistoryLimit,
		UnknownName:  cfg.Advisor.UnknownName,
	})

	queueManager := queue.NewManager(cfg.Queue)
	defer queueManager.Close()

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		Store:   drinkStore,
		Advisor: advisorService,
		Queue:   queueManager,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	common.LogInfo("Server exited")
}

// newBackend 依設定選擇儲存後端
func newBackend(cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Driver {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisKey)
	case "memory":
		return store.NewMemoryBackend(nil), nil
	default:
		return store.NewFileBackend(cfg.Path), nil
	}
}
