package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/davicafu/hexaquery/internal/config"
	sharedCache "github.com/davicafu/hexaquery/internal/shared/infra/platform/cache"
	taskApp "github.com/davicafu/hexaquery/internal/task/application"
	taskHttp "github.com/davicafu/hexaquery/internal/task/infra/inbound/http"
	"github.com/davicafu/hexaquery/pkg/logger"
	sharedUtils "github.com/davicafu/hexaquery/shared/utils"
)

// ---------------- Main ----------------
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.LogLevel) // inicializa zap
	log := logger.Logger()    // obtiene logger estructurado
	defer log.Sync()          // flush buffers al salir

	ctx := context.Background()

	// ---------------- DB ----------------
	repo, closeRepo, err := openTaskRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open task repository", zap.Error(err))
	}
	defer closeRepo()

	// ---------------- Cache ----------------
	cache := openCache(ctx, cfg, log)

	// --------------- Servicio --------------
	taskService := taskApp.NewTaskService(repo, cache, log)

	// ---------------- HTTP ----------------
	router := gin.New()
	router.Use(gin.Recovery())
	taskHttp.RegisterHealth(router)
	taskHttp.RegisterTaskRoutes(router, taskHttp.NewTaskHandler(taskService, log), cfg.OperatorOptions(), log)

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
		zap.String("backend", cfg.Backend),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

// openCache usa Redis si está configurado y responde; si no, caché en memoria.
func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger) sharedCache.Cache {
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rc := sharedCache.NewRedisCache(rdb, cfg.CacheTTL, sharedCache.WithNamespace("hexaquery"))
		// Redis puede tardar en aceptar conexiones si arranca a la vez que el servicio.
		err := sharedUtils.Retry(ctx, 3, 200*time.Millisecond, func() error {
			return rc.Ping(ctx)
		})
		if err == nil {
			log.Info("✅ Redis connected, cache enabled")
			return rc
		}
		log.Warn("⚠️ Redis unavailable, falling back to in-memory cache", zap.Error(err))
		rdb.Close()
	}
	return sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
}
