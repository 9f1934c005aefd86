package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/fini-ai/paramount/config"
	"github.com/fini-ai/paramount/internal/api/handlers"
	"github.com/fini-ai/paramount/internal/api/middleware"
	"github.com/fini-ai/paramount/internal/api/routes"
	"github.com/fini-ai/paramount/internal/cache"
	"github.com/fini-ai/paramount/internal/logger"
	"github.com/fini-ai/paramount/internal/services"
	"github.com/fini-ai/paramount/store"
	"github.com/fini-ai/paramount/store/csvfile"
	pgstore "github.com/fini-ai/paramount/store/postgres"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	l := logger.New(cfg.LogLevel)

	var db store.Database
	switch cfg.DBType {
	case "postgres":
		gormDB, err := config.NewPostgres(cfg)
		if err != nil {
			log.Fatalf("postgres init error: %v", err)
		}
		db = pgstore.New(gormDB, l)
	default:
		db = csvfile.New(cfg.CSVDir, l)
	}
	l.WithField("db_type", cfg.DBType).Info("storage backend ready")

	var readCache cache.Cache
	if rdb, err := config.NewRedis(ctx, cfg); err != nil {
		log.Fatalf("redis init error: %v", err)
	} else if rdb != nil {
		readCache = cache.NewRedisCache(rdb)
		l.Info("redis cache enabled")
	}

	recordings := services.NewRecordingService(db, readCache, l, cfg.IdentifierColname, cfg.SplitByID, cfg.CacheTTL)
	replay := services.NewReplayService(cfg.FunctionURL, cfg.ReplayTimeout, l)
	sessions := services.NewSessionService(db, l, cfg.SplitByID)
	defer sessions.Drain()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Recording:  handlers.NewRecordingHandler(recordings),
		Replay:     handlers.NewReplayHandler(replay),
		Similarity: handlers.NewSimilarityHandler(services.NewSimilarityService()),
		Session:    handlers.NewSessionHandler(sessions),
		Config:     handlers.NewConfigHandler(cfg),
		JWTSecret:  cfg.JWTSecret,
	})

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
