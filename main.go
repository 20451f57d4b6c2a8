package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/cppla/secureboard/config"
	"github.com/cppla/secureboard/models"
	"github.com/cppla/secureboard/repository"
	"github.com/cppla/secureboard/routes"
	"github.com/cppla/secureboard/security"
	"github.com/cppla/secureboard/services"
	"github.com/cppla/secureboard/storage"
	"github.com/cppla/secureboard/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Initialize logger early
	logger, err := utils.InitLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	db, err := config.InitDatabase(cfg, logger, &models.User{}, &models.Post{}, &models.Attachment{})
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	rc, err := utils.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	if rc == nil {
		logger.Info("redis disabled, revoked sessions are kept in memory")
	} else {
		defer func() { _ = rc.Close() }()
	}

	files, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err), zap.String("driver", cfg.StorageDriver))
	}

	users := services.NewUserService(repository.NewUserRepository(db), logger)
	board := services.NewBoardService(repository.NewBoardRepository(db), files, cfg.MaxUploadBytes(), logger)
	sessions := security.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, utils.NewTokenBlacklist(rc))

	ginLogger, err := utils.NewRollingFileLogger(cfg.GinLogPath, cfg)
	if err != nil {
		logger.Warn("gin log file unavailable, using application logger", zap.Error(err))
		ginLogger = logger
	}

	r := routes.SetupRouter(routes.Dependencies{
		Config:    cfg,
		Users:     users,
		Board:     board,
		Sessions:  sessions,
		Policy:    security.DefaultPolicy(),
		GinLogger: ginLogger,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
