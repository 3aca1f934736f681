package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/app"
	"github.com/arnavshah/shiftflow-api/pkg/config"
	"github.com/arnavshah/shiftflow-api/pkg/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	if cfg.App.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.App.GinMode)
	}

	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Format, cfg.App.Name)
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Auth.DevSecret {
		if gin.Mode() == gin.ReleaseMode {
			logger.Fatal("JWT_SECRET must be set in release mode")
		}
		logger.Warn("JWT_SECRET is not set, signing tokens with the development secret")
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("could not start", zap.Error(err))
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("namespace", cfg.App.Namespace),
			zap.Bool("broadcast", a.Broadcaster != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("could not run server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
