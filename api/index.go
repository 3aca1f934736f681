package handler

import (
	"errors"
	"net/http"

	"github.com/arnavshah/shiftflow-api/pkg/app"
	"github.com/arnavshah/shiftflow-api/pkg/config"
	"github.com/arnavshah/shiftflow-api/pkg/handlers"
	"github.com/arnavshah/shiftflow-api/pkg/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var r http.Handler

func init() {
	gin.SetMode(gin.ReleaseMode)
	if err := setup(); err != nil {
		logger, lerr := zap.NewProduction()
		if lerr != nil {
			logger = zap.NewNop()
		}
		logger.Error("startup failed", zap.Error(err))
		r = handlers.NewUnavailableRouter(err, logger)
	}
}

func setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.DevSecret {
		return errors.New("JWT_SECRET must be set")
	}
	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Format, cfg.App.Name)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	r = a.Router
	return nil
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
