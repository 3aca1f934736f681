// Package app assembles the service from configuration. The long-running
// server and the serverless entry point share it.
package app

import (
	"context"
	"fmt"

	"github.com/arnavshah/shiftflow-api/pkg/auth"
	"github.com/arnavshah/shiftflow-api/pkg/config"
	"github.com/arnavshah/shiftflow-api/pkg/database"
	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"github.com/arnavshah/shiftflow-api/pkg/grid"
	"github.com/arnavshah/shiftflow-api/pkg/handlers"
	"github.com/arnavshah/shiftflow-api/pkg/tasks"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App owns every long-lived component.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	Store       *docstore.GormStore
	Broadcaster *docstore.RedisBroadcaster
	Board       *grid.Board
	Catalog     *tasks.Catalog
	Credentials *auth.CredentialStore
	Events      *handlers.EventHub
	Router      *gin.Engine

	redis  *redis.Client
	cancel context.CancelFunc
}

// New connects to the database, optionally to redis, and starts every
// subscription.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	return NewWithDB(cfg, db, logger)
}

// NewWithDB is New over an already opened database.
func NewWithDB(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Store:  docstore.NewGormStore(db, cfg.App.Namespace, logger.Named("docstore")),
		cancel: cancel,
	}

	if cfg.Redis.Enabled() {
		if err := a.startBroadcast(ctx); err != nil {
			logger.Warn("change broadcasting disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	a.Board = grid.NewBoard(a.Store, cfg.Roster, logger.Named("grid"))
	a.Catalog = tasks.NewCatalog(a.Store, cfg.Tasks, logger.Named("tasks"))
	a.Credentials = auth.NewCredentialStore(a.Store, cfg.Auth.BcryptCost, logger.Named("auth"))
	a.Events = handlers.NewEventHub(a.Store, logger.Named("events"))
	a.Board.Start()
	a.Catalog.Start()
	a.Credentials.Start()
	a.Events.Start()

	if err := a.Board.Err(); err != nil {
		logger.Error("grid store is unavailable", zap.Error(err))
	}

	h := handlers.NewHandler(handlers.Deps{
		Name:          cfg.App.Name,
		Logger:        logger.Named("http"),
		Roster:        cfg.Roster,
		Board:         a.Board,
		Catalog:       a.Catalog,
		Credentials:   a.Credentials,
		Tokens:        auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Events:        a.Events,
		ToastDuration: cfg.App.ToastDuration,
	})
	a.Router = handlers.NewRouter(h)
	return a, nil
}

func (a *App) startBroadcast(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	bc := docstore.NewRedisBroadcaster(client, a.Config.App.Namespace, a.Logger.Named("broadcast"))
	if err := bc.Ping(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping: %w", err)
	}

	a.redis = client
	a.Broadcaster = bc
	a.Store.SetAnnouncer(bc)
	go func() {
		if err := bc.Listen(ctx, a.Store.Refresh, nil); err != nil {
			a.Logger.Error("change listener stopped", zap.Error(err))
		}
	}()
	return nil
}

// Close stops the subscriptions and releases connections.
func (a *App) Close() {
	a.cancel()
	a.Events.Close()
	a.Credentials.Close()
	a.Catalog.Close()
	a.Board.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
