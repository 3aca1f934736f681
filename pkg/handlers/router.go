package handlers

import (
	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(logging.GinLogger(h.Logger), gin.Recovery())

	r.GET("/", h.Root)
	r.GET("/healthz", h.Health)

	// Login flow
	flows := r.Group("/auth/flows")
	{
		flows.POST("", h.CreateFlow)
		flows.GET("/:flow", h.GetFlow)
		flows.POST("/:flow/account", h.SubmitAccount)
		flows.POST("/:flow/setup", h.SubmitSetup)
		flows.POST("/:flow/challenge", h.SubmitChallenge)
		flows.POST("/:flow/reset", h.RequestReset)
		flows.POST("/:flow/change", h.ChangeAccount)
	}

	// Grid endpoints
	api := r.Group("/")
	api.Use(h.AuthMiddleware(), h.RequireHealthyStore())
	{
		api.GET("/grid", h.GetGrid)
		api.GET("/grid/summary", h.GetSummary)
		api.PUT("/availability/:staff/:date", h.PutAvailability)
		api.DELETE("/availability/:staff/:date", h.ClearAvailability)
		api.GET("/tasks", h.ListTasks)
		api.GET("/events", h.StreamEvents)
	}

	// Manager endpoints
	manager := api.Group("/")
	manager.Use(h.RequireManager())
	{
		manager.POST("/assignments/:staff/:date", h.ToggleAssignment)
		manager.DELETE("/assignments/:staff/:date", h.ClearAssignment)
		manager.POST("/selection/start", h.StartSelection)
		manager.POST("/selection/move", h.MoveSelection)
		manager.POST("/selection/commit", h.CommitSelection)
		manager.DELETE("/selection", h.CancelSelection)
		manager.POST("/tasks", h.AddTask)
		manager.DELETE("/tasks/:name", h.RemoveTask)
	}

	return r
}

// NewUnavailableRouter answers every request with a configuration error
// carrying cause. It stands in for NewRouter when startup failed.
func NewUnavailableRouter(cause error, logger *zap.Logger) *gin.Engine {
	h := NewHandler(Deps{Logger: logger})
	err := apperr.ErrConfiguration.Wrap(cause)

	r := gin.New()
	r.Use(gin.Recovery())
	r.NoRoute(func(c *gin.Context) { h.fail(c, err) })
	r.NoMethod(func(c *gin.Context) { h.fail(c, err) })
	return r
}
