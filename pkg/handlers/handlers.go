package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/auth"
	"github.com/arnavshah/shiftflow-api/pkg/grid"
	"github.com/arnavshah/shiftflow-api/pkg/models"
	"github.com/arnavshah/shiftflow-api/pkg/tasks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root route.
const Version = "3.0.0"

const (
	ctxSession   = "session"
	ctxAccountID = "accountID"
)

// Deps lists what the handlers are built from.
type Deps struct {
	Name          string
	Logger        *zap.Logger
	Roster        models.Roster
	Board         *grid.Board
	Catalog       *tasks.Catalog
	Credentials   *auth.CredentialStore
	Tokens        *auth.TokenIssuer
	Events        *EventHub
	ToastDuration time.Duration
}

// Handler contains dependencies for the route handlers
type Handler struct {
	Deps
	now func() time.Time

	mu         sync.Mutex
	flows      map[string]*flow
	selections map[string]*selection
}

// NewHandler wires the handlers to their stores.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Name == "" {
		d.Name = "shiftflow-api"
	}
	if d.ToastDuration <= 0 {
		d.ToastDuration = 3 * time.Second
	}
	return &Handler{
		Deps:       d,
		now:        time.Now,
		flows:      make(map[string]*flow),
		selections: make(map[string]*selection),
	}
}

// Root describes the service.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": h.Name,
		"version": Version,
	})
}

// Health reports whether the backing store is usable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.storeErr(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"credentials_ready": h.Credentials.Ready(),
		"tasks_loaded":      h.Catalog.Loaded(),
	})
}

// storeErr returns the most severe failure reported by any subscription.
func (h *Handler) storeErr() error {
	var first error
	for _, err := range []error{h.Board.Err(), h.Catalog.Err(), h.Credentials.Err()} {
		if err == nil {
			continue
		}
		if apperr.IsFatal(err) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// fail renders err as the standard error body and aborts the request.
func (h *Handler) fail(c *gin.Context, err error) {
	appErr := apperr.From(err)
	body := gin.H{
		"code":     appErr.Code,
		"message":  appErr.Message,
		"severity": appErr.Severity,
	}
	if appErr.Severity == apperr.SeverityToast {
		body["dismiss_after_ms"] = h.ToastDuration.Milliseconds()
	}
	if appErr.HTTPStatus >= 500 {
		h.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", appErr.Code),
			zap.Error(appErr))
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{"error": body})
}

func (h *Handler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.fail(c, apperr.ErrValidation.WithMessage("invalid request body: %v", err))
		return false
	}
	return true
}

// AuthMiddleware verifies the JWT token of grid routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			h.fail(c, apperr.ErrUnauthorized.WithMessage("authorization header required"))
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := h.Tokens.VerifyToken(token)
		if err != nil {
			h.fail(c, err)
			return
		}

		session := claims.Session()
		if session.Role != models.RoleManager && h.Roster.IndexOf(session.Profile.ID) < 0 {
			h.fail(c, apperr.ErrUnauthorized.WithMessage("account is no longer on the roster"))
			return
		}
		c.Set(ctxSession, session)
		c.Set(ctxAccountID, session.Profile.ID)
		c.Next()
	}
}

// RequireManager rejects sessions without the manager role.
func (h *Handler) RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sessionOf(c).IsManager() {
			h.fail(c, apperr.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireHealthyStore blocks the grid while the store is in a fatal state.
func (h *Handler) RequireHealthyStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.storeErr(); apperr.IsFatal(err) {
			h.fail(c, err)
			return
		}
		c.Next()
	}
}

func sessionOf(c *gin.Context) models.Session {
	if v, ok := c.Get(ctxSession); ok {
		if s, ok := v.(models.Session); ok {
			return s
		}
	}
	return models.Session{}
}
