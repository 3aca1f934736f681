package handlers

import (
	"net/http"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// flowTTL bounds how long a login flow is kept. A flow that issued its
// token is removed at once.
const flowTTL = 30 * time.Minute

type flow struct {
	manager *auth.Manager
	created time.Time
}

type flowResponse struct {
	FlowID    string      `json:"flow_id"`
	State     auth.State  `json:"state"`
	AccountID string      `json:"account_id,omitempty"`
	Name      string      `json:"name,omitempty"`
	ResetDone bool        `json:"reset_done"`
	Error     *flowError  `json:"error,omitempty"`
	Token     *tokenReply `json:"token,omitempty"`
}

type flowError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type tokenReply struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

// CreateFlow starts a login flow.
func (h *Handler) CreateFlow(c *gin.Context) {
	id := uuid.NewString()
	m := auth.NewManager(h.Roster, h.Credentials)

	h.mu.Lock()
	now := h.now()
	for k, f := range h.flows {
		if now.Sub(f.created) > flowTTL {
			delete(h.flows, k)
		}
	}
	h.flows[id] = &flow{manager: m, created: now}
	h.mu.Unlock()

	h.renderFlow(c, http.StatusCreated, id, m)
}

// GetFlow reports the current step of a flow.
func (h *Handler) GetFlow(c *gin.Context) {
	id, m, ok := h.lookupFlow(c)
	if !ok {
		return
	}
	h.renderFlow(c, http.StatusOK, id, m)
}

// SubmitAccount handles the account id step.
func (h *Handler) SubmitAccount(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	h.step(c, &req, func(m *auth.Manager) error {
		return m.SubmitAccountID(req.AccountID)
	})
}

// SubmitSetup handles first-time password setup.
func (h *Handler) SubmitSetup(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	h.step(c, &req, func(m *auth.Manager) error {
		return m.SubmitSetup(c.Request.Context(), req.Password)
	})
}

// SubmitChallenge handles the password challenge.
func (h *Handler) SubmitChallenge(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	h.step(c, &req, func(m *auth.Manager) error {
		return m.SubmitChallenge(req.Password)
	})
}

// RequestReset deletes the stored password once the user has confirmed.
func (h *Handler) RequestReset(c *gin.Context) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	h.step(c, &req, func(m *auth.Manager) error {
		if !req.Confirm {
			return apperr.ErrConfirmationRequired
		}
		return m.RequestReset(c.Request.Context())
	})
}

// ChangeAccount returns the flow to the account id step.
func (h *Handler) ChangeAccount(c *gin.Context) {
	h.step(c, nil, func(m *auth.Manager) error {
		return m.ChangeAccount()
	})
}

func (h *Handler) step(c *gin.Context, req any, action func(*auth.Manager) error) {
	id, m, ok := h.lookupFlow(c)
	if !ok {
		return
	}
	if req != nil && c.Request.ContentLength != 0 && !h.bind(c, req) {
		return
	}
	if err := action(m); err != nil {
		h.fail(c, err)
		return
	}
	h.renderFlow(c, http.StatusOK, id, m)
}

func (h *Handler) lookupFlow(c *gin.Context) (string, *auth.Manager, bool) {
	id := c.Param("flow")
	h.mu.Lock()
	f, ok := h.flows[id]
	expired := ok && h.now().Sub(f.created) > flowTTL
	if expired {
		delete(h.flows, id)
	}
	h.mu.Unlock()
	if !ok {
		h.fail(c, apperr.ErrNotFound.WithMessage("login flow %q not found", id))
		return "", nil, false
	}
	if expired {
		h.fail(c, apperr.ErrNotFound.WithMessage("login flow %q expired", id))
		return "", nil, false
	}
	return id, f.manager, true
}

func (h *Handler) renderFlow(c *gin.Context, status int, id string, m *auth.Manager) {
	resp := flowResponse{
		FlowID:    id,
		State:     m.State(),
		AccountID: m.AccountID(),
		Name:      m.Profile().Name,
		ResetDone: m.ResetDone(),
	}
	if err := m.LastError(); err != nil {
		appErr := apperr.From(err)
		resp.Error = &flowError{Code: appErr.Code, Message: appErr.Message}
	}
	if session, ok := m.Session(); ok {
		token, expires, err := h.Tokens.CreateToken(session)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp.Token = &tokenReply{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresAt:   expires,
			Role:        string(session.Role),
		}
		h.mu.Lock()
		delete(h.flows, id)
		h.mu.Unlock()
	}
	c.JSON(status, resp)
}
