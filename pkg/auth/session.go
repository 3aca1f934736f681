// Package auth gates access to the grid: a per-visitor login flow over
// stored credentials, and the tokens handed out once it completes.
package auth

import (
	"context"
	"sync"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/models"
)

// State is a step of the login flow.
type State string

const (
	StateLogin         State = "login"
	StateSetup         State = "setup"
	StateChallenge     State = "challenge"
	StateAuthenticated State = "authenticated"
)

// MinPasswordLength is the shortest password accepted at setup.
const MinPasswordLength = 4

var transitions = map[State][]State{
	StateLogin:     {StateSetup, StateChallenge},
	StateSetup:     {StateAuthenticated, StateLogin},
	StateChallenge: {StateAuthenticated, StateSetup, StateLogin},
}

// CanTransition reports whether the flow may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Manager walks one visitor through login, first-time setup, the password
// challenge and credential reset.
type Manager struct {
	roster models.Roster
	creds  Credentials

	mu        sync.Mutex
	state     State
	accountID string
	profile   models.Profile
	role      models.Role
	resetDone bool
	lastErr   error
}

// NewManager starts a flow in the login state.
func NewManager(roster models.Roster, creds Credentials) *Manager {
	return &Manager{roster: roster, creds: creds, state: StateLogin}
}

// State returns the current step.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AccountID returns the resolved account id, empty while in login.
func (m *Manager) AccountID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountID
}

// Profile returns the resolved profile, zero while in login.
func (m *Manager) Profile() models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// ResetDone reports whether a reset happened and setup has not completed since.
func (m *Manager) ResetDone() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetDone
}

// LastError returns the pending error of the last failed action.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Session returns the established session once authenticated.
func (m *Manager) Session() (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return models.Session{}, false
	}
	return models.Session{Profile: m.profile, Role: m.role}, true
}

// moveLocked applies a transition from the table and clears the pending error.
func (m *Manager) moveLocked(to State) error {
	if !CanTransition(m.state, to) {
		return apperr.ErrInvalidTransition.WithMessage("cannot go from %s to %s", m.state, to)
	}
	m.state = to
	m.lastErr = nil
	return nil
}

func (m *Manager) failLocked(err error) error {
	m.lastErr = err
	return err
}

// SubmitAccountID resolves id to an account and moves to setup when it has
// no credential yet, otherwise to the password challenge.
func (m *Manager) SubmitAccountID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLogin {
		return m.failLocked(apperr.ErrInvalidTransition.WithMessage("account id was already submitted"))
	}
	if !m.creds.Ready() {
		return m.failLocked(apperr.ErrNotReady)
	}
	id = models.NormalizeAccountID(id)
	if id == "" {
		return m.failLocked(apperr.ErrUnknownAccount.WithMessage("enter an account id"))
	}
	profile, role, ok := m.roster.Resolve(id)
	if !ok {
		return m.failLocked(apperr.ErrUnknownAccount.WithMessage("account %q not found", id))
	}

	next := StateChallenge
	if !m.creds.Has(id) {
		next = StateSetup
	}
	if err := m.moveLocked(next); err != nil {
		return m.failLocked(err)
	}
	m.accountID, m.profile, m.role = id, profile, role
	return nil
}

// SubmitSetup stores password as the credential of the resolved account and
// authenticates.
func (m *Manager) SubmitSetup(ctx context.Context, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSetup {
		return m.failLocked(apperr.ErrInvalidTransition.WithMessage("no password setup in progress"))
	}
	if len(password) < MinPasswordLength {
		return m.failLocked(apperr.ErrWeakPassword)
	}
	if err := m.creds.Save(ctx, m.accountID, password); err != nil {
		return m.failLocked(err)
	}
	if err := m.moveLocked(StateAuthenticated); err != nil {
		return m.failLocked(err)
	}
	m.resetDone = false
	return nil
}

// SubmitChallenge authenticates when password matches the stored credential.
func (m *Manager) SubmitChallenge(password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateChallenge {
		return m.failLocked(apperr.ErrInvalidTransition.WithMessage("no password challenge in progress"))
	}
	if !m.creds.Verify(m.accountID, password) {
		return m.failLocked(apperr.ErrBadPassword)
	}
	return m.moveLocked(StateAuthenticated)
}

// RequestReset deletes the stored credential and moves to setup. The caller
// is responsible for confirming the reset with the user first.
func (m *Manager) RequestReset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.state, StateSetup) {
		return m.failLocked(apperr.ErrInvalidTransition.WithMessage("reset is only possible at the password challenge"))
	}
	if err := m.creds.Delete(ctx, m.accountID); err != nil {
		return m.failLocked(err)
	}
	if err := m.moveLocked(StateSetup); err != nil {
		return m.failLocked(err)
	}
	m.resetDone = true
	return nil
}

// ChangeAccount abandons the resolved account and returns to login.
func (m *Manager) ChangeAccount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.moveLocked(StateLogin); err != nil {
		return m.failLocked(err)
	}
	m.accountID, m.profile, m.role = "", models.Profile{}, ""
	m.resetDone = false
	return nil
}
