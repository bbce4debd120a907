// Package auth owns the signed-in session: the persisted token, the
// current user, the derived role, and the approval flag. Every other
// component reaches the backend through the token this package
// maintains.
package auth

import (
	"context"
	"sync"

	"github.com/apex/log"

	"wastetrack/api"
	"wastetrack/client"
	"wastetrack/models"
)

// Result is the outcome of a sign-in or sign-up attempt. Failures are
// carried as values, never as panics or raw errors; Err is nil on
// success. When the backend demands a second factor no session is
// established and TempToken holds the challenge token.
type Result struct {
	Err               *ResultError
	TwoFactorRequired bool
	TempToken         string
}

// ResultError is a human-readable auth failure.
type ResultError struct {
	Message string
}

// SignUpParams are the registration fields. Optional fields left empty
// are omitted from the outgoing request.
type SignUpParams struct {
	Username         string
	Email            string
	Password         string
	FullName         string
	Phone            string
	TwoFactorEnabled bool
	TwoFactorMethod  string
	Role             string
	VehicleNumber    string
	VehicleType      string
}

// Manager is the session manager. The zero state is signed out.
type Manager struct {
	client   *client.Client
	store    *StateStore
	navigate func()

	mu       sync.RWMutex
	user     *api.User
	role     string
	approved bool
}

// NewManager wires a session manager to the API client and state
// store. navigate runs after SignOut has cleared all state (the
// landing-route redirect in the UI); it may be nil.
func NewManager(c *client.Client, store *StateStore, navigate func()) *Manager {
	return &Manager{client: c, store: store, navigate: navigate}
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Role returns the derived role, or "" when signed out.
func (m *Manager) Role() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.role
}

// IsApproved reports the approval flag of the signed-in user.
func (m *Manager) IsApproved() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.approved
}

// SignedIn reports whether a user is established.
func (m *Manager) SignedIn() bool {
	return m.User() != nil
}

// SignUp posts a registration request. On a second-factor challenge it
// returns the pending state without establishing a session; otherwise
// a returned token establishes the session.
func (m *Manager) SignUp(ctx context.Context, p SignUpParams) Result {
	args := api.RegisterArgs{
		Username:         p.Username,
		Email:            p.Email,
		Password:         p.Password,
		FullName:         p.FullName,
		Phone:            p.Phone,
		Role:             p.Role,
		VehicleNumber:    p.VehicleNumber,
		VehicleType:      p.VehicleType,
		TwoFactorEnabled: p.TwoFactorEnabled,
		TwoFactorMethod:  p.TwoFactorMethod,
	}

	var resp api.AuthResponse
	if err := m.client.Post(ctx, api.RegisterEndpoint, args, &resp); err != nil {
		return Result{Err: &ResultError{Message: client.ErrorMessage(err)}}
	}
	if resp.TwoFactorRequired {
		return Result{TwoFactorRequired: true, TempToken: resp.TempToken}
	}
	if resp.Token != "" {
		m.establish(resp.Token, resp.User)
	}
	return Result{}
}

// SignIn posts credentials. If the response carries a token but no
// user record, a follow-up who-am-I call fetches it.
func (m *Manager) SignIn(ctx context.Context, email, password string) Result {
	var resp api.AuthResponse
	err := m.client.Post(ctx, api.LoginEndpoint, api.LoginArgs{Email: email, Password: password}, &resp)
	if err != nil {
		return Result{Err: &ResultError{Message: client.ErrorMessage(err)}}
	}
	if resp.TwoFactorRequired {
		return Result{TwoFactorRequired: true, TempToken: resp.TempToken}
	}
	if resp.Token == "" {
		return Result{}
	}
	if resp.User != nil {
		m.establish(resp.Token, resp.User)
		return Result{}
	}
	// Token without an inlined user: persist the token first so the
	// who-am-I call is authenticated, then fetch.
	if err := m.store.SetToken(resp.Token); err != nil {
		log.Warnf("failed to persist session token: %v", err)
	}
	var u api.User
	if err := m.client.Get(ctx, api.MeEndpoint, &u); err != nil {
		return Result{Err: &ResultError{Message: client.ErrorMessage(err)}}
	}
	m.establish(resp.Token, &u)
	return Result{}
}

// SignOut clears all in-memory session state, removes the persisted
// token and cached user, and runs the navigation hook last.
func (m *Manager) SignOut() {
	m.mu.Lock()
	m.user = nil
	m.role = ""
	m.approved = false
	m.mu.Unlock()

	m.store.ClearToken()
	m.store.ClearUser()

	if m.navigate != nil {
		m.navigate()
	}
}

// Restore re-establishes the session on startup. With a persisted
// token it asks the backend who the user is; if that fails (expired or
// invalid token), or when no token exists, it falls back to the
// locally cached current-user snapshot, else stays signed out.
func (m *Manager) Restore(ctx context.Context) {
	if m.store.Token() != "" {
		var u api.User
		if err := m.client.Get(ctx, api.MeEndpoint, &u); err == nil {
			m.setUser(&u)
			if err := m.store.SaveUser(&u); err != nil {
				log.Warnf("failed to cache current user: %v", err)
			}
			return
		}
	}
	if cached := m.store.LoadUser(); cached != nil {
		m.setUser(cached)
	}
}

func (m *Manager) establish(token string, u *api.User) {
	if err := m.store.SetToken(token); err != nil {
		log.Warnf("failed to persist session token: %v", err)
	}
	if u == nil {
		return
	}
	if err := m.store.SaveUser(u); err != nil {
		log.Warnf("failed to cache current user: %v", err)
	}
	m.setUser(u)
}

func (m *Manager) setUser(u *api.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
	m.role = models.DeriveRole(u.Roles)
	m.approved = u.IsApproved
}
