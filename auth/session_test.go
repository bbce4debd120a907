package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastetrack/api"
	"wastetrack/client"
)

func newTestManager(t *testing.T, handler http.Handler) (*Manager, *StateStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := NewStateStore(t.TempDir())
	require.NoError(t, err)

	cl := client.New(srv.URL, store)
	return NewManager(cl, store, nil), store, srv
}

func TestSignUpEstablishesSession(t *testing.T) {
	var gotBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(api.AuthResponse{
			Token: "tok-1",
			User: &api.User{
				ID:         "u1",
				Roles:      []string{"resident", "admin"},
				IsApproved: true,
			},
		})
	})

	m, store, _ := newTestManager(t, mux)

	res := m.SignUp(context.Background(), SignUpParams{
		Username: "jane",
		Email:    "jane@example.org",
		Password: "pw",
		FullName: "Jane",
		Phone:    "123",
	})

	require.Nil(t, res.Err)
	assert.Equal(t, "tok-1", store.Token())
	assert.Equal(t, "admin", m.Role())
	assert.True(t, m.IsApproved())
	require.NotNil(t, m.User())
	assert.Equal(t, "u1", m.User().ID)

	// Optional fields left empty must not appear in the payload.
	_, hasVehicle := gotBody["vehicleNumber"]
	assert.False(t, hasVehicle)
	_, hasRole := gotBody["role"]
	assert.False(t, hasRole)
	_, hasTwoFactor := gotBody["twoFactorEnabled"]
	assert.False(t, hasTwoFactor)
}

func TestSignUpTwoFactorShortCircuit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.AuthResponse{TwoFactorRequired: true, TempToken: "temp-9"})
	})

	m, store, _ := newTestManager(t, mux)

	res := m.SignUp(context.Background(), SignUpParams{Username: "jane", Email: "j@e", Password: "pw"})

	require.Nil(t, res.Err)
	assert.True(t, res.TwoFactorRequired)
	assert.Equal(t, "temp-9", res.TempToken)
	// No session was established.
	assert.Empty(t, store.Token())
	assert.Nil(t, m.User())
}

func TestSignInFetchesUserWhenNotInlined(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.AuthResponse{Token: "tok-2"})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(api.User{ID: "u2", Roles: []string{"collector"}})
	})

	m, store, _ := newTestManager(t, mux)

	res := m.SignIn(context.Background(), "c@example.org", "pw")

	require.Nil(t, res.Err)
	assert.Equal(t, "tok-2", store.Token())
	assert.Equal(t, "collector", m.Role())
	require.NotNil(t, m.User())
	assert.Equal(t, "u2", m.User().ID)
}

func TestSignInFailureIsAResultValue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid email or password"})
	})

	m, store, _ := newTestManager(t, mux)

	res := m.SignIn(context.Background(), "x@example.org", "bad")

	require.NotNil(t, res.Err)
	assert.Equal(t, "invalid email or password", res.Err.Message)
	assert.Empty(t, store.Token())
	assert.Nil(t, m.User())
}

func TestSignOutClearsEverything(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.AuthResponse{
			Token: "tok-3",
			User:  &api.User{ID: "u3", Roles: []string{"admin"}, IsApproved: true},
		})
	})

	var navigated bool
	m, store, _ := newTestManager(t, mux)
	m.navigate = func() { navigated = true }

	require.Nil(t, m.SignIn(context.Background(), "a@example.org", "pw").Err)
	require.True(t, m.SignedIn())

	m.SignOut()

	assert.Nil(t, m.User())
	assert.Empty(t, m.Role())
	assert.False(t, m.IsApproved())
	assert.Empty(t, store.Token())
	assert.Nil(t, store.LoadUser())
	assert.True(t, navigated)
}

func TestRestoreWithValidToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.User{ID: "u4", Roles: []string{"resident"}, IsApproved: true})
	})

	m, store, _ := newTestManager(t, mux)
	require.NoError(t, store.SetToken("persisted-tok"))

	m.Restore(context.Background())

	require.NotNil(t, m.User())
	assert.Equal(t, "u4", m.User().ID)
	assert.Equal(t, "resident", m.Role())
}

func TestRestoreFallsBackToCachedUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid or expired token"})
	})

	m, store, _ := newTestManager(t, mux)
	require.NoError(t, store.SetToken("expired-tok"))
	require.NoError(t, store.SaveUser(&api.User{ID: "cached", Roles: []string{"collector"}}))

	m.Restore(context.Background())

	require.NotNil(t, m.User())
	assert.Equal(t, "cached", m.User().ID)
	assert.Equal(t, "collector", m.Role())
}

func TestRestoreWithoutTokenUsesCacheOnly(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	m, store, _ := newTestManager(t, mux)
	require.NoError(t, store.SaveUser(&api.User{ID: "offline", Roles: []string{"resident"}}))

	m.Restore(context.Background())

	assert.Zero(t, calls)
	require.NotNil(t, m.User())
	assert.Equal(t, "offline", m.User().ID)
}

func TestStateStoreReloadsPersistedToken(t *testing.T) {
	dir := t.TempDir()
	first, err := NewStateStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.SetToken("survives-restart"))

	second, err := NewStateStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "survives-restart", second.Token())

	// Token file is private to the user.
	info, err := os.Stat(filepath.Join(dir, "auth_token"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
