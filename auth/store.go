package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"wastetrack/api"
)

const (
	tokenFile = "auth_token"
	userFile  = "current_user.json"
)

// StateStore persists the session token and the cached current-user
// snapshot under a state directory, and serves the token to the HTTP
// client. It is safe for concurrent use.
type StateStore struct {
	dir string

	mu    sync.RWMutex
	token string
}

// NewStateStore opens the store rooted at dir, creating the directory
// if needed and loading any previously persisted token.
func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &StateStore{dir: dir}
	raw, err := os.ReadFile(filepath.Join(dir, tokenFile))
	switch {
	case err == nil:
		s.token = strings.TrimSpace(string(raw))
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	return s, nil
}

// Token implements client.TokenSource.
func (s *StateStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores the token in memory and persists it.
func (s *StateStore) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return os.WriteFile(filepath.Join(s.dir, tokenFile), []byte(token), 0o600)
}

// ClearToken forgets the token in memory and removes the persisted
// copy.
func (s *StateStore) ClearToken() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	os.Remove(filepath.Join(s.dir, tokenFile))
}

// SaveUser caches the current-user snapshot for offline restore.
func (s *StateStore) SaveUser(u *api.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, userFile), raw, 0o600)
}

// LoadUser returns the cached current-user snapshot, or nil when none
// exists.
func (s *StateStore) LoadUser() *api.User {
	raw, err := os.ReadFile(filepath.Join(s.dir, userFile))
	if err != nil {
		return nil
	}
	var u api.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil
	}
	return &u
}

// ClearUser removes the cached current-user snapshot.
func (s *StateStore) ClearUser() {
	os.Remove(filepath.Join(s.dir, userFile))
}

// DefaultStateDir returns the per-user state directory used when the
// caller does not supply one.
func DefaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "wastetrack")
	}
	return ".wastetrack"
}
