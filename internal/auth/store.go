// Package auth holds the process-wide credential state consulted by the
// API transport. It is mutated only by login, logout and session
// invalidation.
package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/raphaelgruber/finchat/internal/models"
	"gopkg.in/yaml.v3"
)

// Credential is a bearer token plus the authenticated flag and profile.
type Credential struct {
	Token         string       `yaml:"token"`
	Authenticated bool         `yaml:"authenticated"`
	User          *models.User `yaml:"user,omitempty"`
}

// Store is the credential container. When path is set, every change is
// written to a YAML file so the login survives across runs.
// All methods are thread-safe.
type Store struct {
	mu   sync.RWMutex
	cred Credential
	path string

	obsMu     sync.Mutex
	nextObs   int
	observers map[int]func(Credential)
}

// NewStore creates a credential store. An empty path keeps credentials in
// memory only. A missing file is not an error.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:      path,
		observers: make(map[int]func(Credential)),
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.cred); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	// A file without a token cannot be authenticated.
	if s.cred.Token == "" {
		s.cred = Credential{}
	}
	return s, nil
}

// SetSession records a successful login or registration.
func (s *Store) SetSession(token string, user models.User) error {
	if token == "" {
		return errors.New("empty access token")
	}
	u := user
	return s.update(func(Credential) (Credential, bool) {
		return Credential{Token: token, Authenticated: true, User: &u}, true
	})
}

// SetUser refreshes the cached profile without touching the token. It does
// nothing once the credential has been cleared.
func (s *Store) SetUser(user models.User) error {
	u := user
	return s.update(func(cur Credential) (Credential, bool) {
		if !cur.Authenticated {
			return cur, false
		}
		cur.User = &u
		return cur, true
	})
}

// Clear drops the credential entirely (logout or server-side invalidation).
func (s *Store) Clear() error {
	return s.update(func(Credential) (Credential, bool) {
		return Credential{}, true
	})
}

// update applies fn to the current credential under the write lock and
// persists the result when fn reports a change. Observers run after the lock
// is released.
func (s *Store) update(fn func(cur Credential) (Credential, bool)) error {
	s.mu.Lock()
	next, changed := fn(s.cred)
	if !changed {
		s.mu.Unlock()
		return nil
	}
	s.cred = next
	err := s.persist()
	s.mu.Unlock()

	s.notify(next)
	return err
}

// persist writes the credential file. Caller must hold the write lock.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	if !s.cred.Authenticated {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove credentials: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := yaml.Marshal(s.cred)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Token returns the bearer token, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Token
}

// IsAuthenticated reports whether the client believes it is logged in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Authenticated
}

// UserID returns the authenticated user's id, or "".
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cred.Authenticated || s.cred.User == nil {
		return ""
	}
	return s.cred.User.ID
}

// User returns a copy of the cached profile, or nil.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred.User == nil {
		return nil
	}
	u := *s.cred.User
	return &u
}

// Snapshot returns the current credential.
func (s *Store) Snapshot() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred := s.cred
	if cred.User != nil {
		u := *cred.User
		cred.User = &u
	}
	return cred
}

// Subscribe registers fn to receive every credential change.
func (s *Store) Subscribe(fn func(Credential)) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify(cred Credential) {
	s.obsMu.Lock()
	fns := make([]func(Credential), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(cred)
	}
}
