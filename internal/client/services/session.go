// Package services contains application services for the gophtodo client:
// the session lifecycle, the task list and the route guard.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophtodo/internal/client/client"
	"github.com/dmitrijs2005/gophtodo/internal/client/models"
	"github.com/dmitrijs2005/gophtodo/internal/client/observe"
	"github.com/dmitrijs2005/gophtodo/internal/logging"
)

const minPasswordLen = 6

// SessionStatus is the lifecycle state of the session.
type SessionStatus int

const (
	StatusUnauthenticated SessionStatus = iota
	StatusRestoring
	StatusAuthenticated
)

func (s SessionStatus) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusRestoring:
		return "restoring"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// SessionState is a snapshot of the session. User and Token are set and
// cleared together. Epoch grows on every settled transition.
type SessionState struct {
	User      *models.User
	Token     string
	IsLoading bool
	Status    SessionStatus
	Epoch     uint64
}

func (s SessionState) IsAuthenticated() bool {
	return s.User != nil
}

func (s SessionState) clone() SessionState {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// SessionManager owns the session. Network calls run without the lock;
// token writes happen under it so they follow the order of transitions.
// Transitions are published in commit order: pubMu is taken before mu and
// held until subscribers have returned.
type SessionManager struct {
	tokens TokenStore
	api    client.Client
	log    logging.Logger

	pubMu sync.Mutex
	mu    sync.Mutex
	state SessionState
	hub   observe.Hub[SessionState]

	restoreOnce sync.Once
	restoreErr  error
	doneOnce    sync.Once
	done        chan struct{}
}

// NewSessionManager starts in Restoring when a token is stored and in
// Unauthenticated otherwise. Call Restore to settle the former.
func NewSessionManager(ctx context.Context, tokens TokenStore, api client.Client, log logging.Logger) (*SessionManager, error) {
	if log == nil {
		log = logging.NewNop()
	}

	m := &SessionManager{
		tokens: tokens,
		api:    api,
		log:    log.With("component", "session"),
		done:   make(chan struct{}),
	}

	token, ok, err := tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok {
		m.state = SessionState{Token: token, IsLoading: true, Status: StatusRestoring}
	} else {
		m.state = SessionState{Status: StatusUnauthenticated}
		m.closeDone()
	}
	return m, nil
}

func (m *SessionManager) closeDone() {
	m.doneOnce.Do(func() { close(m.done) })
}

// WaitRestored blocks until restoration has settled or ctx ends.
func (m *SessionManager) WaitRestored(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restore validates a stored token against the profile endpoint. It runs at
// most once; later calls wait for and return the first result. A rejected
// token is cleared. When ctx is cancelled the session settles as signed out
// but the token is kept for the next run.
func (m *SessionManager) Restore(ctx context.Context) error {
	m.restoreOnce.Do(func() {
		m.restoreErr = m.restore(ctx)
		m.closeDone()
	})
	return m.restoreErr
}

func (m *SessionManager) restore(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Status != StatusRestoring {
		m.mu.Unlock()
		return nil
	}
	epoch := m.state.Epoch
	token := m.state.Token
	m.mu.Unlock()

	user, err := m.api.Profile(ctx)

	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	if m.state.Epoch != epoch {
		m.mu.Unlock()
		m.log.Debug(ctx, "restore result discarded", "epoch", epoch)
		return ErrStaleSession
	}

	if errors.Is(err, context.Canceled) {
		m.log.Info(ctx, "restore interrupted", "error", err)
		snap := m.setLocked(SessionState{Status: StatusUnauthenticated})
		m.mu.Unlock()
		m.hub.Publish(snap)
		return fmt.Errorf("restore session: %w", err)
	}

	if err != nil {
		m.log.Info(ctx, "stored session rejected", "error", err)
		clearErr := m.tokens.Clear(ctx)
		snap := m.setLocked(SessionState{Status: StatusUnauthenticated})
		m.mu.Unlock()
		m.hub.Publish(snap)
		if clearErr != nil {
			return fmt.Errorf("restore session: %w (clear token: %v)", err, clearErr)
		}
		return fmt.Errorf("restore session: %w", err)
	}

	snap := m.setLocked(SessionState{User: user, Token: token, Status: StatusAuthenticated})
	m.mu.Unlock()

	m.log.Info(ctx, "session restored", "user", user.Username)
	m.hub.Publish(snap)
	return nil
}

// setLocked installs next with a bumped epoch and returns a snapshot.
func (m *SessionManager) setLocked(next SessionState) SessionState {
	next.Epoch = m.state.Epoch + 1
	m.state = next
	return m.state.clone()
}

// Login signs in with username and password.
func (m *SessionManager) Login(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, invalid(ErrEmptyCredentials)
	}

	epoch := m.State().Epoch
	resp, err := m.api.Login(ctx, username, password)
	if err != nil {
		m.log.Debug(ctx, "login failed", "user", username, "error", err)
		return models.User{}, err
	}
	return m.establish(ctx, epoch, resp)
}

// Register creates an account and signs in with it. The password is checked
// after trimming but sent as typed.
func (m *SessionManager) Register(ctx context.Context, username, password, confirmation string) (models.User, error) {
	username = strings.TrimSpace(username)
	trimmed := strings.TrimSpace(password)

	switch {
	case username == "" || trimmed == "":
		return models.User{}, invalid(ErrEmptyCredentials)
	case trimmed != strings.TrimSpace(confirmation):
		return models.User{}, invalid(ErrPasswordMismatch)
	case utf8.RuneCountInString(trimmed) < minPasswordLen:
		return models.User{}, invalid(ErrPasswordTooShort)
	}

	epoch := m.State().Epoch
	resp, err := m.api.Register(ctx, username, password)
	if err != nil {
		m.log.Debug(ctx, "register failed", "user", username, "error", err)
		return models.User{}, err
	}
	return m.establish(ctx, epoch, resp)
}

func (m *SessionManager) establish(ctx context.Context, epoch uint64, resp *client.AuthResponse) (models.User, error) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	if m.state.Epoch != epoch {
		m.mu.Unlock()
		m.log.Debug(ctx, "sign-in result discarded", "epoch", epoch)
		return models.User{}, ErrStaleSession
	}
	if err := m.tokens.Set(ctx, resp.Token); err != nil {
		m.mu.Unlock()
		return models.User{}, fmt.Errorf("save session: %w", err)
	}

	user := resp.User
	snap := m.setLocked(SessionState{User: &user, Token: resp.Token, Status: StatusAuthenticated})
	m.mu.Unlock()

	// a sign-in settles a pending restore as well
	m.closeDone()

	m.log.Info(ctx, "signed in", "user", user.Username)
	m.hub.Publish(snap)
	return user, nil
}

// Logout forgets the session locally. In-memory state is cleared even when
// the stored token cannot be removed; that error is returned.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	err := m.tokens.Clear(ctx)
	snap := m.setLocked(SessionState{Status: StatusUnauthenticated})
	m.mu.Unlock()

	m.closeDone()
	m.log.Info(ctx, "signed out")
	m.hub.Publish(snap)

	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// State returns a copy of the current session.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe registers fn for every settled transition. Deliveries arrive in
// epoch order; fn must not call Login, Register, Logout or Restore.
func (m *SessionManager) Subscribe(fn func(SessionState)) (cancel func()) {
	return m.hub.Subscribe(fn)
}
