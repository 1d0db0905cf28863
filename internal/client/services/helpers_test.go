package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophtodo/internal/client/client"
	"github.com/dmitrijs2005/gophtodo/internal/client/models"
	"github.com/dmitrijs2005/gophtodo/internal/client/tokenstore"
	"github.com/dmitrijs2005/gophtodo/internal/testutil/fakeapi"
)

// memTokens is an in-memory TokenStore with injectable failures.
type memTokens struct {
	mu       sync.Mutex
	token    string
	getErr   error
	setErr   error
	clearErr error
	sets     int
}

func (m *memTokens) Get(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	return m.token, m.token != "", nil
}

func (m *memTokens) Set(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.token = token
	return nil
}

func (m *memTokens) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.token = ""
	return nil
}

func (m *memTokens) current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// stubAPI is a scripted client.Client. Unset funcs panic, which flags
// requests a test did not expect.
type stubAPI struct {
	mu    sync.Mutex
	calls []string

	login    func(username, password string) (*client.AuthResponse, error)
	register func(username, password string) (*client.AuthResponse, error)
	profile  func() (*models.User, error)
	list     func() ([]models.Task, error)
	create   func(title string) (*models.Task, error)
	rename   func(id uint, title string) error
	complete func(id uint, completed bool) error
	remove   func(id uint) error
}

var _ client.Client = (*stubAPI)(nil)

func (s *stubAPI) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *stubAPI) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubAPI) Login(ctx context.Context, username, password string) (*client.AuthResponse, error) {
	s.record("login")
	return s.login(username, password)
}

func (s *stubAPI) Register(ctx context.Context, username, password string) (*client.AuthResponse, error) {
	s.record("register")
	return s.register(username, password)
}

func (s *stubAPI) Profile(ctx context.Context) (*models.User, error) {
	s.record("profile")
	return s.profile()
}

func (s *stubAPI) ListTasks(ctx context.Context) ([]models.Task, error) {
	s.record("list")
	return s.list()
}

func (s *stubAPI) CreateTask(ctx context.Context, title string) (*models.Task, error) {
	s.record("create")
	return s.create(title)
}

func (s *stubAPI) UpdateTaskTitle(ctx context.Context, id uint, title string) error {
	s.record("rename")
	return s.rename(id, title)
}

func (s *stubAPI) SetTaskCompleted(ctx context.Context, id uint, completed bool) error {
	s.record("complete")
	return s.complete(id, completed)
}

func (s *stubAPI) DeleteTask(ctx context.Context, id uint) error {
	s.record("delete")
	return s.remove(id)
}

// harness wires a real HTTP client and token store against the fake API.
type harness struct {
	api      *fakeapi.Server
	tokens   *tokenstore.Store
	client   *client.HTTPClient
	sessions *SessionManager
	tasks    *TaskStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	api := fakeapi.New(t)

	db, err := client.InitDatabase(ctx, t.TempDir()+"/client.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens := tokenstore.New(db)
	c, err := client.NewHTTPClient(client.Options{BaseURL: api.BaseURL()}, tokens)
	require.NoError(t, err)

	return &harness{api: api, tokens: tokens, client: c}
}

// start builds the services, restores the session and waits for it.
func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	sm, err := NewSessionManager(ctx, h.tokens, h.client, nil)
	require.NoError(t, err)
	_ = sm.Restore(ctx)
	require.NoError(t, sm.WaitRestored(ctx))

	h.sessions = sm
	h.tasks = NewTaskStore(h.client, sm, nil)
	t.Cleanup(h.tasks.Close)
}

// signIn creates ann, logs in and fetches the list.
func (h *harness) signIn(t *testing.T, titles ...string) []models.Task {
	t.Helper()
	ctx := context.Background()

	h.api.AddUser("ann", "secret1")
	seeded := h.api.SeedTasks("ann", titles...)
	h.start(t)

	_, err := h.sessions.Login(ctx, "ann", "secret1")
	require.NoError(t, err)
	require.NoError(t, h.tasks.FetchAll(ctx))
	return seeded
}
