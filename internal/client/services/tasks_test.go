package services

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophtodo/internal/client/client"
	"github.com/dmitrijs2005/gophtodo/internal/client/models"
	"github.com/dmitrijs2005/gophtodo/internal/testutil/fakeapi"
)

func titles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestTaskStore_LoadingUntilFirstFetch(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("ann", "secret1")
	h.start(t)
	ctx := context.Background()

	_, err := h.sessions.Login(ctx, "ann", "secret1")
	require.NoError(t, err)

	st := h.tasks.State()
	assert.True(t, st.IsLoading)
	assert.NotNil(t, st.Tasks)
	assert.Empty(t, st.Tasks)

	h.api.Fail(http.MethodGet, fakeapi.RouteTasks, http.StatusInternalServerError, map[string]any{"message": "Failed to fetch tasks"})
	err = h.tasks.FetchAll(ctx)
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch tasks", UserMessage(err))
	assert.True(t, h.tasks.State().IsLoading)

	require.NoError(t, h.tasks.FetchAll(ctx))
	assert.False(t, h.tasks.State().IsLoading)
}

func TestTaskStore_RequiresSession(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.tasks.FetchAll(ctx), ErrNotAuthenticated)
	_, err := h.tasks.Create(ctx, "x")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, h.tasks.Remove(ctx, 1), ErrNotAuthenticated)
	assert.Empty(t, h.api.Requests())
}

func TestTaskStore_FetchReplacesList(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "one", "two", "three")

	assert.Equal(t, []string{"one", "two", "three"}, titles(h.tasks.Tasks()))
}

func TestTaskStore_CreateThenFetchRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx := context.Background()

	created, err := h.tasks.Create(ctx, "  Buy milk  ")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Equal(t, []string{"Buy milk"}, titles(h.tasks.Tasks()))

	require.NoError(t, h.tasks.FetchAll(ctx))
	tasks := h.tasks.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, created.ID, tasks[0].ID)
}

func TestTaskStore_CreateBlankTitleMakesNoRequest(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	before := len(h.api.Requests())

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := h.tasks.Create(context.Background(), title)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.ErrorIs(t, err, ErrEmptyTitle)
	}

	assert.Empty(t, h.tasks.Tasks())
	assert.Len(t, h.api.Requests(), before)
}

func TestTaskStore_CreateFailureLeavesList(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Buy milk")

	_, err := h.tasks.Create(context.Background(), "buy MILK")
	require.Error(t, err)
	assert.Equal(t, "Task with this title already exists", UserMessage(err))
	assert.Equal(t, []string{"Buy milk"}, titles(h.tasks.Tasks()))
}

func TestTaskStore_RenameSameTitleIsNoop(t *testing.T) {
	h := newHarness(t)
	seeded := h.signIn(t, "Buy milk")
	before := len(h.api.Requests())
	list := h.tasks.Tasks()

	changed, err := h.tasks.Rename(context.Background(), seeded[0].ID, "  Buy milk ")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, h.api.Requests(), before)
	assert.Equal(t, list, h.tasks.Tasks())
}

func TestTaskStore_Rename(t *testing.T) {
	h := newHarness(t)
	seeded := h.signIn(t, "Buy milk", "Walk dog")
	ctx := context.Background()

	changed, err := h.tasks.Rename(ctx, seeded[1].ID, " Walk cat ")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"Buy milk", "Walk cat"}, titles(h.tasks.Tasks()))
	assert.Equal(t, "Walk cat", h.api.Tasks("ann")[1].Title)

	_, err = h.tasks.Rename(ctx, seeded[0].ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyTitle)
	got, ok := h.tasks.Get(seeded[0].ID)
	require.True(t, ok)
	assert.Equal(t, "Buy milk", got.Title)

	_, err = h.tasks.Rename(ctx, 999, "x")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStore_RenameServerRejects(t *testing.T) {
	h := newHarness(t)
	seeded := h.signIn(t, "Buy milk", "Walk dog")

	_, err := h.tasks.Rename(context.Background(), seeded[1].ID, "BUY MILK")
	require.Error(t, err)
	assert.Equal(t, "Task with this title already exists", UserMessage(err))
	assert.Equal(t, []string{"Buy milk", "Walk dog"}, titles(h.tasks.Tasks()))
}

func TestTaskStore_ToggleTwiceRestores(t *testing.T) {
	h := newHarness(t)
	seeded := h.signIn(t, "Buy milk")
	ctx := context.Background()
	id := seeded[0].ID

	got, err := h.tasks.Toggle(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.True(t, h.api.Tasks("ann")[0].Completed)

	got, err = h.tasks.Toggle(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Completed)

	cur, _ := h.tasks.Get(id)
	assert.False(t, cur.Completed)
	assert.False(t, h.api.Tasks("ann")[0].Completed)

	_, err = h.tasks.Toggle(ctx, 999)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStore_ToggleFailureLeavesFlag(t *testing.T) {
	h := newHarness(t)
	seeded := h.signIn(t, "Buy milk")

	h.api.Fail(http.MethodPut, fakeapi.RouteTask, http.StatusInternalServerError, map[string]any{"error": "db down"})
	_, err := h.tasks.Toggle(context.Background(), seeded[0].ID)
	require.Error(t, err)
	assert.Equal(t, "db down", UserMessage(err))

	cur, _ := h.tasks.Get(seeded[0].ID)
	assert.False(t, cur.Completed)
}

// Overlapping toggles are not serialized: both requests send the same
// target value and each confirmation flips the local flag, so the list
// ends up disagreeing with the server. Last write wins.
func TestTaskStore_OverlappingTogglesLastWriteWins(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var sent []bool
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})

	api := &stubAPI{
		login: func(string, string) (*client.AuthResponse, error) { return annAuth("t1") },
		list: func() ([]models.Task, error) {
			return []models.Task{{ID: 1, Title: "Buy milk"}}, nil
		},
		complete: func(id uint, completed bool) error {
			mu.Lock()
			sent = append(sent, completed)
			mu.Unlock()
			arrived <- struct{}{}
			<-release
			return nil
		},
	}
	sm, err := NewSessionManager(ctx, &memTokens{}, api, nil)
	require.NoError(t, err)
	ts := NewTaskStore(api, sm, nil)
	defer ts.Close()

	_, err = sm.Login(ctx, "ann", "secret1")
	require.NoError(t, err)
	require.NoError(t, ts.FetchAll(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.Toggle(ctx, 1)
			assert.NoError(t, err)
		}()
	}
	<-arrived
	<-arrived
	close(release)
	wg.Wait()

	assert.Equal(t, []bool{true, true}, sent)
	cur, _ := ts.Get(1)
	assert.False(t, cur.Completed)
}

func TestTaskStore_RemoveFiltersID(t *testing.T) {
	ctx := context.Background()
	var deleted []uint
	api := &stubAPI{
		login: func(string, string) (*client.AuthResponse, error) { return annAuth("t1") },
		list: func() ([]models.Task, error) {
			return []models.Task{{ID: 3, Title: "a"}, {ID: 5, Title: "b"}, {ID: 7, Title: "c"}}, nil
		},
		remove: func(id uint) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	sm, err := NewSessionManager(ctx, &memTokens{}, api, nil)
	require.NoError(t, err)
	ts := NewTaskStore(api, sm, nil)
	defer ts.Close()

	_, err = sm.Login(ctx, "ann", "secret1")
	require.NoError(t, err)
	require.NoError(t, ts.FetchAll(ctx))

	require.NoError(t, ts.Remove(ctx, 5))

	tasks := ts.Tasks()
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.NotEqual(t, uint(5), task.ID)
	}
	assert.Equal(t, []uint{5}, deleted)

	assert.ErrorIs(t, ts.Remove(ctx, 5), ErrTaskNotFound)
	assert.Len(t, deleted, 1)
}

func TestTaskStore_RemoveSoftDeletesOnServer(t *testing.T) {
	h := newHarness(t)
	seeded := h.signIn(t, "a", "b")
	ctx := context.Background()

	require.NoError(t, h.tasks.Remove(ctx, seeded[0].ID))
	assert.Equal(t, []string{"b"}, titles(h.tasks.Tasks()))
	assert.Len(t, h.api.DeletedTasks("ann"), 1)

	require.NoError(t, h.tasks.FetchAll(ctx))
	assert.Equal(t, []string{"b"}, titles(h.tasks.Tasks()))
}

func TestTaskStore_RemoveFailureLeavesList(t *testing.T) {
	h := newHarness(t)
	seeded := h.signIn(t, "a", "b")

	h.api.Fail(http.MethodDelete, fakeapi.RouteTask, http.StatusNotFound, map[string]any{"success": false, "message": "Task not found"})
	err := h.tasks.Remove(context.Background(), seeded[0].ID)
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, titles(h.tasks.Tasks()))
}

func TestTaskStore_LogoutResetsList(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "a", "b")
	ctx := context.Background()

	var states []TaskListState
	h.tasks.Subscribe(func(s TaskListState) { states = append(states, s) })

	require.NoError(t, h.sessions.Logout(ctx))

	st := h.tasks.State()
	assert.True(t, st.IsLoading)
	assert.Empty(t, st.Tasks)
	require.NotEmpty(t, states)
	assert.Empty(t, states[len(states)-1].Tasks)
}

func TestTaskStore_ResetIsDeliveredAfterPendingChange(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "a")
	ctx := context.Background()
	signedIn := h.sessions.State().Epoch

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu   sync.Mutex
		seen []TaskListState
	)
	h.tasks.Subscribe(func(s TaskListState) {
		if len(s.Tasks) == 2 {
			close(entered)
			<-release
		}
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	createErr := make(chan error, 1)
	go func() {
		_, err := h.tasks.Create(ctx, "b")
		createErr <- err
	}()
	<-entered

	logoutErr := make(chan error, 1)
	go func() { logoutErr <- h.sessions.Logout(ctx) }()

	// the session may commit, but the list reset waits for the delivery above
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-createErr)
	require.NoError(t, <-logoutErr)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, []string{"a", "b"}, titles(seen[0].Tasks))
	assert.Equal(t, signedIn, seen[0].Epoch)

	last := seen[len(seen)-1]
	assert.Empty(t, last.Tasks)
	assert.True(t, last.IsLoading)
	assert.Greater(t, last.Epoch, signedIn)
}

func TestTaskStore_LateResultAfterLogoutIsDropped(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "a")
	ctx := context.Background()

	gate := h.api.Hold(http.MethodPost, fakeapi.RouteTasks)
	errc := make(chan error, 1)
	go func() {
		_, err := h.tasks.Create(ctx, "late")
		errc <- err
	}()

	select {
	case <-gate.Entered:
	case <-time.After(5 * time.Second):
		t.Fatal("create never reached the server")
	}
	require.NoError(t, h.sessions.Logout(ctx))
	gate.Release()

	// the server still honors the token it was sent, so the task exists
	// there, but the signed-out client must not show it
	assert.ErrorIs(t, <-errc, ErrStaleSession)
	assert.Len(t, h.api.Tasks("ann"), 2)
	assert.Empty(t, h.tasks.Tasks())
	assert.True(t, h.tasks.State().IsLoading)
}

func TestTaskStore_SwitchingUsersDiscardsList(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "ann's task")
	h.api.AddUser("bob", "secret2")
	ctx := context.Background()

	_, err := h.sessions.Login(ctx, "bob", "secret2")
	require.NoError(t, err)
	assert.Empty(t, h.tasks.Tasks())

	require.NoError(t, h.tasks.FetchAll(ctx))
	assert.Empty(t, h.tasks.Tasks())
}

func TestTaskStore_SubscribersSeeConfirmedState(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	var got [][]string
	cancel := h.tasks.Subscribe(func(s TaskListState) { got = append(got, titles(s.Tasks)) })

	_, err := h.tasks.Create(context.Background(), "one")
	require.NoError(t, err)
	cancel()
	_, err = h.tasks.Create(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"one"}}, got)
}

func TestUniqueByID(t *testing.T) {
	in := []models.Task{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}, {ID: 1, Title: "dup"}}
	assert.Equal(t, []string{"a", "b"}, titles(uniqueByID(in)))
	assert.NotNil(t, uniqueByID(nil))
}
