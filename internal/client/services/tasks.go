package services

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophtodo/internal/client/client"
	"github.com/dmitrijs2005/gophtodo/internal/client/models"
	"github.com/dmitrijs2005/gophtodo/internal/client/observe"
	"github.com/dmitrijs2005/gophtodo/internal/logging"
)

// TaskListState is a snapshot of the task list. Tasks is never nil. Epoch is
// the session epoch the list belongs to.
type TaskListState struct {
	Tasks     []models.Task
	IsLoading bool
	Epoch     uint64
}

// Sessions is the part of SessionManager the task store depends on.
type Sessions interface {
	State() SessionState
	Subscribe(fn func(SessionState)) (cancel func())
}

// TaskStore keeps the signed-in user's tasks in sync with the server.
// Every mutation is applied locally only after the server confirmed it.
// As in SessionManager, pubMu keeps publishes in commit order.
type TaskStore struct {
	api      client.Client
	sessions Sessions
	log      logging.Logger

	pubMu   sync.Mutex
	mu      sync.Mutex
	tasks   []models.Task
	loading bool
	epoch   uint64
	hub     observe.Hub[TaskListState]

	unsubscribe func()
}

// NewTaskStore creates an empty store that resets whenever the session
// changes. Close releases the session subscription.
func NewTaskStore(api client.Client, sessions Sessions, log logging.Logger) *TaskStore {
	if log == nil {
		log = logging.NewNop()
	}

	s := &TaskStore{
		api:      api,
		sessions: sessions,
		log:      log.With("component", "tasks"),
		tasks:    []models.Task{},
		loading:  true,
		epoch:    sessions.State().Epoch,
	}
	s.unsubscribe = sessions.Subscribe(s.onSession)
	return s
}

func (s *TaskStore) Close() {
	s.unsubscribe()
}

func (s *TaskStore) onSession(st SessionState) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if st.Epoch <= s.epoch {
		s.mu.Unlock()
		return
	}
	s.epoch = st.Epoch
	s.tasks = []models.Task{}
	s.loading = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)
}

// begin checks the session and returns the epoch the operation belongs to.
func (s *TaskStore) begin() (uint64, error) {
	st := s.sessions.State()
	if !st.IsAuthenticated() {
		return 0, ErrNotAuthenticated
	}
	return st.Epoch, nil
}

// staleLocked reports whether results of an operation started at epoch
// must be dropped.
func (s *TaskStore) staleLocked(epoch uint64) bool {
	return s.epoch > epoch || s.sessions.State().Epoch != epoch
}

// commit runs apply on a confirmed result unless the session moved on since
// epoch, then publishes the new state.
func (s *TaskStore) commit(epoch uint64, apply func()) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if s.staleLocked(epoch) {
		s.mu.Unlock()
		return ErrStaleSession
	}
	apply()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)
	return nil
}

// FetchAll replaces the list with the server collection.
func (s *TaskStore) FetchAll(ctx context.Context) error {
	epoch, err := s.begin()
	if err != nil {
		return err
	}

	tasks, err := s.api.ListTasks(ctx)
	if err != nil {
		s.log.Warn(ctx, "fetch tasks failed", "error", err)
		return err
	}

	err = s.commit(epoch, func() {
		s.tasks = uniqueByID(tasks)
		s.loading = false
	})
	if err != nil {
		return err
	}

	s.log.Debug(ctx, "tasks fetched", "count", len(tasks))
	return nil
}

// Create sends the trimmed title and appends the task the server returned.
func (s *TaskStore) Create(ctx context.Context, title string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, invalid(ErrEmptyTitle)
	}

	epoch, err := s.begin()
	if err != nil {
		return models.Task{}, err
	}

	created, err := s.api.CreateTask(ctx, title)
	if err != nil {
		return models.Task{}, err
	}

	err = s.commit(epoch, func() {
		if i := s.indexLocked(created.ID); i >= 0 {
			s.tasks[i] = *created
		} else {
			s.tasks = append(s.tasks, *created)
		}
	})
	if err != nil {
		return models.Task{}, err
	}
	return *created, nil
}

// Rename sets a new title. changed is false when the trimmed title equals
// the stored one, in which case no request is made.
func (s *TaskStore) Rename(ctx context.Context, id uint, title string) (changed bool, err error) {
	epoch, err := s.begin()
	if err != nil {
		return false, err
	}

	current, ok := s.Get(id)
	if !ok {
		return false, ErrTaskNotFound
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return false, invalid(ErrEmptyTitle)
	}
	if title == current.Title {
		return false, nil
	}

	if err := s.api.UpdateTaskTitle(ctx, id, title); err != nil {
		return false, err
	}

	err = s.commit(epoch, func() {
		if i := s.indexLocked(id); i >= 0 {
			s.tasks[i].Title = title
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Toggle asks the server to invert the completed flag and, once confirmed,
// flips the flag of the task as it is stored at that moment. Overlapping
// toggles on one task are not serialized.
func (s *TaskStore) Toggle(ctx context.Context, id uint) (models.Task, error) {
	epoch, err := s.begin()
	if err != nil {
		return models.Task{}, err
	}

	current, ok := s.Get(id)
	if !ok {
		return models.Task{}, ErrTaskNotFound
	}

	if err := s.api.SetTaskCompleted(ctx, id, !current.Completed); err != nil {
		return models.Task{}, err
	}

	result := current
	result.Completed = !current.Completed
	err = s.commit(epoch, func() {
		if i := s.indexLocked(id); i >= 0 {
			s.tasks[i].Completed = !s.tasks[i].Completed
			result = s.tasks[i]
		}
	})
	if err != nil {
		return models.Task{}, err
	}
	return result, nil
}

// Remove deletes the task on the server and then drops it locally.
func (s *TaskStore) Remove(ctx context.Context, id uint) error {
	epoch, err := s.begin()
	if err != nil {
		return err
	}

	if _, ok := s.Get(id); !ok {
		return ErrTaskNotFound
	}

	if err := s.api.DeleteTask(ctx, id); err != nil {
		return err
	}

	return s.commit(epoch, func() {
		s.tasks = slices.DeleteFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
	})
}

// Tasks returns a copy of the list.
func (s *TaskStore) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// Get returns the stored task with id.
func (s *TaskStore) Get(id uint) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return models.Task{}, false
}

func (s *TaskStore) State() TaskListState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every change of the list. fn must not call the
// store's mutating methods.
func (s *TaskStore) Subscribe(fn func(TaskListState)) (cancel func()) {
	return s.hub.Subscribe(fn)
}

func (s *TaskStore) indexLocked(id uint) int {
	return slices.IndexFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
}

func (s *TaskStore) snapshotLocked() TaskListState {
	tasks := slices.Clone(s.tasks)
	if tasks == nil {
		tasks = []models.Task{}
	}
	return TaskListState{Tasks: tasks, IsLoading: s.loading, Epoch: s.epoch}
}

func uniqueByID(tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	seen := make(map[uint]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
