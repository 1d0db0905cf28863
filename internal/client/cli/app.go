package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophtodo/internal/client/client"
	"github.com/dmitrijs2005/gophtodo/internal/client/config"
	"github.com/dmitrijs2005/gophtodo/internal/client/services"
	"github.com/dmitrijs2005/gophtodo/internal/client/tokenstore"
	"github.com/dmitrijs2005/gophtodo/internal/filex"
	"github.com/dmitrijs2005/gophtodo/internal/logging"
)

// App wires local storage, the API client and the services behind the
// commands. One App serves either the REPL or a single cobra command.
type App struct {
	config   *config.Config
	log      logging.Logger
	db       *sql.DB
	tokens   *tokenstore.Store
	sessions *services.SessionManager
	tasks    *services.TaskStore
	reader   *bufio.Reader
	out      io.Writer

	mu        sync.Mutex
	epoch     uint64
	userName  string
	taskCount int
	cancels   []func()
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	dbPath, err := filex.EnsureParentDir(c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error preparing database directory", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	db, err := client.InitDatabase(ctx, dbPath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	tokens := tokenstore.New(db)

	apiClient, err := client.NewHTTPClient(client.Options{
		BaseURL:           c.APIBaseURL,
		Timeout:           c.RequestTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Logger:            log,
	}, tokens)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sessions, err := services.NewSessionManager(ctx, tokens, apiClient, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config:   c,
		log:      log,
		db:       db,
		tokens:   tokens,
		sessions: sessions,
		tasks:    services.NewTaskStore(apiClient, sessions, log),
		reader:   bufio.NewReader(in),
		out:      out,
		epoch:    sessions.State().Epoch,
	}
	a.cancels = append(a.cancels,
		sessions.Subscribe(a.onSession),
		a.tasks.Subscribe(a.onTasks),
	)
	return a, nil
}

// onSession and onTasks keep the prompt status. States from an epoch the App
// has already moved past are ignored.
func (a *App) onSession(s services.SessionState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s.Epoch <= a.epoch {
		return
	}
	a.epoch = s.Epoch
	a.userName = ""
	if s.User != nil {
		a.userName = s.User.Username
	}
}

func (a *App) onTasks(s services.TaskListState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s.Epoch < a.epoch {
		return
	}
	a.taskCount = len(s.Tasks)
	if s.IsLoading {
		a.taskCount = -1
	}
}

// Start settles the stored session. A rejected token is not an error: the
// user simply has to log in again. An interrupted restore keeps the token
// and returns the context error.
func (a *App) Start(ctx context.Context) error {
	hadToken := a.sessions.State().Status == services.StatusRestoring

	err := a.sessions.Restore(ctx)
	if waitErr := a.sessions.WaitRestored(ctx); waitErr != nil {
		return waitErr
	}

	switch {
	case err == nil, !hadToken, errors.Is(err, services.ErrStaleSession):
	case errors.Is(err, context.Canceled):
		return err
	default:
		a.log.Info(ctx, "stored session dropped", "error", err)
		a.notice("Your session has expired, please log in again")
	}
	return nil
}

// Close releases subscriptions and the local database.
func (a *App) Close() error {
	for _, cancel := range a.cancels {
		cancel()
	}
	a.tasks.Close()
	if s, ok := a.log.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.sessions.State().IsAuthenticated()
}

// getStatus renders the prompt suffix from the last published states.
func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.userName == "":
		return ""
	case a.taskCount < 0:
		return fmt.Sprintf("(%s)", a.userName)
	default:
		return fmt.Sprintf("(%s, %d tasks)", a.userName, a.taskCount)
	}
}

func (a *App) success(msg string) {
	fmt.Fprintln(a.out, "✅ "+msg)
}

func (a *App) notice(msg string) {
	fmt.Fprintln(a.out, msg)
}

// fail prints err as a one-line notification and returns it.
// Validation failures are not logged.
func (a *App) fail(ctx context.Context, err error) error {
	if !services.IsValidation(err) {
		a.log.Info(ctx, "command failed", "error", err)
	}
	fmt.Fprintln(a.out, "❌ "+services.UserMessage(err))
	return err
}
