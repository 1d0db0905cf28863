package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gophtodo/internal/buildinfo"
	"github.com/dmitrijs2005/gophtodo/internal/client/config"
	"github.com/dmitrijs2005/gophtodo/internal/logging"
)

// ErrReported marks failures that were already shown to the user.
var ErrReported = errors.New("already reported")

func reported(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrReported, err)
}

// IO bundles the streams the commands talk to.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Execute builds the command tree, runs it with args and releases the App.
func Execute(ctx context.Context, cfg *config.Config, args []string, streams IO) error {
	var app *App
	defer func() {
		if app != nil {
			_ = app.Close()
		}
	}()

	root := newRootCommand(cfg, streams, &app)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(cfg *config.Config, streams IO, app **App) *cobra.Command {
	root := &cobra.Command{
		Use:   "gophtodo",
		Short: "gophtodo - terminal client for the tasks API",
		Long: `gophtodo manages your personal task list from the terminal.

Without a subcommand it starts an interactive shell. The session token is
kept in a local SQLite file, so a login survives between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			a, err := openApp(cmd.Context(), cfg, streams)
			if err != nil {
				return err
			}
			*app = a
			return a.Start(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*app).Shell(cmd.Context())
		},
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	config.BindFlags(root.PersistentFlags(), cfg)

	noArgs := func(fn func(*App, context.Context) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return reported(fn(*app, cmd.Context()))
		}
	}
	withArgs := func(fn func(*App, context.Context, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return reported(fn(*app, cmd.Context(), args))
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Start the interactive shell (default)",
			Args:  cobra.NoArgs,
			RunE:  noArgs((*App).Shell),
		},
		&cobra.Command{
			Use:   "register",
			Short: "Create an account and sign in",
			Args:  cobra.NoArgs,
			RunE:  noArgs((*App).Register),
		},
		&cobra.Command{
			Use:   "login",
			Short: "Sign in and remember the session",
			Args:  cobra.NoArgs,
			RunE:  noArgs((*App).Login),
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Forget the stored session",
			Args:  cobra.NoArgs,
			RunE:  noArgs((*App).Logout),
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "Show the signed-in user and token expiry",
			Args:  cobra.NoArgs,
			RunE:  noArgs((*App).Whoami),
		},
		&cobra.Command{
			Use:     "tasks",
			Aliases: []string{"list", "ls"},
			Short:   "List your tasks",
			Args:    cobra.NoArgs,
			RunE:    noArgs((*App).List),
		},
		&cobra.Command{
			Use:   "add [title...]",
			Short: "Create a task",
			RunE:  withArgs((*App).Add),
		},
		&cobra.Command{
			Use:   "rename [id] [title...]",
			Short: "Rename a task",
			RunE:  withArgs((*App).Rename),
		},
		&cobra.Command{
			Use:     "toggle [id]",
			Aliases: []string{"done"},
			Short:   "Mark a task done or back in progress",
			Args:    cobra.MaximumNArgs(1),
			RunE:    withArgs((*App).Toggle),
		},
		&cobra.Command{
			Use:     "rm [id]",
			Aliases: []string{"delete"},
			Short:   "Delete a task",
			Args:    cobra.MaximumNArgs(1),
			RunE:    withArgs((*App).Delete),
		},
		&cobra.Command{
			Use:         "version",
			Short:       "Print build information",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{"offline": "true"},
			Run: func(cmd *cobra.Command, _ []string) {
				buildinfo.PrintBuildData(cmd.OutOrStdout())
			},
		},
	)

	return root
}

func openApp(ctx context.Context, cfg *config.Config, streams IO) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Options{
		Backend: cfg.LogBackend,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  streams.Err,
	})
	if err != nil {
		return nil, err
	}

	return NewApp(ctx, cfg, log, streams.In, streams.Out)
}
