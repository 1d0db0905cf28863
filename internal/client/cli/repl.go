package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	List(ctx context.Context) error
	Add(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Toggle(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the gophtodo CLI.
//
// It reads a line from the provided reader, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user on out. The loop exits on EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help                 - show available commands
//	  - register             - create an account
//	  - login                - authenticate
//	  - exit | quit          - leave the program
//
//	Logged in:
//	  - help                 - show available commands
//	  - list | l             - list tasks
//	  - add [title]          - create a task
//	  - rename [id] [title]  - rename a task
//	  - toggle | done [id]   - mark a task done or back in progress
//	  - delete | rm [id]     - delete a task
//	  - whoami               - show the signed-in user
//	  - logout               - log out
//	  - exit | quit          - leave the program
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "todo%s> \n", statusFn())
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(out, "Available commands: (l)ist, add, rename, toggle|done, delete|rm, whoami, logout, exit")
			} else {
				fmt.Fprintln(out, "Available commands: register, login, whoami, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.Whoami(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "add":
			_ = a.Add(ctx, args)

		case "rename":
			_ = a.Rename(ctx, args)

		case "toggle", "done":
			_ = a.Toggle(ctx, args)

		case "delete", "rm":
			_ = a.Delete(ctx, args)

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// Shell runs the interactive loop on the App's input until EOF or exit.
// Prompts inside commands share the same reader.
func (a *App) Shell(ctx context.Context) error {
	a.notice("Welcome to gophtodo (type 'help' for commands)")
	if !a.isLoggedIn() {
		a.notice("Not logged in: use 'login' or 'register'")
	}

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
	return nil
}
