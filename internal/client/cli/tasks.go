package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/gophtodo/internal/client/models"
	"github.com/dmitrijs2005/gophtodo/internal/client/services"
)

var errBadID = errors.New("task id must be a positive number")

// List refreshes the task list from the server and prints it.
func (a *App) List(ctx context.Context) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	if err := a.tasks.FetchAll(ctx); err != nil {
		return a.fail(ctx, err)
	}

	tasks := a.tasks.Tasks()
	if len(tasks) == 0 {
		a.notice("No tasks yet. Add one with 'add <title>'.")
		return nil
	}
	for _, t := range tasks {
		a.notice(formatTask(t))
	}
	return nil
}

// Add creates a task; the title is taken from args or prompted for.
func (a *App) Add(ctx context.Context, args []string) error {
	if err := a.ready(ctx); err != nil {
		return err
	}

	title, err := a.argOrPrompt(args, "Enter task title")
	if err != nil {
		return a.fail(ctx, err)
	}

	if _, err := a.tasks.Create(ctx, title); err != nil {
		return a.fail(ctx, err)
	}
	a.success("New task is created!")
	return nil
}

// Rename changes the title of a task: rename [id] [title].
func (a *App) Rename(ctx context.Context, args []string) error {
	if err := a.ready(ctx); err != nil {
		return err
	}

	id, rest, err := a.taskID(args)
	if err != nil {
		return a.fail(ctx, err)
	}
	title, err := a.argOrPrompt(rest, "Enter a new name for this task")
	if err != nil {
		return a.fail(ctx, err)
	}

	changed, err := a.tasks.Rename(ctx, id, title)
	switch {
	case errors.Is(err, services.ErrEmptyTitle):
		_ = a.fail(ctx, err)
		if cur, ok := a.tasks.Get(id); ok {
			a.notice("Title kept: " + cur.Title)
		}
		return err
	case err != nil:
		return a.fail(ctx, err)
	case !changed:
		a.notice("Title unchanged")
		return nil
	}
	a.success("Task was successfully renamed!")
	return nil
}

// Toggle flips the completed flag of a task: toggle [id].
func (a *App) Toggle(ctx context.Context, args []string) error {
	if err := a.ready(ctx); err != nil {
		return err
	}

	id, _, err := a.taskID(args)
	if err != nil {
		return a.fail(ctx, err)
	}

	t, err := a.tasks.Toggle(ctx, id)
	if err != nil {
		return a.fail(ctx, err)
	}
	if t.Completed {
		a.success("Task is done!")
	} else {
		a.notice("↩️ Task is now in progress")
	}
	return nil
}

// Delete removes a task: delete [id].
func (a *App) Delete(ctx context.Context, args []string) error {
	if err := a.ready(ctx); err != nil {
		return err
	}

	id, _, err := a.taskID(args)
	if err != nil {
		return a.fail(ctx, err)
	}

	if err := a.tasks.Remove(ctx, id); err != nil {
		return a.fail(ctx, err)
	}
	a.success("Task was successfully deleted!")
	return nil
}

// ready passes the guard and makes sure the list has been fetched once, so
// that ids typed by the user can be resolved locally.
func (a *App) ready(ctx context.Context) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	if a.tasks.State().IsLoading {
		if err := a.tasks.FetchAll(ctx); err != nil {
			return a.fail(ctx, err)
		}
	}
	return nil
}

func (a *App) argOrPrompt(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return getSimpleText(a.reader, prompt, a.out)
}

// taskID takes the id from the first arg or prompts for it; the remaining
// args are returned.
func (a *App) taskID(args []string) (uint, []string, error) {
	raw := ""
	if len(args) > 0 {
		raw, args = args[0], args[1:]
	} else {
		var err error
		if raw, err = getSimpleText(a.reader, "Enter task id", a.out); err != nil {
			return 0, nil, err
		}
	}

	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 0)
	if err != nil || id == 0 {
		return 0, nil, errBadID
	}
	return uint(id), args, nil
}

// formatTask renders one task, e.g. "[x]  12  Buy milk  (updated 3 minutes ago)".
func formatTask(t models.Task) string {
	mark := "[ ]"
	if t.Completed {
		mark = "[x]"
	}

	when := "created " + humanize.Time(t.CreatedAt)
	if t.WasEdited() {
		when = "updated " + humanize.Time(t.UpdatedAt)
	}
	return fmt.Sprintf("%s %3d  %s  (%s)", mark, t.ID, t.Title, when)
}
