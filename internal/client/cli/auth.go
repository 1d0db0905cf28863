package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/gophtodo/internal/auth"
	"github.com/dmitrijs2005/gophtodo/internal/client/services"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

var errLoginRequired = errors.New("please log in first (use 'login' or 'register')")

// Register prompts for a username, a password and its confirmation, then
// creates the account and signs in with it.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return a.fail(ctx, err)
	}
	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return a.fail(ctx, err)
	}
	confirmation, err := getPassword(a.reader, "Confirm password", a.out)
	if err != nil {
		return a.fail(ctx, err)
	}

	user, err := a.sessions.Register(ctx, userName, password, confirmation)
	if err != nil {
		return a.fail(ctx, err)
	}

	a.success(fmt.Sprintf("Account created, welcome %s!", user.Username))
	return nil
}

// Login prompts for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return a.fail(ctx, err)
	}
	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return a.fail(ctx, err)
	}

	user, err := a.sessions.Login(ctx, userName, password)
	if err != nil {
		return a.fail(ctx, err)
	}

	a.success(fmt.Sprintf("Welcome, %s!", user.Username))
	return nil
}

// Logout forgets the stored token. There is no server call.
func (a *App) Logout(ctx context.Context) error {
	if err := a.sessions.Logout(ctx); err != nil {
		a.log.Error(ctx, "logout left a stored token behind", "error", err)
		return a.fail(ctx, err)
	}
	a.success("Logged out")
	return nil
}

// Whoami prints the signed-in user and what the token says about itself.
func (a *App) Whoami(ctx context.Context) error {
	st := a.sessions.State()
	if !st.IsAuthenticated() {
		a.notice("Not logged in")
		return nil
	}

	a.notice(fmt.Sprintf("%s (id %s)", st.User.Username, st.User.ID))

	if storedAt, ok, err := a.tokens.StoredAt(ctx); err == nil && ok {
		a.notice("signed in " + humanize.Time(storedAt))
	}

	claims, err := auth.Inspect(st.Token)
	if err != nil {
		a.log.Debug(ctx, "token is not a readable jwt", "error", err)
		return nil
	}
	if exp, ok := claims.Expiry(); ok {
		verb := "expires"
		if exp.Before(time.Now()) {
			verb = "expired"
		}
		a.notice(fmt.Sprintf("token %s %s (%s)", verb, humanize.Time(exp), exp.Local().Format(time.DateTime)))
	}
	return nil
}

// requireSession consults the route guard before a protected command.
func (a *App) requireSession(ctx context.Context) error {
	switch services.Guard(a.sessions.State()) {
	case services.RenderLoading:
		if err := a.sessions.WaitRestored(ctx); err != nil {
			return err
		}
		return a.requireSession(ctx)
	case services.RedirectLogin:
		_ = a.fail(ctx, errLoginRequired)
		return services.ErrNotAuthenticated
	default:
		return nil
	}
}
