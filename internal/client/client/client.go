package client

import (
	"context"

	"github.com/dmitrijs2005/gophtodo/internal/client/models"
)

// Client is the API contract used by the session and task services.
type Client interface {
	Login(ctx context.Context, username, password string) (*AuthResponse, error)
	Register(ctx context.Context, username, password string) (*AuthResponse, error)
	Profile(ctx context.Context) (*models.User, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, title string) (*models.Task, error)
	UpdateTaskTitle(ctx context.Context, id uint, title string) error
	SetTaskCompleted(ctx context.Context, id uint, completed bool) error
	DeleteTask(ctx context.Context, id uint) error
}

// TokenSource yields the current bearer token; ok is false when there is none.
type TokenSource interface {
	Get(ctx context.Context) (token string, ok bool, err error)
}

// AuthResponse is the body of a successful login or registration.
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}
