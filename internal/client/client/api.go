package client

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophtodo/internal/client/models"
)

var errEmptyToken = errors.New("server returned no token")

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type taskEnvelope struct {
	Data models.Task `json:"data"`
}

type taskListEnvelope struct {
	Data []models.Task `json:"data"`
}

type titleUpdate struct {
	Title string `json:"title"`
}

type completedUpdate struct {
	Completed bool `json:"completed"`
}

func (c *HTTPClient) auth(ctx context.Context, path, username, password string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Do(ctx, http.MethodPost, path, credentials{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errEmptyToken
	}
	return &resp, nil
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.auth(ctx, "auth/login", username, password)
}

func (c *HTTPClient) Register(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.auth(ctx, "auth/register", username, password)
}

// Profile returns the user the current token belongs to.
func (c *HTTPClient) Profile(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.Do(ctx, http.MethodGet, "profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListTasks returns the full collection; never nil on success.
func (c *HTTPClient) ListTasks(ctx context.Context) ([]models.Task, error) {
	var env taskListEnvelope
	if err := c.Do(ctx, http.MethodGet, "tasks", nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		env.Data = []models.Task{}
	}
	return env.Data, nil
}

func (c *HTTPClient) CreateTask(ctx context.Context, title string) (*models.Task, error) {
	var env taskEnvelope
	if err := c.Do(ctx, http.MethodPost, "tasks", titleUpdate{Title: title}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *HTTPClient) UpdateTaskTitle(ctx context.Context, id uint, title string) error {
	return c.Do(ctx, http.MethodPut, taskPath(id), titleUpdate{Title: title}, nil)
}

func (c *HTTPClient) SetTaskCompleted(ctx context.Context, id uint, completed bool) error {
	return c.Do(ctx, http.MethodPut, taskPath(id), completedUpdate{Completed: completed}, nil)
}

func (c *HTTPClient) DeleteTask(ctx context.Context, id uint) error {
	return c.Do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id uint) string {
	return "tasks/" + strconv.FormatUint(uint64(id), 10)
}
