// Package fakeapi is an in-memory tasks API for tests, served by echo under
// httptest. It mirrors the real backend: HS256 bearer tokens, soft delete,
// {"message"} envelopes from handlers and {"error"} from the auth middleware.
package fakeapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/gophtodo/internal/auth"
	"github.com/dmitrijs2005/gophtodo/internal/client/models"
)

const (
	Prefix = "/api/v1"

	RouteLogin    = Prefix + "/auth/login"
	RouteRegister = Prefix + "/auth/register"
	RouteProfile  = Prefix + "/profile"
	RouteTasks    = Prefix + "/tasks"
	RouteTask     = Prefix + "/tasks/:id"
)

var secret = []byte("fakeapi-secret")

// Request is one recorded call.
type Request struct {
	Method        string
	Route         string
	Path          string
	Authorization string
	RequestID     string
	Body          string
}

type failure struct {
	status int
	body   any
}

// Gate holds matching requests until Release is called.
type Gate struct {
	Entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

type user struct {
	id       string
	username string
	password string
}

type task struct {
	models.Task
	owner string
}

// Server is the fake backend.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	users    map[string]*user
	tasks    []*task
	nextID   uint
	requests []Request
	failures map[string][]failure
	gates    map[string]*Gate
}

// New starts a server that is shut down when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		users:    map[string]*user{},
		nextID:   1,
		failures: map[string][]failure{},
		gates:    map[string]*Gate{},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.record, s.intercept)

	e.POST(RouteLogin, s.login)
	e.POST(RouteRegister, s.register)

	api := e.Group(Prefix, s.authRequired)
	api.GET("/profile", s.profile)
	api.GET("/tasks", s.listTasks)
	api.POST("/tasks", s.createTask)
	api.PUT("/tasks/:id", s.updateTask)
	api.DELETE("/tasks/:id", s.deleteTask)

	s.srv = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root the client should be configured with.
func (s *Server) BaseURL() string {
	return s.srv.URL + Prefix
}

func (s *Server) Close() {
	s.mu.Lock()
	for _, g := range s.gates {
		g.Release()
	}
	s.mu.Unlock()
	s.srv.Close()
}

// AddUser creates an account and returns a valid token for it.
func (s *Server) AddUser(username, password string) (models.User, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &user{id: uuid.NewString(), username: username, password: password}
	s.users[username] = u
	return models.User{ID: u.id, Username: username}, mustToken(u)
}

// Token issues a fresh token for an existing user.
func (s *Server) Token(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mustToken(s.users[username])
}

// SeedTasks stores tasks for username in the given order.
func (s *Server) SeedTasks(username string, titles ...string) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Task, 0, len(titles))
	for _, title := range titles {
		out = append(out, s.insertLocked(username, title).Task)
	}
	return out
}

// Tasks returns the live (not soft-deleted) tasks of username.
func (s *Server) Tasks(username string) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(username)
}

// DeletedTasks returns the soft-deleted tasks of username.
func (s *Server) DeletedTasks(username string) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Task
	for _, t := range s.tasks {
		if t.owner == username && t.DeletedAt != nil {
			out = append(out, t.Task)
		}
	}
	return out
}

// Fail makes the next request to method+route answer with status and body.
// Calls queue up; each failure is used once.
func (s *Server) Fail(method, route string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + route
	s.failures[key] = append(s.failures[key], failure{status: status, body: body})
}

// Hold parks every request to method+route until the gate is released.
func (s *Server) Hold(method, route string) *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &Gate{Entered: make(chan struct{}, 16), release: make(chan struct{})}
	s.gates[method+" "+route] = g
	return g
}

// Requests returns every request seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit method+route.
func (s *Server) Count(method, route string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Route == route {
			n++
		}
	}
	return n
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        req.Method,
			Route:         c.Path(),
			Path:          req.URL.Path,
			Authorization: req.Header.Get(echo.HeaderAuthorization),
			RequestID:     req.Header.Get(echo.HeaderXRequestID),
			Body:          string(body),
		})
		s.mu.Unlock()

		return next(c)
	}
}

func (s *Server) intercept(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Method + " " + c.Path()

		s.mu.Lock()
		g := s.gates[key]
		var f *failure
		if q := s.failures[key]; len(q) > 0 {
			f = &q[0]
			s.failures[key] = q[1:]
		}
		s.mu.Unlock()

		if g != nil {
			select {
			case g.Entered <- struct{}{}:
			default:
			}
			select {
			case <-g.release:
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}

		if f != nil {
			if f.body == nil {
				return c.NoContent(f.status)
			}
			if raw, ok := f.body.(string); ok {
				return c.String(f.status, raw)
			}
			return c.JSON(f.status, f.body)
		}
		return next(c)
	}
}

func (s *Server) authRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "Invalid authorization format. Use: Bearer <token>",
			})
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
		}

		s.mu.Lock()
		u, ok := s.users[claims.Username]
		s.mu.Unlock()
		if !ok || u.id != claims.UserID {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid token claims"})
		}

		c.Set("username", u.username)
		return next(c)
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Invalid request format"})
	}

	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || u.password != req.Password {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid credentials"})
	}

	return c.JSON(http.StatusOK, authResponse(u))
}

func (s *Server) register(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request format"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Username and password are required"})
	}
	if len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Password must be at least 6 characters"})
	}

	s.mu.Lock()
	if _, exists := s.users[req.Username]; exists {
		s.mu.Unlock()
		return c.JSON(http.StatusConflict, echo.Map{"success": false, "message": "User already exists"})
	}
	u := &user{id: uuid.NewString(), username: req.Username, password: req.Password}
	s.users[req.Username] = u
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, authResponse(u))
}

func (s *Server) profile(c echo.Context) error {
	s.mu.Lock()
	u := s.users[c.Get("username").(string)]
	s.mu.Unlock()
	return c.JSON(http.StatusOK, models.User{ID: u.id, Username: u.username})
}

func (s *Server) listTasks(c echo.Context) error {
	s.mu.Lock()
	tasks := s.liveLocked(c.Get("username").(string))
	s.mu.Unlock()

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Tasks fetched successfully",
		"data":    tasks,
		"count":   len(tasks),
	})
}

func (s *Server) createTask(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Title is required"})
	}

	owner := c.Get("username").(string)

	s.mu.Lock()
	if s.duplicateLocked(owner, req.Title, 0) {
		s.mu.Unlock()
		return c.JSON(http.StatusConflict, echo.Map{"success": false, "error": "Task with this title already exists"})
	}
	t := s.insertLocked(owner, req.Title)
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Task created successfully",
		"data":    t.Task,
	})
}

func (s *Server) updateTask(c echo.Context) error {
	var updates map[string]any
	if err := c.Bind(&updates); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Invalid request body"})
	}

	owner := c.Get("username").(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(owner, c.Param("id"))
	if t == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Task not found"})
	}

	if raw, ok := updates["title"]; ok {
		title, ok := raw.(string)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Title must be a string"})
		}
		if title == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Title cannot be empty"})
		}
		if s.duplicateLocked(owner, title, t.ID) {
			return c.JSON(http.StatusConflict, echo.Map{
				"success": false,
				"message": "Task with this title already exists",
				"error":   "DUPLICATE_TITLE",
			})
		}
		t.Title = title
	}
	if raw, ok := updates["completed"]; ok {
		completed, ok := raw.(bool)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Completed must be a boolean"})
		}
		t.Completed = completed
	}
	t.UpdatedAt = time.Now().UTC()

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Task updated successfully",
		"data":    t.Task,
	})
}

func (s *Server) deleteTask(c echo.Context) error {
	owner := c.Get("username").(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(owner, c.Param("id"))
	if t == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Task not found"})
	}
	now := time.Now().UTC()
	t.DeletedAt = &now

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Todo deleted successfully",
		"data":    t.Task,
	})
}

func (s *Server) insertLocked(owner, title string) *task {
	now := time.Now().UTC()
	t := &task{
		Task:  models.Task{ID: s.nextID, Title: title, CreatedAt: now, UpdatedAt: now},
		owner: owner,
	}
	s.nextID++
	s.tasks = append(s.tasks, t)
	return t
}

func (s *Server) liveLocked(owner string) []models.Task {
	out := []models.Task{}
	for _, t := range s.tasks {
		if t.owner == owner && t.DeletedAt == nil {
			out = append(out, t.Task)
		}
	}
	return out
}

func (s *Server) findLocked(owner, rawID string) *task {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return nil
	}
	for _, t := range s.tasks {
		if uint64(t.ID) == id && t.owner == owner && t.DeletedAt == nil {
			return t
		}
	}
	return nil
}

func (s *Server) duplicateLocked(owner, title string, except uint) bool {
	for _, t := range s.tasks {
		if t.owner == owner && t.DeletedAt == nil && t.ID != except && strings.EqualFold(t.Title, title) {
			return true
		}
	}
	return false
}

func authResponse(u *user) echo.Map {
	return echo.Map{
		"token": mustToken(u),
		"user":  models.User{ID: u.id, Username: u.username},
	}
}

func mustToken(u *user) string {
	tok, err := auth.GenerateToken(u.id, u.username, secret, 24*time.Hour)
	if err != nil {
		panic(err)
	}
	return tok
}
