package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chetan-code/taskboard/internal/apiclient"
	"github.com/chetan-code/taskboard/internal/dashboard"
	"github.com/chetan-code/taskboard/internal/models"
	"github.com/chetan-code/taskboard/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
)

// TaskAPI is the part of the external API the pages use.
type TaskAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, u models.User) (string, error)
	Tasks(ctx context.Context, token string) ([]models.Task, error)
	CreateTask(ctx context.Context, token, title, description string) (string, error)
	Task(ctx context.Context, token string, id int) (apiclient.TaskRow, error)
	UpdateTask(ctx context.Context, token string, id int, title, description string) (string, error)
	DeleteTask(ctx context.Context, token string, id int) (string, error)
	SetCompletion(ctx context.Context, token string, id int, done bool) (models.Task, error)
}

type TaskHandler struct {
	api           TaskAPI
	challenges    repository.ChallengeStore
	views         *dashboard.Views
	store         sessions.Store
	pages         *renderer
	secureCookies bool
	now           func() time.Time
}

type Options struct {
	API           TaskAPI
	Challenges    repository.ChallengeStore
	Store         sessions.Store
	SecureCookies bool
}

func NewTaskHandler(opts Options) (*TaskHandler, error) {
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &TaskHandler{
		api:           opts.API,
		challenges:    opts.Challenges,
		views:         dashboard.NewViews(credentialMaxAge),
		store:         opts.Store,
		pages:         pages,
		secureCookies: opts.SecureCookies,
		now:           time.Now,
	}, nil
}

// ValidationError is a form problem caught before calling the API.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	msgRequiredFields = "All fields must be filled in!"
	msgNetwork        = "Could not reach the server. Please try again."
)

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// failureNote turns an API error into the toast for it.
func failureNote(err error) Notification {
	var remote *apiclient.RemoteError
	if errors.As(err, &remote) {
		return danger(remote.Message)
	}
	return danger(msgNetwork)
}

func isAuthError(err error) bool {
	var remote *apiclient.RemoteError
	return errors.As(err, &remote) && remote.IsUnauthorized()
}

func (h *TaskHandler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != HomePath {
		http.NotFound(w, r)
		return
	}
	h.page(w, r, http.StatusOK, "home.html", "Home", nil)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

type registerForm struct {
	Name     string
	Email    string
	Password string
	Confirm  string
}

func (f registerForm) validate() error {
	if f.Name == "" || f.Email == "" || f.Password == "" || f.Confirm == "" {
		return &ValidationError{Message: msgRequiredFields}
	}
	if f.Password != f.Confirm {
		return &ValidationError{Message: "Passwords do not match!"}
	}
	return nil
}

func (h *TaskHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.page(w, r, http.StatusOK, "register.html", "Register", registerForm{})
		return
	}

	form := registerForm{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Confirm:  r.FormValue("confirm"),
	}
	// passwords are never sent back to the page
	echo := registerForm{Name: form.Name, Email: form.Email}

	if err := form.validate(); err != nil {
		h.page(w, r, http.StatusUnprocessableEntity, "register.html", "Register", echo, danger(err.Error()))
		return
	}

	msg, err := h.api.Register(r.Context(), models.User{Name: form.Name, Email: form.Email, Password: form.Password})
	if err != nil {
		slog.Error("register_failed", "email", form.Email, "error", err)
		h.page(w, r, http.StatusOK, "register.html", "Register", echo, failureNote(err))
		return
	}

	slog.Info("register_success", "email", form.Email)
	h.page(w, r, http.StatusOK, "register.html", "Register", registerForm{}, success(msg))
}

type dashboardData struct {
	Tasks []models.Task
	Edit  *editModal
}

type editModal struct {
	ID          int
	Title       string
	Description string
}

// view returns the task list view of the session.
func (h *TaskHandler) view(s Session) *dashboard.View {
	var expires time.Time
	if s.Claims != nil && s.Claims.ExpiresAt != nil {
		expires = s.Claims.ExpiresAt.Time
	}
	return h.views.For(s.Token, expires)
}

// loadTasks returns the cached list or fetches a fresh one. A fetch that
// lost the race against a newer one yields the newer list when there is one.
func (h *TaskHandler) loadTasks(ctx context.Context, s Session) ([]models.Task, error) {
	v := h.view(s)
	if tasks, ok := v.Snapshot(); ok {
		return tasks, nil
	}

	gen := v.Begin()
	tasks, err := h.api.Tasks(ctx, s.Token)
	if err != nil {
		return nil, err
	}
	if !v.Commit(gen, tasks) {
		slog.Debug("stale_task_list_discarded", "generation", gen)
		if newer, ok := v.Snapshot(); ok {
			return newer, nil
		}
	}
	return tasks, nil
}

func (h *TaskHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		HomeRedirect(w, r)
		return
	}

	tasks, err := h.loadTasks(r.Context(), s)
	if err != nil {
		if isAuthError(err) {
			h.authFailed(w, r, s)
			return
		}
		slog.Error("fetch_tasks_failed", "email", s.Claims.Email, "error", err)
		h.page(w, r, http.StatusOK, "dashboard.html", "My tasks", dashboardData{}, failureNote(err))
		return
	}

	data := dashboardData{Tasks: tasks}
	if isHTMX(r) {
		h.block(w, http.StatusOK, "dashboard.html", "task-list", data)
		return
	}
	h.page(w, r, http.StatusOK, "dashboard.html", "My tasks", data)
}

type taskForm struct {
	Title       string
	Description string
}

func (h *TaskHandler) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		HomeRedirect(w, r)
		return
	}

	if r.Method == http.MethodGet {
		h.page(w, r, http.StatusOK, "createtask.html", "New task", taskForm{})
		return
	}

	form := taskForm{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if form.Title == "" || form.Description == "" {
		h.page(w, r, http.StatusUnprocessableEntity, "createtask.html", "New task", form, danger(msgRequiredFields))
		return
	}

	msg, err := h.api.CreateTask(r.Context(), s.Token, form.Title, form.Description)
	if err != nil {
		if isAuthError(err) {
			h.authFailed(w, r, s)
			return
		}
		slog.Error("create_task_failed", "email", s.Claims.Email, "error", err)
		h.page(w, r, http.StatusOK, "createtask.html", "New task", form, failureNote(err))
		return
	}

	h.view(s).Invalidate()
	slog.Info("create_task_success", "email", s.Claims.Email)
	h.page(w, r, http.StatusOK, "createtask.html", "New task", taskForm{}, success(msg))
}

func taskID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// EditHandler opens the edit modal on GET and saves it on POST. Opening and
// closing the modal both invalidate the cached list.
func (h *TaskHandler) EditHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		HomeRedirect(w, r)
		return
	}
	id, ok := taskID(r)
	if !ok {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}
	v := h.view(s)

	if r.Method == http.MethodGet {
		v.Invalidate()
		modal := &editModal{ID: id}
		var notes []Notification
		row, err := h.api.Task(r.Context(), s.Token, id)
		if err != nil {
			if isAuthError(err) {
				h.authFailed(w, r, s)
				return
			}
			slog.Error("fetch_task_failed", "id", id, "error", err)
			notes = append(notes, failureNote(err))
		} else {
			modal.Title, modal.Description = row.Title, row.Description
		}

		tasks, err := h.loadTasks(r.Context(), s)
		if err != nil {
			if isAuthError(err) {
				h.authFailed(w, r, s)
				return
			}
			notes = append(notes, failureNote(err))
		}
		h.page(w, r, http.StatusOK, "dashboard.html", "My tasks", dashboardData{Tasks: tasks, Edit: modal}, notes...)
		return
	}

	form := taskForm{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if form.Title == "" || form.Description == "" {
		tasks, _ := v.Snapshot()
		modal := &editModal{ID: id, Title: form.Title, Description: form.Description}
		h.page(w, r, http.StatusUnprocessableEntity, "dashboard.html", "My tasks", dashboardData{Tasks: tasks, Edit: modal}, danger(msgRequiredFields))
		return
	}

	msg, err := h.api.UpdateTask(r.Context(), s.Token, id, form.Title, form.Description)
	if err != nil {
		if isAuthError(err) {
			h.authFailed(w, r, s)
			return
		}
		slog.Error("update_task_failed", "id", id, "error", err)
		tasks, _ := v.Snapshot()
		modal := &editModal{ID: id, Title: form.Title, Description: form.Description}
		h.page(w, r, http.StatusOK, "dashboard.html", "My tasks", dashboardData{Tasks: tasks, Edit: modal}, failureNote(err))
		return
	}

	v.Invalidate()
	h.flash(w, r, success(msg))
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func (h *TaskHandler) CloseEditHandler(w http.ResponseWriter, r *http.Request) {
	if s, ok := SessionFrom(r.Context()); ok {
		h.view(s).Invalidate()
	}
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

// listResponse answers a list mutation: the task-list block for htmx,
// a redirect back to the dashboard otherwise.
func (h *TaskHandler) listResponse(w http.ResponseWriter, r *http.Request, v *dashboard.View, notes ...Notification) {
	if isHTMX(r) {
		tasks, _ := v.Snapshot()
		h.block(w, http.StatusOK, "dashboard.html", "task-list", dashboardData{Tasks: tasks}, notes...)
		return
	}
	if len(notes) > 0 {
		h.flash(w, r, notes...)
	}
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func (h *TaskHandler) ToggleHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		HomeRedirect(w, r)
		return
	}
	id, ok := taskID(r)
	if !ok {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}
	v := h.view(s)

	if _, err := h.loadTasks(r.Context(), s); err != nil {
		if isAuthError(err) {
			h.authFailed(w, r, s)
			return
		}
		h.listResponse(w, r, v, failureNote(err))
		return
	}
	current, found := v.Find(id)
	if !found {
		slog.Error("toggle_unknown_task", "id", id, "email", s.Claims.Email)
		h.listResponse(w, r, v, danger("Task not found."))
		return
	}

	updated, err := h.api.SetCompletion(r.Context(), s.Token, id, !current.IsCompleted)
	if err != nil {
		if isAuthError(err) {
			h.authFailed(w, r, s)
			return
		}
		slog.Error("toggle_task_failed", "id", id, "error", err)
		h.listResponse(w, r, v, failureNote(err))
		return
	}

	v.SetCompletion(id, updated.IsCompleted)
	h.listResponse(w, r, v)
}

func (h *TaskHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		HomeRedirect(w, r)
		return
	}
	id, ok := taskID(r)
	if !ok {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}
	v := h.view(s)

	if _, err := h.loadTasks(r.Context(), s); err != nil {
		if isAuthError(err) {
			h.authFailed(w, r, s)
			return
		}
		h.listResponse(w, r, v, failureNote(err))
		return
	}

	msg, err := h.api.DeleteTask(r.Context(), s.Token, id)
	if err != nil {
		if isAuthError(err) {
			h.authFailed(w, r, s)
			return
		}
		slog.Error("delete_task_failed", "id", id, "error", err)
		h.listResponse(w, r, v, failureNote(err))
		return
	}

	v.Remove(id)
	slog.Info("delete_task_success", "id", id, "email", s.Claims.Email)
	if msg == "" {
		msg = "Task deleted."
	}
	h.listResponse(w, r, v, success(msg))
}
