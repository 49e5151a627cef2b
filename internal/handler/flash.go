package handler

import (
	"encoding/gob"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	flashSession = "flash"
	loginSession = "login_flow"
	attemptKey   = "attempt"
)

// Notification is a toast shown on the next rendered page.
type Notification struct {
	Kind    string // success, info or danger
	Title   string
	Message string
}

func init() {
	gob.Register(Notification{})
}

func success(msg string) Notification {
	return Notification{Kind: "success", Title: "Success", Message: msg}
}

func info(msg string) Notification {
	return Notification{Kind: "info", Title: "Info", Message: msg}
}

func danger(msg string) Notification {
	return Notification{Kind: "danger", Title: "Error", Message: msg}
}

// NewSessionStore builds the cookie store for flashes and the login attempt id.
func NewSessionStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.MaxAge(3600)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// flash queues notifications for the page after a redirect.
func (h *TaskHandler) flash(w http.ResponseWriter, r *http.Request, notes ...Notification) {
	sess, err := h.store.Get(r, flashSession)
	if err != nil {
		slog.Warn("flash_session_reset", "error", err)
	}
	for _, n := range notes {
		sess.AddFlash(n)
	}
	if err := sess.Save(r, w); err != nil {
		slog.Error("flash_save_failed", "error", err)
	}
}

func (h *TaskHandler) popFlashes(w http.ResponseWriter, r *http.Request) []Notification {
	sess, err := h.store.Get(r, flashSession)
	if err != nil {
		slog.Warn("flash_session_reset", "error", err)
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		slog.Error("flash_save_failed", "error", err)
	}

	notes := make([]Notification, 0, len(flashes))
	for _, f := range flashes {
		if n, ok := f.(Notification); ok {
			notes = append(notes, n)
		}
	}
	return notes
}
