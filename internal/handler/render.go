package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = []string{"home.html", "login.html", "register.html", "createtask.html", "dashboard.html"}

// pageData is what every page template receives.
type pageData struct {
	Title         string
	Authenticated bool
	Notes         []Notification
	Data          any
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &renderer{pages: pages}, nil
}

// page renders a full page with the pending flashes plus notes.
func (h *TaskHandler) page(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, notes ...Notification) {
	_, authed := SessionFrom(r.Context())
	pd := pageData{
		Title:         title,
		Authenticated: authed,
		Notes:         append(h.popFlashes(w, r), notes...),
		Data:          data,
	}
	h.execute(w, status, name, "layout", pd)
}

// block renders a single named block, used for htmx partial updates.
// Notes are appended as an out-of-band swap of the notification area.
func (h *TaskHandler) block(w http.ResponseWriter, status int, name, block string, data any, notes ...Notification) {
	if len(notes) == 0 {
		h.execute(w, status, name, block, data)
		return
	}
	h.execute(w, status, name, block, data, "notifications", notes)
}

// execute renders tmplName with data, then each (name, data) pair in more.
func (h *TaskHandler) execute(w http.ResponseWriter, status int, name, tmplName string, data any, more ...any) {
	tmpl, ok := h.pages.pages[name]
	if !ok {
		slog.Error("template_missing", "page", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, tmplName, data); err != nil {
		slog.Error("template_render_failed", "page", name, "template", tmplName, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	for i := 0; i+1 < len(more); i += 2 {
		extra, _ := more[i].(string)
		if err := tmpl.ExecuteTemplate(&buf, extra, more[i+1]); err != nil {
			slog.Error("template_render_failed", "page", name, "template", extra, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
