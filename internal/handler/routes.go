package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes wires every page behind the guard. Only /healthz skips it.
func (h *TaskHandler) Routes(v *Verifier) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", Healthz)

	r.Group(func(r chi.Router) {
		r.Use(Guard(v, h.secureCookies))

		//public pages, authenticated users get bounced to the dashboard
		r.Get(HomePath, h.HomeHandler)
		r.Get(LoginPath, h.LoginHandler)
		r.Post(LoginPath, h.LoginHandler)
		r.Get(RegisterPath, h.RegisterHandler)
		r.Post(RegisterPath, h.RegisterHandler)

		//protected pages
		r.Get(DashboardPath, h.DashboardHandler)
		r.Get(DashboardPath+"/edit/close", h.CloseEditHandler)
		r.Get(DashboardPath+"/edit/{id}", h.EditHandler)
		r.Post(DashboardPath+"/edit/{id}", h.EditHandler)
		r.Post(DashboardPath+"/toggle/{id}", h.ToggleHandler)
		r.Post(DashboardPath+"/delete/{id}", h.DeleteHandler)
		r.Get(CreateTaskPath, h.CreateTaskHandler)
		r.Post(CreateTaskPath, h.CreateTaskHandler)
		r.Post("/logout", h.LogoutHandler)

		// unknown paths still go through the guard so anonymous users are sent home
		r.NotFound(http.NotFound)
	})
	return r
}
