package handler

import (
	"log/slog"
	"net/http"
)

const (
	HomePath       = "/"
	LoginPath      = "/login"
	RegisterPath   = "/register"
	DashboardPath  = "/TaskDashboard"
	CreateTaskPath = "/CreateTask"
)

// Decision is the outcome of the route guard for one request.
type Decision int

const (
	Allow Decision = iota
	RedirectHome
	RedirectDashboard
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectHome:
		return "redirect_home"
	case RedirectDashboard:
		return "redirect_dashboard"
	}
	return "unknown"
}

// IsPublic reports whether path is reachable without a credential.
// Authenticated users are kept away from these pages.
func IsPublic(path string) bool {
	switch path {
	case HomePath, LoginPath, RegisterPath:
		return true
	}
	return false
}

// Decide applies the access rules to one navigation. verify is only called
// when a credential is present. An invalid credential counts as no
// credential, so public pages stay reachable with a stale cookie.
func Decide(path, credential string, verify func(string) error) Decision {
	if credential == "" || verify(credential) != nil {
		if IsPublic(path) {
			return Allow
		}
		return RedirectHome
	}

	if IsPublic(path) {
		return RedirectDashboard
	}
	return Allow
}

// Guard gates every request behind it with Decide and hands the verified
// Session to the next handler. A rejected credential cookie is cleared.
func Guard(v *Verifier, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var credential string
			if cookie, err := r.Cookie(credentialCookie); err == nil {
				credential = cookie.Value
			}

			var session Session
			decision := Decide(r.URL.Path, credential, func(token string) error {
				claims, err := v.Verify(token)
				if err != nil {
					slog.Debug("credential_rejected", "path", r.URL.Path, "error", err)
					clearCredentialCookie(w, secureCookies)
					return err
				}
				session = Session{Token: token, Claims: claims}
				return nil
			})

			switch decision {
			case RedirectHome:
				HomeRedirect(w, r)
			case RedirectDashboard:
				http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
			default:
				if session.Claims != nil {
					r = r.WithContext(withSession(r.Context(), session))
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}

func HomeRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}
