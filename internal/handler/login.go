package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chetan-code/taskboard/internal/models"
	"github.com/chetan-code/taskboard/internal/repository"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

type loginForm struct {
	Email        string
	AwaitingCode bool
}

// Login is two steps. The credentials step asks the API to mail a token and
// keeps that token server side; the code step compares what the user pasted
// against it and, on a match, makes it the session credential.
func (h *TaskHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.showLogin(w, r, http.StatusOK)
		return
	}

	switch r.FormValue("step") {
	case "code":
		h.confirmCode(w, r)
	case "restart":
		h.discardAttempt(w, r)
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	default:
		h.requestCode(w, r)
	}
}

// pendingChallenge returns the live challenge of this browser, if any.
func (h *TaskHandler) pendingChallenge(ctx context.Context, r *http.Request) (*sessions.Session, *models.Challenge) {
	sess, err := h.store.Get(r, loginSession)
	if err != nil {
		slog.Warn("login_session_reset", "error", err)
	}
	id, _ := sess.Values[attemptKey].(string)
	if id == "" {
		return sess, nil
	}
	c, err := h.challenges.Fetch(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrChallengeNotFound) {
			slog.Error("challenge_fetch_failed", "attempt", id, "error", err)
		}
		return sess, nil
	}
	return sess, &c
}

func (h *TaskHandler) showLogin(w http.ResponseWriter, r *http.Request, status int, notes ...Notification) {
	form := loginForm{}
	if _, c := h.pendingChallenge(r.Context(), r); c != nil {
		form.Email = c.Email
		form.AwaitingCode = true
	}
	h.page(w, r, status, "login.html", "Log in", form, notes...)
}

// discardAttempt forgets the pending challenge of this browser.
func (h *TaskHandler) discardAttempt(w http.ResponseWriter, r *http.Request) {
	sess, c := h.pendingChallenge(r.Context(), r)
	if c != nil {
		if err := h.challenges.Delete(r.Context(), c.ID); err != nil {
			slog.Error("challenge_delete_failed", "attempt", c.ID, "error", err)
		}
	}
	if _, ok := sess.Values[attemptKey]; !ok {
		return
	}
	delete(sess.Values, attemptKey)
	if err := sess.Save(r, w); err != nil {
		slog.Error("login_session_save_failed", "error", err)
	}
}

func (h *TaskHandler) requestCode(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		h.page(w, r, http.StatusUnprocessableEntity, "login.html", "Log in", loginForm{Email: email}, danger(msgRequiredFields))
		return
	}

	// a new attempt replaces whatever was pending
	if _, old := h.pendingChallenge(r.Context(), r); old != nil {
		if err := h.challenges.Delete(r.Context(), old.ID); err != nil {
			slog.Error("challenge_delete_failed", "attempt", old.ID, "error", err)
		}
	}

	code, err := h.api.Login(r.Context(), email, password)
	if err != nil {
		slog.Error("login_request_failed", "email", email, "error", err)
		h.page(w, r, http.StatusOK, "login.html", "Log in", loginForm{Email: email}, failureNote(err))
		return
	}

	c := models.Challenge{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		CreatedAt: h.now(),
	}
	if err := h.challenges.Save(r.Context(), c); err != nil {
		slog.Error("challenge_save_failed", "email", email, "error", err)
		h.page(w, r, http.StatusOK, "login.html", "Log in", loginForm{Email: email}, danger(msgNetwork))
		return
	}

	sess, err := h.store.Get(r, loginSession)
	if err != nil {
		slog.Warn("login_session_reset", "error", err)
	}
	sess.Values[attemptKey] = c.ID
	if err := sess.Save(r, w); err != nil {
		slog.Error("login_session_save_failed", "error", err)
		h.page(w, r, http.StatusOK, "login.html", "Log in", loginForm{Email: email}, danger(msgNetwork))
		return
	}

	slog.Info("login_challenge_issued", "email", email, "attempt", c.ID)
	h.flash(w, r,
		info("Copy the token we sent to your email into the token field to continue."),
		success("Token sent to your email!"),
	)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *TaskHandler) confirmCode(w http.ResponseWriter, r *http.Request) {
	sess, c := h.pendingChallenge(r.Context(), r)
	if c == nil {
		h.page(w, r, http.StatusOK, "login.html", "Log in", loginForm{}, danger("Your login attempt expired. Please log in again."))
		return
	}
	form := loginForm{Email: c.Email, AwaitingCode: true}

	entered := strings.TrimSpace(r.FormValue("code"))
	if subtle.ConstantTimeCompare([]byte(entered), []byte(c.Code)) != 1 {
		slog.Info("login_code_mismatch", "email", c.Email, "attempt", c.ID)
		h.page(w, r, http.StatusOK, "login.html", "Log in", form, danger("Token does not match the one we sent. Please try again."))
		return
	}

	if _, err := DecodeUnverified(entered); err != nil {
		slog.Info("login_code_malformed", "email", c.Email, "attempt", c.ID, "error", err)
		h.page(w, r, http.StatusOK, "login.html", "Log in", form, danger("Invalid token! Please try again."))
		return
	}

	if err := h.challenges.Delete(r.Context(), c.ID); err != nil {
		slog.Error("challenge_delete_failed", "attempt", c.ID, "error", err)
	}
	delete(sess.Values, attemptKey)
	if err := sess.Save(r, w); err != nil {
		slog.Error("login_session_save_failed", "error", err)
	}

	setCredentialCookie(w, entered, h.secureCookies)
	slog.Info("login_success", "email", c.Email)
	h.flash(w, r, success("Logged in!"))
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}
