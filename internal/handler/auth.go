package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chetan-code/taskboard/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// credentialCookie holds the session credential issued by the API
const credentialCookie = "token"

const credentialMaxAge = 24 * time.Hour

// we are doing this to avoid collision with libraries
type contextKey string

const sessionKey contextKey = "session"

// Session is the authenticated caller of a request. The guard builds it and
// handlers receive it through the request context.
type Session struct {
	Token  string
	Claims *models.Claims
}

func withSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

// Verifier checks session credentials against the secret shared with the API.
type Verifier struct {
	key []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("verifier: empty secret")
	}
	return &Verifier{key: []byte(secret)}, nil
}

// Verify rejects malformed, expired, wrongly signed and non-HMAC tokens.
func (v *Verifier) Verify(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// DecodeUnverified checks that s is structurally a signed token with an
// object payload. The signature is not checked, the guard does that.
func DecodeUnverified(s string) (*models.Claims, error) {
	claims := &models.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func setCredentialCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     credentialCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(credentialMaxAge.Seconds()),
		Expires:  time.Now().Add(credentialMaxAge),
		Secure:   secure,
		SameSite: http.SameSiteNoneMode,
		HttpOnly: true, //js cant touch it
	})
}

func clearCredentialCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     credentialCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		SameSite: http.SameSiteNoneMode,
		HttpOnly: true,
	})
}

func (h *TaskHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if s, ok := SessionFrom(r.Context()); ok {
		h.views.Drop(s.Token)
	}
	clearCredentialCookie(w, h.secureCookies)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// authFailed handles an API rejection of the credential: silent, back home.
func (h *TaskHandler) authFailed(w http.ResponseWriter, r *http.Request, s Session) {
	h.views.Drop(s.Token)
	clearCredentialCookie(w, h.secureCookies)
	HomeRedirect(w, r)
}
