package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/splitbook/splitbook/internal/platform/httpx"
	"github.com/splitbook/splitbook/internal/shared"
)

// CookieName is the HTTP-only cookie carrying the session token.
const CookieName = "authToken"

// Middleware guards routes that require an authenticated account.
type Middleware struct {
	Logger  *slog.Logger
	Service *Service
	Secure  bool
}

// RequireAccount validates the session cookie, stores the caller identity in
// the request context and refreshes the cookie expiry. Missing or invalid
// tokens produce UNAUTHORIZED and clear the cookie.
func (m Middleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			httpx.RespondError(w, m.Logger, httpx.Unauthorized("authentication required"))
			return
		}

		sess, err := m.Service.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			ClearSessionCookie(w, m.Secure)
			httpx.RespondError(w, m.Logger, err)
			return
		}

		SetSessionCookie(w, sess.Token, sess.Expires, m.Secure)
		ctx := shared.ContextWithIdentity(r.Context(), shared.Identity{
			AccountID:    sess.AccountID,
			SessionToken: sess.Token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie writes the auth cookie.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie removes the auth cookie from the client.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
