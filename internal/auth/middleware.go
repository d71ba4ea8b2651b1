package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
)

// CookieName is the session cookie set at login.
const CookieName = "blog_session"

// LoginPath is where RequireLogin sends anonymous visitors.
const LoginPath = "/login/"

// contextKey is unexported so no other package can read or shadow the user
// stored by Authenticate.
type contextKey string

const userKey contextKey = "user"

// SessionResolver turns a cookie value into the signed-in user. It returns an
// apperror.ErrUnauthorized error for tokens that are bad, expired or revoked.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.User, error)
}

// Authenticate identifies the viewer from the session cookie and stores the
// user in the request context. It never blocks: requests without a valid
// session continue anonymously, and a stale cookie is cleared.
func Authenticate(sessions SessionResolver, secureCookies bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := sessions.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, apperror.ErrUnauthorized) {
					logger.Error("resolving session", slog.String("error", err.Error()))
				}
				ClearSessionCookie(w, secureCookies)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireLogin redirects anonymous requests to the login page, carrying the
// requested path in ?next= so login can send the user back.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin lets staff and superusers through and hands everyone else to
// deny, which renders the 403 page. Mount it after RequireLogin.
func RequireAdmin(deny http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := UserFromContext(r.Context())
			if !user.IsAdmin() {
				deny.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL builds /login/?next=<next>.
func LoginURL(next string) string {
	if next == "" {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"next": {next}}.Encode()
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the signed-in user, or (nil, false) for anonymous
// requests.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// SetSessionCookie stores token in the session cookie. A persistent cookie
// lives until expires; otherwise the cookie has no Max-Age and the browser
// drops it when it closes.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, persistent, secure bool) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		c.MaxAge = int(time.Until(expires).Seconds())
		c.Expires = expires.UTC()
	}
	http.SetCookie(w, c)
}

// ClearSessionCookie tells the browser to delete the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
