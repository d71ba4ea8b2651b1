package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/service"
)

const stateCookie = "oauth_state"

// GitHubHandler runs the "Sign in with GitHub" flow. It is only mounted
// when OAuth credentials are configured.
type GitHubHandler struct {
	github        *auth.GitHubProvider
	accounts      *service.AccountService
	render        *Renderer
	secureCookies bool
	logger        *slog.Logger
}

func NewGitHubHandler(
	github *auth.GitHubProvider,
	accounts *service.AccountService,
	render *Renderer,
	secureCookies bool,
	logger *slog.Logger,
) *GitHubHandler {
	return &GitHubHandler{
		github:        github,
		accounts:      accounts,
		render:        render,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleLogin redirects to GitHub's authorization page. A random state is
// kept in a short-lived cookie and checked on the way back.
//
// HTTP: GET /auth/github/login/
func (h *GitHubHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback finishes the flow: check state, exchange the code, find or
// create the linked user and start a browser-scoped session.
//
// HTTP: GET /auth/github/callback/?code=...&state=...
func (h *GitHubHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		h.logger.Warn("github callback: state mismatch")
		h.render.Error(w, r, http.StatusBadRequest)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		redirect(w, r, auth.LoginPath)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.render.Error(w, r, http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}

	user, err := h.accounts.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}

	ticket, err := h.accounts.StartSession(r.Context(), user.ID, false)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}
	auth.SetSessionCookie(w, ticket.Token, ticket.ExpiresAt, ticket.Persistent, h.secureCookies)
	redirect(w, r, "/")
}
