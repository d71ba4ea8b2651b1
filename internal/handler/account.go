package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/service"
)

// AccountHandler serves registration, login and logout.
type AccountHandler struct {
	accounts      *service.AccountService
	render        *Renderer
	secureCookies bool
	github        bool
	logger        *slog.Logger
}

// NewAccountHandler creates an AccountHandler. githubEnabled shows the
// "Sign in with GitHub" link on the login page.
func NewAccountHandler(
	accounts *service.AccountService,
	render *Renderer,
	secureCookies bool,
	githubEnabled bool,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:      accounts,
		render:        render,
		secureCookies: secureCookies,
		github:        githubEnabled,
		logger:        logger,
	}
}

type loginPage struct {
	Form   Form[service.LoginInput]
	GitHub bool
}

// HandleRegister shows and processes the sign-up form. A new account is
// signed in straight away with a browser-scoped session.
//
// HTTP: GET, POST /register/
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.render.Render(w, r, http.StatusOK, "register", Form[service.RegisterInput]{})
		return
	}

	var in service.RegisterInput
	if err := bind(w, r, formSlack, &in); err != nil {
		h.render.badForm(w, r, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			in.Password1, in.Password2 = "", ""
			h.render.Render(w, r, http.StatusOK, "register", newForm(in, err))
			return
		}
		h.render.Fail(w, r, err)
		return
	}

	if !h.startSession(w, r, user.ID, false) {
		return
	}
	redirect(w, r, "/")
}

// HandleLogin shows and processes the login form. With remember_me the
// session cookie lasts service.RememberTTL; without it the cookie ends with
// the browser session.
//
// HTTP: GET, POST /login/
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		in := service.LoginInput{Next: r.URL.Query().Get("next")}
		h.render.Render(w, r, http.StatusOK, "login", loginPage{Form: Form[service.LoginInput]{Values: in}, GitHub: h.github})
		return
	}

	var in service.LoginInput
	if err := bind(w, r, formSlack, &in); err != nil {
		h.render.badForm(w, r, err)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		var form Form[service.LoginInput]
		switch {
		case errors.Is(err, apperror.ErrValidation):
			form = newForm(in, err)
		case errors.Is(err, apperror.ErrUnauthorized):
			form = Form[service.LoginInput]{Values: in, Errors: map[string]string{"": service.MsgLoginFailed}}
		default:
			h.render.Fail(w, r, err)
			return
		}
		form.Values.Password = ""
		h.render.Render(w, r, http.StatusOK, "login", loginPage{Form: form, GitHub: h.github})
		return
	}

	// a fresh login replaces whatever session the browser had
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.accounts.EndSession(r.Context(), cookie.Value)
	}

	if !h.startSession(w, r, user.ID, in.RememberMe) {
		return
	}
	redirect(w, r, localPath(in.Next))
}

// HandleLogout revokes the session and clears the cookie. It accepts GET
// and POST and always succeeds.
//
// HTTP: GET, POST /logout/
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.accounts.EndSession(r.Context(), cookie.Value)
	}
	auth.ClearSessionCookie(w, h.secureCookies)
	redirect(w, r, "/")
}

// startSession opens a session and sets its cookie. It renders the error
// page and returns false when the session cannot be stored.
func (h *AccountHandler) startSession(w http.ResponseWriter, r *http.Request, userID int64, remember bool) bool {
	ticket, err := h.accounts.StartSession(r.Context(), userID, remember)
	if err != nil {
		h.render.Fail(w, r, err)
		return false
	}
	auth.SetSessionCookie(w, ticket.Token, ticket.ExpiresAt, ticket.Persistent, h.secureCookies)
	return true
}
