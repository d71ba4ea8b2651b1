// Package handler contains the blog's HTTP handlers: one method per page,
// grouped by area (accounts, posts, categories, profile).
//
// Handlers parse the request, call a service and either render a page or
// redirect. They hold no business rules; services decide what is allowed
// and handlers map the apperror kinds onto pages (see Renderer.Fail).
package handler

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/model"
)

// MediaPrefix is where uploaded files are served.
const MediaPrefix = "/media/"

const layout = "templates/base.html"

// ThemeResolver picks the colour scheme for the viewer.
// *service.ProfileService implements it.
type ThemeResolver interface {
	Theme(ctx context.Context, viewer *model.User) model.Theme
}

// Page is the value every template receives. Data holds the page-specific
// struct.
type Page struct {
	Viewer *model.User
	Theme  model.Theme
	Path   string
	Status int
	Data   any
}

// Renderer executes the page templates. Each page is parsed together with
// the base layout once at startup.
type Renderer struct {
	pages  map[string]*template.Template
	themes ThemeResolver
	logger *slog.Logger
}

// NewRenderer parses every templates/*.html in files against the layout.
func NewRenderer(files fs.FS, themes ThemeResolver, logger *slog.Logger) (*Renderer, error) {
	names, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layout {
			continue
		}
		t, err := template.New(path.Base(name)).Funcs(funcs).ParseFS(files, layout, name)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	if _, ok := pages["error"]; !ok {
		return nil, fmt.Errorf("templates/error.html is missing")
	}

	return &Renderer{pages: pages, themes: themes, logger: logger}, nil
}

// Render writes page name with status. The page is rendered into a buffer
// first so a template error still produces a clean 500.
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := rn.pages[name]
	if !ok {
		rn.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	page := Page{
		Viewer: viewer,
		Theme:  rn.themes.Theme(r.Context(), viewer),
		Path:   r.URL.RequestURI(),
		Status: status,
		Data:   data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", page); err != nil {
		rn.logger.Error("rendering template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

type errorPage struct {
	Title   string
	Message string
}

var errorMessages = map[int]string{
	http.StatusBadRequest:            "The request could not be understood.",
	http.StatusForbidden:             "You do not have permission to do that.",
	http.StatusNotFound:              "The page you were looking for does not exist.",
	http.StatusRequestEntityTooLarge: "The upload is too large.",
	http.StatusInternalServerError:   "Something went wrong on our side. Please try again later.",
}

// Error renders the error page for status.
func (rn *Renderer) Error(w http.ResponseWriter, r *http.Request, status int) {
	msg, ok := errorMessages[status]
	if !ok {
		msg = http.StatusText(status)
	}
	rn.Render(w, r, status, "error", errorPage{
		Title:   fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Message: msg,
	})
}

// NotFound is the router's 404 handler.
func (rn *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rn.Error(w, r, http.StatusNotFound)
}

// Forbidden is the 403 handler used by auth.RequireAdmin.
func (rn *Renderer) Forbidden(w http.ResponseWriter, r *http.Request) {
	rn.Error(w, r, http.StatusForbidden)
}

// MethodNotAllowed is the router's 405 handler.
func (rn *Renderer) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rn.Error(w, r, http.StatusMethodNotAllowed)
}

var funcs = template.FuncMap{
	"media": func(rel string) string {
		return MediaPrefix + rel
	},
	"date": func(t time.Time) string {
		return t.Local().Format("January 2, 2006, 15:04")
	},
	"excerpt": excerpt,
	"themes": func() []model.Theme {
		return model.Themes
	},
	"idstr":    categoryValue,
	"loginURL": auth.LoginURL,
}

// excerpt shortens s to at most n words, adding an ellipsis when cut.
func excerpt(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " …"
}
