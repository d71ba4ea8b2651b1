// Package server is the composition root: it opens the database and media
// store, builds services and handlers, and mounts them on a chi router.
//
//	config → sqlite.DB, media.Store → services → handlers → routes
//
// Handlers only see services and services only see repository interfaces;
// this is the one place that knows the concrete types.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/config"
	"github.com/sakif/blog/internal/handler"
	"github.com/sakif/blog/internal/media"
	"github.com/sakif/blog/internal/middleware"
	sqliteRepo "github.com/sakif/blog/internal/repository/sqlite"
	"github.com/sakif/blog/internal/service"
	"github.com/sakif/blog/web"
)

// Server owns the router and the resources behind it. The database is closed
// when Start returns or by Close.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	media    *media.Store
	registry *prometheus.Registry
}

// New validates cfg, opens the database and media directory, and wires every
// route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := OpenDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	store, err := media.New(cfg.Media.Dir, cfg.Media.MaxUploadBytes)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening media store: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		media:    store,
		registry: prometheus.NewRegistry(),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes mounts the middleware chain and the route table.
//
//	GET       /                               home
//	GET,POST  /register/ /login/ /logout/      accounts
//	GET       /categories/?category={id}      category browser
//	GET,POST  /create-category/               staff
//	GET,POST  /create-category/{id}/edit/     staff
//	GET,POST  /delete-category/{id}/delete/   staff
//	GET,POST  /post/new/                      login
//	GET,POST  /post/{id}/                     view; comment needs login
//	GET,POST  /post/{id}/edit/                login + author
//	GET,POST  /post/{id}/delete/              login + author
//	GET       /my-posts/                      login
//	GET,POST  /profile/ /settings/            login
//	GET       /auth/github/{login,callback}/  when configured
//	GET       /static/* /media/* /healthz /metrics
//
// Middleware order: Logger wraps Recoverer so a recovered panic is logged
// as a 500, and Metrics runs inside the router so it sees the route pattern.
func (s *Server) setupRoutes() error {
	cfg := s.config

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := middleware.NewMetrics(s.registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost)

	// === Services ===
	accounts := service.NewAccountService(s.db, s.db, s.media, passwords, tokens, cfg.Auth.BrowserSessionTTL, s.logger)
	posts := service.NewPostService(s.db, s.db, s.db, s.media, s.logger)
	categories := service.NewCategoryService(s.db, s.logger)
	profiles := service.NewProfileService(s.db, s.media, s.logger)

	// === Handlers ===
	render, err := handler.NewRenderer(web.Files, profiles, s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	accountHandler := handler.NewAccountHandler(accounts, render, cfg.Auth.SecureCookies, cfg.GitHubEnabled(), s.logger)
	postHandler := handler.NewPostHandler(posts, categories, render, cfg.Media.MaxUploadBytes, s.logger)
	categoryHandler := handler.NewCategoryHandler(categories, posts, render, s.logger)
	profileHandler := handler.NewProfileHandler(profiles, render, cfg.Media.MaxUploadBytes, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	// === Global middleware ===
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Handler)
	r.Use(auth.Authenticate(accounts, cfg.Auth.SecureCookies, s.logger))

	r.NotFound(s.appendSlash(render.NotFound))
	r.MethodNotAllowed(render.MethodNotAllowed)

	// === Files ===
	static, err := fs.Sub(web.Files, "static")
	if err != nil {
		return fmt.Errorf("static assets: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Handle(handler.MediaPrefix+"*", http.StripPrefix(handler.MediaPrefix, noListing(http.FileServer(http.Dir(s.media.Root())))))

	r.Get("/healthz", healthHandler.HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// === Public pages ===
	r.Get("/", postHandler.HandleHome)
	form(r, "/register/", accountHandler.HandleRegister)
	form(r, "/login/", accountHandler.HandleLogin)
	form(r, "/logout/", accountHandler.HandleLogout)
	r.Get("/categories/", categoryHandler.HandleList)
	form(r, "/post/{id}/", postHandler.HandleDetail)

	if cfg.GitHubEnabled() {
		provider := auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHubCallbackURL())
		githubHandler := handler.NewGitHubHandler(provider, accounts, render, cfg.Auth.SecureCookies, s.logger)
		r.Get("/auth/github/login/", githubHandler.HandleLogin)
		r.Get("/auth/github/callback/", githubHandler.HandleCallback)
	}

	// === Signed-in pages ===
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLogin)

		form(r, "/post/new/", postHandler.HandleCreate)
		form(r, "/post/{id}/edit/", postHandler.HandleEdit)
		form(r, "/post/{id}/delete/", postHandler.HandleDelete)
		r.Get("/my-posts/", postHandler.HandleMyPosts)
		form(r, "/profile/", profileHandler.HandleProfile)
		form(r, "/settings/", profileHandler.HandleSettings)

		// === Staff pages ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(http.HandlerFunc(render.Forbidden)))

			form(r, "/create-category/", categoryHandler.HandleCreate)
			form(r, "/create-category/{id}/edit/", categoryHandler.HandleEdit)
			form(r, "/delete-category/{id}/delete/", categoryHandler.HandleDelete)
		})
	})

	return nil
}

// Start serves until SIGINT/SIGTERM or ctx is cancelled, then drains
// in-flight requests for Server.ShutdownTimeout and closes the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
			slog.String("media", s.media.Root()),
			slog.Bool("github", s.config.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// form mounts h for both GET (show) and POST (submit).
func form(r chi.Router, pattern string, h http.HandlerFunc) {
	r.Get(pattern, h)
	r.Post(pattern, h)
}

// appendSlash redirects GET /post/5 to /post/5/ when only the slashed path
// exists, and otherwise falls through to notFound.
func (s *Server) appendSlash(notFound http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if r.Method == http.MethodGet && !strings.HasSuffix(path, "/") &&
			s.router.Match(chi.NewRouteContext(), r.Method, path+"/") {
			target := path + "/"
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		notFound(w, r)
	}
}

// noListing hides directory indexes of the media folder and stops browsers
// from sniffing uploads into another content type.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OpenDatabase opens the SQLite file at dbPath, creating its directory
// first. The command line tools share it with New.
func OpenDatabase(dbPath string) (*sqliteRepo.DB, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
