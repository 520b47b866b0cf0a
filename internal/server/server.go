// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware and
// routes, and owns the resources they share (database, cache).
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go loads config.Config → server.New
//	server.New creates: sqlite.DB, cache, provider adapters, token/password
//	services, notifier → service layer → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/unify/internal/auth"
	"github.com/sakif/unify/internal/cache"
	"github.com/sakif/unify/internal/config"
	"github.com/sakif/unify/internal/handler"
	"github.com/sakif/unify/internal/middleware"
	"github.com/sakif/unify/internal/notify"
	"github.com/sakif/unify/internal/provider"
	"github.com/sakif/unify/internal/provider/facebook"
	"github.com/sakif/unify/internal/provider/google"
	"github.com/sakif/unify/internal/provider/instagram"
	"github.com/sakif/unify/internal/provider/twitter"
	sqliteRepo "github.com/sakif/unify/internal/repository/sqlite"
	"github.com/sakif/unify/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool and the cache connection. Start closes
// both after the HTTP server has drained.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	cache  cache.Cache
}

// New creates a Server from cfg and wires every dependency.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` to avoid confusion with the
// sqlite driver package.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	// The directory must exist before SQLite can create the file.
	if dir := filepath.Dir(cfg.Database.Path); cfg.Database.Path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// === CREATE CACHE ===
	c, err := cache.Open(ctx, cfg.Cache.RedisURL, cfg.Cache.SearchTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		cache:  c,
	}

	if err := s.setupRoutes(); err != nil {
		c.Close()
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the router. Tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// newRegistry builds an adapter for every provider that has credentials.
// All adapters share one HTTP client so the configured timeout applies to
// every provider call.
func newRegistry(cfg config.ProvidersConfig, logger *slog.Logger) *provider.Registry {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	reg := provider.NewRegistry()

	if cfg.Facebook.Enabled() {
		reg.Register(facebook.New(facebook.Config{
			ClientID:     cfg.Facebook.ClientID,
			ClientSecret: cfg.Facebook.ClientSecret,
			RedirectURL:  cfg.Facebook.RedirectURL,
		}, client))
	}
	if cfg.Twitter.Enabled() {
		reg.Register(twitter.New(twitter.Config{
			ConsumerKey:    cfg.Twitter.ConsumerKey,
			ConsumerSecret: cfg.Twitter.ConsumerSecret,
			CallbackURL:    cfg.Twitter.CallbackURL,
		}, client))
	}
	if cfg.Instagram.Enabled() {
		reg.Register(instagram.New(instagram.Config{
			ClientID:     cfg.Instagram.ClientID,
			ClientSecret: cfg.Instagram.ClientSecret,
			RedirectURL:  cfg.Instagram.RedirectURL,
		}, client))
	}
	if cfg.Google.Enabled() {
		reg.Register(google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		}, client))
	}

	for _, p := range []struct {
		name    string
		enabled bool
	}{
		{"facebook", cfg.Facebook.Enabled()},
		{"twitter", cfg.Twitter.Enabled()},
		{"instagram", cfg.Instagram.Enabled()},
		{"google", cfg.Google.Enabled()},
	} {
		if !p.enabled {
			logger.Warn("provider not configured, its routes will reject requests",
				slog.String("provider", p.name))
		}
	}
	return reg
}

// newNotifier sends real mail when SMTP is configured and logs it otherwise.
func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	var sender notify.Sender
	if cfg.SMTP.Host != "" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			TLSMode:  cfg.SMTP.TLSMode,
		})
	} else {
		logger.Warn("SMTP not configured, emails will only be logged")
		sender = notify.NewLogSender(logger)
	}
	return notify.NewMailer(sender, cfg.Server.PublicURL, logger)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /auth/signup                  → local signup
//	POST   /auth/login                   → local login
//	POST   /auth/forgot                  → password reset email
//	POST   /auth/reset                   → set new password
//	GET    /auth/verify                  → confirm email
//	POST   /auth/twitter/request-token   → OAuth 1.0a step 1
//	POST   /auth/{provider}              → sign in with / link provider
//	DELETE /auth/{provider}              → unlink provider        [auth]
//	GET    /api/me, DELETE /api/me       → profile / delete       [auth]
//	GET    /api/media                    → own media              [auth]
//	GET    /api/contacts/{id}/media      → contact media          [auth]
//	GET    /api/friends, /api/pages      → friends / liked pages  [auth]
//	GET    /api/search, /api/search/more → search                 [auth]
//	GET    /api/emails                   → mailbox                [auth]
//	POST   /api/media/{provider}/{id}/like, DELETE same → like    [auth]
//	GET    /metrics, /healthz            → ops
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: unique ID per request (for tracing)
// 2. RealIP: real client IP from proxy headers
// 3. Recoverer: panics become 500s instead of crashing the process
// 4. Logger: one line per request, plus HTTP metrics
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Shared services ===
	tokens, err := auth.NewTokenServiceWithTTL(s.config.Auth.JWTSecret, s.config.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	deps := service.Deps{
		Users:     s.db.Users(),
		Contacts:  s.db.Contacts(),
		Adapters:  newRegistry(s.config.Providers, s.logger),
		Tokens:    tokens,
		Passwords: auth.NewPasswordService(),
		Notifier:  newNotifier(s.config, s.logger),
		Cache:     s.cache,
		Logger:    s.logger,
	}
	ttls := service.TTLs{
		Verify:        s.config.Auth.VerifyTTL,
		Reset:         s.config.Auth.ResetTTL,
		RequestSecret: s.config.Auth.RequestSecret,
		Search:        s.config.Cache.SearchTTL,
	}

	// DEPENDENCY CHAIN:
	//   repositories + adapters → services → handlers
	// The handler never touches the database; the service never touches HTTP.
	authHandler := handler.NewAuthHandler(service.NewAuthService(deps, ttls), s.logger)
	socialHandler := handler.NewSocialHandler(service.NewAccountService(deps, ttls))
	feedHandler := handler.NewFeedHandler(service.NewFeedService(deps, ttls))
	requireAuth := auth.RequireAuth(tokens)

	// === Ops ===
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	// === Auth Routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/forgot", authHandler.HandleForgotPassword)
		r.Post("/reset", authHandler.HandleResetPassword)
		r.Get("/verify", authHandler.HandleVerifyEmail)
		r.Post("/twitter/request-token", socialHandler.HandleTwitterRequestToken)

		// Linking reads the optional bearer token itself: without one the
		// request is a sign-in.
		r.Post("/{provider}", socialHandler.HandleLink)
		r.With(requireAuth).Delete("/{provider}", socialHandler.HandleUnlink)
	})

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/me", authHandler.HandleMe)
		r.Delete("/me", authHandler.HandleDeleteMe)

		r.Get("/media", feedHandler.HandleMedia)
		r.Get("/contacts/{id}/media", feedHandler.HandleContactMedia)
		r.Get("/friends", feedHandler.HandleFriends)
		r.Get("/pages", feedHandler.HandlePages)
		r.Get("/search", feedHandler.HandleSearch)
		r.Get("/search/more", feedHandler.HandleSearchMore)
		r.Get("/emails", feedHandler.HandleEmails)
		r.Post("/media/{provider}/{id}/like", feedHandler.HandleLike)
		r.Delete("/media/{provider}/{id}/like", feedHandler.HandleLike)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the cache and the database (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.cache.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
