// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New opens the database and the optional
// Redis cache, builds the services, hands them to the handlers and mounts
// the handlers on routes. Nothing else in the module constructs
// dependencies.
//
//	config → sqlite.DB ─┬→ PostService    → PostHandler
//	                    ├→ CommentService → CommentHandler
//	                    └→ AuthService    → AuthHandler
//	redis  → cache.Categories ─┘ (PostService only)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/blogspace/internal/auth"
	"github.com/sakif/blogspace/internal/cache"
	"github.com/sakif/blogspace/internal/config"
	"github.com/sakif/blogspace/internal/handler"
	"github.com/sakif/blogspace/internal/middleware"
	sqliteRepo "github.com/sakif/blogspace/internal/repository/sqlite"
	"github.com/sakif/blogspace/internal/service"
)

// Server owns the router and the resources that must be released on
// shutdown: the database connection and, when configured, the Redis client.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *redis.Client
}

// New opens storage and wires every route. A Redis that cannot be reached
// is logged and skipped; the blog then reads categories from the database.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, category cache disabled", slog.String("error", err.Error()))
		} else {
			s.redis = client
		}
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET    /healthz                   → liveness (pings the DB)
//	GET    /metrics                   → Prometheus scrape
//	POST   /auth/register             → create account
//	POST   /auth/login                → start session
//	POST   /auth/logout               → end session
//	GET    /auth/github/login         → OAuth redirect   (when configured)
//	GET    /auth/github/callback      → OAuth callback   (when configured)
//	GET    /api/posts                 → list posts
//	POST   /api/posts                 → create post
//	GET    /api/posts/{id}            → post with comments
//	PUT    /api/posts/{id}            → update post
//	DELETE /api/posts/{id}            → delete post and comments
//	GET    /api/posts/{id}/comments   → list comments
//	POST   /api/posts/{id}/comments   → add comment
//	GET    /api/categories            → category facet
//	GET    /api/me                    → signed-in account
//
// MIDDLEWARE ORDER MATTERS: RequestID and Tracing run first so every log
// line below them carries request_id and trace_id; Recoverer sits inside
// the logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	policy, err := service.PolicyByName(cfg.PostPolicy)
	if err != nil {
		return err
	}

	categories := cache.NewCategories(s.redis, cfg.CategoryCacheTTL, s.logger)

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}

	postService := service.NewPostService(s.db, categories, policy, s.logger)
	commentService := service.NewCommentService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)

	postHandler := handler.NewPostHandler(postService, s.logger)
	commentHandler := handler.NewCommentHandler(commentService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, tokens, cfg.CookieSecure, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Tracing)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(auth.OptionalAuth(tokens))

	// === Operational ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	// === Auth ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	// === API ===
	// Writes do not use RequireAuth: the services decide between 401 and
	// 403 from the identity OptionalAuth resolved.
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/posts", postHandler.HandleList)
		r.Post("/posts", postHandler.HandleCreate)
		r.Get("/posts/{id}", postHandler.HandleGet)
		r.Put("/posts/{id}", postHandler.HandleUpdate)
		r.Delete("/posts/{id}", postHandler.HandleDelete)
		r.Get("/posts/{id}/comments", commentHandler.HandleList)
		r.Post("/posts/{id}/comments", commentHandler.HandleCreate)
		r.Get("/categories", postHandler.HandleCategories)

		r.With(auth.RequireAuth(tokens)).Get("/me", authHandler.HandleMe)
	})

	s.logger.Info("routes configured",
		slog.String("post_policy", postService.Policy()),
		slog.Bool("category_cache", s.redis != nil),
		slog.Bool("github_oauth", github != nil),
	)
	return nil
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and the Redis client.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes storage.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("env", s.config.Env),
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
