// Package server is the wiring layer: it opens the document store, builds
// repositories, services and handlers, and mounts them on a chi router.
//
// DEPENDENCY FLOW:
//
//	docstore.Store → Collection (+ metrics) → repository.DocRepository[T]
//	  → UserService / PostService / CommentService / AuthService
//	  → handlers → routes
//
// Everything is assembled in one place (New/setupRoutes), the "composition
// root", rather than scattered across the codebase.
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

	"github.com/sakif/postboard/internal/auth"
	"github.com/sakif/postboard/internal/config"
	"github.com/sakif/postboard/internal/docstore"
	"github.com/sakif/postboard/internal/docstore/mongo"
	"github.com/sakif/postboard/internal/docstore/postgres"
	"github.com/sakif/postboard/internal/docstore/sqlite"
	"github.com/sakif/postboard/internal/handler"
	"github.com/sakif/postboard/internal/metrics"
	"github.com/sakif/postboard/internal/middleware"
	"github.com/sakif/postboard/internal/model"
	"github.com/sakif/postboard/internal/repository"
	"github.com/sakif/postboard/internal/service"
)

// Collection names.
const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
)

// Server owns the router and the store connection. The store is closed when
// Start returns.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	store   docstore.Store
	metrics *metrics.Metrics
}

// New opens the store the configuration names and builds the server on it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	store, err := OpenStore(ctx, cfg, m)
	if err != nil {
		return nil, err
	}

	s, err := NewWithStore(ctx, cfg, store, m, logger)
	if err != nil {
		store.Close(context.Background())
		return nil, err
	}
	return s, nil
}

// OpenStore connects to the backend selected by cfg.Storage.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (docstore.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		path := cfg.Storage.SQLite.Path
		if path != ":memory:" {
			// Like `mkdir -p`; 0755 = owner rwx, others r-x.
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return db, nil

	case config.DriverMongo:
		st, err := mongo.Connect(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return st, nil

	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.Storage.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		if m != nil {
			if err := m.RegisterPool(st.Pool()); err != nil {
				st.Close(ctx)
				return nil, fmt.Errorf("registering pool metrics: %w", err)
			}
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewWithStore builds the server on an already-open store. Tests use it with
// an in-memory SQLite store.
func NewWithStore(ctx context.Context, cfg *config.Config, store docstore.Store, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: m,
	}

	if err := s.setupRoutes(ctx); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root handler, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) collection(ctx context.Context, name string) (docstore.Collection, error) {
	c, err := s.store.Collection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", name, err)
	}
	if s.metrics != nil {
		c = s.metrics.InstrumentCollection(c)
	}
	return c, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /auth/register, /auth/login          public
//	POST   /user, GET /posts                    public
//	GET    /auth/me                             bearer
//	GET    /user, GET|PUT|DELETE /user/{id}     bearer
//	POST /posts, GET|PUT|DELETE /posts/{id}     bearer
//	POST|GET /comment, DELETE /comment/{id}     bearer
//	GET    /healthz, /metrics                   public
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, so the logger can print it
// 2. RealIP, so logs show the client, not the proxy
// 3. Logger + metrics, timing everything below them
// 4. Recoverer, turning panics into 500s
func (s *Server) setupRoutes(ctx context.Context) error {
	users, err := s.collection(ctx, usersCollection)
	if err != nil {
		return err
	}
	posts, err := s.collection(ctx, postsCollection)
	if err != nil {
		return err
	}
	comments, err := s.collection(ctx, commentsCollection)
	if err != nil {
		return err
	}

	passwords, err := auth.NewPasswordEncoder(s.config.Auth.PasswordScheme)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return err
	}

	userService := service.NewUserService(repository.New[model.User](users), passwords, s.logger)
	postService := service.NewPostService(repository.New[model.Post](posts), s.logger)
	commentService := service.NewCommentService(repository.New[model.Comment](comments), postService, s.logger)
	authService := service.NewAuthService(userService, tokens, s.logger)

	authHandler := handler.NewAuthHandler(authService, userService, s.logger)
	userHandler := handler.NewUserHandler(userService, authService, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)
	commentHandler := handler.NewCommentHandler(commentService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth(s.store))
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Post("/auth/register", authHandler.HandleRegister)
	s.router.Post("/auth/login", authHandler.HandleLogin)
	s.router.Post("/user", userHandler.HandleCreate)
	s.router.Get("/posts", postHandler.HandleList)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(authService))

		r.Get("/auth/me", authHandler.HandleMe)

		r.Get("/user", userHandler.HandleList)
		r.Get("/user/{id}", userHandler.HandleGet)
		r.Put("/user/{id}", userHandler.HandleUpdate)
		r.Delete("/user/{id}", userHandler.HandleDelete)

		r.Post("/posts", postHandler.HandleCreate)
		r.Get("/posts/{id}", postHandler.HandleGet)
		r.Put("/posts/{id}", postHandler.HandleUpdate)
		r.Delete("/posts/{id}", postHandler.HandleDelete)

		r.Post("/comment", commentHandler.HandleCreate)
		r.Get("/comment", commentHandler.HandleList)
		r.Delete("/comment/{id}", commentHandler.HandleDelete)
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
// 1. Stop accepting new connections
// 2. Wait for in-flight requests (server.shutdown_timeout)
// 3. Close the store connection
func (s *Server) Start() error {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.Close(ctx); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("storage", s.config.Storage.Driver),
			slog.String("password_scheme", s.config.Auth.PasswordScheme),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
