package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/feedpress/apiserver/config"
	"github.com/feedpress/apiserver/internal/db"
	"github.com/feedpress/apiserver/internal/handlers"
	"github.com/feedpress/apiserver/internal/mq"
	"github.com/feedpress/apiserver/internal/resolvers"
	"github.com/feedpress/apiserver/internal/services"
	"github.com/feedpress/apiserver/internal/storage"
	"github.com/feedpress/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *slog.Logger
}

// New connects the database, object storage and broker named in cfg and
// builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if objects != nil {
		if err := objects.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
	}

	queue, err := mq.Open(ctx, cfg.Queue)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)

	authService, err := services.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.BcryptCost)
	if err != nil {
		_ = dbConn.Close()
		if queue != nil {
			_ = queue.Close()
		}
		return nil, err
	}
	userService := services.NewUserService(userRepo)

	// Leave the interfaces nil when a backend is disabled.
	opts := services.PostServiceOptions{
		ImageURLMode: cfg.Posts.ImageURLMode,
		Logger:       logger,
	}
	var images handlers.ImageStore
	if objects != nil {
		imageStore := storage.NewImageStore(objects)
		images = imageStore
		opts.Images = imageStore
	}
	if queue != nil {
		opts.Events = queue
	}
	postService := services.NewPostService(postRepo, opts)

	resolver := resolvers.New(authService, userService, postService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		handlers.Authenticate(authService),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, resolver, logger)
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, resolver, logger)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, resolver, logger)
	})
	handlers.ImageRouter(router, images, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
