package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/quickcart/apiserver/config"
	"github.com/quickcart/apiserver/internal/auth"
	"github.com/quickcart/apiserver/internal/db"
	"github.com/quickcart/apiserver/internal/handlers"
	"github.com/quickcart/apiserver/internal/logging"
	"github.com/quickcart/apiserver/internal/metrics"
	"github.com/quickcart/apiserver/internal/mq"
	"github.com/quickcart/apiserver/internal/services"
	"github.com/quickcart/apiserver/internal/storage"
	"github.com/quickcart/apiserver/internal/store"
	"github.com/quickcart/apiserver/internal/store/mongostore"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repositories groups the persistence layer used by the services.
type Repositories struct {
	Users    services.UserRepository
	Products services.ProductRepository
	Orders   services.OrderRepository
}

// Dependencies are the collaborators the router is built from. Images and
// Events are optional.
type Dependencies struct {
	Repositories
	Tokens *auth.TokenService
	Images services.ImageStore
	Events services.EventPublisher
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        logrus.FieldLogger
	closers    []func() error
}

// New connects the configured backends and constructs a Server.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Server, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	var closers []func() error
	fail := func(err error) (*Server, error) {
		closeAll(closers, log)
		return nil, err
	}

	repos, closeRepos, err := OpenRepositories(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeRepos)

	deps := Dependencies{Repositories: repos, Tokens: tokens}

	images, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}
	if images != nil {
		deps.Images = images
		closers = append(closers, images.Close)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return fail(fmt.Errorf("open mq: %w", err))
	}
	if broker != nil {
		deps.Events = broker
		closers = append(closers, broker.Close)
	}

	router := NewRouter(cfg, deps, log)

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
		log:        log,
		closers:    closers,
	}, nil
}

// OpenRepositories connects the configured database and returns its
// repositories together with a function releasing the connection.
func OpenRepositories(ctx context.Context, cfg config.DatabaseConfig) (Repositories, func() error, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := db.OpenMongo(ctx, cfg)
		if err != nil {
			return Repositories{}, nil, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return Repositories{}, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return mongoRepositories(database), func() error {
			return client.Disconnect(context.Background())
		}, nil
	default:
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return Repositories{}, nil, err
		}
		return sqlRepositories(dbConn), dbConn.Close, nil
	}
}

func sqlRepositories(dbConn *sql.DB) Repositories {
	return Repositories{
		Users:    store.NewUserRepository(dbConn),
		Products: store.NewProductRepository(dbConn),
		Orders:   store.NewOrderRepository(dbConn),
	}
}

func mongoRepositories(database *mongo.Database) Repositories {
	return Repositories{
		Users:    mongostore.NewUserRepository(database),
		Products: mongostore.NewProductRepository(database),
		Orders:   mongostore.NewOrderRepository(database),
	}
}

// NewRouter builds the API router.
func NewRouter(cfg config.Config, deps Dependencies, log logrus.FieldLogger) *chi.Mux {
	userService := services.NewUserService(deps.Users, deps.Tokens, services.UserOptions{
		AllowRoleSignup: cfg.Auth.AllowRoleSignup,
	}, log)
	productService := services.NewProductService(deps.Products, deps.Images, log)
	orderService := services.NewOrderService(deps.Orders, deps.Products, deps.Events, services.OrderOptions{
		Pricing:       cfg.Orders.Pricing,
		EventsChannel: cfg.MQ.OrdersChannel,
	}, log)

	authMiddleware := handlers.RequireAuth(deps.Tokens)

	var limiter func(http.Handler) http.Handler
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log).Handler
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		CORS(cfg.CORSOrigins),
		metrics.Middleware,
		logging.RequestLogger(log),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", metrics.Handler())
	router.Route("/uploads", func(r chi.Router) {
		handlers.ImageRouter(r, productService)
	})
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, authMiddleware, limiter)
		})
		r.Route("/products", func(r chi.Router) {
			handlers.ProductRouter(r, productService, authMiddleware)
		})
		r.Route("/orders", func(r chi.Router) {
			handlers.OrderRouter(r, orderService, authMiddleware)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases backend connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	closeAll(s.closers, s.log)
	return err
}

func closeAll(closers []func() error, log logrus.FieldLogger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.WithError(err).Warn("close backend failed")
		}
	}
}
