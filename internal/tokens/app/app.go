package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/tabtoken/internal/tokens/http"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/rpc"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/seed"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/service"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store/cache"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store/drivers/sqlite"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/telemetry"
	"github.com/aussiebroadwan/tabtoken/pkg/authn"
	"github.com/aussiebroadwan/tabtoken/pkg/cryptox"
	"github.com/aussiebroadwan/tabtoken/pkg/grpcx"
	"github.com/aussiebroadwan/tabtoken/pkg/httpx"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	redis   *redis.Client
	secrets *cryptox.SecretCodec
	metrics *telemetry.Metrics
	gate    *authn.Authenticator

	issuer *service.Issuer

	// Servers
	server     *http.Server
	router     *httpapi.Router
	grpcServer *grpc.Server
	health     *health.Server
}

// New creates an Application with every dependency initialized. Nothing is
// listening until Run.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	secrets, err := OpenSecrets(cfg)
	if err != nil {
		return nil, err
	}
	app.secrets = secrets

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if cfg.SeedFile != "" {
		if err := app.applySeed(); err != nil {
			_ = app.closeStores()
			return nil, err
		}
	}

	if err := app.initServices(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	app.initHTTP()
	app.initGRPC()

	return app, nil
}

// NewLogger builds the root logger for cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "token-service",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// OpenSecrets loads the master key and builds the secret codec.
func OpenSecrets(cfg Config) (*cryptox.SecretCodec, error) {
	key, err := cryptox.LoadMasterKey(cfg.MasterKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	return cryptox.NewSecretCodec(key)
}

// OpenStore opens the SQLite database and applies migrations.
func OpenStore(cfg Config) (*sqlite.Store, error) {
	db, err := sqlite.NewStore(sqlite.DSN(cfg.DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// Handler is the HTTP API, for tests and embedding.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the HTTP and gRPC servers and blocks until shutdown is
// requested or a server fails.
func (app *Application) Run() error {
	serverErrors := make(chan error, 2)

	go func() {
		app.logger.Info("starting HTTP server", "port", app.cfg.Port)
		serverErrors <- app.server.ListenAndServe()
	}()

	if app.grpcServer != nil {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", app.cfg.GRPCPort))
		if err != nil {
			_ = app.Shutdown()
			return fmt.Errorf("grpc listen: %w", err)
		}
		go func() {
			app.logger.Info("starting gRPC server", "port", app.cfg.GRPCPort)
			serverErrors <- app.grpcServer.Serve(lis)
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops both servers and closes the stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if app.grpcServer != nil {
		app.health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			app.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			app.grpcServer.Stop()
		}
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.closeStores(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("token service stopped")
	return nil
}

func (app *Application) closeStores() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}
	return app.db.Close()
}

// initDatabase opens SQLite and, when configured, puts the Redis policy
// cache in front of it.
func (app *Application) initDatabase() error {
	db, err := OpenStore(app.cfg)
	if err != nil {
		return err
	}
	app.db = db
	app.logger.Info("database migrations applied successfully")

	if app.cfg.RedisAddr == "" {
		return nil
	}

	app.redis = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.redis.Ping(ctx).Err(); err != nil {
		_ = app.closeStores()
		return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.db = cache.Wrap(db, app.redis, app.cfg.PolicyCacheTTL)
	app.logger.Info("policy cache enabled", "redis", app.cfg.RedisAddr, "ttl", app.cfg.PolicyCacheTTL)
	return nil
}

func (app *Application) applySeed() error {
	file, err := seed.Load(app.cfg.SeedFile)
	if err != nil {
		return err
	}

	ctx := slogx.WithContext(context.Background(), app.logger)
	report, err := seed.Apply(ctx, app.db, app.secrets, file)
	if err != nil {
		return fmt.Errorf("failed to apply seed: %w", err)
	}
	for _, g := range report.Generated {
		app.logger.Warn("generated signing secret for new tenant; run the seed command instead to see the plaintext",
			"client_id", g.ClientID,
			"fingerprint", cryptox.Fingerprint(g.Secret),
		)
	}
	return nil
}

// initServices builds the issuer and the admission gate.
func (app *Application) initServices() error {
	strategies, err := service.ParseStrategies(app.cfg.ClientStrategies, app.db.Subjects(), app.cfg.RolesKey)
	if err != nil {
		return fmt.Errorf("failed to parse client strategies: %w", err)
	}
	if len(strategies.Clients()) == 0 {
		app.logger.Warn("no client strategies configured; every issuance will be refused")
	}

	app.metrics = telemetry.New()
	app.issuer = &service.Issuer{
		Resolver: &service.Resolver{Policies: app.db.Policies(), Strategies: strategies},
		Secrets:  app.secrets,
		Codec:    jwtx.NewCodec(jwtx.WithRolesKey(app.cfg.RolesKey)),
		Metrics:  app.metrics,
	}

	app.gate, err = authn.New(app.cfg.BasicClientID, app.cfg.BasicClientSecret,
		authn.WithObserver(app.metrics.ObserveGate))
	if err != nil {
		return err
	}

	app.logger.Info("token issuer ready", "tenants", strategies.Clients())
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.issuer, app.gate, app.db, app.metrics, BuildVersion, app.logger)
	router.Limits = httpapi.RateLimits{
		Issue:      httpx.ParseRateLimitFromEnv("ISSUE", httpx.IssueLimit),
		Introspect: httpx.ParseRateLimitFromEnv("INTROSPECT", httpx.IntrospectLimit),
		Public:     httpx.ParseRateLimitFromEnv("PUBLIC", httpx.PublicLimit),
	}
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// initGRPC builds the gRPC server unless GRPCPort is 0. Health checks skip
// the gate so orchestrators can probe without credentials.
func (app *Application) initGRPC() {
	if app.cfg.GRPCPort == 0 {
		return
	}

	skip := grpcx.SkipMethods(
		healthpb.Health_Check_FullMethodName,
		healthpb.Health_Watch_FullMethodName,
	)
	app.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			slogx.UnaryServerInterceptor(app.logger),
			grpcx.UnaryServerInterceptor(app.gate, skip),
		),
		grpc.ChainStreamInterceptor(
			slogx.StreamServerInterceptor(app.logger),
			grpcx.StreamServerInterceptor(app.gate, skip),
		),
	)

	app.health = health.NewServer()
	healthpb.RegisterHealthServer(app.grpcServer, app.health)
	rpc.RegisterTokensServer(app.grpcServer, &rpc.Server{Issuer: app.issuer})
	app.health.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
}
