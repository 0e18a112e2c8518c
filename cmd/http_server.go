package cmd

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

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/miyuou/smartticket/api"
	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/auth"
	authPostgres "github.com/miyuou/smartticket/internal/auth/postgres"
	"github.com/miyuou/smartticket/internal/core/events"
	"github.com/miyuou/smartticket/internal/lookup"
	lookupPostgres "github.com/miyuou/smartticket/internal/lookup/postgres"
	"github.com/miyuou/smartticket/internal/metrics"
	"github.com/miyuou/smartticket/internal/stats"
	"github.com/miyuou/smartticket/internal/ticket"
	ticketPostgres "github.com/miyuou/smartticket/internal/ticket/postgres"
	"github.com/miyuou/smartticket/internal/transfer"
	transferPostgres "github.com/miyuou/smartticket/internal/transfer/postgres"
	"github.com/miyuou/smartticket/internal/transport/middleware"
	"github.com/miyuou/smartticket/internal/transport/rest"
	"github.com/miyuou/smartticket/internal/user"
	userPostgres "github.com/miyuou/smartticket/internal/user/postgres"
	"github.com/miyuou/smartticket/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config       *internal.Config
	DB           *sqlx.DB
	GormDB       *gorm.DB
	Router       *chi.Mux
	Logger       *slog.Logger
	EventBus     *events.EventBus
	LoginLimiter *middleware.RateLimiter
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.close()
			os.Exit(1)
		}
	}

	deps.close()
	deps.Logger.Info("Server stopped")
}

func (d *Dependencies) close() {
	if d.LoginLimiter != nil {
		d.LoginLimiter.Stop()
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	if _, err := api.Load(context.Background()); err != nil {
		return err
	}

	// Event bus: audit log always, metrics when enabled
	deps.EventBus = events.NewEventBus(lg)
	audit := events.AuditLogHandler(lg)
	for _, t := range events.TicketEventTypes {
		deps.EventBus.Subscribe(t, audit)
	}

	var (
		collector *metrics.Collector
		gatherer  prometheus.Gatherer
	)
	if cfg.Observability.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.NewCollector(registry)
		collector.Subscribe(deps.EventBus)
		gatherer = registry
	}

	// Stores
	ticketRepo := ticketPostgres.NewTicketRepository(deps.GormDB)
	userRepo := userPostgres.NewUserRepository(deps.GormDB)
	lookupRepo := lookupPostgres.NewLookupRepository(deps.GormDB)
	authRepo := authPostgres.NewRepository(deps.GormDB)
	exportRepo := transferPostgres.NewExportRepository(deps.DB)

	// Services
	ticketService := ticket.NewService(ticketRepo, deps.EventBus, ticket.Config{
		ResolvedStatus:          cfg.Ticketing.ResolvedStatus,
		StrictTechnicianUpdates: cfg.Ticketing.StrictTechnicianUpdates,
	}, lg)
	authService := auth.NewService(authRepo, auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.AccessTokenDuration), lg)
	userService := user.NewService(userRepo, cfg.Security.BCryptCost, lg)
	lookupService := lookup.NewService(lookupRepo, lg)
	statsService := stats.NewService(ticketRepo, cfg.Ticketing.ResolvedStatus, lg)
	transferService := transfer.NewService(ticketRepo, exportRepo, deps.EventBus, transfer.Config{
		ImportMode: cfg.Ticketing.ImportMode,
	}, lg)

	rbac := auth.NewRBACAuthorization(lg)
	if collector != nil {
		rbac.OnDeny(collector.RecordDenied)
		ticketService.OnDeny(collector.RecordDenied)
		statsService.OnDeny(collector.RecordDenied)
		transferService.OnDeny(collector.RecordDenied)
	}

	deps.LoginLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		PerMinute: cfg.RateLimit.LoginPerMinute,
		Burst:     cfg.RateLimit.LoginBurst,
	})

	rest.RegisterAllRoutes(deps.Router, rest.Routes{
		DB:             deps.DB,
		Logger:         lg,
		Auth:           auth.NewHandler(authService, lg),
		RBAC:           rbac,
		Users:          user.NewHandler(userService, lg),
		Tickets:        ticket.NewHandler(ticketService, lg),
		Lookups:        lookup.NewHandler(lookupService, lg),
		Stats:          stats.NewHandler(statsService, lg),
		Transfer:       transfer.NewHandler(transferService, lg),
		LoginLimiter:   deps.LoginLimiter,
		AllowedOrigins: cfg.Server.Origins(),
		Metrics:        collector,
		MetricsPath:    cfg.Observability.Metrics.Path,
		Gatherer:       gatherer,
		OpenAPISpec:    api.Spec,
	})

	lg.Info("routes registered", "event_handlers", deps.EventBus.HandlerCounts(), "metrics", collector != nil)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.Configure(logger.Options{
		Format: config.Observability.Logging.Format,
		Level:  config.Observability.Logging.Level,
	})

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		GormDB: gormDB,
		Router: chi.NewRouter(),
	}, nil
}

// initDB opens the shared pgx pool
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm on top of the sqlx pool so both share connections
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
}
