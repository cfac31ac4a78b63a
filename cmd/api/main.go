package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"thesiscert/docs"
	"thesiscert/internal/auth"
	"thesiscert/internal/config"
	"thesiscert/internal/database"
	"thesiscert/internal/database/migration"
	"thesiscert/internal/fingerprint"
	handlers "thesiscert/internal/http/handler"
	"thesiscert/internal/http/middleware"
	"thesiscert/internal/ledger"
	applog "thesiscert/internal/logger"
	"thesiscert/internal/metrics"
	"thesiscert/internal/otel"
	"thesiscert/internal/policy"
	"thesiscert/internal/repository"
	"thesiscert/internal/repository/memory"
	"thesiscert/internal/repository/postgres"
	"thesiscert/internal/service"
	"thesiscert/internal/storage"
	"thesiscert/internal/verifier"
)

// @title Thesis Certification API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger, err := applog.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := serve(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server stopped")
}

type repositories struct {
	db           *sql.DB
	theses       repository.ThesisRepository
	institutions repository.InstitutionRepository
	locker       repository.Locker
}

// openRepositories uses PostgreSQL when configured. In-memory repositories are
// only allowed outside production.
func openRepositories(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*repositories, error) {
	if !database.Configured(cfg.Database) {
		if cfg.IsProduction() {
			return nil, errors.New("database is not configured")
		}
		logger.Warn("database not configured, using in-memory repositories")
		return &repositories{
			theses:       memory.NewThesisStore(),
			institutions: memory.NewInstitutionStore(),
			locker:       repository.NewKeyedMutex(),
		}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &repositories{
		db:           db,
		theses:       postgres.NewThesisPostgres(db),
		institutions: postgres.NewInstitutionPostgres(db),
		locker:       postgres.NewAdvisoryLocker(db),
	}, nil
}

func seedInstitutions(ctx context.Context, path string, repo repository.InstitutionRepository, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open institutions file: %w", err)
	}
	defer f.Close()

	n, err := repository.SeedInstitutions(ctx, repo, f)
	if err != nil {
		return err
	}
	logger.Info("institutions seeded", zap.String("file", path), zap.Int("count", n))
	return nil
}

func serve(cfg *config.AppConfig, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if repos.db != nil {
		defer repos.db.Close()
	}
	if err := seedInstitutions(ctx, cfg.InstitutionsFile, repos.institutions, logger); err != nil {
		return err
	}

	// Store and ledger clients are built once and shared by every request.
	store, err := storage.New(cfg.Store, cfg.IsProduction(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}
	lc, err := ledger.New(ctx, cfg.Ledger, cfg.IsProduction(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger client: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipeline, err := metrics.NewPipeline(reg)
	if err != nil {
		return err
	}
	promMw, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	algo, err := fingerprint.ParseAlgorithm(cfg.Policy.DefaultDigestAlgorithm)
	if err != nil {
		return err
	}
	if !algo.Supported() {
		return fmt.Errorf("default digest algorithm %s cannot be computed", algo)
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	svc := service.NewCertificationService(service.Deps{
		Theses:           repos.theses,
		Institutions:     repos.institutions,
		Store:            store,
		Ledger:           lc,
		Locker:           repos.locker,
		Policy:           policy.New(policy.ParseRoles(cfg.Policy.CertifyRoles)...),
		Verifier:         verifier.New(repos.theses, lc, pipeline, logger),
		Metrics:          pipeline,
		Logger:           logger,
		Limits:           storage.Limits{MaxBytes: cfg.Store.MaxUploadBytes, AllowedTypes: cfg.Store.AllowedTypes},
		DefaultAlgorithm: algo,
		SubmitRetries:    cfg.Ledger.SubmitMaxRetries,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// Multipart overhead on top of the largest accepted file.
		BodyLimit:             int(cfg.Store.MaxUploadBytes) + 1<<20,
		ReadTimeout:           cfg.RequestTimeout,
		WriteTimeout:          cfg.RequestTimeout,
		DisableStartupMessage: cfg.IsProduction(),
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(promMw.Handler())
	app.Use(middleware.Deadline(cfg.RequestTimeout))

	var pinger handlers.Pinger
	if repos.db != nil {
		pinger = repos.db
	}
	handlers.RegisterRoutes(app, handlers.Routes{
		DB:       pinger,
		Service:  svc,
		Tokens:   tokens,
		Gatherer: reg,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	logger.Info("starting server",
		zap.String("addr", ":"+cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("store", store.Provider()),
		zap.String("ledger", lc.Provider()),
		zap.Int64("chain_id", lc.ChainID()),
		zap.Bool("postgres", repos.db != nil),
	)

	var g run.Group
	g.Add(func() error {
		return app.Listen(":" + cfg.Port)
	}, func(error) {
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info("shutdown signal received", zap.String("signal", sig.Signal.String()))
		return nil
	}
	return err
}
