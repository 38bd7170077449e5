package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medivision/medivision/internal/config"
	"github.com/medivision/medivision/internal/domain/audit"
	"github.com/medivision/medivision/internal/domain/imaging"
	"github.com/medivision/medivision/internal/domain/patient"
	"github.com/medivision/medivision/internal/domain/physician"
	"github.com/medivision/medivision/internal/domain/prediction"
	"github.com/medivision/medivision/internal/domain/report"
	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/auth"
	"github.com/medivision/medivision/internal/platform/db"
	"github.com/medivision/medivision/internal/platform/middleware"
	"github.com/medivision/medivision/internal/platform/queue"
	"github.com/medivision/medivision/internal/tasks"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medivision-server",
		Short: "MediVision medical imaging API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the background job worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// services bundles everything both the API server and the worker wire up.
type services struct {
	cfg    *config.Config
	logger zerolog.Logger

	patients    *patient.Service
	images      *imaging.Service
	predictions *prediction.Service
	physicians  *physician.Service
	reports     *report.Service
	audits      *audit.Service

	issuer   *auth.TokenIssuer
	verifier auth.CredentialVerifier
	jobs     *queue.Client
	broker   *queue.RedisBroker
}

func buildServices(ctx context.Context, cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool) (*services, error) {
	broker, err := queue.NewRedisBroker(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := broker.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	jobs := queue.NewClient(broker, cfg.ResultTTL)

	patientSvc := patient.NewService(patient.NewRepoPG(pool))
	imagingSvc := imaging.NewService(
		imaging.NewRepoPG(pool),
		imaging.NewMetadataRepoPG(pool),
		patientSvc,
		jobs,
		imaging.Limits{MaxFileSize: cfg.MaxFileSize, AllowedExtensions: cfg.AllowedExtensions},
	)
	predictionSvc := prediction.NewService(
		prediction.NewRepoPG(pool),
		prediction.NewBoundingBoxRepoPG(pool),
		imagingSvc,
	)
	physicianSvc := physician.NewService(
		physician.NewRepoPG(pool),
		physician.NewReviewRepoPG(pool),
		predictionSvc,
		func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, pool, fn)
		},
	)
	reportSvc := report.NewService(report.NewRepoPG(pool), patientSvc, physicianSvc, imagingSvc)
	auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecretKey, cfg.JWTAlgorithm, cfg.AccessTokenTTL())
	if err != nil {
		return nil, err
	}
	verifier := auth.VerifierChain{
		&auth.StaticVerifier{Username: cfg.AdminUsername, Password: cfg.AdminPassword},
		&auth.PhysicianVerifier{Store: physicianSvc},
	}

	return &services{
		cfg:         cfg,
		logger:      logger,
		patients:    patientSvc,
		images:      imagingSvc,
		predictions: predictionSvc,
		physicians:  physicianSvc,
		reports:     reportSvc,
		audits:      auditSvc,
		issuer:      issuer,
		verifier:    verifier,
		jobs:        jobs,
		broker:      broker,
	}, nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	svcs, err := buildServices(ctx, cfg, logger, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer svcs.broker.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.NewHTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(auth.Middleware(svcs.issuer, auth.DefaultSkipper))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"name":    "MediVision API",
			"version": "0.1.0",
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	apiV1 := e.Group("/api/v1")
	apiV1.Use(audit.Middleware(svcs.audits))

	auth.NewHandler(svcs.verifier, svcs.issuer).RegisterRoutes(apiV1)
	patient.NewHandler(svcs.patients).RegisterRoutes(apiV1)
	imaging.NewHandler(svcs.images).RegisterRoutes(apiV1)
	prediction.NewHandler(svcs.predictions).RegisterRoutes(apiV1)
	physician.NewHandler(svcs.physicians).RegisterRoutes(apiV1)
	report.NewHandler(svcs.reports).RegisterRoutes(apiV1)
	audit.NewHandler(svcs.audits).RegisterRoutes(apiV1)

	// Task result polling for async image processing.
	apiV1.GET("/tasks/:id", func(c echo.Context) error {
		res, err := svcs.jobs.Result(c.Request().Context(), c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, res)
	})

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func runWorker() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	svcs, err := buildServices(ctx, cfg, logger, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer svcs.broker.Close()

	worker := queue.NewWorker(svcs.broker, logger, queue.WorkerOptions{
		Concurrency:   cfg.WorkerConcurrency,
		SoftTimeLimit: cfg.JobSoftTimeLimit,
		HardTimeLimit: cfg.JobHardTimeLimit,
		MaxRetries:    cfg.JobMaxRetries,
		ResultTTL:     cfg.ResultTTL,
	})
	tasks.NewImageProcessor(svcs.images, logger).Register(worker)

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
