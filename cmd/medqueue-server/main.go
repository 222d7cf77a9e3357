package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medqueue/medqueue/internal/config"
	"github.com/medqueue/medqueue/internal/domain/emergency"
	"github.com/medqueue/medqueue/internal/domain/identity"
	"github.com/medqueue/medqueue/internal/domain/notification"
	"github.com/medqueue/medqueue/internal/domain/prescription"
	"github.com/medqueue/medqueue/internal/domain/queue"
	"github.com/medqueue/medqueue/internal/platform/auth"
	"github.com/medqueue/medqueue/internal/platform/db"
	"github.com/medqueue/medqueue/internal/platform/middleware"
)

// PrescriptionGateAdapter adapts the prescription service to the
// queue.PrescriptionGate interface, avoiding a direct import between the two
// domain packages.
type PrescriptionGateAdapter struct {
	svc *prescription.Service
}

func NewPrescriptionGateAdapter(svc *prescription.Service) *PrescriptionGateAdapter {
	return &PrescriptionGateAdapter{svc: svc}
}

func (a *PrescriptionGateAdapter) Dispensable(ctx context.Context, id int64, patientNIC string) error {
	return a.svc.Dispensable(ctx, id, patientNIC)
}

func (a *PrescriptionGateAdapter) MarkDispensed(ctx context.Context, id int64) error {
	err := a.svc.MarkDispensed(ctx, id)
	if errors.Is(err, prescription.ErrAlreadyDispensed) {
		return queue.ErrAlreadyDispensed
	}
	return err
}

func (a *PrescriptionGateAdapter) Detail(ctx context.Context, id int64) (*queue.PrescriptionDetail, error) {
	p, err := a.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &queue.PrescriptionDetail{
		ID:          p.ID,
		DoctorName:  p.DoctorName,
		Medicines:   p.Medicines,
		Status:      p.Status,
		DispensedAt: p.DispensedAt,
	}, nil
}

// NotifierAdapter feeds domain events into the notification service. It
// satisfies both emergency.Notifier and queue.Notifier.
type NotifierAdapter struct {
	svc *notification.Service
}

func NewNotifierAdapter(svc *notification.Service) *NotifierAdapter {
	return &NotifierAdapter{svc: svc}
}

func (a *NotifierAdapter) WalkInAccess(ctx context.Context, patientNIC, doctorName string) error {
	_, err := a.svc.NotifyTemplate(ctx, patientNIC, notification.TemplateWalkInAccess,
		map[string]string{"doctor_name": doctorName})
	return err
}

func (a *NotifierAdapter) OrderDispensed(ctx context.Context, patientNIC, pharmacyName string) error {
	_, err := a.svc.NotifyTemplate(ctx, patientNIC, notification.TemplateOrderDispensed,
		map[string]string{"pharmacy_name": pharmacyName})
	return err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "medqueue-server",
		Short: "Prescription queue and access-grant API server",
	}

	rootCmd.AddCommand(serveCmd())
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
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Write a forward migration that undoes the change instead.")
			return nil
		},
	})

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger, "/api/v1/queue/status", "/health"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			Secret:   []byte(cfg.AuthSecret),
		}))
	}

	// API group with rate limiting
	api := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Repositories
	patientRepo := identity.NewPatientRepoPG(pool)
	doctorRepo := identity.NewDoctorRepoPG(pool)
	pharmacyRepo := identity.NewPharmacyRepoPG(pool)
	prescriptionRepo := prescription.NewRepoPG(pool)
	queueRepo := queue.NewRepoPG(pool)
	notificationRepo := notification.NewRepoPG(pool)
	grantRepo := emergency.NewRepoPG(pool)

	// Services
	identitySvc := identity.NewService(patientRepo, doctorRepo, pharmacyRepo)
	prescriptionSvc := prescription.NewService(prescriptionRepo, identitySvc, identitySvc)
	notificationSvc := notification.NewService(notificationRepo, notification.NewTemplateEngine())
	notifier := NewNotifierAdapter(notificationSvc)
	queueSvc := queue.NewService(queueRepo, identitySvc,
		NewPrescriptionGateAdapter(prescriptionSvc), notifier, db.NewTransactor(pool), logger)
	emergencySvc := emergency.NewService(grantRepo, identitySvc, notifier, logger)

	// Handlers
	identity.NewHandler(identitySvc, cfg.BaseURL).RegisterRoutes(api)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(api)
	queue.NewHandler(queueSvc, cfg.PollInterval()).RegisterRoutes(api)
	notification.NewHandler(notificationSvc).RegisterRoutes(api)
	emergency.NewHandler(emergencySvc).RegisterRoutes(api)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server stopped")
	}
	return nil
}
