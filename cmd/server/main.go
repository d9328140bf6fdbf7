package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cattlebreed/server/internal/config"
	"github.com/cattlebreed/server/internal/handlers"
	"github.com/cattlebreed/server/internal/observability"
	"github.com/cattlebreed/server/internal/repository"
	"github.com/cattlebreed/server/internal/services"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	_ "github.com/cattlebreed/server/docs"
)

// @title Cattle Breed Server API
// @version 1.0
// @description Local back end for animal capture, OTP login, exports and the ATS dashboard.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	var (
		configPath  = pflag.StringP("config", "c", "", "config file (JSON or YAML); defaults to $CONFIG_PATH or config.json")
		addr        = pflag.String("addr", "", "listen address, overrides serverAddress")
		envFile     = pflag.String("env-file", ".env", "dotenv file loaded before configuration")
		logLevel    = pflag.String("log-level", "", "debug, info, warn or error")
		showVersion = pflag.BoolP("version", "v", false, "print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Printf("cattle-breed-server %s (%s, built %s)\n", handlers.Version, handlers.GitCommit, handlers.BuildTime)
		return
	}

	// A missing .env is normal outside development
	envErr := godotenv.Load(*envFile)

	logger := observability.GetLogger()
	if *logLevel != "" {
		logger.SetLevel(observability.ParseLevel(*logLevel))
	}
	if envErr == nil {
		observability.Infof("Loaded environment from %s", *envFile)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		observability.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ServerAddress = *addr
	}

	if err := run(cfg); err != nil {
		observability.WithError(err).Error("Server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Initialize(ctx, observability.Config{
		ServiceName:    "cattle-breed-server",
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			observability.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	businessMetrics, err := observability.NewBusinessMetrics()
	if err != nil {
		observability.WithError(err).Warn("Business metrics unavailable")
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		observability.WithError(err).Warn("HTTP metrics unavailable")
	}

	db, records, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	images, err := services.NewImageStorageService(
		cfg.ImageStorage.BasePath,
		cfg.ImageStorage.AllowedExtensions,
		cfg.ImageStorage.MaxFileSizeMB,
	)
	if err != nil {
		return fmt.Errorf("initialize image storage: %w", err)
	}

	hub := services.NewWebSocketHub()
	go hub.Run(ctx)

	sender := services.NewOTPSender(cfg.SMS, cfg.OTP.Expiry())
	authService := services.NewAuthService(repository.NewPreferenceRepository(db), sender, services.AuthOptions{
		OTPExpiry:   cfg.OTP.Expiry(),
		MaxAttempts: cfg.OTP.MaxAttempts,
		Metrics:     businessMetrics,
		Events:      hub,
	})
	if err := authService.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	go authService.StartCleanup(ctx, cfg.OTP.CleanupInterval())

	previews := services.NewPreviewService(cfg.ImageStorage.BasePath, cfg.ImageStorage.PreviewMaxSize)
	recordService := services.NewRecordService(records, images, services.RecordOptions{
		Previews: previews,
		Metrics:  businessMetrics,
		Events:   hub,
	})
	exportService, err := services.NewExportService(cfg.Export.Directory, records, services.ExportOptions{
		FontPath: cfg.Export.PDFFontPath,
		Metrics:  businessMetrics,
		Events:   hub,
	})
	if err != nil {
		return fmt.Errorf("initialize exports: %w", err)
	}
	dashboardService := services.NewDashboardService()

	maintenance := services.NewMaintenanceService(records, images, previews, services.MaintenanceOptions{
		Interval:    cfg.Maintenance.Interval(),
		OrphanGrace: cfg.Maintenance.OrphanGrace(),
	})
	go maintenance.Start(ctx)

	router := handlers.NewRouter(handlers.Deps{
		Config:         cfg,
		Auth:           authService,
		Records:        recordService,
		Analytics:      services.NewAnalyticsService(records, dashboardService),
		Exports:        exportService,
		Dashboard:      dashboardService,
		Hub:            hub,
		Maintenance:    maintenance,
		HTTPMetrics:    httpMetrics,
		RequestLogging: true,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // captures and PDF exports
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.WithFields(map[string]interface{}{
			"address":       cfg.ServerAddress,
			"image_storage": cfg.ImageStorage.BasePath,
			"export_dir":    cfg.Export.Directory,
			"otp_channel":   sender.Channel(),
			"max_file_mb":   cfg.ImageStorage.MaxFileSizeMB,
		}).Info("Cattle breed server starting")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	observability.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	observability.Info("Server stopped")
	return nil
}

func openDatabase(cfg *config.Config) (*sql.DB, repository.AnimalRecordRepo, error) {
	if cfg.UsePostgres() {
		observability.WithField("driver", cfg.DatabaseDriver).Info("Using PostgreSQL database")
		db, err := repository.NewPostgresDB(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize PostgreSQL database: %w", err)
		}
		return db, repository.NewAnimalRecordRepositoryPostgres(db), nil
	}

	observability.WithField("path", cfg.DatabasePath).Info("Using SQLite database")
	db, err := repository.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize SQLite database: %w", err)
	}
	return db, repository.NewAnimalRecordRepository(db), nil
}
