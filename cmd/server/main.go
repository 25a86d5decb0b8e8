package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clinicapp "github.com/medimaging/backend/internal/application/clinic"
	reportapp "github.com/medimaging/backend/internal/application/report"
	"github.com/medimaging/backend/internal/domain/printing"
	"github.com/medimaging/backend/internal/infrastructure/auth"
	"github.com/medimaging/backend/internal/infrastructure/cache"
	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/medimaging/backend/internal/infrastructure/logger"
	"github.com/medimaging/backend/internal/infrastructure/persistence"
	infraprinting "github.com/medimaging/backend/internal/infrastructure/printing"
	"github.com/medimaging/backend/internal/infrastructure/scheduler"
	"github.com/medimaging/backend/internal/infrastructure/storage"
	"github.com/medimaging/backend/internal/infrastructure/telemetry"
	"github.com/medimaging/backend/internal/interfaces/http/handler"
	"github.com/medimaging/backend/internal/interfaces/http/middleware"
	"github.com/medimaging/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	obs, log, err := setupObservability(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting clinic report service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db, err := persistence.NewDatabase(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver()))

	if err := db.Use(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem(db.Driver()),
	}, log)); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if gdb := db.Gorm(); gdb != nil {
		obs.db, err = telemetry.RegisterDBMetrics(gdb, obs.meter, telemetry.DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err != nil {
			log.Fatal("Failed to register database metrics", zap.Error(err))
		}
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
		log.Info("Database schema up to date")
	}

	locker, redisClient := cache.NewReportLocker(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}
	blacklist := auth.NewTokenBlacklist(redisClient)

	artifacts, err := newArtifactStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize report storage", zap.Error(err))
	}

	launcher := infraprinting.NewChromedpLauncher(&infraprinting.ChromedpConfig{
		RemoteURL: cfg.Render.RemoteURL,
		ExecPath:  cfg.Render.ExecPath,
		Headless:  cfg.Render.Headless,
		NoSandbox: cfg.Render.NoSandbox,
		Logger:    log,
	})
	renderer := infraprinting.NewChromedpRenderer(launcher, infraprinting.RendererConfig{
		Timeout: cfg.Render.Timeout,
		Retry: infraprinting.RetryPolicy{
			MaxAttempts: cfg.Render.MaxAttempts,
			Backoff:     infraprinting.FixedBackoff(cfg.Render.Backoff),
		},
		Logger: log,
	})

	store := db.Store()
	clinicStore := persistence.NewClinicStore(store)
	settingsCacheConfig := cache.DefaultSettingsCacheConfig()
	if cfg.Redis.SettingsLocalTTL > 0 {
		settingsCacheConfig.LocalTTL = cfg.Redis.SettingsLocalTTL
	}
	if cfg.Redis.SettingsSharedTTL > 0 {
		settingsCacheConfig.SharedTTL = cfg.Redis.SettingsSharedTTL
	}
	settingsStore := cache.NewCachedSettingsRepository(
		persistence.NewSettingsStore(store),
		redisClient,
		cache.WithSettingsCacheConfig(settingsCacheConfig),
		cache.WithSettingsCacheLogger(log),
	)
	subCtx, stopSubscriber := context.WithCancel(context.Background())
	defer stopSubscriber()
	go func() {
		if err := settingsStore.Subscribe(subCtx); err != nil {
			log.Warn("Settings invalidation subscriber stopped", zap.Error(err))
		}
	}()

	margins := printing.DefaultMargins()
	if cfg.Render.MarginMM > 0 {
		if m, err := printing.UniformMargins(cfg.Render.MarginMM); err == nil {
			margins = m
		} else {
			log.Warn("Invalid render margin, using defaults", zap.Int("margin_mm", cfg.Render.MarginMM), zap.Error(err))
		}
	}

	authService := clinicapp.NewAuthService(clinicStore, auth.NewJWTService(cfg.JWT), blacklist, log)
	settingsService := reportapp.NewSettingsService(settingsStore, log)
	reportStore := persistence.NewReportStore(store)
	reportService := reportapp.NewService(reportapp.Dependencies{
		Reports:   reportStore,
		Patients:  persistence.NewPatientStore(store),
		Settings:  settingsStore,
		Composer:  infraprinting.NewComposer(),
		Renderer:  renderer,
		Artifacts: artifacts,
		Locker:    locker,
		Metrics:   obs.reports,
	}, reportapp.Config{
		PaperSize: printing.ParsePaperSize(cfg.Render.PaperSize),
		Margins:   margins,
		LockTTL:   cfg.Render.LockTTL,
	}, log)

	jobs := scheduler.NewScheduler(scheduler.WithLocker(locker), scheduler.WithLogger(log))
	if cfg.Storage.SweepEnabled {
		sweeper := scheduler.NewArtifactSweeper(artifacts, reportStore, scheduler.SweeperConfig{
			GracePeriod: cfg.Storage.SweepGracePeriod,
			MaxDeletes:  cfg.Storage.SweepMaxDeletes,
		}, log)
		if err := jobs.Register(scheduler.JobConfig{
			Name:     scheduler.SweepJobName,
			Interval: cfg.Storage.SweepInterval,
		}, sweeper); err != nil {
			log.Fatal("Failed to schedule artifact sweep", zap.Error(err))
		}
	}
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	engine, stopLimiters := router.NewEngine(router.EngineConfig{
		HTTP: cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Profiling: middleware.ProfilingConfig{
			Enabled:   cfg.Telemetry.ProfilingEnabled,
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		},
		Meter:         obs.httpMeter(),
		Authenticator: authService,
		Handlers: router.Handlers{
			Auth:     handler.NewAuthHandler(authService),
			Settings: handler.NewSettingsHandler(settingsService),
			Reports:  handler.NewReportHandler(reportService),
			System:   handler.NewSystemHandler(db, version),
		},
		Logger: log,
	})
	defer stopLimiters()

	readTimeout, writeTimeout, idleTimeout := router.ServerTimeouts(cfg.HTTP)
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopSubscriber()
	if err := jobs.Stop(shutdownCtx); err != nil {
		log.Warn("Scheduler stop incomplete", zap.Error(err))
	}
	if err := obs.shutdown(shutdownCtx); err != nil {
		log.Warn("Telemetry shutdown incomplete", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newArtifactStore returns the configured PDF store. An S3 bucket is created
// on first start so a fresh MinIO works without manual setup.
func newArtifactStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (infraprinting.ArtifactStore, error) {
	if cfg.Storage.Driver == config.StorageS3 {
		s3Store, err := storage.NewS3ArtifactStore(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		log.Info("Storing reports in S3", zap.String("bucket", s3Store.Bucket()))
		return s3Store, nil
	}

	fsStore, err := infraprinting.NewFileSystemStorage(&infraprinting.FileSystemStorageConfig{
		BasePath: cfg.Storage.LocalPath,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	log.Info("Storing reports on disk", zap.String("path", cfg.Storage.LocalPath))
	return fsStore, nil
}

func dbSystem(driver string) string {
	switch driver {
	case config.DriverSQLite:
		return "sqlite"
	case config.DriverMongo:
		return "mongodb"
	default:
		return "postgresql"
	}
}
