package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/medimaging/backend/internal/infrastructure/logger"
	"github.com/medimaging/backend/internal/interfaces/http/handler"
	"github.com/medimaging/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers served by the engine
type Handlers struct {
	Auth     *handler.AuthHandler
	Settings *handler.SettingsHandler
	Reports  *handler.ReportHandler
	System   *handler.SystemHandler
}

// EngineConfig wires the engine's middleware and routes
type EngineConfig struct {
	HTTP          config.HTTPConfig
	Tracing       middleware.TracingConfig
	Profiling     middleware.ProfilingConfig
	// Meter receives HTTP server metrics; nil disables them
	Meter         metric.Meter
	Authenticator middleware.Authenticator
	Handlers      Handlers
	Logger        *zap.Logger
}

// NewEngine builds the gin engine with the full middleware stack and every
// route. The returned func stops the rate limiters' cleanup goroutines.
func NewEngine(cfg EngineConfig) (*gin.Engine, func()) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()
	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request id must exist before logging, and the
	// span enricher must run inside the otelgin span.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing), middleware.SpanEnricher())
	engine.Use(middleware.Profiling(cfg.Profiling))
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	var limiters []*middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		apiLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		limiters = append(limiters, apiLimiter)
		engine.Use(middleware.RateLimit(apiLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	h := cfg.Handlers
	engine.GET("/health", h.System.Health)

	jwt := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		Authenticator: cfg.Authenticator,
		Logger:        log,
	})

	// Account endpoints under /api
	accounts := NewDomainGroup("auth", "")
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		limiters = append(limiters, authLimiter)
		accounts.POST("/register", middleware.AuthRateLimit(authLimiter), h.Auth.Register)
		accounts.POST("/login", middleware.AuthRateLimit(authLimiter), h.Auth.Login)
	} else {
		accounts.POST("/register", h.Auth.Register)
		accounts.POST("/login", h.Auth.Login)
	}
	accounts.POST("/logout", jwt, h.Auth.Logout)
	NewRouter(engine, WithBasePath("/api")).Register(accounts).Setup()

	settings := NewDomainGroup("settings", "/settings").Use(jwt)
	settings.GET("", h.Settings.Get)
	settings.POST("", h.Settings.Update)

	reports := NewDomainGroup("reports", "").Use(jwt)
	reports.POST("/generate-pdf", h.Reports.GeneratePDF)
	reports.POST("/save-report", h.Reports.SaveReport)
	reports.GET("/reports", h.Reports.ListReports)
	reports.GET("/reports/:filename", h.Reports.DownloadPDF)
	reports.POST("/generate-from-saved/:id", h.Reports.GenerateFromSaved)
	reports.DELETE("/reports/:id", h.Reports.DeleteReport)
	reports.DELETE("/delete-report/:id", h.Reports.DeleteReport)

	NewRouter(engine).Register(settings).Register(reports).Setup()

	stop := func() {
		for _, l := range limiters {
			l.Stop()
		}
	}
	return engine, stop
}

// ServerTimeouts returns the http.Server timeouts with defaults applied
func ServerTimeouts(cfg config.HTTPConfig) (read, write, idle time.Duration) {
	read, write, idle = cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout
	if read <= 0 {
		read = 30 * time.Second
	}
	// PDF rendering can take most of a minute
	if write <= 0 {
		write = 120 * time.Second
	}
	if idle <= 0 {
		idle = 120 * time.Second
	}
	return read, write, idle
}
