package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinichub/clinichub/internal/config"
	"github.com/clinichub/clinichub/internal/domain/account"
	"github.com/clinichub/clinichub/internal/domain/audit"
	"github.com/clinichub/clinichub/internal/domain/catalog"
	"github.com/clinichub/clinichub/internal/domain/clinic"
	"github.com/clinichub/clinichub/internal/domain/identity"
	"github.com/clinichub/clinichub/internal/domain/inbox"
	"github.com/clinichub/clinichub/internal/domain/lookup"
	"github.com/clinichub/clinichub/internal/domain/servicerequest"
	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/auth"
	"github.com/clinichub/clinichub/internal/platform/db"
	"github.com/clinichub/clinichub/internal/platform/middleware"
	"github.com/clinichub/clinichub/internal/platform/notification"
	"github.com/clinichub/clinichub/internal/platform/otp"
)

// app holds the domain services built from one configuration.
type app struct {
	catalog  *catalog.Service
	clinic   *clinic.Service
	identity *identity.Service
	inbox    *inbox.Service
	lookup   *lookup.Service
	requests *servicerequest.Service
	audit    *audit.Service
	account  *account.Service
	issuer   *auth.TokenIssuer
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *app {
	return newAppWithStore(cfg, pool, otp.NewMemoryStore(), logger)
}

func newAppWithStore(cfg *config.Config, pool *pgxpool.Pool, store otp.Store, logger zerolog.Logger) *app {
	tx := db.NewTransactor(pool)
	templates := notification.NewTemplateEngine()
	email, sms := newSenders(cfg, logger)
	dispatcher := notification.NewDispatcher(email, sms, templates, logger)

	catalogSvc := catalog.NewService(
		catalog.NewSpecialtyRepoPG(pool),
		catalog.NewCategoryRepoPG(pool),
		catalog.NewServiceRepoPG(pool),
		catalog.NewInsuranceRepoPG(pool),
	)
	clinicSvc := clinic.NewService(clinic.NewClinicRepoPG(pool), catalogSvc, tx)
	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewPatientRepoPG(pool),
		identity.NewProviderRepoPG(pool),
		catalogSvc, clinicSvc, tx,
	)
	inboxSvc := inbox.NewService(inbox.NewRepoPG(pool), templates)
	requestSvc := servicerequest.NewService(servicerequest.Deps{
		Repo:      servicerequest.NewRepoPG(pool),
		Patients:  identitySvc,
		Providers: identitySvc,
		Clinics:   clinicSvc,
		Catalog:   catalogSvc,
		Notifier:  inboxSvc,
		Deliverer: dispatcher,
		Tx:        tx,
		Logger:    logger,
	})

	codes := otp.NewManager(store, dispatcher, otp.Config{
		Length:      cfg.OTPLength,
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	}, logger)
	issuer := auth.NewTokenIssuer(cfg.SigningSecret(), cfg.JWTIssuer, cfg.JWTTTL)

	return &app{
		catalog:  catalogSvc,
		clinic:   clinicSvc,
		identity: identitySvc,
		inbox:    inboxSvc,
		lookup:   lookup.NewService(lookup.NewRepoPG(pool), logger),
		requests: requestSvc,
		audit:    audit.NewService(audit.NewRepoPG(pool)),
		account:  account.NewService(identitySvc, codes, issuer, logger),
		issuer:   issuer,
	}
}

// newSenders picks the outbound channels. Unconfigured channels log the
// message instead of sending it.
func newSenders(cfg *config.Config, logger zerolog.Logger) (notification.EmailSender, notification.SMSSender) {
	var email notification.EmailSender = notification.NewLogSender(logger)
	var sms notification.SMSSender = notification.NewLogSender(logger)
	if cfg.SMTPHost != "" {
		email = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	if cfg.SMSGatewayURL != "" {
		sms = notification.NewSMSGateway(notification.SMSGatewayConfig{
			BaseURL: cfg.SMSGatewayURL,
			APIKey:  cfg.SMSGatewayAPIKey,
			Sender:  cfg.SMSSender,
		})
	}
	return email, sms
}

// newOTPStore uses Redis when REDIS_URL is set so codes survive restarts and
// are shared between replicas.
func newOTPStore(cfg *config.Config) (otp.Store, func(), error) {
	if cfg.RedisURL == "" {
		return otp.NewMemoryStore(), func() {}, nil
	}
	client, err := otp.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return otp.NewRedisStore(client, "clinichub:otp:"), func() { _ = client.Close() }, nil
}

func newServer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, a *app, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	var report apperr.Reporter
	if cfg.SentryDSN != "" {
		report = middleware.SentryReporter
	}
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger, report)

	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(middleware.RateLimit(ctx, rl))
	if cfg.AuthRateLimitRPS > 0 {
		e.Use(middleware.RateLimit(ctx, middleware.AuthRateLimitConfig(cfg.AuthRateLimitRPS)))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, logger))

	jwtCfg := a.issuer.Config(auth.AuthSkipper)
	api := e.Group("/api")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		api.Use(auth.JWTMiddleware(jwtCfg))
	}
	// Audit runs inside the session so the entry is written to the tenant
	// schema on the request connection.
	api.Use(db.SessionMiddleware(pool, cfg.DefaultTenant))
	api.Use(middleware.Audit(logger, a.audit))

	account.NewHandler(a.account).RegisterRoutes(api)
	lookup.NewHandler(a.lookup).RegisterRoutes(api)
	catalog.NewHandler(a.catalog).RegisterRoutes(api)
	clinic.NewHandler(a.clinic).RegisterRoutes(api)
	identity.NewHandler(a.identity).RegisterRoutes(api)
	servicerequest.NewHandler(a.requests).RegisterRoutes(api)
	inbox.NewHandler(a.inbox).RegisterRoutes(api)
	audit.NewHandler(a.audit).RegisterRoutes(api)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, closeStore, err := newOTPStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	a := newAppWithStore(cfg, pool, store, logger)
	if err := seedLookups(ctx, pool, cfg.DefaultTenant, a.lookup); err != nil {
		// Startup continues; lookups are served from the in-process
		// catalog until the table is seeded.
		logger.Warn().Err(err).Msg("lookup seed failed")
	}

	e := newServer(ctx, cfg, pool, a, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func seedLookups(ctx context.Context, pool *pgxpool.Pool, tenant string, svc *lookup.Service) error {
	ctx, release, err := db.AcquireTenant(ctx, pool, tenant)
	if err != nil {
		return err
	}
	defer release()
	_, err = svc.Seed(ctx)
	return err
}
