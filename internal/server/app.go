// Package server wires repositories, services and handlers into an HTTP application.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/config"
	"visit-tracker/internal/model"
	"visit-tracker/internal/notify"
	"visit-tracker/internal/ratelimit"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/service"
	"visit-tracker/internal/storage"
	"visit-tracker/internal/websocket"

	"gorm.io/gorm"
)

const notifyTimeout = 30 * time.Second

// Options override parts of the wiring, mainly for tests. Zero values build from config.
type Options struct {
	Store    storage.Store
	Sinks    []notify.Sink
	Limiters *Limiters
	Now      func() time.Time
}

// Limiters are the two rate-limited surfaces.
type Limiters struct {
	Submit ratelimit.Limiter
	Login  ratelimit.Limiter
}

// App is the assembled service.
type App struct {
	Handler    http.Handler
	Hub        *websocket.Hub
	Dispatcher *notify.Dispatcher
	Tokens     *auth.TokenManager

	closers []func() error
}

// New builds the application. The websocket hub runs until ctx is cancelled.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	app := &App{}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	app.Tokens = tokens

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Live feed
	app.Hub = websocket.NewHub(cfg.CORSOrigins)
	go app.Hub.Run(ctx)

	// Notifications
	sinks := opts.Sinks
	if sinks == nil {
		sinks = app.defaultSinks(cfg, userRepo)
	}
	app.Dispatcher = notify.NewDispatcher(log, notifyTimeout, sinks...)

	store := opts.Store
	if store == nil {
		var err error
		store, err = newStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	limiters := opts.Limiters
	if limiters == nil {
		var err error
		limiters, err = app.newLimiters(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	}

	// Services
	quotaService := service.NewQuotaService(quotaRepo, auditRepo, txManager)
	visitService := service.NewVisitService(service.VisitDeps{
		Visits:        visitRepo,
		Quotas:        quotaService,
		Audit:         auditRepo,
		Tx:            txManager,
		Store:         store,
		Notifier:      app.Dispatcher,
		Log:           log,
		Location:      cfg.Location(),
		PublicBaseURL: cfg.PublicBaseURL,
		Now:           opts.Now,
	})
	userService := service.NewUserService(userRepo, auditRepo, txManager, tokens)
	customerService := service.NewCustomerService(userRepo, locationRepo, quotaRepo, auditRepo, txManager, cfg.DefaultQuota)
	dashboardService := service.NewDashboardService(visitRepo, quotaService)
	auditService := service.NewAuditService(auditRepo, cfg.Location())

	app.Handler = NewRouter(RouterDeps{
		Config:    cfg,
		DB:        db,
		Log:       log,
		Tokens:    tokens,
		Hub:       app.Hub,
		Store:     store,
		Limiters:  *limiters,
		Visits:    visitService,
		Quotas:    quotaService,
		Users:     userService,
		Customers: customerService,
		Dashboard: dashboardService,
		Audit:     auditService,
	})
	return app, nil
}

func (a *App) defaultSinks(cfg *config.Config, users repository.UserRepository) []notify.Sink {
	sinks := []notify.Sink{notify.NewHubSink(a.Hub)}

	if cfg.SMTP.Host != "" {
		mailer := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		admins := func(ctx context.Context) ([]string, error) {
			return users.EmailsByRole(ctx, model.RoleAdmin)
		}
		sinks = append(sinks, notify.NewEmailSink(mailer, admins, cfg.FallbackAdmin, cfg.Location()))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink := notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, kafkaSink.Close)
		sinks = append(sinks, kafkaSink)
	}
	return sinks
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:  cfg.Storage.S3Endpoint,
			Region:    cfg.Storage.S3Region,
			Bucket:    cfg.Storage.S3Bucket,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			PublicURL: cfg.Storage.S3PublicURL,
		})
	default:
		return storage.NewLocalStore(cfg.Storage.LocalDir, uploadsPath)
	}
}

func (a *App) newLimiters(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Limiters, error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set; rate limits are per process")
		return &Limiters{
			Submit: ratelimit.NewMemoryLimiter(cfg.SubmitPerMinute, time.Minute),
			Login:  ratelimit.NewMemoryLimiter(cfg.LoginPerMinute, time.Minute),
		}, nil
	}
	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return &Limiters{
		Submit: ratelimit.NewRedisLimiter(client, "rl:submit", cfg.SubmitPerMinute, time.Minute),
		Login:  ratelimit.NewRedisLimiter(client, "rl:login", cfg.LoginPerMinute, time.Minute),
	}, nil
}

// Close drains pending notifications and releases external clients.
func (a *App) Close() error {
	a.Dispatcher.Close()
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
