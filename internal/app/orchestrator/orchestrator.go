package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/squad-orchestrator/internal/cache"
	"github.com/magabrotheeeer/squad-orchestrator/internal/config"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/health"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/jwt"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/locker"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/metrics"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/migrations"
	"github.com/magabrotheeeer/squad-orchestrator/internal/rabbitmq"
	"github.com/magabrotheeeer/squad-orchestrator/internal/remnawave"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/auth"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/ledger"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/lifecycle"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/massaction"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/notifier"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/panelsync"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/promo"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/registry"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/users"
	"github.com/magabrotheeeer/squad-orchestrator/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App — HTTP-приложение оркестратора.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New поднимает зависимости и собирает сервисы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	authService := auth.NewAuthService(db, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), logger)
	if err = authService.EnsureAdmin(ctx, cfg.BootstrapAdmin.Username, cfg.BootstrapAdmin.Password); err != nil {
		logger.Error("failed to bootstrap admin", sl.Err(err))
	}

	panelClient := remnawave.NewClient(cfg.Remnawave, m, logger)
	notify := notifier.New(ch, logger)
	squadRegistry := registry.New(db, cacheRedis, m, logger)
	ledgerService := ledger.New(db, cfg.ReferralReward, m, logger)
	userService := users.New(db, logger)
	keys := lifecycle.New(lifecycle.Deps{
		Repo:     db,
		Registry: squadRegistry,
		Ledger:   ledgerService,
		Panel:    panelClient,
		Locker:   locker.New(cacheRedis.Db, cfg.LockTTL, logger),
		Cache:    cacheRedis,
		Notifier: notify,
		Pricing:  cfg.Pricing,
		Log:      logger,
	})

	svc := Services{
		Auth:       authService,
		Users:      userService,
		Keys:       keys,
		Registry:   squadRegistry,
		PanelSync:  panelsync.New(panelClient, squadRegistry, db, cacheRedis, logger),
		Ledger:     ledgerService,
		Promo:      promo.New(db, ledgerService, keys, logger),
		MassAction: massaction.New(db, keys, ledgerService, userService, notify, m, logger),
		Health: map[string]health.Check{
			"database": db.CheckDatabaseReady,
			"cache":    cacheRedis.Ping,
		},
		Gatherer: reg,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, svc, rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst))

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	if err != nil {
		return fmt.Errorf("orchestrator.Run: %w", err)
	}
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
