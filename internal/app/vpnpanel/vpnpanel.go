// Package vpnpanel собирает HTTP-приложение панели: хранилище, кеш,
// брокер уведомлений, сервисы и маршруты.
package vpnpanel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-panel/internal/cache"
	"github.com/magabrotheeeer/vpn-panel/internal/config"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/jwt"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/metrics"
	"github.com/magabrotheeeer/vpn-panel/internal/migrations"
	adminservice "github.com/magabrotheeeer/vpn-panel/internal/services/admin"
	contentservice "github.com/magabrotheeeer/vpn-panel/internal/services/content"
	discountservice "github.com/magabrotheeeer/vpn-panel/internal/services/discount"
	"github.com/magabrotheeeer/vpn-panel/internal/services/notification"
	paymentservice "github.com/magabrotheeeer/vpn-panel/internal/services/payment"
	subservice "github.com/magabrotheeeer/vpn-panel/internal/services/subscription"
	telegramservice "github.com/magabrotheeeer/vpn-panel/internal/services/telegram"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
	"github.com/magabrotheeeer/vpn-panel/internal/xray"
)

// App HTTP-сервер панели и его ресурсы.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
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

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
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

	m := metrics.New(prometheus.DefaultRegisterer)
	publisher := notification.NewPublisher(ch, m, logger)
	guard := adminservice.NewGuard(db, logger)

	services := Services{
		Admin:        adminservice.NewService(db, guard, publisher, logger),
		Discount:     discountservice.NewService(db, guard, m, logger),
		Payment:      paymentservice.New(db, guard, publisher, m, logger),
		Subscription: subservice.NewSubscriptionService(db, cacheRedis, guard, logger),
		Content:      contentservice.NewService(db, guard, logger),
		Telegram:     telegramservice.NewService(db, logger),
		Xray:         xray.NewProxy(xray.NewClient(cfg.Xray), guard, logger),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, RouteConfig{
		Tokens:        jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		DB:            db.DB,
		DiscountRPS:   cfg.DiscountRPS,
		DiscountBurst: cfg.DiscountBurst,
	}, services)

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

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
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
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
