// Package sender собирает воркер, который доставляет уведомления из очереди
// по почте и в Telegram.
package sender

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-panel/internal/config"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/vpn-panel/internal/services/sender"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

type App struct {
	db            *storage.Storage
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}

	var bot senderservice.Bot
	if cfg.BotToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			_ = db.Close()
			return nil, err
		}
		logger.Info("telegram delivery enabled", slog.String("bot", api.Self.UserName))
		bot = api
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.NewSenderService(db, transport, bot, logger)

	return &App{
		db:            db,
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.NotifyQueue, a.logger, a.senderService.HandleNotification)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.NotifyQueue), sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}

	return nil
}
