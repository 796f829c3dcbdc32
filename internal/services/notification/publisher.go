// Package notification ставит уведомления пользователям в очередь RabbitMQ.
// Доставкой занимается отдельный процесс notification-sender.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-panel/internal/metrics"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

// Publisher публикует уведомления в обменник notifications.
type Publisher struct {
	ch      rabbitmq.Channel
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewPublisher создаёт Publisher. m может быть nil.
func NewPublisher(ch rabbitmq.Channel, m *metrics.Metrics, log *slog.Logger) *Publisher {
	return &Publisher{ch: ch, metrics: m, log: log}
}

// Notify публикует уведомление.
func (p *Publisher) Notify(ctx context.Context, n models.Notification) error {
	const op = "notification.Notify"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if n.RecipientUserID == "" {
		return fmt.Errorf("%s: empty recipient", op)
	}
	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.NotificationsExchange, rabbitmq.NotifyRoutingKey, n); err != nil {
		p.metrics.NotificationFailed()
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Debug("notification queued", slog.String("recipient", n.RecipientUserID), slog.String("subject", n.Subject))
	return nil
}
