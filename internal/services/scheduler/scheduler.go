// Package scheduler периодически закрывает истёкшие подписки и напоминает
// пользователям о скором окончании.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

// SubscriptionRepository методы хранилища, нужные планировщику.
type SubscriptionRepository interface {
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)
	ListSubscriptionsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error)
}

// Notifier ставит уведомление в очередь.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Interval период запуска. Окно напоминаний совпадает с ним, поэтому
// каждая подписка попадает в напоминание один раз.
const Interval = 24 * time.Hour

type SchedulerService struct {
	repo     SubscriptionRepository
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, notifier Notifier, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run выполняет проход сразу и затем каждые Interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce закрывает истёкшие подписки и рассылает напоминания тем,
// чья подписка закончится через сутки-двое.
func (s *SchedulerService) RunOnce(ctx context.Context) {
	now := s.now()

	expired, err := s.repo.ExpireSubscriptions(ctx, now)
	if err != nil {
		s.log.Error("failed to expire subscriptions", sl.Err(err))
	} else if expired > 0 {
		s.log.Info("subscriptions expired", slog.Int64("count", expired))
	}

	subs, err := s.repo.ListSubscriptionsExpiringBetween(ctx, now.Add(Interval), now.Add(2*Interval))
	if err != nil {
		s.log.Error("failed to find expiring subscriptions", sl.Err(err))
		return
	}
	if len(subs) == 0 {
		s.log.Info("no expiring subscriptions found")
		return
	}
	s.log.Info("found expiring subscriptions", slog.Int("count", len(subs)))

	for _, sub := range subs {
		n := models.Notification{
			RecipientUserID: sub.UserID,
			Subject:         "Your VPN subscription expires soon",
			BodyMarkdown: fmt.Sprintf("Your subscription **%s** expires on %s. Renew it to keep access.",
				sub.PlanName, sub.EndDate.Format("2006-01-02")),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Error("failed to publish reminder", slog.String("subscription_id", sub.ID), sl.Err(err))
		}
	}
}
