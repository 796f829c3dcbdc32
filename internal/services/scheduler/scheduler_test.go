package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ListSubscriptionsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSchedulerService_RunOnce(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	from, to := now.Add(24*time.Hour), now.Add(48*time.Hour)
	sub := &models.Subscription{
		ID:       "sub-1",
		UserID:   "user-1",
		PlanName: "Basic Monthly",
		EndDate:  now.Add(30 * time.Hour),
	}

	tests := []struct {
		name  string
		setup func(repo *MockRepository, n *MockNotifier)
	}{
		{
			name: "напоминание отправлено",
			setup: func(repo *MockRepository, n *MockNotifier) {
				repo.On("ExpireSubscriptions", mock.Anything, now).Return(int64(2), nil)
				repo.On("ListSubscriptionsExpiringBetween", mock.Anything, from, to).
					Return([]*models.Subscription{sub}, nil)
				n.On("Notify", mock.Anything, mock.MatchedBy(func(msg models.Notification) bool {
					return msg.RecipientUserID == "user-1" &&
						msg.Subject == "Your VPN subscription expires soon" &&
						msg.BodyMarkdown == "Your subscription **Basic Monthly** expires on 2025-03-11. Renew it to keep access."
				})).Return(nil)
			},
		},
		{
			name: "ошибка закрытия не мешает напоминаниям",
			setup: func(repo *MockRepository, n *MockNotifier) {
				repo.On("ExpireSubscriptions", mock.Anything, now).Return(int64(0), errors.New("db down"))
				repo.On("ListSubscriptionsExpiringBetween", mock.Anything, from, to).
					Return([]*models.Subscription{sub}, nil)
				n.On("Notify", mock.Anything, mock.Anything).Return(nil)
			},
		},
		{
			name: "ошибка публикации проглатывается",
			setup: func(repo *MockRepository, n *MockNotifier) {
				repo.On("ExpireSubscriptions", mock.Anything, now).Return(int64(0), nil)
				repo.On("ListSubscriptionsExpiringBetween", mock.Anything, from, to).
					Return([]*models.Subscription{sub, sub}, nil)
				n.On("Notify", mock.Anything, mock.Anything).Return(errors.New("broker down")).Twice()
			},
		},
		{
			name: "нет истекающих подписок",
			setup: func(repo *MockRepository, _ *MockNotifier) {
				repo.On("ExpireSubscriptions", mock.Anything, now).Return(int64(0), nil)
				repo.On("ListSubscriptionsExpiringBetween", mock.Anything, from, to).Return(nil, nil)
			},
		},
		{
			name: "ошибка поиска",
			setup: func(repo *MockRepository, _ *MockNotifier) {
				repo.On("ExpireSubscriptions", mock.Anything, now).Return(int64(0), nil)
				repo.On("ListSubscriptionsExpiringBetween", mock.Anything, from, to).Return(nil, errors.New("db down"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			notifier := new(MockNotifier)
			tt.setup(repo, notifier)

			s := NewSchedulerService(repo, notifier, newNoopLogger())
			s.now = func() time.Time { return now }
			s.RunOnce(context.Background())

			repo.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestSchedulerService_RunStopsOnCancel(t *testing.T) {
	started := make(chan struct{})
	repo := new(MockRepository)
	repo.On("ExpireSubscriptions", mock.Anything, mock.Anything).Return(int64(0), nil)
	repo.On("ListSubscriptionsExpiringBetween", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(started) }).
		Return(nil, nil).Once()

	s := NewSchedulerService(repo, new(MockNotifier), newNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not start")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
