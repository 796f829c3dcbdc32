package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

// Repository методы хранилища, нужные админ-панели.
type Repository interface {
	UserGetter
	EnsureUser(ctx context.Context, id string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]*models.UserWithCounts, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	ListNewsletterRecipients(ctx context.Context, role *models.Role) ([]*models.User, error)
	CreateMessages(ctx context.Context, msgs []models.Message) (int, error)
}

// Notifier ставит уведомление в очередь на отправку.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Authorizer проверяет, что вызывающий является администратором.
type Authorizer interface {
	RequireAdmin(ctx context.Context, callerID string) (*models.User, error)
}

// Service операции над пользователями.
type Service struct {
	repo     Repository
	guard    Authorizer
	notifier Notifier
	log      *slog.Logger
}

// NewService создаёт Service.
func NewService(repo Repository, guard Authorizer, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		guard:    guard,
		notifier: notifier,
		log:      log,
	}
}

// CurrentUser возвращает пользователя, создавая запись при первом обращении.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.EnsureUser(ctx, userID)
	if err != nil {
		s.log.Error("failed to get current user", slog.String("user_id", userID), sl.Err(err))
		return nil, apperr.Wrap("Failed to get user", err)
	}
	return user, nil
}

// GetUserByTelegramID ищет пользователя по привязанному Telegram-аккаунту.
func (s *Service) GetUserByTelegramID(ctx context.Context, adminID, telegramID string) (*models.User, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		s.log.Error("failed to get user by telegram id", sl.Err(err))
		return nil, apperr.Wrap("Failed to get user", err)
	}
	return user, nil
}

// ListUsers возвращает пользователей, опционально только с заданной ролью.
func (s *Service) ListUsers(ctx context.Context, adminID string, role *models.Role) ([]*models.UserWithCounts, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx, models.UserFilter{Role: role})
	if err != nil {
		s.log.Error("failed to list users", sl.Err(err))
		return nil, apperr.Wrap("Failed to get users", err)
	}
	return users, nil
}

// SendAdminMessage создаёт личные сообщения всем пользователям роли или
// перечисленным получателям. Возвращает число созданных сообщений.
func (s *Service) SendAdminMessage(ctx context.Context, adminID string, req models.DummyAdminMessage) (int, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return 0, err
	}

	var (
		recipients []string
		targetRole *models.Role
	)
	switch {
	case req.TargetRole != nil && *req.TargetRole != "":
		role := models.Role(*req.TargetRole)
		if _, ok := models.MessageTargetRoles[role]; !ok {
			return 0, apperr.Validation("Can only send role-based messages to VIP and tester users")
		}
		users, err := s.repo.ListUsersByRole(ctx, role)
		if err != nil {
			s.log.Error("failed to list users by role", slog.String("role", string(role)), sl.Err(err))
			return 0, apperr.Wrap("Failed to send admin message", err)
		}
		for _, u := range users {
			recipients = append(recipients, u.ID)
		}
		targetRole = &role
	case len(req.RecipientIDs) > 0:
		recipients = req.RecipientIDs
	default:
		return 0, apperr.Validation("Either targetRole or recipientIds must be provided")
	}

	now := time.Now()
	msgs := make([]models.Message, 0, len(recipients))
	for _, id := range recipients {
		msgs = append(msgs, models.Message{
			ID:          uuid.NewString(),
			Content:     req.Content,
			TargetRole:  targetRole,
			SenderID:    adminID,
			RecipientID: id,
			CreatedAt:   now,
		})
	}

	count, err := s.repo.CreateMessages(ctx, msgs)
	if err != nil {
		s.log.Error("failed to create messages", sl.Err(err))
		return 0, apperr.Wrap("Failed to send admin message", err)
	}
	s.log.Info("admin message sent", slog.String("admin_id", adminID), slog.Int("count", count))
	return count, nil
}

// SendNewsletter рассылает письмо подписанным на рассылку пользователям с e-mail.
// Ошибка доставки одному получателю не прерывает рассылку.
func (s *Service) SendNewsletter(ctx context.Context, adminID string, req models.DummyNewsletter) (*models.NewsletterResult, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var role *models.Role
	if req.TargetRole != nil && *req.TargetRole != "" {
		r := models.Role(*req.TargetRole)
		if !r.Valid() {
			return nil, apperr.Validation("Invalid target role")
		}
		role = &r
	}

	users, err := s.repo.ListNewsletterRecipients(ctx, role)
	if err != nil {
		s.log.Error("failed to list newsletter recipients", sl.Err(err))
		return nil, apperr.Wrap("Failed to send newsletter", err)
	}

	total, sent := 0, 0
	for _, u := range users {
		if u.Email == nil || *u.Email == "" {
			continue
		}
		total++
		err := s.notifier.Notify(ctx, models.Notification{
			RecipientUserID: u.ID,
			Subject:         req.Subject,
			BodyMarkdown:    req.Content,
		})
		if err != nil {
			s.log.Warn("failed to send newsletter", slog.String("user_id", u.ID), sl.Err(err))
			continue
		}
		sent++
	}

	return &models.NewsletterResult{
		Success:    true,
		SentCount:  sent,
		TotalCount: total,
		Message:    fmt.Sprintf("Newsletter sent to %d of %d users", sent, total),
	}, nil
}
