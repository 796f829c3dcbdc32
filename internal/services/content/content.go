// Package content управляет предложениями, новостями и личными сообщениями пользователей.
package content

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

// Repository методы хранилища для контента.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListOffers(ctx context.Context, visibleAt *time.Time) ([]*models.Offer, error)
	CreateOffer(ctx context.Context, o models.Offer) (*models.Offer, error)
	UpdateOffer(ctx context.Context, o models.Offer) (*models.Offer, error)
	DeleteOffer(ctx context.Context, id string) error
	ListNews(ctx context.Context, onlyPublished bool) ([]*models.News, error)
	CreateNews(ctx context.Context, n models.News) (*models.News, error)
	DeleteNews(ctx context.Context, id string) error
	ListUserMessages(ctx context.Context, userID string) ([]*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	MarkMessageRead(ctx context.Context, id string) error
}

// Authorizer проверяет, что вызывающий является администратором.
type Authorizer interface {
	RequireAdmin(ctx context.Context, callerID string) (*models.User, error)
}

// Service бизнес-логика контента.
type Service struct {
	repo  Repository
	guard Authorizer
	log   *slog.Logger
	now   func() time.Time
}

// NewService создаёт Service.
func NewService(repo Repository, guard Authorizer, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		guard: guard,
		log:   log,
		now:   time.Now,
	}
}

// isAdmin молча возвращает false для анонимного или неизвестного пользователя.
func (s *Service) isAdmin(ctx context.Context, callerID string) bool {
	if callerID == "" {
		return false
	}
	user, err := s.repo.GetUser(ctx, callerID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("failed to check admin flag", slog.String("user_id", callerID), sl.Err(err))
		}
		return false
	}
	return user.IsAdmin
}

// ListOffers возвращает предложения. Скрытые и неактуальные видит только
// администратор, запросивший includeHidden.
func (s *Service) ListOffers(ctx context.Context, callerID string, includeHidden bool) ([]*models.Offer, error) {
	var visibleAt *time.Time
	if !includeHidden || !s.isAdmin(ctx, callerID) {
		now := s.now()
		visibleAt = &now
	}

	offers, err := s.repo.ListOffers(ctx, visibleAt)
	if err != nil {
		s.log.Error("failed to list offers", sl.Err(err))
		return nil, apperr.Wrap("Failed to get offers", err)
	}
	return offers, nil
}

func offerFromRequest(req models.DummyOffer) (models.Offer, error) {
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return models.Offer{}, apperr.Validation("Offer end date must not be before start date")
	}
	if req.Price.IsNegative() {
		return models.Offer{}, apperr.Validation("Price must not be negative")
	}
	visible := true
	if req.IsVisible != nil {
		visible = *req.IsVisible
	}
	return models.Offer{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		IsVisible:   visible,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}, nil
}

// CreateOffer добавляет предложение.
func (s *Service) CreateOffer(ctx context.Context, adminID string, req models.DummyOffer) (*models.Offer, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	o, err := offerFromRequest(req)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreateOffer(ctx, o)
	if err != nil {
		s.log.Error("failed to create offer", sl.Err(err))
		return nil, apperr.Wrap("Failed to create offer", err)
	}
	return created, nil
}

// UpdateOffer перезаписывает предложение.
func (s *Service) UpdateOffer(ctx context.Context, adminID, id string, req models.DummyOffer) (*models.Offer, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	o, err := offerFromRequest(req)
	if err != nil {
		return nil, err
	}
	o.ID = id
	updated, err := s.repo.UpdateOffer(ctx, o)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Offer not found")
		}
		s.log.Error("failed to update offer", slog.String("id", id), sl.Err(err))
		return nil, apperr.Wrap("Failed to update offer", err)
	}
	return updated, nil
}

// DeleteOffer удаляет предложение.
func (s *Service) DeleteOffer(ctx context.Context, adminID, id string) error {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return err
	}
	if err := s.repo.DeleteOffer(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("Offer not found")
		}
		s.log.Error("failed to delete offer", slog.String("id", id), sl.Err(err))
		return apperr.Wrap("Failed to delete offer", err)
	}
	return nil
}

// ListNews возвращает новости. Неопубликованные видит только администратор
// при onlyPublished=false.
func (s *Service) ListNews(ctx context.Context, callerID string, onlyPublished bool) ([]*models.News, error) {
	if !onlyPublished && !s.isAdmin(ctx, callerID) {
		onlyPublished = true
	}
	news, err := s.repo.ListNews(ctx, onlyPublished)
	if err != nil {
		s.log.Error("failed to list news", sl.Err(err))
		return nil, apperr.Wrap("Failed to get news", err)
	}
	return news, nil
}

// CreateNews публикует новость. По умолчанию новость опубликована сразу.
func (s *Service) CreateNews(ctx context.Context, adminID string, req models.DummyNews) (*models.News, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	published := true
	if req.IsPublished != nil {
		published = *req.IsPublished
	}
	news, err := s.repo.CreateNews(ctx, models.News{
		Title:       req.Title,
		Content:     req.Content,
		PublishDate: s.now(),
		IsPublished: published,
	})
	if err != nil {
		s.log.Error("failed to create news", sl.Err(err))
		return nil, apperr.Wrap("Failed to create news", err)
	}
	return news, nil
}

// DeleteNews удаляет новость.
func (s *Service) DeleteNews(ctx context.Context, adminID, id string) error {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return err
	}
	if err := s.repo.DeleteNews(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("News not found")
		}
		s.log.Error("failed to delete news", slog.String("id", id), sl.Err(err))
		return apperr.Wrap("Failed to delete news", err)
	}
	return nil
}

// ListMessages возвращает сообщения пользователя, новые первыми.
func (s *Service) ListMessages(ctx context.Context, userID string) ([]*models.Message, error) {
	msgs, err := s.repo.ListUserMessages(ctx, userID)
	if err != nil {
		s.log.Error("failed to list messages", slog.String("user_id", userID), sl.Err(err))
		return nil, apperr.Wrap("Failed to get messages", err)
	}
	return msgs, nil
}

// MarkMessageRead помечает сообщение прочитанным. Только для получателя.
func (s *Service) MarkMessageRead(ctx context.Context, userID, messageID string) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("Message not found")
		}
		s.log.Error("failed to get message", slog.String("id", messageID), sl.Err(err))
		return apperr.Wrap("Failed to mark message as read", err)
	}
	if msg.RecipientID != userID {
		return apperr.Unauthorized("Unauthorized: You can only mark your own messages as read")
	}
	if err := s.repo.MarkMessageRead(ctx, messageID); err != nil {
		s.log.Error("failed to mark message as read", slog.String("id", messageID), sl.Err(err))
		return apperr.Wrap("Failed to mark message as read", err)
	}
	return nil
}
