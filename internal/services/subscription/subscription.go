// Package subscription содержит бизнес-логику подписок и тарифов с кешированием каталога.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/period"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

const (
	plansCacheKey = "plans:all"
	plansCacheTTL = time.Hour
)

// SubscriptionRepository определяет методы для работы с подписками и тарифами в хранилище.
type SubscriptionRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ListUserSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error)
	ListAllSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (string, error)
	ExtendSubscription(ctx context.Context, id string, months int) (*models.Subscription, error)
	SubscriptionStats(ctx context.Context, userID string) (models.SubscriptionStats, error)
	ListPlans(ctx context.Context) ([]*models.SubscriptionPlan, error)
	GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	CreatePlan(ctx context.Context, plan models.SubscriptionPlan) (string, error)
}

// Cache описывает методы для кеширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значения из кеша по ключам.
	Invalidate(ctx context.Context, keys ...string) error
}

// Authorizer проверяет, что вызывающий является администратором.
type Authorizer interface {
	RequireAdmin(ctx context.Context, callerID string) (*models.User, error)
}

// SubscriptionService реализует бизнес-логику работы с подписками.
type SubscriptionService struct {
	repo  SubscriptionRepository
	cache Cache
	guard Authorizer
	log   *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, guard Authorizer, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:  repo,
		cache: cache,
		guard: guard,
		log:   log,
	}
}

// ListUserSubscriptions возвращает подписки пользователя.
func (s *SubscriptionService) ListUserSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error) {
	subs, err := s.repo.ListUserSubscriptions(ctx, userID)
	if err != nil {
		s.log.Error("failed to list subscriptions", slog.String("user_id", userID), sl.Err(err))
		return nil, apperr.Wrap("Failed to get subscriptions", err)
	}
	return subs, nil
}

// SubscriptionStats сводка по подпискам пользователя.
func (s *SubscriptionService) SubscriptionStats(ctx context.Context, userID string) (models.SubscriptionStats, error) {
	stats, err := s.repo.SubscriptionStats(ctx, userID)
	if err != nil {
		s.log.Error("failed to get subscription stats", slog.String("user_id", userID), sl.Err(err))
		return models.SubscriptionStats{}, apperr.Wrap("Failed to get subscription stats", err)
	}
	return stats, nil
}

// ExtendSubscription продлевает подписку на months месяцев. Доступно только
// администратору: владелец продлевает подписку через оплату.
func (s *SubscriptionService) ExtendSubscription(ctx context.Context, callerID, subscriptionID string, months int) (*models.Subscription, error) {
	if months < 1 {
		return nil, apperr.Validation("Months must be a positive number")
	}

	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Subscription not found")
		}
		s.log.Error("failed to get subscription", slog.String("id", subscriptionID), sl.Err(err))
		return nil, apperr.Wrap("Failed to extend subscription", err)
	}

	isAdmin := false
	caller, err := s.repo.GetUser(ctx, callerID)
	switch {
	case err == nil:
		isAdmin = caller.IsAdmin
	case !errors.Is(err, storage.ErrNotFound):
		s.log.Error("failed to get caller", slog.String("user_id", callerID), sl.Err(err))
		return nil, apperr.Wrap("Failed to extend subscription", err)
	}

	if sub.UserID != callerID && !isAdmin {
		return nil, apperr.Unauthorized("Unauthorized: You cannot extend this subscription")
	}
	if !isAdmin {
		return nil, apperr.Unauthorized("Please use the payment system to extend your subscription")
	}

	extended, err := s.repo.ExtendSubscription(ctx, subscriptionID, months)
	if err != nil {
		s.log.Error("failed to extend subscription", slog.String("id", subscriptionID), sl.Err(err))
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Subscription not found")
		}
		return nil, apperr.Wrap("Failed to extend subscription", err)
	}
	s.log.Info("subscription extended",
		slog.String("id", subscriptionID), slog.String("admin_id", callerID), slog.Int("months", months))
	return extended, nil
}

// AddSubscription вручную выдаёт подписку пользователю.
func (s *SubscriptionService) AddSubscription(ctx context.Context, adminID string, req models.DummySubscription) (*models.Subscription, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, apperr.Validation("End date must be after start date")
	}
	if req.Price.IsNegative() {
		return nil, apperr.Validation("Price must not be negative")
	}

	status := models.SubscriptionActive
	if req.Status != "" {
		status = models.SubscriptionStatus(req.Status)
	}
	id, err := s.repo.CreateSubscription(ctx, models.Subscription{
		UserID:    req.UserID,
		PlanName:  req.PlanName,
		Price:     req.Price,
		Status:    status,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		s.log.Error("failed to add subscription", slog.String("user_id", req.UserID), sl.Err(err))
		return nil, apperr.Wrap("Failed to add subscription", err)
	}

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("Failed to add subscription", err)
	}
	return sub, nil
}

// ListAllSubscriptions возвращает все подписки.
func (s *SubscriptionService) ListAllSubscriptions(ctx context.Context, adminID string) ([]*models.Subscription, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	subs, err := s.repo.ListAllSubscriptions(ctx)
	if err != nil {
		s.log.Error("failed to list all subscriptions", sl.Err(err))
		return nil, apperr.Wrap("Failed to get subscriptions", err)
	}
	return subs, nil
}

// ListPlans возвращает тарифы, используя кеш.
func (s *SubscriptionService) ListPlans(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	var cached []*models.SubscriptionPlan
	found, err := s.cache.Get(ctx, plansCacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read plans from cache", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		s.log.Error("failed to list plans", sl.Err(err))
		return nil, apperr.Wrap("Failed to get subscription plans", err)
	}
	if err := s.cache.Set(ctx, plansCacheKey, plans, plansCacheTTL); err != nil {
		s.log.Warn("failed to cache plans", slog.String("key", plansCacheKey), sl.Err(err))
	}
	return plans, nil
}

// CreatePlan добавляет тариф и сбрасывает кеш каталога.
func (s *SubscriptionService) CreatePlan(ctx context.Context, adminID string, req models.DummyPlan) (*models.SubscriptionPlan, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if !period.Valid(req.Duration) {
		return nil, apperr.Validation("Invalid plan duration")
	}
	if req.Price.IsNegative() {
		return nil, apperr.Validation("Price must not be negative")
	}

	id, err := s.repo.CreatePlan(ctx, models.SubscriptionPlan{
		Name:        req.Name,
		Duration:    req.Duration,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		s.log.Error("failed to create plan", sl.Err(err))
		return nil, apperr.Wrap("Failed to create subscription plan", err)
	}
	if err := s.cache.Invalidate(ctx, plansCacheKey); err != nil {
		s.log.Warn("failed to invalidate plans cache", sl.Err(err))
	}

	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("Failed to create subscription plan", err)
	}
	return plan, nil
}
