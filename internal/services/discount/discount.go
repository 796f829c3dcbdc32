package discount

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/metrics"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

// Repository методы хранилища для работы с промокодами.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetDiscount(ctx context.Context, id string) (*models.Discount, error)
	GetDiscountByCode(ctx context.Context, code string) (*models.Discount, error)
	ListDiscounts(ctx context.Context) ([]*models.Discount, error)
	ListUserDiscounts(ctx context.Context, userID string, role models.Role, now time.Time) ([]*models.Discount, error)
	CreateDiscount(ctx context.Context, d models.Discount) (string, error)
	UpdateDiscount(ctx context.Context, id string, patch models.DiscountPatch) (*models.Discount, error)
	DeleteDiscount(ctx context.Context, id string) error
	DiscountStats(ctx context.Context, now time.Time) (models.DiscountStats, error)
	RedeemDiscount(ctx context.Context, discountID string, adj *models.PriceAdjustment) (bool, error)
}

// Authorizer проверяет, что вызывающий является администратором.
type Authorizer interface {
	RequireAdmin(ctx context.Context, callerID string) (*models.User, error)
}

// Service бизнес-логика промокодов.
type Service struct {
	repo    Repository
	guard   Authorizer
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewService создаёт Service. m может быть nil.
func NewService(repo Repository, guard Authorizer, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		guard:   guard,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) caller(ctx context.Context, userID, failMsg string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		s.log.Error("failed to load user", slog.String("user_id", userID), sl.Err(err))
		return nil, apperr.Wrap(failMsg, err)
	}
	return user, nil
}

// GetUserDiscounts возвращает активные непросроченные промокоды, адресованные
// пользователю лично, его роли или всем.
func (s *Service) GetUserDiscounts(ctx context.Context, userID string) ([]*models.Discount, error) {
	user, err := s.caller(ctx, userID, "Failed to get discounts")
	if err != nil {
		return nil, err
	}

	discounts, err := s.repo.ListUserDiscounts(ctx, user.ID, user.Role, s.now())
	if err != nil {
		s.log.Error("failed to list user discounts", slog.String("user_id", userID), sl.Err(err))
		return nil, apperr.Wrap("Failed to get discounts", err)
	}
	return discounts, nil
}

// ApplyDiscountCode проверяет промокод, засчитывает использование и, если передан
// subscriptionID, пересчитывает цену подписки вызывающего вместе с платежом.
// Нарушение правил промокода возвращается как ApplyResult с Success=false.
func (s *Service) ApplyDiscountCode(ctx context.Context, userID string, req models.DummyApplyDiscount) (*models.ApplyResult, error) {
	log := s.log.With(slog.String("user_id", userID), slog.String("code", req.Code))

	user, err := s.caller(ctx, userID, "Failed to apply discount code")
	if err != nil {
		s.metrics.Redemption(metrics.RedeemFailed)
		return nil, err
	}

	d, err := s.repo.GetDiscountByCode(ctx, strings.TrimSpace(req.Code))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.reject(log, MsgInvalidCode), nil
		}
		log.Error("failed to get discount", sl.Err(err))
		s.metrics.Redemption(metrics.RedeemFailed)
		return nil, apperr.Wrap("Failed to apply discount code", err)
	}

	if msg := Check(d, user, s.now()); msg != "" {
		return s.reject(log, msg), nil
	}

	var adj *models.PriceAdjustment
	if req.SubscriptionID != nil && *req.SubscriptionID != "" {
		adj = &models.PriceAdjustment{
			SubscriptionID: *req.SubscriptionID,
			UserID:         user.ID,
			Percentage:     d.Percentage,
		}
	}

	adjusted, err := s.repo.RedeemDiscount(ctx, d.ID, adj)
	if err != nil {
		if errors.Is(err, storage.ErrUsageLimitReached) {
			return s.reject(log, MsgLimitReached), nil
		}
		log.Error("failed to redeem discount", sl.Err(err))
		s.metrics.Redemption(metrics.RedeemFailed)
		return nil, apperr.Wrap("Failed to apply discount code", err)
	}

	s.metrics.Redemption(metrics.RedeemApplied)
	log.Info("discount applied", slog.String("discount_id", d.ID), slog.Bool("price_adjusted", adjusted))
	return &models.ApplyResult{Success: true, Discount: d.Summary()}, nil
}

func (s *Service) reject(log *slog.Logger, msg string) *models.ApplyResult {
	s.metrics.Redemption(metrics.RedeemRejected)
	log.Info("discount rejected", slog.String("reason", msg))
	return &models.ApplyResult{Success: false, Message: msg}
}

var hundred = decimal.NewFromInt(100)

// SetDiscount создаёт промокод.
func (s *Service) SetDiscount(ctx context.Context, adminID string, req models.DummyDiscount) (*models.Discount, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, apperr.Validation("Discount code is required")
	}
	if req.Percentage.IsNegative() || req.Percentage.GreaterThan(hundred) {
		return nil, apperr.Validation("Discount percentage must be between 0 and 100")
	}
	userID := nonEmpty(req.UserID)
	var role *models.Role
	if r := nonEmpty(req.TargetRole); r != nil {
		v := models.Role(*r)
		if !v.Valid() {
			return nil, apperr.Validation("Invalid target role")
		}
		role = &v
	}
	if userID != nil && role != nil {
		return nil, apperr.Validation("Discount can target either a user or a role, not both")
	}

	id, err := s.repo.CreateDiscount(ctx, models.Discount{
		Code:          code,
		Percentage:    req.Percentage,
		IsGift:        req.IsGift,
		GiftDetails:   req.GiftDetails,
		UserID:        userID,
		TargetRole:    role,
		ExpiresAt:     req.ExpiresAt,
		IsActive:      true,
		MaxUsageCount: req.MaxUsageCount,
		Description:   req.Description,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, apperr.Integrity("Discount code already exists")
		}
		s.log.Error("failed to create discount", sl.Err(err))
		return nil, apperr.Wrap("Failed to set discount", err)
	}

	d, err := s.repo.GetDiscount(ctx, id)
	if err != nil {
		s.log.Error("failed to read created discount", slog.String("id", id), sl.Err(err))
		return nil, apperr.Wrap("Failed to set discount", err)
	}
	s.log.Info("discount created", slog.String("id", id), slog.String("admin_id", adminID))
	return d, nil
}

// UpdateDiscount частично обновляет промокод. Процент здесь не проверяется.
// Явный null в Nullable-полях очищает значение.
func (s *Service) UpdateDiscount(ctx context.Context, adminID, id string, patch models.DiscountPatch) (*models.Discount, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	if patch.Code != nil {
		code := strings.TrimSpace(*patch.Code)
		if code == "" {
			return nil, apperr.Validation("Discount code is required")
		}
		patch.Code = &code
	}
	if v := patch.MaxUsageCount.Value; v != nil && *v < 1 {
		return nil, apperr.Validation("Max usage count must be positive")
	}
	if err := s.resolveTarget(ctx, id, &patch); err != nil {
		return nil, err
	}

	d, err := s.repo.UpdateDiscount(ctx, id, patch)
	if err != nil {
		s.log.Error("failed to update discount", slog.String("id", id), sl.Err(err))
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Failed to update discount: Discount not found")
		}
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, apperr.Integrity("Discount code already exists")
		}
		return nil, apperr.WrapDetail("Failed to update discount", err)
	}
	return d, nil
}

// resolveTarget нормализует userId и targetRole в патче и проверяет,
// что после обновления у промокода останется не больше одной цели.
func (s *Service) resolveTarget(ctx context.Context, id string, patch *models.DiscountPatch) error {
	if !patch.UserID.Set && !patch.TargetRole.Set {
		return nil
	}
	if patch.UserID.Set {
		patch.UserID.Value = nonEmpty(patch.UserID.Value)
	}
	if patch.TargetRole.Set {
		patch.TargetRole.Value = nonEmpty(patch.TargetRole.Value)
		if r := patch.TargetRole.Value; r != nil && !models.Role(*r).Valid() {
			return apperr.Validation("Invalid target role")
		}
	}

	userID, role := patch.UserID.Value, patch.TargetRole.Value
	if !patch.UserID.Set || !patch.TargetRole.Set {
		cur, err := s.repo.GetDiscount(ctx, id)
		if err != nil {
			s.log.Error("failed to read discount", slog.String("id", id), sl.Err(err))
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound("Failed to update discount: Discount not found")
			}
			return apperr.WrapDetail("Failed to update discount", err)
		}
		if !patch.UserID.Set {
			userID = cur.UserID
		}
		if !patch.TargetRole.Set && cur.TargetRole != nil {
			r := string(*cur.TargetRole)
			role = &r
		}
	}
	if userID != nil && role != nil {
		return apperr.Validation("Discount can target either a user or a role, not both")
	}
	return nil
}

// DeleteDiscount удаляет промокод.
func (s *Service) DeleteDiscount(ctx context.Context, adminID, id string) error {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return err
	}

	if err := s.repo.DeleteDiscount(ctx, id); err != nil {
		s.log.Error("failed to delete discount", slog.String("id", id), sl.Err(err))
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("Failed to delete discount: Discount not found")
		}
		return apperr.WrapDetail("Failed to delete discount", err)
	}
	return nil
}

// ListDiscounts возвращает все промокоды, новые первыми.
func (s *Service) ListDiscounts(ctx context.Context, adminID string) ([]*models.Discount, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	discounts, err := s.repo.ListDiscounts(ctx)
	if err != nil {
		s.log.Error("failed to list discounts", sl.Err(err))
		return nil, apperr.Wrap("Failed to get discounts", err)
	}
	return discounts, nil
}

// DiscountStats сводка по всем промокодам.
func (s *Service) DiscountStats(ctx context.Context, adminID string) (models.DiscountStats, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return models.DiscountStats{}, err
	}

	stats, err := s.repo.DiscountStats(ctx, s.now())
	if err != nil {
		s.log.Error("failed to get discount stats", sl.Err(err))
		return models.DiscountStats{}, apperr.Wrap("Failed to get discount stats", err)
	}
	return stats, nil
}

// GeneratePromoCode генерирует случайный код. Уникальность не проверяется.
func (s *Service) GeneratePromoCode(ctx context.Context, adminID string, req models.DummyPromoCode) (string, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return "", err
	}

	code, err := GenerateCode(strings.ToUpper(req.Prefix), req.Length)
	if err != nil {
		s.log.Error("failed to generate promo code", sl.Err(err))
		return "", apperr.WrapDetail("Failed to generate promo code", err)
	}
	return code, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
