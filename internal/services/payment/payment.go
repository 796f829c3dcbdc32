// Package payment реализует ручную оплату подписок: создание платежа,
// подтверждение и отклонение администратором, выгрузку платежей.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/period"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/metrics"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

// Темы уведомлений.
const (
	SubjectNewPayment = "New VPN Subscription Payment"
	SubjectActivated  = "Your VPN Subscription is Active"
	SubjectRejected   = "Your VPN Payment Was Rejected"
)

const defaultRejectReason = "No reason provided"

// Repository методы хранилища для платежей.
type Repository interface {
	GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	ListAdmins(ctx context.Context) ([]*models.User, error)
	CreatePaymentWithSubscription(ctx context.Context, payment models.Payment, sub models.Subscription) (models.InitiatedPayment, error)
	ApprovePayment(ctx context.Context, paymentID, adminID string) (*models.Subscription, error)
	RejectPayment(ctx context.Context, paymentID, adminID string) (*models.Payment, *models.Subscription, error)
	ListUserPayments(ctx context.Context, userID string) ([]*models.PaymentWithSubscription, error)
	ListAllPayments(ctx context.Context) ([]*models.PaymentWithSubscription, error)
}

// Authorizer проверяет, что вызывающий является администратором.
type Authorizer interface {
	RequireAdmin(ctx context.Context, callerID string) (*models.User, error)
}

// Notifier ставит уведомление в очередь на отправку.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// PaymentService бизнес-логика платежей.
type PaymentService struct {
	repo     Repository
	guard    Authorizer
	notifier Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт PaymentService. m может быть nil.
func New(repo Repository, guard Authorizer, notifier Notifier, m *metrics.Metrics, log *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:     repo,
		guard:    guard,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// InitiatePayment создаёт платёж и ожидающую подписку по тарифу planID и
// уведомляет администраторов.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID string, req models.DummyInitiatePayment) (models.InitiatedPayment, error) {
	log := s.log.With(slog.String("user_id", userID), slog.String("plan_id", req.PlanID))

	plan, err := s.repo.GetPlan(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.InitiatedPayment{}, apperr.NotFound("Subscription plan not found")
		}
		log.Error("failed to get plan", sl.Err(err))
		return models.InitiatedPayment{}, apperr.Wrap("Failed to initiate payment", err)
	}

	start := s.now()
	duration := plan.Duration
	payment := models.Payment{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         plan.Price,
		Status:         models.PaymentPending,
		PaymentDetails: req.PaymentDetails,
	}
	sub := models.Subscription{
		ID:           uuid.NewString(),
		UserID:       userID,
		PlanName:     plan.Name,
		PlanDuration: &duration,
		Price:        plan.Price,
		Status:       models.SubscriptionPending,
		StartDate:    start,
		EndDate:      period.End(start, plan.Duration),
	}

	res, err := s.repo.CreatePaymentWithSubscription(ctx, payment, sub)
	if err != nil {
		log.Error("failed to create payment", sl.Err(err))
		return models.InitiatedPayment{}, apperr.Wrap("Failed to initiate payment", err)
	}
	s.metrics.Payment(metrics.PaymentInitiated)
	log.Info("payment initiated", slog.String("payment_id", res.PaymentID))

	s.notifyAdmins(ctx, userID, plan)
	return res, nil
}

func (s *PaymentService) notifyAdmins(ctx context.Context, userID string, plan *models.SubscriptionPlan) {
	admins, err := s.repo.ListAdmins(ctx)
	if err != nil {
		s.log.Warn("failed to list admins for notification", sl.Err(err))
		return
	}
	body := fmt.Sprintf("### New Payment Requires Approval\n\n"+
		"**User ID:** %s\n**Plan:** %s\n**Amount:** %s\n**Duration:** %s\n\n"+
		"Please review and approve this payment in the admin dashboard.",
		userID, plan.Name, plan.Price.StringFixed(2), plan.Duration)
	for _, admin := range admins {
		s.notify(ctx, admin.ID, SubjectNewPayment, body)
	}
}

func (s *PaymentService) notify(ctx context.Context, userID, subject, body string) {
	err := s.notifier.Notify(ctx, models.Notification{
		RecipientUserID: userID,
		Subject:         subject,
		BodyMarkdown:    body,
	})
	if err != nil {
		s.log.Warn("failed to send notification",
			slog.String("recipient", userID), slog.String("subject", subject), sl.Err(err))
	}
}

// ApprovePayment подтверждает платёж и активирует связанную подписку.
func (s *PaymentService) ApprovePayment(ctx context.Context, adminID, paymentID string) (*models.Subscription, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	log := s.log.With(slog.String("admin_id", adminID), slog.String("payment_id", paymentID))

	sub, err := s.repo.ApprovePayment(ctx, paymentID, adminID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperr.Wrap("Failed to approve payment", apperr.NotFound("Payment not found"))
		case errors.Is(err, storage.ErrNoSubscription):
			log.Error("payment without subscription", sl.Err(err))
			return nil, apperr.Wrap("Failed to approve payment",
				apperr.Integrity("No subscription found for this payment"))
		}
		log.Error("failed to approve payment", sl.Err(err))
		return nil, apperr.Wrap("Failed to approve payment", err)
	}
	s.metrics.Payment(metrics.PaymentApproved)
	log.Info("payment approved", slog.String("subscription_id", sub.ID))

	duration := ""
	if sub.PlanDuration != nil {
		duration = *sub.PlanDuration
	}
	s.notify(ctx, sub.UserID, SubjectActivated, fmt.Sprintf(
		"### Your VPN Subscription is Now Active!\n\n"+
			"**Plan:** %s\n**Duration:** %s\n**Valid Until:** %s\n\n"+
			"Thank you for your purchase. You can now access all VPN features.",
		sub.PlanName, duration, sub.EndDate.Format("02.01.2006")))
	return sub, nil
}

// RejectPayment отменяет платёж и приостанавливает подписку, если она есть.
func (s *PaymentService) RejectPayment(ctx context.Context, adminID, paymentID string, reason *string) error {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return err
	}
	log := s.log.With(slog.String("admin_id", adminID), slog.String("payment_id", paymentID))

	payment, _, err := s.repo.RejectPayment(ctx, paymentID, adminID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Wrap("Failed to reject payment", apperr.NotFound("Payment not found"))
		}
		log.Error("failed to reject payment", sl.Err(err))
		return apperr.Wrap("Failed to reject payment", err)
	}
	s.metrics.Payment(metrics.PaymentRejected)
	log.Info("payment rejected")

	text := defaultRejectReason
	if reason != nil && *reason != "" {
		text = *reason
	}
	s.notify(ctx, payment.UserID, SubjectRejected, fmt.Sprintf(
		"### Your VPN Payment Was Rejected\n\n"+
			"**Amount:** %s\n**Reason:** %s\n\n"+
			"Please contact support for more information or try again with a different payment method.",
		payment.Amount.StringFixed(2), text))
	return nil
}

// ListUserPayments возвращает платежи пользователя, новые первыми.
func (s *PaymentService) ListUserPayments(ctx context.Context, userID string) ([]*models.PaymentWithSubscription, error) {
	payments, err := s.repo.ListUserPayments(ctx, userID)
	if err != nil {
		s.log.Error("failed to list user payments", slog.String("user_id", userID), sl.Err(err))
		return nil, apperr.Wrap("Failed to get payments", err)
	}
	return payments, nil
}

// ListAllPayments возвращает все платежи.
func (s *PaymentService) ListAllPayments(ctx context.Context, adminID string) ([]*models.PaymentWithSubscription, error) {
	if _, err := s.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListAllPayments(ctx)
	if err != nil {
		s.log.Error("failed to list payments", sl.Err(err))
		return nil, apperr.Wrap("Failed to get payments", err)
	}
	return payments, nil
}
