package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/period"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

const subscriptionColumns = `id, user_id, payment_id, plan_name, plan_duration, price, status,
	start_date, end_date, bandwidth, ip_address, created_at, updated_at`

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	var status string
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.PaymentID, &sub.PlanName, &sub.PlanDuration,
		&sub.Price, &status, &sub.StartDate, &sub.EndDate, &sub.Bandwidth, &sub.IPAddress,
		&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatus(status)
	return &sub, nil
}

func (s *Storage) listSubscriptions(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUserSubscriptions возвращает подписки пользователя, новые по дате окончания первыми.
func (s *Storage) ListUserSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error) {
	return s.listSubscriptions(ctx, "storage.ListUserSubscriptions",
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY end_date DESC`, userID)
}

// ListAllSubscriptions возвращает все подписки.
func (s *Storage) ListAllSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	return s.listSubscriptions(ctx, "storage.ListAllSubscriptions",
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY created_at DESC`)
}

// GetSubscription возвращает подписку по идентификатору.
func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// CreateSubscription добавляет подписку без платежа.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	const op = "storage.CreateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	id, err := insertSubscription(ctx, s.DB, sub)
	if err != nil {
		return "", mapErr(op, err)
	}
	return id, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertSubscription(ctx context.Context, q execQuerier, sub models.Subscription) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionPending
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, payment_id, plan_name, plan_duration, price, status,
			start_date, end_date, bandwidth, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.UserID, sub.PaymentID, sub.PlanName, sub.PlanDuration, sub.Price, sub.Status,
		sub.StartDate, sub.EndDate, sub.Bandwidth, sub.IPAddress)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

// ExtendSubscription сдвигает дату окончания на months календарных месяцев
// и активирует подписку. Возвращает обновлённую подписку.
func (s *Storage) ExtendSubscription(ctx context.Context, id string, months int) (*models.Subscription, error) {
	const op = "storage.ExtendSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var endDate time.Time
	if err := tx.QueryRowContext(ctx,
		`SELECT end_date FROM subscriptions WHERE id = $1 FOR UPDATE`, id).Scan(&endDate); err != nil {
		return nil, mapErr(op, err)
	}

	sub, err := scanSubscription(tx.QueryRowContext(ctx,
		`UPDATE subscriptions SET end_date = $2, status = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+subscriptionColumns,
		id, period.AddMonths(endDate, months), models.SubscriptionActive))
	if err != nil {
		return nil, mapErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// SubscriptionStats считает сводку по подпискам пользователя.
func (s *Storage) SubscriptionStats(ctx context.Context, userID string) (models.SubscriptionStats, error) {
	const op = "storage.SubscriptionStats"
	var stats models.SubscriptionStats
	if err := checkCtx(ctx, op); err != nil {
		return stats, err
	}

	err := s.DB.QueryRowContext(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'expired'),
			COALESCE(SUM(bandwidth), 0),
			COUNT(*)
		 FROM subscriptions WHERE user_id = $1`, userID).
		Scan(&stats.ActiveCount, &stats.ExpiredCount, &stats.TotalBandwidth, &stats.TotalSubscriptions)
	if err != nil {
		return stats, mapErr(op, err)
	}
	return stats, nil
}

// ExpireSubscriptions переводит активные подписки с end_date раньше now в expired.
func (s *Storage) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.ExpireSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND end_date < $3`,
		models.SubscriptionExpired, models.SubscriptionActive, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// ListSubscriptionsExpiringBetween возвращает активные подписки с end_date в (from, to].
func (s *Storage) ListSubscriptionsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	return s.listSubscriptions(ctx, "storage.ListSubscriptionsExpiringBetween",
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = $1 AND end_date > $2 AND end_date <= $3
		 ORDER BY end_date`, models.SubscriptionActive, from, to)
}
