package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/pricing"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

const discountColumns = `id, code, percentage, is_gift, gift_details, user_id, target_role, expires_at,
	is_active, usage_count, max_usage_count, description, created_at, updated_at`

func scanDiscount(row rowScanner) (*models.Discount, error) {
	var d models.Discount
	var role sql.NullString
	if err := row.Scan(&d.ID, &d.Code, &d.Percentage, &d.IsGift, &d.GiftDetails, &d.UserID, &role,
		&d.ExpiresAt, &d.IsActive, &d.UsageCount, &d.MaxUsageCount, &d.Description,
		&d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.TargetRole = roleFromNull(role)
	return &d, nil
}

func (s *Storage) listDiscounts(ctx context.Context, op, query string, args ...any) ([]*models.Discount, error) {
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

	var result []*models.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetDiscountByCode возвращает промокод по коду.
func (s *Storage) GetDiscountByCode(ctx context.Context, code string) (*models.Discount, error) {
	const op = "storage.GetDiscountByCode"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	d, err := scanDiscount(s.DB.QueryRowContext(ctx, `SELECT `+discountColumns+` FROM discounts WHERE code = $1`, code))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return d, nil
}

// GetDiscount возвращает промокод по идентификатору.
func (s *Storage) GetDiscount(ctx context.Context, id string) (*models.Discount, error) {
	const op = "storage.GetDiscount"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	d, err := scanDiscount(s.DB.QueryRowContext(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return d, nil
}

// ListDiscounts возвращает все промокоды, новые первыми.
func (s *Storage) ListDiscounts(ctx context.Context) ([]*models.Discount, error) {
	return s.listDiscounts(ctx, "storage.ListDiscounts",
		`SELECT `+discountColumns+` FROM discounts ORDER BY created_at DESC`)
}

// ListUserDiscounts возвращает активные и не истёкшие промокоды, адресованные
// пользователю, его роли или всем.
func (s *Storage) ListUserDiscounts(ctx context.Context, userID string, role models.Role, now time.Time) ([]*models.Discount, error) {
	return s.listDiscounts(ctx, "storage.ListUserDiscounts",
		`SELECT `+discountColumns+` FROM discounts
		 WHERE is_active = TRUE
		   AND (user_id = $1 OR target_role = $2 OR (user_id IS NULL AND target_role IS NULL))
		   AND (expires_at IS NULL OR expires_at > $3)
		 ORDER BY created_at DESC`,
		userID, role, now)
}

// CreateDiscount добавляет промокод и возвращает его идентификатор.
func (s *Storage) CreateDiscount(ctx context.Context, d models.Discount) (string, error) {
	const op = "storage.CreateDiscount"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO discounts (id, code, percentage, is_gift, gift_details, user_id, target_role,
			expires_at, is_active, max_usage_count, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.Code, d.Percentage, d.IsGift, d.GiftDetails, d.UserID, roleToNull(d.TargetRole),
		d.ExpiresAt, d.IsActive, d.MaxUsageCount, d.Description)
	if err != nil {
		return "", mapErr(op, err)
	}
	return d.ID, nil
}

// UpdateDiscount применяет частичное обновление и возвращает промокод.
// Поля Nullable с Set=true записываются как есть, в том числе NULL.
func (s *Storage) UpdateDiscount(ctx context.Context, id string, patch models.DiscountPatch) (*models.Discount, error) {
	const op = "storage.UpdateDiscount"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Code != nil {
		set("code", *patch.Code)
	}
	if patch.Percentage != nil {
		set("percentage", *patch.Percentage)
	}
	if patch.IsGift != nil {
		set("is_gift", *patch.IsGift)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	if patch.GiftDetails.Set {
		set("gift_details", patch.GiftDetails.Value)
	}
	if patch.UserID.Set {
		set("user_id", patch.UserID.Value)
	}
	if patch.TargetRole.Set {
		set("target_role", patch.TargetRole.Value)
	}
	if patch.ExpiresAt.Set {
		set("expires_at", patch.ExpiresAt.Value)
	}
	if patch.MaxUsageCount.Set {
		set("max_usage_count", patch.MaxUsageCount.Value)
	}
	if patch.Description.Set {
		set("description", patch.Description.Value)
	}

	d, err := scanDiscount(s.DB.QueryRowContext(ctx,
		`UPDATE discounts SET `+strings.Join(sets, ", ")+`
		 WHERE id = $1
		 RETURNING `+discountColumns, args...))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return d, nil
}

// DeleteDiscount удаляет промокод.
func (s *Storage) DeleteDiscount(ctx context.Context, id string) error {
	const op = "storage.DeleteDiscount"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return mapErr(op, err)
	}
	return rowsAffectedOrNotFound(op, res)
}

// DiscountStats считает сводку по промокодам на момент now.
func (s *Storage) DiscountStats(ctx context.Context, now time.Time) (models.DiscountStats, error) {
	const op = "storage.DiscountStats"
	var st models.DiscountStats
	if err := checkCtx(ctx, op); err != nil {
		return st, err
	}

	err := s.DB.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active AND (expires_at IS NULL OR expires_at > $1)),
			COUNT(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at <= $1),
			COUNT(*) FILTER (WHERE NOT is_active),
			COALESCE(SUM(usage_count), 0)
		 FROM discounts`, now).
		Scan(&st.Total, &st.Active, &st.Expired, &st.Inactive, &st.TotalUsage)
	if err != nil {
		return st, mapErr(op, err)
	}
	return st, nil
}

// RedeemDiscount атомарно увеличивает счётчик использований, если лимит не достигнут,
// и в той же транзакции пересчитывает цену подписки и платежа.
// Подписка без платежа или чужая подписка не пересчитывается. Возвращает true,
// если цена была изменена. При достигнутом лимите возвращает ErrUsageLimitReached.
func (s *Storage) RedeemDiscount(ctx context.Context, discountID string, adj *models.PriceAdjustment) (bool, error) {
	const op = "storage.RedeemDiscount"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE discounts SET usage_count = usage_count + 1, updated_at = NOW()
		 WHERE id = $1 AND (max_usage_count IS NULL OR usage_count < max_usage_count)`,
		discountID)
	if err != nil {
		return false, mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return false, fmt.Errorf("%s: %w", op, ErrUsageLimitReached)
	}

	adjusted := false
	if adj != nil {
		adjusted, err = adjustPrice(ctx, tx, *adj)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return adjusted, nil
}

func adjustPrice(ctx context.Context, tx *sql.Tx, adj models.PriceAdjustment) (bool, error) {
	var price decimal.Decimal
	var paymentID string
	err := tx.QueryRowContext(ctx,
		`SELECT price, payment_id FROM subscriptions
		 WHERE id = $1 AND user_id = $2 AND payment_id IS NOT NULL
		 FOR UPDATE`,
		adj.SubscriptionID, adj.UserID).Scan(&price, &paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	newPrice := pricing.ApplyPercentage(price, adj.Percentage)
	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET price = $2, updated_at = NOW() WHERE id = $1`,
		adj.SubscriptionID, newPrice); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET amount = $2, updated_at = NOW() WHERE id = $1`,
		paymentID, newPrice); err != nil {
		return false, err
	}
	return true, nil
}
