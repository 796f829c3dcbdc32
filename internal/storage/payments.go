package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

const paymentColumns = `p.id, p.user_id, p.amount, p.status, p.admin_approved, p.admin_id,
	p.payment_details, p.created_at, p.updated_at`

func scanPayment(row rowScanner, extra ...any) (*models.Payment, error) {
	var p models.Payment
	var status string
	dest := []any{&p.ID, &p.UserID, &p.Amount, &status, &p.AdminApproved, &p.AdminID,
		&p.PaymentDetails, &p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

// CreatePaymentWithSubscription в одной транзакции создаёт платёж и связанную с ним подписку.
func (s *Storage) CreatePaymentWithSubscription(ctx context.Context, payment models.Payment,
	sub models.Subscription) (models.InitiatedPayment, error) {
	const op = "storage.CreatePaymentWithSubscription"
	var res models.InitiatedPayment
	if err := checkCtx(ctx, op); err != nil {
		return res, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, amount, status, payment_details) VALUES ($1, $2, $3, $4, $5)`,
		payment.ID, payment.UserID, payment.Amount, payment.Status, payment.PaymentDetails)
	if err != nil {
		return res, mapErr(op, err)
	}

	sub.PaymentID = &payment.ID
	subID, err := insertSubscription(ctx, tx, sub)
	if err != nil {
		return res, mapErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return models.InitiatedPayment{PaymentID: payment.ID, SubscriptionID: subID}, nil
}

// ApprovePayment подтверждает платёж и активирует связанную подписку.
// Если подписки нет, транзакция откатывается и возвращается ErrNoSubscription.
func (s *Storage) ApprovePayment(ctx context.Context, paymentID, adminID string) (*models.Subscription, error) {
	const op = "storage.ApprovePayment"
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

	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $2, admin_approved = TRUE, admin_id = $3, updated_at = NOW()
		 WHERE id = $1`,
		paymentID, models.PaymentCompleted, adminID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	if err := rowsAffectedOrNotFound(op, res); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(tx.QueryRowContext(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = NOW()
		 WHERE payment_id = $1
		 RETURNING `+subscriptionColumns,
		paymentID, models.SubscriptionActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSubscription)
	}
	if err != nil {
		return nil, mapErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// RejectPayment отменяет платёж и приостанавливает связанную подписку, если она есть.
func (s *Storage) RejectPayment(ctx context.Context, paymentID, adminID string) (*models.Payment, *models.Subscription, error) {
	const op = "storage.RejectPayment"
	if err := checkCtx(ctx, op); err != nil {
		return nil, nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	payment, err := scanPayment(tx.QueryRowContext(ctx,
		`UPDATE payments p SET status = $2, admin_approved = FALSE, admin_id = $3, updated_at = NOW()
		 WHERE p.id = $1
		 RETURNING `+paymentColumns,
		paymentID, models.PaymentCancelled, adminID))
	if err != nil {
		return nil, nil, mapErr(op, err)
	}

	sub, err := scanSubscription(tx.QueryRowContext(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = NOW()
		 WHERE payment_id = $1
		 RETURNING `+subscriptionColumns,
		paymentID, models.SubscriptionSuspended))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, mapErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return payment, sub, nil
}

// GetPayment возвращает платёж по идентификатору.
func (s *Storage) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanPayment(s.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

func (s *Storage) listPayments(ctx context.Context, op, where string, args ...any) ([]*models.PaymentWithSubscription, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + paymentColumns + `, u.email,
				  s.id, s.user_id, s.payment_id, s.plan_name, s.plan_duration, s.price, s.status,
				  s.start_date, s.end_date, s.bandwidth, s.ip_address, s.created_at, s.updated_at
			  FROM payments p
			  JOIN users u ON u.id = p.user_id
			  LEFT JOIN subscriptions s ON s.payment_id = p.id
			  ` + where + `
			  ORDER BY p.created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PaymentWithSubscription
	for rows.Next() {
		var (
			email                                    sql.NullString
			subID, subUser, subPlan, subStatus       sql.NullString
			subPayment, subDuration, subIP           sql.NullString
			subPrice                                 decimal.NullDecimal
			subStart, subEnd, subCreated, subUpdated sql.NullTime
			subBandwidth                             sql.NullFloat64
		)
		p, err := scanPayment(rows, &email,
			&subID, &subUser, &subPayment, &subPlan, &subDuration, &subPrice, &subStatus,
			&subStart, &subEnd, &subBandwidth, &subIP, &subCreated, &subUpdated)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item := &models.PaymentWithSubscription{Payment: *p}
		if email.Valid {
			item.UserEmail = &email.String
		}
		if subID.Valid {
			item.Subscription = &models.Subscription{
				ID:           subID.String,
				UserID:       subUser.String,
				PaymentID:    nullStringPtr(subPayment),
				PlanName:     subPlan.String,
				PlanDuration: nullStringPtr(subDuration),
				Price:        subPrice.Decimal,
				Status:       models.SubscriptionStatus(subStatus.String),
				StartDate:    subStart.Time,
				EndDate:      subEnd.Time,
				Bandwidth:    subBandwidth.Float64,
				IPAddress:    nullStringPtr(subIP),
				CreatedAt:    subCreated.Time,
				UpdatedAt:    subUpdated.Time,
			}
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUserPayments возвращает платежи пользователя вместе с подписками.
func (s *Storage) ListUserPayments(ctx context.Context, userID string) ([]*models.PaymentWithSubscription, error) {
	return s.listPayments(ctx, "storage.ListUserPayments", `WHERE p.user_id = $1`, userID)
}

// ListAllPayments возвращает все платежи вместе с подписками и e-mail владельца.
func (s *Storage) ListAllPayments(ctx context.Context) ([]*models.PaymentWithSubscription, error) {
	return s.listPayments(ctx, "storage.ListAllPayments", ``)
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
