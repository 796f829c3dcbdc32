package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

const planColumns = `id, name, duration, price, description, created_at`

func scanPlan(row rowScanner) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	if err := row.Scan(&p.ID, &p.Name, &p.Duration, &p.Price, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans возвращает тарифы по возрастанию цены.
func (s *Storage) ListPlans(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	const op = "storage.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY price ASC, name ASC`)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetPlan возвращает тариф по идентификатору.
func (s *Storage) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	const op = "storage.GetPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanPlan(s.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// CreatePlan добавляет тариф и возвращает его идентификатор.
func (s *Storage) CreatePlan(ctx context.Context, plan models.SubscriptionPlan) (string, error) {
	const op = "storage.CreatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO subscription_plans (id, name, duration, price, description) VALUES ($1, $2, $3, $4, $5)`,
		plan.ID, plan.Name, plan.Duration, plan.Price, plan.Description)
	if err != nil {
		return "", mapErr(op, err)
	}
	return plan.ID, nil
}
