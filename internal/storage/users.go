package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

const userColumns = `id, name, email, role, is_admin, telegram_id, telegram_username,
	newsletter_opt_in, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (*models.User, error) {
	var u models.User
	var role string
	dest := []any{&u.ID, &u.Name, &u.Email, &role, &u.IsAdmin, &u.TelegramID,
		&u.TelegramUsername, &u.NewsletterOptIn, &u.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// GetUserByTelegramID возвращает пользователя по привязанному Telegram ID.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	const op = "storage.GetUserByTelegramID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// EnsureUser создаёт пользователя с ролью по умолчанию, если его ещё нет, и возвращает его.
func (s *Storage) EnsureUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.EnsureUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, role) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		id, models.RoleRegular)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return s.GetUser(ctx, id)
}

// ListUsers возвращает пользователей со счётчиками подписок и платежей.
func (s *Storage) ListUsers(ctx context.Context, filter models.UserFilter) ([]*models.UserWithCounts, error) {
	const op = "storage.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT u.id, u.name, u.email, u.role, u.is_admin, u.telegram_id, u.telegram_username,
				  u.newsletter_opt_in, u.created_at,
				  (SELECT COUNT(*) FROM subscriptions s WHERE s.user_id = u.id),
				  (SELECT COUNT(*) FROM payments p WHERE p.user_id = u.id)
			  FROM users u
			  WHERE ($1::text IS NULL OR u.role = $1)
			  ORDER BY u.created_at DESC`
	var role sql.NullString
	if filter.Role != nil {
		role = sql.NullString{String: string(*filter.Role), Valid: true}
	}
	rows, err := s.DB.QueryContext(ctx, query, role)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.UserWithCounts
	for rows.Next() {
		var subs, payments int
		u, err := scanUser(rows, &subs, &payments)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &models.UserWithCounts{User: *u, SubscriptionCount: subs, PaymentCount: payments})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) listUsersWhere(ctx context.Context, op, where string, args ...any) ([]*models.User, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListAdmins возвращает всех администраторов.
func (s *Storage) ListAdmins(ctx context.Context) ([]*models.User, error) {
	return s.listUsersWhere(ctx, "storage.ListAdmins", `is_admin = TRUE`)
}

// ListUsersByRole возвращает пользователей с заданной ролью.
func (s *Storage) ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	return s.listUsersWhere(ctx, "storage.ListUsersByRole", `role = $1`, role)
}

// ListNewsletterRecipients возвращает подписанных на рассылку пользователей с e-mail.
func (s *Storage) ListNewsletterRecipients(ctx context.Context, role *models.Role) ([]*models.User, error) {
	return s.listUsersWhere(ctx, "storage.ListNewsletterRecipients",
		`newsletter_opt_in = TRUE AND email IS NOT NULL AND ($1::text IS NULL OR role = $1)`, roleToNull(role))
}
