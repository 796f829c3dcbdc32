package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

// CreateTelegramToken сохраняет токен привязки Telegram.
func (s *Storage) CreateTelegramToken(ctx context.Context, t models.TelegramToken) error {
	const op = "storage.CreateTelegramToken"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO telegram_tokens (id, token, user_id, expires_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Token, t.UserID, t.ExpiresAt)
	if err != nil {
		return mapErr(op, err)
	}
	return nil
}

// GetTelegramToken возвращает токен привязки по значению.
func (s *Storage) GetTelegramToken(ctx context.Context, token string) (*models.TelegramToken, error) {
	const op = "storage.GetTelegramToken"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var t models.TelegramToken
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, token, user_id, expires_at, is_used, created_at FROM telegram_tokens WHERE token = $1`, token).
		Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.IsUsed, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &t, nil
}

// LinkTelegram привязывает Telegram-аккаунт к пользователю и гасит токен.
// Уже использованный токен повторно не гасится: возвращается ErrNotFound.
func (s *Storage) LinkTelegram(ctx context.Context, tokenID, userID, telegramID string, username *string) error {
	const op = "storage.LinkTelegram"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE telegram_tokens SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, tokenID)
	if err != nil {
		return mapErr(op, err)
	}
	if err := rowsAffectedOrNotFound(op, res); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE users SET telegram_id = $2, telegram_username = $3 WHERE id = $1`,
		userID, telegramID, username)
	if err != nil {
		return mapErr(op, err)
	}
	if err := rowsAffectedOrNotFound(op, res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
