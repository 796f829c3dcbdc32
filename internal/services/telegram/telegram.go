// Package telegram привязывает Telegram-аккаунт к пользователю через одноразовый токен.
package telegram

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

const tokenTTL = 24 * time.Hour

// Ответы на проверку токена.
const (
	MsgInvalidToken  = "Invalid token"
	MsgTokenUsed     = "Token already used"
	MsgTokenExpired  = "Token expired"
	MsgAlreadyLinked = "This Telegram account is already linked to another user"
)

// Repository методы хранилища для привязки Telegram.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateTelegramToken(ctx context.Context, t models.TelegramToken) error
	GetTelegramToken(ctx context.Context, token string) (*models.TelegramToken, error)
	LinkTelegram(ctx context.Context, tokenID, userID, telegramID string, username *string) error
}

// Service выдаёт и проверяет токены привязки.
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewService создаёт Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// GenerateToken выдаёт пользователю токен на 24 часа.
func (s *Service) GenerateToken(ctx context.Context, userID string) (string, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperr.NotFound("User not found")
		}
		s.log.Error("failed to get user", slog.String("user_id", userID), sl.Err(err))
		return "", apperr.Wrap("Failed to generate Telegram token", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", apperr.Wrap("Failed to generate Telegram token", err)
	}
	token := hex.EncodeToString(raw)

	err := s.repo.CreateTelegramToken(ctx, models.TelegramToken{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().Add(tokenTTL),
	})
	if err != nil {
		s.log.Error("failed to save telegram token", slog.String("user_id", userID), sl.Err(err))
		return "", apperr.Wrap("Failed to generate Telegram token", err)
	}
	return token, nil
}

// VerifyToken привязывает Telegram-аккаунт к владельцу токена и гасит токен.
// Отказ возвращается как результат с Success=false.
func (s *Service) VerifyToken(ctx context.Context, req models.DummyTelegramVerify) (*models.TelegramLinkResult, error) {
	t, err := s.repo.GetTelegramToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &models.TelegramLinkResult{Message: MsgInvalidToken}, nil
		}
		s.log.Error("failed to get telegram token", sl.Err(err))
		return nil, apperr.Wrap("Error verifying token", err)
	}
	if t.IsUsed {
		return &models.TelegramLinkResult{Message: MsgTokenUsed}, nil
	}
	if t.ExpiresAt.Before(s.now()) {
		return &models.TelegramLinkResult{Message: MsgTokenExpired}, nil
	}

	err = s.repo.LinkTelegram(ctx, t.ID, t.UserID, req.TelegramID, req.TelegramUsername)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &models.TelegramLinkResult{Message: MsgTokenUsed}, nil
	case errors.Is(err, storage.ErrAlreadyExists):
		return &models.TelegramLinkResult{Message: MsgAlreadyLinked}, nil
	case err != nil:
		s.log.Error("failed to link telegram", slog.String("user_id", t.UserID), sl.Err(err))
		return nil, apperr.Wrap("Error verifying token", err)
	}

	s.log.Info("telegram linked", slog.String("user_id", t.UserID), slog.String("telegram_id", req.TelegramID))
	return &models.TelegramLinkResult{Success: true, UserID: t.UserID}, nil
}
