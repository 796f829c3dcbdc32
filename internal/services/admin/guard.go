// Package admin проверяет права администратора и реализует операции админ-панели
// над пользователями: список, личные сообщения и рассылки.
package admin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

// MsgAdminRequired ответ вызывающему без прав администратора.
const MsgAdminRequired = "Unauthorized: Admin access required"

// UserGetter достаёт пользователя по идентификатору.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Guard пускает к операциям только администраторов. Результат не кешируется:
// снятие флага is_admin действует со следующего запроса.
type Guard struct {
	users UserGetter
	log   *slog.Logger
}

// NewGuard создаёт Guard.
func NewGuard(users UserGetter, log *slog.Logger) *Guard {
	return &Guard{users: users, log: log}
}

// RequireAdmin возвращает пользователя, если он существует и является администратором.
func (g *Guard) RequireAdmin(ctx context.Context, callerID string) (*models.User, error) {
	user, err := g.users.GetUser(ctx, callerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Unauthorized(MsgAdminRequired)
		}
		g.log.Error("failed to load caller", slog.String("user_id", callerID), sl.Err(err))
		return nil, apperr.Wrap("Failed to verify admin access", err)
	}
	if !user.IsAdmin {
		g.log.Warn("admin access denied", slog.String("user_id", callerID))
		return nil, apperr.Unauthorized(MsgAdminRequired)
	}
	return user, nil
}
