package xray

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

// API операции сервиса VPN-конфигураций.
type API interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, email string) error
	UserStats(ctx context.Context, email string) (*UserStats, error)
}

// Authorizer проверяет права администратора.
type Authorizer interface {
	RequireAdmin(ctx context.Context, callerID string) (*models.User, error)
}

// Proxy открывает API сервиса VPN-конфигураций только администраторам.
type Proxy struct {
	api   API
	guard Authorizer
	log   *slog.Logger
}

// NewProxy создает новый экземпляр Proxy.
func NewProxy(api API, guard Authorizer, log *slog.Logger) *Proxy {
	return &Proxy{api: api, guard: guard, log: log}
}

// ListUsers список пользователей VPN-сервиса.
func (p *Proxy) ListUsers(ctx context.Context, adminID string) ([]User, error) {
	if _, err := p.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	users, err := p.api.ListUsers(ctx)
	if err != nil {
		p.log.Error("xray list users failed", sl.Err(err))
		return nil, apperr.WrapDetail("Failed to get Xray users", err)
	}
	return users, nil
}

// CreateUser создаёт пользователя VPN-сервиса.
func (p *Proxy) CreateUser(ctx context.Context, adminID string, req CreateUserRequest) (*User, error) {
	if _, err := p.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	user, err := p.api.CreateUser(ctx, req)
	if err != nil {
		p.log.Error("xray create user failed", slog.String("email", req.Email), sl.Err(err))
		return nil, apperr.WrapDetail("Failed to create Xray user", err)
	}
	return user, nil
}

// DeleteUser удаляет пользователя VPN-сервиса.
func (p *Proxy) DeleteUser(ctx context.Context, adminID, email string) error {
	if _, err := p.guard.RequireAdmin(ctx, adminID); err != nil {
		return err
	}
	if err := p.api.DeleteUser(ctx, email); err != nil {
		p.log.Error("xray delete user failed", slog.String("email", email), sl.Err(err))
		return apperr.WrapDetail("Failed to delete Xray user", err)
	}
	return nil
}

// UserStats статистика трафика пользователя VPN-сервиса.
func (p *Proxy) UserStats(ctx context.Context, adminID, email string) (*UserStats, error) {
	if _, err := p.guard.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	stats, err := p.api.UserStats(ctx, email)
	if err != nil {
		p.log.Error("xray user stats failed", slog.String("email", email), sl.Err(err))
		return nil, apperr.WrapDetail("Failed to get Xray user stats", err)
	}
	return stats, nil
}
