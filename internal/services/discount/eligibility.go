// Package discount реализует проверку и применение промокодов, а также
// их администрирование.
package discount

import (
	"time"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

// Сообщения мягкого отказа при применении промокода.
const (
	MsgInvalidCode  = "Invalid discount code"
	MsgInactive     = "This discount code is no longer active"
	MsgExpired      = "This discount code has expired"
	MsgLimitReached = "This discount code has reached its maximum usage limit"
	MsgWrongAccount = "This discount code is not valid for your account"
	MsgWrongRole    = "This discount code is not valid for your account type"
)

// Check проверяет, может ли user применить промокод d в момент now.
// Возвращает текст первого нарушенного правила или пустую строку.
// Порядок проверок фиксирован.
func Check(d *models.Discount, user *models.User, now time.Time) string {
	if !d.IsActive {
		return MsgInactive
	}
	if d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
		return MsgExpired
	}
	if d.MaxUsageCount != nil && d.UsageCount >= *d.MaxUsageCount {
		return MsgLimitReached
	}
	if d.UserID != nil && *d.UserID != user.ID {
		return MsgWrongAccount
	}
	if d.TargetRole != nil && *d.TargetRole != user.Role {
		return MsgWrongRole
	}
	return ""
}
