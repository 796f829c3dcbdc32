// Package models содержит доменные структуры VPN-панели и DTO входящих запросов.
// Структуры используются в бизнес-логике, хранилище и HTTP-слое.
package models

import "time"

// Role роль пользователя. Закрытое перечисление.
type Role string

// Роли пользователей.
const (
	RoleRegular Role = "regular"
	RoleTester  Role = "tester"
	RoleVIP     Role = "VIP"
)

// Valid сообщает, является ли значение допустимой ролью.
func (r Role) Valid() bool {
	switch r {
	case RoleRegular, RoleTester, RoleVIP:
		return true
	}
	return false
}

// MessageTargetRoles роли, которым администратор может отправить рассылку сообщений по роли.
var MessageTargetRoles = map[Role]struct{}{
	RoleVIP:    {},
	RoleTester: {},
}

// User пользователь панели. Идентификатор выдаёт внешний провайдер аутентификации.
type User struct {
	ID               string    `json:"id"`
	Name             *string   `json:"name,omitempty"`
	Email            *string   `json:"email,omitempty"`
	Role             Role      `json:"role"`
	IsAdmin          bool      `json:"isAdmin"`
	TelegramID       *string   `json:"telegramId,omitempty"`
	TelegramUsername *string   `json:"telegramUsername,omitempty"`
	NewsletterOptIn  bool      `json:"newsletterOptIn"`
	CreatedAt        time.Time `json:"createdAt"`
}

// UserWithCounts пользователь со счётчиками для админ-панели.
type UserWithCounts struct {
	User
	SubscriptionCount int `json:"subscriptionCount"`
	PaymentCount      int `json:"paymentCount"`
}

// UserFilter фильтр списка пользователей.
type UserFilter struct {
	Role *Role
}

// DummyUserFilter параметры запроса списка пользователей.
type DummyUserFilter struct {
	Role string `json:"role,omitempty" validate:"omitempty,oneof=regular tester VIP"`
}
