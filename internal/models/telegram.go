package models

import "time"

// TelegramToken одноразовый токен привязки Telegram-аккаунта.
type TelegramToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsUsed    bool      `json:"isUsed"`
	CreatedAt time.Time `json:"createdAt"`
}

// TelegramLinkResult результат проверки токена привязки.
type TelegramLinkResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	UserID  string `json:"userId,omitempty"`
}

// DummyTelegramVerify тело запроса от бота на привязку аккаунта.
type DummyTelegramVerify struct {
	Token            string  `json:"token" validate:"required,len=64,hexadecimal"`
	TelegramID       string  `json:"telegramId" validate:"required,numeric"`
	TelegramUsername *string `json:"telegramUsername,omitempty"`
}
