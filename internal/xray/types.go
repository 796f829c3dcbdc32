package xray

import "time"

// User пользователь VPN-сервиса.
type User struct {
	Email          string     `json:"email"`
	UUID           string     `json:"uuid"`
	Inbound        string     `json:"inbound"`
	SubscriptionID *string    `json:"subscriptionId,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
}

// CreateUserRequest запрос на создание пользователя VPN-сервиса.
type CreateUserRequest struct {
	Email          string  `json:"email" validate:"required,email"`
	Inbound        string  `json:"inbound,omitempty"`
	Duration       string  `json:"duration,omitempty"`
	SubscriptionID *string `json:"subscriptionId,omitempty" validate:"omitempty,uuid"`
}

// trafficResponse ответ сервиса со статистикой в байтах.
type trafficResponse struct {
	Email         string    `json:"email"`
	DownloadBytes int64     `json:"downloadBytes"`
	UploadBytes   int64     `json:"uploadBytes"`
	TotalBytes    int64     `json:"totalBytes"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// UserStats статистика трафика в гигабайтах, округлённая до сотых.
type UserStats struct {
	Email       string    `json:"email"`
	DownloadGB  float64   `json:"downloadGB"`
	UploadGB    float64   `json:"uploadGB"`
	TotalGB     float64   `json:"totalGB"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type errorResponse struct {
	Message string `json:"message"`
}
