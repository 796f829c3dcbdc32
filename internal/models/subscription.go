package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus статус подписки.
type SubscriptionStatus string

// Статусы подписки.
const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionSuspended SubscriptionStatus = "suspended"
)

// SubscriptionPlan тарифный план. Справочные данные.
type SubscriptionPlan struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Duration    string          `json:"duration"`
	Price       decimal.Decimal `json:"price"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// DummyPlan тело запроса на создание тарифа.
type DummyPlan struct {
	Name        string          `json:"name" validate:"required"`
	Duration    string          `json:"duration" validate:"required,oneof=7days 1month 3months 6months 12months"`
	Price       decimal.Decimal `json:"price"`
	Description *string         `json:"description,omitempty"`
}

// Subscription подписка пользователя. Поля плана копируются при создании.
type Subscription struct {
	ID           string             `json:"id"`
	UserID       string             `json:"userId"`
	PaymentID    *string            `json:"paymentId,omitempty"`
	PlanName     string             `json:"planName"`
	PlanDuration *string            `json:"planDuration,omitempty"`
	Price        decimal.Decimal    `json:"price"`
	Status       SubscriptionStatus `json:"status"`
	StartDate    time.Time          `json:"startDate"`
	EndDate      time.Time          `json:"endDate"`
	Bandwidth    float64            `json:"bandwidth"`
	IPAddress    *string            `json:"ipAddress,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// SubscriptionStats сводка по подпискам пользователя.
type SubscriptionStats struct {
	ActiveCount        int     `json:"activeCount"`
	ExpiredCount       int     `json:"expiredCount"`
	TotalBandwidth     float64 `json:"totalBandwidth"`
	TotalSubscriptions int     `json:"totalSubscriptions"`
}

// DummySubscription тело запроса на ручное добавление подписки администратором.
type DummySubscription struct {
	UserID    string          `json:"userId" validate:"required"`
	PlanName  string          `json:"planName" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	StartDate time.Time       `json:"startDate" validate:"required"`
	EndDate   time.Time       `json:"endDate" validate:"required"`
	Status    string          `json:"status,omitempty" validate:"omitempty,oneof=pending active expired suspended"`
	IPAddress *string         `json:"ipAddress,omitempty"`
}

// DummyExtend тело запроса на продление подписки.
type DummyExtend struct {
	Months int `json:"months" validate:"required,min=1"`
}
