package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discount промокод или подарок.
// Адресован не более чем одному из: конкретный пользователь, роль. Оба пусты: общий.
type Discount struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Percentage    decimal.Decimal `json:"percentage"`
	IsGift        bool            `json:"isGift"`
	GiftDetails   *string         `json:"giftDetails,omitempty"`
	UserID        *string         `json:"userId,omitempty"`
	TargetRole    *Role           `json:"targetRole,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
	IsActive      bool            `json:"isActive"`
	UsageCount    int             `json:"usageCount"`
	MaxUsageCount *int            `json:"maxUsageCount,omitempty"`
	Description   *string         `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// DiscountSummary данные промокода, которые видит пользователь после применения.
type DiscountSummary struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Percentage  decimal.Decimal `json:"percentage"`
	IsGift      bool            `json:"isGift"`
	GiftDetails *string         `json:"giftDetails,omitempty"`
	Description *string         `json:"description,omitempty"`
}

// Summary возвращает урезанное представление промокода.
func (d *Discount) Summary() *DiscountSummary {
	return &DiscountSummary{
		ID:          d.ID,
		Code:        d.Code,
		Percentage:  d.Percentage,
		IsGift:      d.IsGift,
		GiftDetails: d.GiftDetails,
		Description: d.Description,
	}
}

// ApplyResult результат применения промокода. Отказ по бизнес-правилу не является ошибкой.
type ApplyResult struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message,omitempty"`
	Discount *DiscountSummary `json:"discount,omitempty"`
}

// DiscountStats сводка по промокодам.
type DiscountStats struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Expired    int `json:"expired"`
	Inactive   int `json:"inactive"`
	TotalUsage int `json:"totalUsage"`
}

// DummyApplyDiscount тело запроса на применение промокода.
type DummyApplyDiscount struct {
	Code           string  `json:"code" validate:"required"`
	SubscriptionID *string `json:"subscriptionId,omitempty"`
}

// DummyDiscount тело запроса на создание промокода.
type DummyDiscount struct {
	Code          string          `json:"code" validate:"required"`
	Percentage    decimal.Decimal `json:"percentage"`
	IsGift        bool            `json:"isGift"`
	GiftDetails   *string         `json:"giftDetails,omitempty"`
	UserID        *string         `json:"userId,omitempty"`
	TargetRole    *string         `json:"targetRole,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
	MaxUsageCount *int            `json:"maxUsageCount,omitempty" validate:"omitempty,min=1"`
	Description   *string         `json:"description,omitempty"`
}

// DiscountPatch частичное обновление промокода. Отсутствующее поле не меняется.
// Поля Nullable можно очистить явным null; userId и targetRole задают адресата.
type DiscountPatch struct {
	Code          *string             `json:"code,omitempty"`
	Percentage    *decimal.Decimal    `json:"percentage,omitempty"`
	IsGift        *bool               `json:"isGift,omitempty"`
	GiftDetails   Nullable[string]    `json:"giftDetails" swaggertype:"string"`
	UserID        Nullable[string]    `json:"userId" swaggertype:"string"`
	TargetRole    Nullable[string]    `json:"targetRole" swaggertype:"string"`
	ExpiresAt     Nullable[time.Time] `json:"expiresAt" swaggertype:"string" format:"date-time"`
	IsActive      *bool               `json:"isActive,omitempty"`
	MaxUsageCount Nullable[int]       `json:"maxUsageCount" swaggertype:"integer"`
	Description   Nullable[string]    `json:"description" swaggertype:"string"`
}

// DummyPromoCode параметры генерации промокода.
type DummyPromoCode struct {
	Prefix string `json:"prefix,omitempty" validate:"omitempty,alphanum,max=16"`
	Length int    `json:"length,omitempty" validate:"omitempty,min=4,max=32"`
}

// PriceAdjustment пересчёт цены подписки при применении промокода.
type PriceAdjustment struct {
	SubscriptionID string
	UserID         string
	Percentage     decimal.Decimal
}
