package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus статус платежа.
type PaymentStatus string

// Статусы платежа.
const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment запись об оплате подписки. Подтверждается администратором вручную.
type Payment struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PaymentStatus   `json:"status"`
	AdminApproved  bool            `json:"adminApproved"`
	AdminID        *string         `json:"adminId,omitempty"`
	PaymentDetails *string         `json:"paymentDetails,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// PaymentWithSubscription платёж вместе со связанной подпиской (если она есть).
type PaymentWithSubscription struct {
	Payment
	Subscription *Subscription `json:"subscription,omitempty"`
	UserEmail    *string       `json:"userEmail,omitempty"`
}

// InitiatedPayment результат создания платежа.
type InitiatedPayment struct {
	PaymentID      string `json:"paymentId"`
	SubscriptionID string `json:"subscriptionId"`
}

// DummyInitiatePayment тело запроса на оплату тарифа.
type DummyInitiatePayment struct {
	PlanID         string  `json:"planId" validate:"required"`
	PaymentDetails *string `json:"paymentDetails,omitempty"`
}

// DummyRejectPayment тело запроса на отклонение платежа.
type DummyRejectPayment struct {
	Reason *string `json:"reason,omitempty"`
}
