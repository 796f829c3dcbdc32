package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer рекламное предложение на главной странице.
type Offer struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ImageURL    *string         `json:"imageUrl,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsVisible   bool            `json:"isVisible"`
	Priority    int             `json:"priority"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	EndDate     *time.Time      `json:"endDate,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// DummyOffer тело запроса на создание и обновление предложения.
type DummyOffer struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required"`
	ImageURL    *string         `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Price       decimal.Decimal `json:"price"`
	IsVisible   *bool           `json:"isVisible,omitempty"`
	Priority    int             `json:"priority"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	EndDate     *time.Time      `json:"endDate,omitempty"`
}

// News новость.
type News struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	PublishDate time.Time `json:"publishDate"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DummyNews тело запроса на создание новости.
type DummyNews struct {
	Title       string `json:"title" validate:"required,max=200"`
	Content     string `json:"content" validate:"required"`
	IsPublished *bool  `json:"isPublished,omitempty"`
}

// Message личное сообщение от администратора.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	TargetRole  *Role     `json:"targetRole,omitempty"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DummyAdminMessage тело запроса на отправку сообщения.
type DummyAdminMessage struct {
	Content      string   `json:"content" validate:"required"`
	TargetRole   *string  `json:"targetRole,omitempty"`
	RecipientIDs []string `json:"recipientIds,omitempty"`
}

// DummyNewsletter тело запроса на e-mail рассылку.
type DummyNewsletter struct {
	Subject    string  `json:"subject" validate:"required,max=200"`
	Content    string  `json:"content" validate:"required"`
	TargetRole *string `json:"targetRole,omitempty" validate:"omitempty,oneof=regular tester VIP"`
}

// NewsletterResult итог рассылки.
type NewsletterResult struct {
	Success    bool   `json:"success"`
	SentCount  int    `json:"sentCount"`
	TotalCount int    `json:"totalCount"`
	Message    string `json:"message"`
}
