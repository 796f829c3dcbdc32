package models

// Notification уведомление для отправителя писем. Публикуется в RabbitMQ.
type Notification struct {
	RecipientUserID string `json:"recipient_user_id"`
	Subject         string `json:"subject"`
	BodyMarkdown    string `json:"body_markdown"`
}
