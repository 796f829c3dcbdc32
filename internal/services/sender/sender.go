// Package sender доставляет уведомления из очереди по e-mail и в Telegram.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/sanitize"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/smtp"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

// UserRepository достаёт получателя уведомления.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Bot часть *tgbotapi.BotAPI, нужная для отправки сообщений.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ErrNoChannel у получателя нет ни e-mail, ни Telegram.
var ErrNoChannel = errors.New("recipient has no delivery channel")

// SenderService доставляет уведомления.
type SenderService struct {
	users     UserRepository
	transport smtp.TransportInterface
	bot       Bot
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService. bot может быть nil,
// тогда доставка в Telegram отключена.
func NewSenderService(users UserRepository, transport smtp.TransportInterface, bot Bot, log *slog.Logger) *SenderService {
	return &SenderService{
		users:     users,
		transport: transport,
		bot:       bot,
		log:       log,
	}
}

// HandleNotification обработчик сообщений очереди notification.send.
// Ошибка возвращается, только если не удалось доставить ни по одному каналу.
func (s *SenderService) HandleNotification(ctx context.Context, body []byte) error {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		// битое сообщение не переотправляем
		s.log.Error("failed to unmarshal notification", sl.Err(err))
		return nil
	}
	log := s.log.With(slog.String("recipient", n.RecipientUserID), slog.String("subject", n.Subject))

	user, err := s.users.GetUser(ctx, n.RecipientUserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("recipient not found, notification dropped")
			return nil
		}
		return fmt.Errorf("failed to get recipient: %w", err)
	}

	text := sanitize.Text(n.BodyMarkdown)
	var errs []error
	delivered := false

	if user.Email != nil && *user.Email != "" {
		if err := s.sendEmail([]string{*user.Email}, n.Subject, text); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			delivered = true
		}
	}

	if user.TelegramID != nil && s.bot != nil {
		if err := s.sendTelegram(*user.TelegramID, n.Subject, text); err != nil {
			log.Error("failed to send telegram message", sl.Err(err))
			errs = append(errs, fmt.Errorf("telegram: %w", err))
		} else {
			delivered = true
		}
	}

	switch {
	case delivered:
		return nil
	case len(errs) > 0:
		return errors.Join(errs...)
	default:
		log.Warn("notification dropped", sl.Err(ErrNoChannel))
		return nil
	}
}

func (s *SenderService) sendTelegram(telegramID, subject, text string) error {
	chatID, err := strconv.ParseInt(telegramID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram id %q: %w", telegramID, err)
	}
	msg := tgbotapi.NewMessage(chatID, subject+"\n\n"+text)
	if _, err := s.bot.Send(msg); err != nil {
		return err
	}
	s.log.Info("telegram message sent", slog.Int64("chat_id", chatID))
	return nil
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("Failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("Failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("Failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("Failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("Failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("Failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("Failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
