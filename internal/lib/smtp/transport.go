package smtp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/vpn-panel/internal/config"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
)

// Transport открывает аутентифицированные SMTP-сессии.
type Transport struct {
	cfg     config.SMTP
	log     *slog.Logger
	timeout time.Duration
}

// ErrNotConfigured SMTP-сервер не задан в конфиге.
var ErrNotConfigured = errors.New("smtp is not configured")

// smtpClientWrapper обертка для *smtp.Client, реализующая интерфейс Client.
type smtpClientWrapper struct {
	client *smtp.Client
}

func (w *smtpClientWrapper) Mail(from string) error {
	return w.client.Mail(from)
}

func (w *smtpClientWrapper) Rcpt(to string) error {
	return w.client.Rcpt(to)
}

func (w *smtpClientWrapper) Data() (io.WriteCloser, error) {
	return w.client.Data()
}

func (w *smtpClientWrapper) Quit() error {
	return w.client.Quit()
}

func (w *smtpClientWrapper) Close() error {
	return w.client.Close()
}

// NewTransport создаёт Transport по настройкам SMTP.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log, timeout: 10 * time.Second}
}

// Connect открывает сессию: TCP, STARTTLS, PLAIN-аутентификация.
func (t *Transport) Connect() (Client, error) {
	if t.cfg.SMTPHost == "" {
		return nil, ErrNotConfigured
	}
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)

	conn, err := net.DialTimeout("tcp", addr, t.timeout)
	if err != nil {
		t.log.Error("failed to dial SMTP server", slog.String("addr", addr), sl.Err(err))
		return nil, fmt.Errorf("failed to dial SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			t.log.Error("failed to close connection", sl.Err(closeErr))
		}
		return nil, t.fail(nil, "failed to create SMTP client", err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return nil, t.fail(client, "smtp server does not support STARTTLS", nil)
	}
	tlsConfig := &tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		return nil, t.fail(client, "failed to start TLS", err)
	}

	auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)
	if err = client.Auth(auth); err != nil {
		return nil, t.fail(client, "smtp auth failed", err)
	}

	return &smtpClientWrapper{client: client}, nil
}

// fail логирует ошибку, закрывает клиента (если есть) и возвращает обёрнутую ошибку.
func (t *Transport) fail(client *smtp.Client, msg string, err error) error {
	if err != nil {
		t.log.Error(msg, sl.Err(err))
	} else {
		t.log.Error(msg)
	}
	if client != nil {
		if closeErr := client.Close(); closeErr != nil {
			t.log.Error("failed to close client", sl.Err(closeErr))
		}
	}
	if err == nil {
		return errors.New(msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// GetSMTPUser возвращает имя пользователя SMTP.
func (t *Transport) GetSMTPUser() string {
	return t.cfg.SMTPUser
}
