// Package xray клиент внешнего сервиса VPN-конфигураций.
package xray

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/magabrotheeeer/vpn-panel/internal/config"
)

const bytesInGB = 1024 * 1024 * 1024

// APIError ответ сервиса с не-2xx статусом.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Xray API error (%d): %s", e.Status, e.Message)
}

// Client HTTP-клиент с Bearer-авторизацией.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт новый клиент сервиса VPN-конфигураций
func NewClient(cfg config.Xray) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.XrayBaseURL, "/"),
		token:      cfg.XrayToken,
		httpClient: &http.Client{Timeout: cfg.XrayTimeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Failed to communicate with Xray API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var e errorResponse
		if json.Unmarshal(raw, &e) != nil || e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListUsers возвращает всех пользователей VPN-сервиса.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser создаёт пользователя VPN-сервиса.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser удаляет пользователя по email.
func (c *Client) DeleteUser(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(email), nil, nil)
}

// UserStats статистика трафика пользователя.
func (c *Client) UserStats(ctx context.Context, email string) (*UserStats, error) {
	var raw trafficResponse
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(email)+"/stats", nil, &raw); err != nil {
		return nil, err
	}
	return &UserStats{
		Email:       raw.Email,
		DownloadGB:  toGB(raw.DownloadBytes),
		UploadGB:    toGB(raw.UploadBytes),
		TotalGB:     toGB(raw.TotalBytes),
		LastUpdated: raw.LastUpdated,
	}, nil
}

func toGB(b int64) float64 {
	return math.Round(float64(b)/bytesInGB*100) / 100
}
