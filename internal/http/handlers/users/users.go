// Package users реализует HTTP-обработчики профиля и административной
// работы с пользователями: список, сообщения, рассылки.
package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-panel/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-panel/internal/http/request"
	"github.com/magabrotheeeer/vpn-panel/internal/http/response"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

// Service описывает бизнес-логику пользователей.
type Service interface {
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, adminID, telegramID string) (*models.User, error)
	ListUsers(ctx context.Context, adminID string, role *models.Role) ([]*models.UserWithCounts, error)
	SendAdminMessage(ctx context.Context, adminID string, req models.DummyAdminMessage) (int, error)
	SendNewsletter(ctx context.Context, adminID string, req models.DummyNewsletter) (*models.NewsletterResult, error)
}

// Handler обрабатывает запросы к пользователям.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Me godoc
// @Summary Текущий пользователь
// @Description Возвращает профиль, создавая его при первом обращении.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} response.ErrorResponse
// @Router /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Me")

	user, err := h.service.CurrentUser(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to get current user", sl.Err(err))
		response.AppError(w, r, err, "Failed to get user")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(user))
}

// List godoc
// @Summary Пользователи
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Роль" Enums(regular, tester, VIP)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.List")

	filter := models.DummyUserFilter{Role: r.URL.Query().Get("role")}
	if err := h.validate.Struct(filter); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}
	var role *models.Role
	if filter.Role != "" {
		v := models.Role(filter.Role)
		role = &v
	}

	res, err := h.service.ListUsers(r.Context(), middlewarectx.GetUserID(r.Context()), role)
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		response.AppError(w, r, err, "Failed to get users")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// ByTelegram godoc
// @Summary Пользователь по Telegram ID
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param telegramId path string true "Telegram ID"
// @Success 200 {object} models.User
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/users/telegram/{telegramId} [get]
func (h *Handler) ByTelegram(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.ByTelegram")

	user, err := h.service.GetUserByTelegramID(r.Context(), middlewarectx.GetUserID(r.Context()), chi.URLParam(r, "telegramId"))
	if err != nil {
		log.Error("failed to get user by telegram id", sl.Err(err))
		response.AppError(w, r, err, "Failed to get user")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(user))
}

// SendMessage godoc
// @Summary Отправить сообщение
// @Description Сообщение всем пользователям роли (VIP или tester) или перечисленным получателям.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyAdminMessage true "Сообщение"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/messages [post]
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.SendMessage")

	var req models.DummyAdminMessage
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	count, err := h.service.SendAdminMessage(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to send admin message", sl.Err(err))
		response.AppError(w, r, err, "Failed to send admin message")
		return
	}
	log.Info("admin message sent", slog.Int("count", count))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"success": true,
		"count":   count,
	}))
}

// Newsletter godoc
// @Summary E-mail рассылка
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyNewsletter true "Рассылка"
// @Success 200 {object} models.NewsletterResult
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/newsletter [post]
func (h *Handler) Newsletter(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Newsletter")

	var req models.DummyNewsletter
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.SendNewsletter(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to send newsletter", sl.Err(err))
		response.AppError(w, r, err, "Failed to send newsletter")
		return
	}
	log.Info("newsletter sent", slog.Int("sent", res.SentCount), slog.Int("total", res.TotalCount))
	render.JSON(w, r, response.StatusOKWithData(res))
}
