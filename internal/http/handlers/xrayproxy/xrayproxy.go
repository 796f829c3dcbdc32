// Package xrayproxy реализует административные HTTP-обработчики поверх
// сервиса VPN-конфигураций.
package xrayproxy

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
	"github.com/magabrotheeeer/vpn-panel/internal/xray"
)

// Service операции прокси с проверкой прав администратора.
type Service interface {
	ListUsers(ctx context.Context, adminID string) ([]xray.User, error)
	CreateUser(ctx context.Context, adminID string, req xray.CreateUserRequest) (*xray.User, error)
	DeleteUser(ctx context.Context, adminID, email string) error
	UserStats(ctx context.Context, adminID, email string) (*xray.UserStats, error)
}

// Handler обрабатывает запросы к пользователям VPN-сервиса.
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

// List godoc
// @Summary Пользователи VPN-сервиса
// @Tags Xray
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /admin/xray/users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.xrayproxy.List")

	res, err := h.service.ListUsers(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to list xray users", sl.Err(err))
		response.AppError(w, r, err, "Failed to get Xray users")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Create godoc
// @Summary Создать пользователя VPN-сервиса
// @Tags Xray
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body xray.CreateUserRequest true "Пользователь"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/xray/users [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.xrayproxy.Create")

	var req xray.CreateUserRequest
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.CreateUser(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to create xray user", sl.Err(err))
		response.AppError(w, r, err, "Failed to create Xray user")
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Delete godoc
// @Summary Удалить пользователя VPN-сервиса
// @Tags Xray
// @Produce json
// @Security BearerAuth
// @Param email path string true "Email"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/xray/users/{email} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.xrayproxy.Delete")

	email := chi.URLParam(r, "email")
	if err := h.service.DeleteUser(r.Context(), middlewarectx.GetUserID(r.Context()), email); err != nil {
		log.Error("failed to delete xray user", slog.String("email", email), sl.Err(err))
		response.AppError(w, r, err, "Failed to delete Xray user")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"success": true,
		"message": "Deleted Xray user: " + email,
	}))
}

// Stats godoc
// @Summary Трафик пользователя VPN-сервиса
// @Tags Xray
// @Produce json
// @Security BearerAuth
// @Param email path string true "Email"
// @Success 200 {object} xray.UserStats
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/xray/users/{email}/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.xrayproxy.Stats")

	email := chi.URLParam(r, "email")
	res, err := h.service.UserStats(r.Context(), middlewarectx.GetUserID(r.Context()), email)
	if err != nil {
		log.Error("failed to get xray user stats", slog.String("email", email), sl.Err(err))
		response.AppError(w, r, err, "Failed to get Xray user stats")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
