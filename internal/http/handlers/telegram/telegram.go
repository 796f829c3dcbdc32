// Package telegram реализует HTTP-обработчики привязки Telegram-аккаунта.
package telegram

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-panel/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-panel/internal/http/request"
	"github.com/magabrotheeeer/vpn-panel/internal/http/response"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

// Service описывает бизнес-логику привязки.
type Service interface {
	GenerateToken(ctx context.Context, userID string) (string, error)
	VerifyToken(ctx context.Context, req models.DummyTelegramVerify) (*models.TelegramLinkResult, error)
}

// Handler обрабатывает запросы привязки Telegram.
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

// Token godoc
// @Summary Токен привязки Telegram
// @Description Одноразовый токен на 24 часа. Пользователь передаёт его боту.
// @Tags Telegram
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /telegram/token [post]
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.telegram.Token"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, err := h.service.GenerateToken(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to generate telegram token", sl.Err(err))
		response.AppError(w, r, err, "Failed to generate token")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"token": token}))
}

// Verify godoc
// @Summary Привязать Telegram по токену
// @Description Вызывается ботом. Отказ возвращается с кодом 200 и success=false.
// @Tags Telegram
// @Accept json
// @Produce json
// @Param request body models.DummyTelegramVerify true "Токен и аккаунт"
// @Success 200 {object} models.TelegramLinkResult
// @Failure 422 {object} response.ErrorResponse
// @Router /telegram/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.telegram.Verify"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyTelegramVerify
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.VerifyToken(r.Context(), req)
	if err != nil {
		log.Error("failed to verify telegram token", sl.Err(err))
		response.AppError(w, r, err, "Error verifying token")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
