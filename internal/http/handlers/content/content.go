// Package content реализует HTTP-обработчики предложений, новостей и
// личных сообщений пользователя.
package content

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

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

// Service описывает бизнес-логику контента.
type Service interface {
	ListOffers(ctx context.Context, callerID string, includeHidden bool) ([]*models.Offer, error)
	CreateOffer(ctx context.Context, adminID string, req models.DummyOffer) (*models.Offer, error)
	UpdateOffer(ctx context.Context, adminID, id string, req models.DummyOffer) (*models.Offer, error)
	DeleteOffer(ctx context.Context, adminID, id string) error
	ListNews(ctx context.Context, callerID string, onlyPublished bool) ([]*models.News, error)
	CreateNews(ctx context.Context, adminID string, req models.DummyNews) (*models.News, error)
	DeleteNews(ctx context.Context, adminID, id string) error
	ListMessages(ctx context.Context, userID string) ([]*models.Message, error)
	MarkMessageRead(ctx context.Context, userID, messageID string) error
}

// Handler обрабатывает запросы к контенту.
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

// queryBool читает булев параметр запроса, def при отсутствии или ошибке.
func queryBool(r *http.Request, name string, def bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// ListOffers godoc
// @Summary Предложения
// @Description Скрытые и вне периода показа видны только администратору с includeHidden=true.
// @Tags Content
// @Produce json
// @Param includeHidden query bool false "Показать скрытые"
// @Success 200 {object} response.Response
// @Router /offers [get]
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.ListOffers")

	res, err := h.service.ListOffers(r.Context(), middlewarectx.GetUserID(r.Context()), queryBool(r, "includeHidden", false))
	if err != nil {
		log.Error("failed to list offers", sl.Err(err))
		response.AppError(w, r, err, "Failed to get offers")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// CreateOffer godoc
// @Summary Создать предложение
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyOffer true "Предложение"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/offers [post]
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.CreateOffer")

	var req models.DummyOffer
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.CreateOffer(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to create offer", sl.Err(err))
		response.AppError(w, r, err, "Failed to create offer")
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}

// UpdateOffer godoc
// @Summary Изменить предложение
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID предложения"
// @Param request body models.DummyOffer true "Предложение"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/offers/{id} [put]
func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.UpdateOffer")

	var req models.DummyOffer
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.UpdateOffer(r.Context(), middlewarectx.GetUserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		log.Error("failed to update offer", sl.Err(err))
		response.AppError(w, r, err, "Failed to update offer")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// DeleteOffer godoc
// @Summary Удалить предложение
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID предложения"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/offers/{id} [delete]
func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.DeleteOffer")

	if err := h.service.DeleteOffer(r.Context(), middlewarectx.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		log.Error("failed to delete offer", sl.Err(err))
		response.AppError(w, r, err, "Failed to delete offer")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"success": true}))
}

// ListNews godoc
// @Summary Новости
// @Description Неопубликованные видны только администратору с onlyPublished=false.
// @Tags Content
// @Produce json
// @Param onlyPublished query bool false "Только опубликованные" default(true)
// @Success 200 {object} response.Response
// @Router /news [get]
func (h *Handler) ListNews(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.ListNews")

	res, err := h.service.ListNews(r.Context(), middlewarectx.GetUserID(r.Context()), queryBool(r, "onlyPublished", true))
	if err != nil {
		log.Error("failed to list news", sl.Err(err))
		response.AppError(w, r, err, "Failed to get news")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// CreateNews godoc
// @Summary Создать новость
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyNews true "Новость"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/news [post]
func (h *Handler) CreateNews(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.CreateNews")

	var req models.DummyNews
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.CreateNews(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to create news", sl.Err(err))
		response.AppError(w, r, err, "Failed to create news")
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}

// DeleteNews godoc
// @Summary Удалить новость
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID новости"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/news/{id} [delete]
func (h *Handler) DeleteNews(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.DeleteNews")

	if err := h.service.DeleteNews(r.Context(), middlewarectx.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		log.Error("failed to delete news", sl.Err(err))
		response.AppError(w, r, err, "Failed to delete news")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"success": true}))
}

// ListMessages godoc
// @Summary Мои сообщения
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /messages [get]
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.ListMessages")

	res, err := h.service.ListMessages(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to list messages", sl.Err(err))
		response.AppError(w, r, err, "Failed to get messages")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// MarkRead godoc
// @Summary Отметить сообщение прочитанным
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID сообщения"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /messages/{id}/read [post]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.MarkRead")

	if err := h.service.MarkMessageRead(r.Context(), middlewarectx.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		log.Error("failed to mark message read", sl.Err(err))
		response.AppError(w, r, err, "Failed to mark message as read")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"success": true}))
}
