// Package subscriptions реализует HTTP-обработчики подписок и тарифов.
package subscriptions

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

// Service описывает бизнес-логику подписок.
type Service interface {
	ListUserSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error)
	SubscriptionStats(ctx context.Context, userID string) (models.SubscriptionStats, error)
	ExtendSubscription(ctx context.Context, callerID, subscriptionID string, months int) (*models.Subscription, error)
	AddSubscription(ctx context.Context, adminID string, req models.DummySubscription) (*models.Subscription, error)
	ListAllSubscriptions(ctx context.Context, adminID string) ([]*models.Subscription, error)
	ListPlans(ctx context.Context) ([]*models.SubscriptionPlan, error)
	CreatePlan(ctx context.Context, adminID string, req models.DummyPlan) (*models.SubscriptionPlan, error)
}

// Handler обрабатывает запросы к подпискам и тарифам.
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
// @Summary Мои подписки
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /subscriptions [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.List")

	res, err := h.service.ListUserSubscriptions(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		response.AppError(w, r, err, "Failed to get subscriptions")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Stats godoc
// @Summary Сводка по моим подпискам
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SubscriptionStats
// @Router /subscriptions/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Stats")

	res, err := h.service.SubscriptionStats(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to get subscription stats", sl.Err(err))
		response.AppError(w, r, err, "Failed to get subscription stats")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Extend godoc
// @Summary Продлить подписку
// @Description Только администратор. Пользователь продлевает подписку через оплату.
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Param request body models.DummyExtend true "Число месяцев"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /subscriptions/{id}/extend [post]
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Extend")

	var req models.DummyExtend
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	id := chi.URLParam(r, "id")
	res, err := h.service.ExtendSubscription(r.Context(), middlewarectx.GetUserID(r.Context()), id, req.Months)
	if err != nil {
		log.Error("failed to extend subscription", slog.String("subscription_id", id), sl.Err(err))
		response.AppError(w, r, err, "Failed to extend subscription")
		return
	}
	log.Info("subscription extended", slog.String("subscription_id", id), slog.Int("months", req.Months))
	render.JSON(w, r, response.StatusOKWithData(res))
}

// AdminList godoc
// @Summary Все подписки
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/subscriptions [get]
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.AdminList")

	res, err := h.service.ListAllSubscriptions(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to list all subscriptions", sl.Err(err))
		response.AppError(w, r, err, "Failed to get subscriptions")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Add godoc
// @Summary Выдать подписку вручную
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummySubscription true "Подписка"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/subscriptions [post]
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Add")

	var req models.DummySubscription
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.AddSubscription(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to add subscription", sl.Err(err))
		response.AppError(w, r, err, "Failed to add subscription")
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Plans godoc
// @Summary Тарифы
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Response
// @Router /plans [get]
func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Plans")

	res, err := h.service.ListPlans(r.Context())
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		response.AppError(w, r, err, "Failed to get subscription plans")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// CreatePlan godoc
// @Summary Создать тариф
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyPlan true "Тариф"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/plans [post]
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.CreatePlan")

	var req models.DummyPlan
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.CreatePlan(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to create plan", sl.Err(err))
		response.AppError(w, r, err, "Failed to create plan")
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}
