// Package discounts реализует HTTP-обработчики промокодов: список доступных
// скидок, применение кода и администрирование.
package discounts

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

// Service описывает бизнес-логику промокодов.
type Service interface {
	GetUserDiscounts(ctx context.Context, userID string) ([]*models.Discount, error)
	ApplyDiscountCode(ctx context.Context, userID string, req models.DummyApplyDiscount) (*models.ApplyResult, error)
	SetDiscount(ctx context.Context, adminID string, req models.DummyDiscount) (*models.Discount, error)
	UpdateDiscount(ctx context.Context, adminID, id string, patch models.DiscountPatch) (*models.Discount, error)
	DeleteDiscount(ctx context.Context, adminID, id string) error
	ListDiscounts(ctx context.Context, adminID string) ([]*models.Discount, error)
	DiscountStats(ctx context.Context, adminID string) (models.DiscountStats, error)
	GeneratePromoCode(ctx context.Context, adminID string, req models.DummyPromoCode) (string, error)
}

// Handler обрабатывает запросы к промокодам.
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
// @Summary Доступные промокоды
// @Description Активные и не истёкшие промокоды для текущего пользователя, его роли и глобальные.
// @Tags Discounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /discounts [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.discounts.List")

	res, err := h.service.GetUserDiscounts(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to get discounts", sl.Err(err))
		response.AppError(w, r, err, "Failed to get discounts")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Apply godoc
// @Summary Применить промокод
// @Description Проверяет промокод и увеличивает счётчик использований. При переданной подписке пересчитывает её цену.
// @Description Отказ по условиям промокода возвращается с кодом 200 и success=false.
// @Tags Discounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyApplyDiscount true "Промокод"
// @Success 200 {object} models.ApplyResult
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /discounts/apply [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.discounts.Apply")

	var req models.DummyApplyDiscount
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.ApplyDiscountCode(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to apply discount", sl.Err(err))
		response.AppError(w, r, err, "Failed to apply discount code")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// AdminList godoc
// @Summary Все промокоды
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/discounts [get]
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.discounts.AdminList")

	res, err := h.service.ListDiscounts(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to list discounts", sl.Err(err))
		response.AppError(w, r, err, "Failed to get discounts")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Create godoc
// @Summary Создать промокод
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyDiscount true "Промокод"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/discounts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.discounts.Create")

	var req models.DummyDiscount
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.SetDiscount(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to create discount", sl.Err(err))
		response.AppError(w, r, err, "Failed to set discount")
		return
	}
	log.Info("discount created", slog.String("id", res.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Update godoc
// @Summary Изменить промокод
// @Description Частичное обновление: переданные поля заменяются.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID промокода"
// @Param request body models.DiscountPatch true "Изменения"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/discounts/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.discounts.Update")

	var patch models.DiscountPatch
	if !request.Decode(w, r, log, h.validate, &patch, false) {
		return
	}

	res, err := h.service.UpdateDiscount(r.Context(), middlewarectx.GetUserID(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		log.Error("failed to update discount", sl.Err(err))
		response.AppError(w, r, err, "Failed to update discount")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Delete godoc
// @Summary Удалить промокод
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID промокода"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/discounts/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.discounts.Delete")

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteDiscount(r.Context(), middlewarectx.GetUserID(r.Context()), id); err != nil {
		log.Error("failed to delete discount", sl.Err(err))
		response.AppError(w, r, err, "Failed to delete discount")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"success": true}))
}

// Stats godoc
// @Summary Статистика промокодов
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/discounts/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.discounts.Stats")

	res, err := h.service.DiscountStats(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to get discount stats", sl.Err(err))
		response.AppError(w, r, err, "Failed to get discount stats")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Generate godoc
// @Summary Сгенерировать промокод
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyPromoCode false "Префикс и длина"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/discounts/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.discounts.Generate")

	var req models.DummyPromoCode
	if !request.Decode(w, r, log, h.validate, &req, true) {
		return
	}

	code, err := h.service.GeneratePromoCode(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to generate promo code", sl.Err(err))
		response.AppError(w, r, err, "Failed to generate promo code")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"code": code}))
}
