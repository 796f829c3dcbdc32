// Package payments реализует HTTP-обработчики оплаты подписок и их
// подтверждения администратором.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

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

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service описывает бизнес-логику платежей.
type Service interface {
	InitiatePayment(ctx context.Context, userID string, req models.DummyInitiatePayment) (models.InitiatedPayment, error)
	ApprovePayment(ctx context.Context, adminID, paymentID string) (*models.Subscription, error)
	RejectPayment(ctx context.Context, adminID, paymentID string, reason *string) error
	ListUserPayments(ctx context.Context, userID string) ([]*models.PaymentWithSubscription, error)
	ListAllPayments(ctx context.Context, adminID string) ([]*models.PaymentWithSubscription, error)
	ExportPayments(ctx context.Context, adminID string) ([]byte, error)
}

// Handler обрабатывает запросы к платежам.
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

// Initiate godoc
// @Summary Оплатить тариф
// @Description Создаёт платёж и подписку в статусе pending. Администраторы получают уведомление.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyInitiatePayment true "Тариф"
// @Success 201 {object} models.InitiatedPayment
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /payments [post]
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Initiate")

	var req models.DummyInitiatePayment
	if !request.Decode(w, r, log, h.validate, &req, false) {
		return
	}

	res, err := h.service.InitiatePayment(r.Context(), middlewarectx.GetUserID(r.Context()), req)
	if err != nil {
		log.Error("failed to initiate payment", sl.Err(err))
		response.AppError(w, r, err, "Failed to initiate payment")
		return
	}
	log.Info("payment initiated", slog.String("payment_id", res.PaymentID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}

// List godoc
// @Summary Мои платежи
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 500 {object} response.ErrorResponse
// @Router /payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.List")

	res, err := h.service.ListUserPayments(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		response.AppError(w, r, err, "Failed to get payments")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// AdminList godoc
// @Summary Все платежи
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/payments [get]
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.AdminList")

	res, err := h.service.ListAllPayments(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to list all payments", sl.Err(err))
		response.AppError(w, r, err, "Failed to get payments")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Approve godoc
// @Summary Подтвердить платёж
// @Description Платёж становится completed, связанная подписка active.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID платежа"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "У платежа нет подписки"
// @Router /admin/payments/{id}/approve [post]
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Approve")

	id := chi.URLParam(r, "id")
	sub, err := h.service.ApprovePayment(r.Context(), middlewarectx.GetUserID(r.Context()), id)
	if err != nil {
		log.Error("failed to approve payment", slog.String("payment_id", id), sl.Err(err))
		response.AppError(w, r, err, "Failed to approve payment")
		return
	}
	log.Info("payment approved", slog.String("payment_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"success":      true,
		"subscription": sub,
	}))
}

// Reject godoc
// @Summary Отклонить платёж
// @Description Платёж становится cancelled, связанная подписка suspended.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID платежа"
// @Param request body models.DummyRejectPayment false "Причина"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/payments/{id}/reject [post]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Reject")

	var req models.DummyRejectPayment
	if !request.Decode(w, r, log, h.validate, &req, true) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.RejectPayment(r.Context(), middlewarectx.GetUserID(r.Context()), id, req.Reason); err != nil {
		log.Error("failed to reject payment", slog.String("payment_id", id), sl.Err(err))
		response.AppError(w, r, err, "Failed to reject payment")
		return
	}
	log.Info("payment rejected", slog.String("payment_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"success": true}))
}

// Export godoc
// @Summary Выгрузка платежей в XLSX
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/payments/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Export")

	data, err := h.service.ExportPayments(r.Context(), middlewarectx.GetUserID(r.Context()))
	if err != nil {
		log.Error("failed to export payments", sl.Err(err))
		response.AppError(w, r, err, "Failed to export payments")
		return
	}

	filename := fmt.Sprintf("payments-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error("failed to write export", sl.Err(err))
	}
}
