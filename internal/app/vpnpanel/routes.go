package vpnpanel

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/vpn-panel/internal/http/handlers/content"
	"github.com/magabrotheeeer/vpn-panel/internal/http/handlers/discounts"
	"github.com/magabrotheeeer/vpn-panel/internal/http/handlers/health"
	"github.com/magabrotheeeer/vpn-panel/internal/http/handlers/payments"
	"github.com/magabrotheeeer/vpn-panel/internal/http/handlers/subscriptions"
	"github.com/magabrotheeeer/vpn-panel/internal/http/handlers/telegram"
	"github.com/magabrotheeeer/vpn-panel/internal/http/handlers/users"
	"github.com/magabrotheeeer/vpn-panel/internal/http/handlers/xrayproxy"
	"github.com/magabrotheeeer/vpn-panel/internal/http/middlewarectx"
)

// Services бизнес-сервисы, которые обслуживают маршруты.
type Services struct {
	Admin        users.Service
	Discount     discounts.Service
	Payment      payments.Service
	Subscription subscriptions.Service
	Content      content.Service
	Telegram     telegram.Service
	Xray         xrayproxy.Service
}

// RouteConfig инфраструктура маршрутизатора.
type RouteConfig struct {
	Tokens        middlewarectx.TokenParser
	DB            health.Pinger
	DiscountRPS   float64
	DiscountBurst int
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg RouteConfig, s Services) {
	// URLFormat не подключаем: он отрезает суффикс у email в пути.
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	userH := users.New(logger, s.Admin)
	discountH := discounts.New(logger, s.Discount)
	paymentH := payments.New(logger, s.Payment)
	subH := subscriptions.New(logger, s.Subscription)
	contentH := content.New(logger, s.Content)
	telegramH := telegram.New(logger, s.Telegram)
	xrayH := xrayproxy.New(logger, s.Xray)
	limiter := middlewarectx.NewRateLimiter(cfg.DiscountRPS, cfg.DiscountBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger, cfg.DB).ServeHTTP)
		r.Get("/plans", subH.Plans)
		r.Post("/telegram/verify", telegramH.Verify)

		// Гость видит только публичный контент
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalJWTMiddleware(cfg.Tokens, logger))
			r.Get("/offers", contentH.ListOffers)
			r.Get("/news", contentH.ListNews)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(cfg.Tokens, logger))

			r.Get("/me", userH.Me)
			r.Get("/discounts", discountH.List)
			r.With(limiter.Middleware(logger)).Post("/discounts/apply", discountH.Apply)
			r.Get("/subscriptions", subH.List)
			r.Get("/subscriptions/stats", subH.Stats)
			r.Post("/subscriptions/{id}/extend", subH.Extend)
			r.Post("/payments", paymentH.Initiate)
			r.Get("/payments", paymentH.List)
			r.Get("/messages", contentH.ListMessages)
			r.Post("/messages/{id}/read", contentH.MarkRead)
			r.Post("/telegram/token", telegramH.Token)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.SanitizeInput())

				r.Get("/users", userH.List)
				r.Get("/users/telegram/{telegramId}", userH.ByTelegram)
				r.Post("/messages", userH.SendMessage)
				r.Post("/newsletter", userH.Newsletter)

				r.Get("/discounts", discountH.AdminList)
				r.Post("/discounts", discountH.Create)
				r.Get("/discounts/stats", discountH.Stats)
				r.Post("/discounts/generate", discountH.Generate)
				r.Patch("/discounts/{id}", discountH.Update)
				r.Delete("/discounts/{id}", discountH.Delete)

				r.Get("/payments", paymentH.AdminList)
				r.Get("/payments/export", paymentH.Export)
				r.Post("/payments/{id}/approve", paymentH.Approve)
				r.Post("/payments/{id}/reject", paymentH.Reject)

				r.Get("/subscriptions", subH.AdminList)
				r.Post("/subscriptions", subH.Add)
				r.Post("/plans", subH.CreatePlan)

				r.Post("/offers", contentH.CreateOffer)
				r.Put("/offers/{id}", contentH.UpdateOffer)
				r.Delete("/offers/{id}", contentH.DeleteOffer)
				r.Post("/news", contentH.CreateNews)
				r.Delete("/news/{id}", contentH.DeleteNews)

				r.Get("/xray/users", xrayH.List)
				r.Post("/xray/users", xrayH.Create)
				r.Delete("/xray/users/{email}", xrayH.Delete)
				r.Get("/xray/users/{email}/stats", xrayH.Stats)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
