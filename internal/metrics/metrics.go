// Package metrics счётчики Prometheus для промокодов и платежей.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты применения промокода.
const (
	RedeemApplied  = "applied"
	RedeemRejected = "rejected"
	RedeemFailed   = "failed"
)

// События платёжного процесса.
const (
	PaymentInitiated = "initiated"
	PaymentApproved  = "approved"
	PaymentRejected  = "rejected"
)

// Metrics набор счётчиков приложения.
type Metrics struct {
	DiscountRedemptions *prometheus.CounterVec
	PaymentEvents       *prometheus.CounterVec
	NotificationsFailed prometheus.Counter
}

// New регистрирует счётчики в reg. Для prometheus.DefaultRegisterer
// счётчики попадают в /metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DiscountRedemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpn_panel",
			Name:      "discount_redemptions_total",
			Help:      "Discount code redemption attempts by result.",
		}, []string{"result"}),
		PaymentEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpn_panel",
			Name:      "payment_events_total",
			Help:      "Payment workflow transitions.",
		}, []string{"event"}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vpn_panel",
			Name:      "notifications_failed_total",
			Help:      "Notifications that could not be published.",
		}),
	}
}

// Redemption учитывает попытку применения промокода. Безопасен для nil.
func (m *Metrics) Redemption(result string) {
	if m == nil {
		return
	}
	m.DiscountRedemptions.WithLabelValues(result).Inc()
}

// Payment учитывает событие платежа. Безопасен для nil.
func (m *Metrics) Payment(event string) {
	if m == nil {
		return
	}
	m.PaymentEvents.WithLabelValues(event).Inc()
}

// NotificationFailed учитывает потерянное уведомление. Безопасен для nil.
func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}
