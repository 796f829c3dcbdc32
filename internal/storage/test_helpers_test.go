package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/vpn-panel/internal/migrations"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: skipped in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	migrationsPath, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(st.DB, migrationsPath))
	require.NoError(t, CheckDatabaseReady(ctx, st))

	return st
}

// TestDataFactory создаёт тестовые записи напрямую в БД.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создаёт фабрику тестовых данных.
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создаёт пользователя с ролью и признаком администратора.
func (f *TestDataFactory) CreateUser(t *testing.T, role models.Role, isAdmin bool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := f.storage.DB.Exec(`INSERT INTO users (id, role, is_admin) VALUES ($1, $2, $3)`, id, role, isAdmin)
	require.NoError(t, err)
	return id
}

// CreateUserWithEmail создаёт пользователя с e-mail и согласием на рассылку.
func (f *TestDataFactory) CreateUserWithEmail(t *testing.T, role models.Role, email string, optIn bool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := f.storage.DB.Exec(`INSERT INTO users (id, role, email, newsletter_opt_in) VALUES ($1, $2, $3, $4)`,
		id, role, email, optIn)
	require.NoError(t, err)
	return id
}

// CreatePendingPayment создаёт платёж с подпиской на указанную сумму.
func (f *TestDataFactory) CreatePendingPayment(t *testing.T, userID, price string) models.InitiatedPayment {
	t.Helper()
	amount := decimal.RequireFromString(price)
	duration := "1month"
	now := time.Now().UTC()
	res, err := f.storage.CreatePaymentWithSubscription(context.Background(),
		models.Payment{UserID: userID, Amount: amount},
		models.Subscription{
			UserID:       userID,
			PlanName:     "Basic Monthly",
			PlanDuration: &duration,
			Price:        amount,
			StartDate:    now,
			EndDate:      now.AddDate(0, 1, 0),
		})
	require.NoError(t, err)
	return res
}

// CreateDiscount создаёт промокод.
func (f *TestDataFactory) CreateDiscount(t *testing.T, d models.Discount) string {
	t.Helper()
	id, err := f.storage.CreateDiscount(context.Background(), d)
	require.NoError(t, err)
	return id
}

// TestVerification проверяет состояние БД после операций.
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создаёт объект проверки.
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// UsageCount возвращает счётчик использований промокода.
func (v *TestVerification) UsageCount(t *testing.T, discountID string) int {
	t.Helper()
	var n int
	require.NoError(t, v.storage.DB.QueryRow(`SELECT usage_count FROM discounts WHERE id = $1`, discountID).Scan(&n))
	return n
}

// PaymentState возвращает статус, сумму и признак подтверждения платежа.
func (v *TestVerification) PaymentState(t *testing.T, paymentID string) (models.PaymentStatus, decimal.Decimal, bool) {
	t.Helper()
	var status string
	var amount decimal.Decimal
	var approved bool
	require.NoError(t, v.storage.DB.QueryRow(
		`SELECT status, amount, admin_approved FROM payments WHERE id = $1`, paymentID).
		Scan(&status, &amount, &approved))
	return models.PaymentStatus(status), amount, approved
}

// SubscriptionState возвращает статус и цену подписки.
func (v *TestVerification) SubscriptionState(t *testing.T, subID string) (models.SubscriptionStatus, decimal.Decimal) {
	t.Helper()
	var status string
	var price decimal.Decimal
	require.NoError(t, v.storage.DB.QueryRow(
		`SELECT status, price FROM subscriptions WHERE id = $1`, subID).Scan(&status, &price))
	return models.SubscriptionStatus(status), price
}

// PaymentCount возвращает число платежей пользователя.
func (v *TestVerification) PaymentCount(t *testing.T, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, v.storage.DB.QueryRow(`SELECT COUNT(*) FROM payments WHERE user_id = $1`, userID).Scan(&n))
	return n
}
