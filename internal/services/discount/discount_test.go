package discount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
	"github.com/magabrotheeeer/vpn-panel/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) GetDiscount(ctx context.Context, id string) (*models.Discount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Discount), args.Error(1)
}

func (m *RepoMock) GetDiscountByCode(ctx context.Context, code string) (*models.Discount, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Discount), args.Error(1)
}

func (m *RepoMock) ListDiscounts(ctx context.Context) ([]*models.Discount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Discount), args.Error(1)
}

func (m *RepoMock) ListUserDiscounts(ctx context.Context, userID string, role models.Role, now time.Time) ([]*models.Discount, error) {
	args := m.Called(ctx, userID, role, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Discount), args.Error(1)
}

func (m *RepoMock) CreateDiscount(ctx context.Context, d models.Discount) (string, error) {
	args := m.Called(ctx, d)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) UpdateDiscount(ctx context.Context, id string, patch models.DiscountPatch) (*models.Discount, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Discount), args.Error(1)
}

func (m *RepoMock) DeleteDiscount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *RepoMock) DiscountStats(ctx context.Context, now time.Time) (models.DiscountStats, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(models.DiscountStats), args.Error(1)
}

func (m *RepoMock) RedeemDiscount(ctx context.Context, discountID string, adj *models.PriceAdjustment) (bool, error) {
	args := m.Called(ctx, discountID, adj)
	return args.Bool(0), args.Error(1)
}

type GuardMock struct{ mock.Mock }

func (m *GuardMock) RequireAdmin(ctx context.Context, callerID string) (*models.User, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *RepoMock, guard *GuardMock) *Service {
	svc := NewService(repo, guard, nil, newNoopLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestService_ApplyDiscountCode(t *testing.T) {
	regular := &models.User{ID: "u1", Role: models.RoleRegular}
	save20 := &models.Discount{
		ID:         "d1",
		Code:       "SAVE20",
		Percentage: decimal.NewFromInt(20),
		IsActive:   true,
	}
	capped := &models.Discount{
		ID:            "d2",
		Code:          "ONCE",
		Percentage:    decimal.NewFromInt(10),
		IsActive:      true,
		MaxUsageCount: intPtr(1),
	}

	tests := []struct {
		name        string
		req         models.DummyApplyDiscount
		setup       func(r *RepoMock)
		wantSuccess bool
		wantMessage string
		wantKind    error
	}{
		{
			name: "SAVE20 с подпиской",
			req:  models.DummyApplyDiscount{Code: "SAVE20", SubscriptionID: strPtr("s1")},
			setup: func(r *RepoMock) {
				r.On("GetDiscountByCode", mock.Anything, "SAVE20").Return(save20, nil).Once()
				r.On("RedeemDiscount", mock.Anything, "d1", &models.PriceAdjustment{
					SubscriptionID: "s1",
					UserID:         "u1",
					Percentage:     decimal.NewFromInt(20),
				}).Return(true, nil).Once()
			},
			wantSuccess: true,
		},
		{
			name: "без подписки цена не пересчитывается",
			req:  models.DummyApplyDiscount{Code: "SAVE20"},
			setup: func(r *RepoMock) {
				r.On("GetDiscountByCode", mock.Anything, "SAVE20").Return(save20, nil).Once()
				r.On("RedeemDiscount", mock.Anything, "d1", (*models.PriceAdjustment)(nil)).Return(false, nil).Once()
			},
			wantSuccess: true,
		},
		{
			name: "неизвестный код",
			req:  models.DummyApplyDiscount{Code: "NOPE"},
			setup: func(r *RepoMock) {
				r.On("GetDiscountByCode", mock.Anything, "NOPE").
					Return(nil, fmt.Errorf("storage.GetDiscountByCode: %w", storage.ErrNotFound)).Once()
			},
			wantMessage: MsgInvalidCode,
		},
		{
			name: "чужой персональный код",
			req:  models.DummyApplyDiscount{Code: "MINE"},
			setup: func(r *RepoMock) {
				r.On("GetDiscountByCode", mock.Anything, "MINE").
					Return(&models.Discount{ID: "d3", IsActive: true, UserID: strPtr("u2")}, nil).Once()
			},
			wantMessage: MsgWrongAccount,
		},
		{
			name: "лимит достигнут параллельным запросом",
			req:  models.DummyApplyDiscount{Code: "ONCE"},
			setup: func(r *RepoMock) {
				r.On("GetDiscountByCode", mock.Anything, "ONCE").Return(capped, nil).Once()
				r.On("RedeemDiscount", mock.Anything, "d2", (*models.PriceAdjustment)(nil)).
					Return(false, fmt.Errorf("storage.RedeemDiscount: %w", storage.ErrUsageLimitReached)).Once()
			},
			wantMessage: MsgLimitReached,
		},
		{
			name: "ошибка хранилища при погашении",
			req:  models.DummyApplyDiscount{Code: "SAVE20"},
			setup: func(r *RepoMock) {
				r.On("GetDiscountByCode", mock.Anything, "SAVE20").Return(save20, nil).Once()
				r.On("RedeemDiscount", mock.Anything, "d1", (*models.PriceAdjustment)(nil)).
					Return(false, errors.New("db down")).Once()
			},
			wantKind: apperr.ErrUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("GetUser", mock.Anything, "u1").Return(regular, nil).Once()
			tt.setup(repo)
			svc := newTestService(repo, new(GuardMock))

			res, err := svc.ApplyDiscountCode(context.Background(), "u1", tt.req)
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantKind)
				assert.Equal(t, "Failed to apply discount code", err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantMessage, res.Message)
			if tt.wantSuccess {
				require.NotNil(t, res.Discount)
				assert.Equal(t, "SAVE20", res.Discount.Code)
				assert.True(t, decimal.NewFromInt(20).Equal(res.Discount.Percentage))
			} else {
				assert.Nil(t, res.Discount)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_ApplyDiscountCode_RejectionDoesNotRedeem(t *testing.T) {
	repo := new(RepoMock)
	past := testNow.Add(-time.Minute)
	repo.On("GetUser", mock.Anything, "u1").Return(&models.User{ID: "u1", Role: models.RoleRegular}, nil).Once()
	repo.On("GetDiscountByCode", mock.Anything, "OLD").
		Return(&models.Discount{ID: "d1", IsActive: true, ExpiresAt: &past}, nil).Once()

	svc := newTestService(repo, new(GuardMock))
	res, err := svc.ApplyDiscountCode(context.Background(), "u1", models.DummyApplyDiscount{Code: "OLD"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, MsgExpired, res.Message)
	repo.AssertNotCalled(t, "RedeemDiscount", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GetUserDiscounts(t *testing.T) {
	t.Run("список по роли пользователя", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetUser", mock.Anything, "u1").Return(&models.User{ID: "u1", Role: models.RoleVIP}, nil).Once()
		repo.On("ListUserDiscounts", mock.Anything, "u1", models.RoleVIP, testNow).
			Return([]*models.Discount{{ID: "d1"}}, nil).Once()

		svc := newTestService(repo, new(GuardMock))
		got, err := svc.GetUserDiscounts(context.Background(), "u1")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("пользователь не найден", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetUser", mock.Anything, "u1").Return(nil, storage.ErrNotFound).Once()

		svc := newTestService(repo, new(GuardMock))
		_, err := svc.GetUserDiscounts(context.Background(), "u1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Equal(t, "User not found", err.Error())
	})

	t.Run("ошибка хранилища", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetUser", mock.Anything, "u1").Return(&models.User{ID: "u1", Role: models.RoleVIP}, nil).Once()
		repo.On("ListUserDiscounts", mock.Anything, "u1", models.RoleVIP, testNow).
			Return(nil, errors.New("db down")).Once()

		svc := newTestService(repo, new(GuardMock))
		_, err := svc.GetUserDiscounts(context.Background(), "u1")
		assert.ErrorIs(t, err, apperr.ErrUnexpected)
		assert.Equal(t, "Failed to get discounts", err.Error())
	})
}

func TestService_SetDiscount(t *testing.T) {
	admin := &models.User{ID: "admin-1", IsAdmin: true}

	tests := []struct {
		name     string
		req      models.DummyDiscount
		setup    func(r *RepoMock)
		wantKind error
		wantMsg  string
	}{
		{
			name: "успешное создание",
			req:  models.DummyDiscount{Code: "SAVE20", Percentage: decimal.NewFromInt(20), TargetRole: strPtr("VIP")},
			setup: func(r *RepoMock) {
				r.On("CreateDiscount", mock.Anything, mock.MatchedBy(func(d models.Discount) bool {
					return d.Code == "SAVE20" && d.IsActive && d.TargetRole != nil && *d.TargetRole == models.RoleVIP
				})).Return("d1", nil).Once()
				r.On("GetDiscount", mock.Anything, "d1").Return(&models.Discount{ID: "d1", Code: "SAVE20"}, nil).Once()
			},
		},
		{
			name:     "процент больше 100",
			req:      models.DummyDiscount{Code: "X", Percentage: decimal.NewFromInt(101)},
			setup:    func(_ *RepoMock) {},
			wantKind: apperr.ErrValidation,
			wantMsg:  "Discount percentage must be between 0 and 100",
		},
		{
			name:     "отрицательный процент",
			req:      models.DummyDiscount{Code: "X", Percentage: decimal.NewFromInt(-1)},
			setup:    func(_ *RepoMock) {},
			wantKind: apperr.ErrValidation,
			wantMsg:  "Discount percentage must be between 0 and 100",
		},
		{
			name:     "и пользователь, и роль",
			req:      models.DummyDiscount{Code: "X", Percentage: decimal.NewFromInt(5), UserID: strPtr("u1"), TargetRole: strPtr("VIP")},
			setup:    func(_ *RepoMock) {},
			wantKind: apperr.ErrValidation,
		},
		{
			name:     "неизвестная роль",
			req:      models.DummyDiscount{Code: "X", Percentage: decimal.NewFromInt(5), TargetRole: strPtr("gold")},
			setup:    func(_ *RepoMock) {},
			wantKind: apperr.ErrValidation,
		},
		{
			name: "код уже существует",
			req:  models.DummyDiscount{Code: "SAVE20", Percentage: decimal.NewFromInt(20)},
			setup: func(r *RepoMock) {
				r.On("CreateDiscount", mock.Anything, mock.Anything).
					Return("", fmt.Errorf("storage.CreateDiscount: %w", storage.ErrAlreadyExists)).Once()
			},
			wantKind: apperr.ErrIntegrity,
		},
		{
			name: "ошибка хранилища",
			req:  models.DummyDiscount{Code: "SAVE20", Percentage: decimal.NewFromInt(20)},
			setup: func(r *RepoMock) {
				r.On("CreateDiscount", mock.Anything, mock.Anything).Return("", errors.New("db down")).Once()
			},
			wantKind: apperr.ErrUnexpected,
			wantMsg:  "Failed to set discount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			guard := new(GuardMock)
			guard.On("RequireAdmin", mock.Anything, "admin-1").Return(admin, nil).Once()
			tt.setup(repo)
			svc := newTestService(repo, guard)

			d, err := svc.SetDiscount(context.Background(), "admin-1", tt.req)
			if tt.wantKind == nil {
				require.NoError(t, err)
				assert.Equal(t, "d1", d.ID)
			} else {
				assert.ErrorIs(t, err, tt.wantKind)
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, err.Error())
				}
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_AdminOperationsRequireAdmin(t *testing.T) {
	repo := new(RepoMock)
	guard := new(GuardMock)
	guard.On("RequireAdmin", mock.Anything, "u1").Return(nil, apperr.Unauthorized("Unauthorized: Admin access required"))
	svc := newTestService(repo, guard)
	ctx := context.Background()

	_, err := svc.SetDiscount(ctx, "u1", models.DummyDiscount{Code: "X"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.UpdateDiscount(ctx, "u1", "d1", models.DiscountPatch{})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.ErrorIs(t, svc.DeleteDiscount(ctx, "u1", "d1"), apperr.ErrUnauthorized)
	_, err = svc.ListDiscounts(ctx, "u1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.DiscountStats(ctx, "u1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.GeneratePromoCode(ctx, "u1", models.DummyPromoCode{})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	repo.AssertExpectations(t)
}

func TestService_UpdateAndDeleteDiscount(t *testing.T) {
	admin := &models.User{ID: "admin-1", IsAdmin: true}
	pct := decimal.NewFromInt(150)
	patch := models.DiscountPatch{Percentage: &pct}

	repo := new(RepoMock)
	guard := new(GuardMock)
	guard.On("RequireAdmin", mock.Anything, "admin-1").Return(admin, nil)
	repo.On("UpdateDiscount", mock.Anything, "d1", patch).Return(&models.Discount{ID: "d1", Percentage: pct}, nil).Once()
	repo.On("UpdateDiscount", mock.Anything, "d2", patch).Return(nil, errors.New("duplicate key")).Once()
	repo.On("DeleteDiscount", mock.Anything, "d3").Return(fmt.Errorf("storage.DeleteDiscount: %w", storage.ErrNotFound)).Once()

	svc := newTestService(repo, guard)
	ctx := context.Background()

	d, err := svc.UpdateDiscount(ctx, "admin-1", "d1", patch)
	require.NoError(t, err)
	assert.True(t, pct.Equal(d.Percentage))

	_, err = svc.UpdateDiscount(ctx, "admin-1", "d2", patch)
	require.Error(t, err)
	assert.Equal(t, "Failed to update discount: duplicate key", err.Error())

	err = svc.DeleteDiscount(ctx, "admin-1", "d3")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, err.Error(), "Failed to delete discount")
}

func TestService_UpdateDiscountFields(t *testing.T) {
	admin := &models.User{ID: "admin-1", IsAdmin: true}
	vip := models.RoleVIP
	byRole := &models.Discount{ID: "d1", Code: "VIP10", TargetRole: &vip}
	byUser := &models.Discount{ID: "d1", Code: "U10", UserID: strPtr("u1")}

	tests := []struct {
		name     string
		patch    models.DiscountPatch
		setup    func(r *RepoMock)
		wantKind error
		wantMsg  string
	}{
		{
			name:  "null очищает срок и лимит",
			patch: models.DiscountPatch{ExpiresAt: models.SetNull[time.Time](), MaxUsageCount: models.SetNull[int]()},
			setup: func(r *RepoMock) {
				r.On("UpdateDiscount", mock.Anything, "d1", models.DiscountPatch{
					ExpiresAt:     models.SetNull[time.Time](),
					MaxUsageCount: models.SetNull[int](),
				}).Return(&models.Discount{ID: "d1"}, nil).Once()
			},
		},
		{
			name:  "пользователь при заданной роли",
			patch: models.DiscountPatch{UserID: models.SetTo("u2")},
			setup: func(r *RepoMock) {
				r.On("GetDiscount", mock.Anything, "d1").Return(byRole, nil).Once()
			},
			wantKind: apperr.ErrValidation,
			wantMsg:  "Discount can target either a user or a role, not both",
		},
		{
			name:  "пользователь вместо роли",
			patch: models.DiscountPatch{UserID: models.SetTo("u2"), TargetRole: models.SetNull[string]()},
			setup: func(r *RepoMock) {
				r.On("UpdateDiscount", mock.Anything, "d1", models.DiscountPatch{
					UserID:     models.SetTo("u2"),
					TargetRole: models.SetNull[string](),
				}).Return(&models.Discount{ID: "d1", UserID: strPtr("u2")}, nil).Once()
			},
		},
		{
			name:  "роль при привязке к пользователю",
			patch: models.DiscountPatch{TargetRole: models.SetTo("tester")},
			setup: func(r *RepoMock) {
				r.On("GetDiscount", mock.Anything, "d1").Return(byUser, nil).Once()
			},
			wantKind: apperr.ErrValidation,
			wantMsg:  "Discount can target either a user or a role, not both",
		},
		{
			name:  "пустая строка пользователя равна null",
			patch: models.DiscountPatch{UserID: models.SetTo("  "), TargetRole: models.SetTo("tester")},
			setup: func(r *RepoMock) {
				r.On("UpdateDiscount", mock.Anything, "d1", models.DiscountPatch{
					UserID:     models.SetNull[string](),
					TargetRole: models.SetTo("tester"),
				}).Return(&models.Discount{ID: "d1"}, nil).Once()
			},
		},
		{
			name:     "неизвестная роль",
			patch:    models.DiscountPatch{TargetRole: models.SetTo("gold")},
			setup:    func(r *RepoMock) {},
			wantKind: apperr.ErrValidation,
			wantMsg:  "Invalid target role",
		},
		{
			name:     "нулевой лимит",
			patch:    models.DiscountPatch{MaxUsageCount: models.SetTo(0)},
			setup:    func(r *RepoMock) {},
			wantKind: apperr.ErrValidation,
			wantMsg:  "Max usage count must be positive",
		},
		{
			name:  "промокод не найден",
			patch: models.DiscountPatch{TargetRole: models.SetTo("VIP")},
			setup: func(r *RepoMock) {
				r.On("GetDiscount", mock.Anything, "d1").
					Return(nil, fmt.Errorf("storage.GetDiscount: %w", storage.ErrNotFound)).Once()
			},
			wantKind: apperr.ErrNotFound,
		},
		{
			name:  "занятый код",
			patch: models.DiscountPatch{Code: strPtr("TAKEN")},
			setup: func(r *RepoMock) {
				r.On("UpdateDiscount", mock.Anything, "d1", models.DiscountPatch{Code: strPtr("TAKEN")}).
					Return(nil, fmt.Errorf("storage.UpdateDiscount: %w", storage.ErrAlreadyExists)).Once()
			},
			wantKind: apperr.ErrIntegrity,
			wantMsg:  "Discount code already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			guard := new(GuardMock)
			guard.On("RequireAdmin", mock.Anything, "admin-1").Return(admin, nil).Once()
			tt.setup(repo)
			svc := newTestService(repo, guard)

			d, err := svc.UpdateDiscount(context.Background(), "admin-1", "d1", tt.patch)
			if tt.wantKind == nil {
				require.NoError(t, err)
				assert.Equal(t, "d1", d.ID)
			} else {
				assert.ErrorIs(t, err, tt.wantKind)
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, err.Error())
				}
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_GeneratePromoCode(t *testing.T) {
	guard := new(GuardMock)
	guard.On("RequireAdmin", mock.Anything, "admin-1").Return(&models.User{ID: "admin-1", IsAdmin: true}, nil)
	svc := newTestService(new(RepoMock), guard)

	code, err := svc.GeneratePromoCode(context.Background(), "admin-1", models.DummyPromoCode{Prefix: "vpn", Length: 8})
	require.NoError(t, err)
	assert.Regexp(t, `^VPN[A-Z0-9]{8}$`, code)
}
