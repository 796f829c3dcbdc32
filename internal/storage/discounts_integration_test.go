package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

func intPtr(v int) *int { return &v }

func TestRedeemDiscount_AdjustsSubscriptionAndPayment(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	v := NewTestVerification(st)
	ctx := context.Background()

	userID := f.CreateUser(t, models.RoleRegular, false)
	pay := f.CreatePendingPayment(t, userID, "100.00")
	discountID := f.CreateDiscount(t, models.Discount{
		Code:          "SAVE20",
		Percentage:    decimal.NewFromInt(20),
		IsActive:      true,
		MaxUsageCount: intPtr(1),
	})

	adjusted, err := st.RedeemDiscount(ctx, discountID, &models.PriceAdjustment{
		SubscriptionID: pay.SubscriptionID,
		UserID:         userID,
		Percentage:     decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	assert.True(t, adjusted)

	_, subPrice := v.SubscriptionState(t, pay.SubscriptionID)
	_, amount, _ := v.PaymentState(t, pay.PaymentID)
	assert.True(t, decimal.NewFromInt(80).Equal(subPrice), "subscription price %s", subPrice)
	assert.True(t, decimal.NewFromInt(80).Equal(amount), "payment amount %s", amount)
	assert.Equal(t, 1, v.UsageCount(t, discountID))

	_, err = st.RedeemDiscount(ctx, discountID, nil)
	require.ErrorIs(t, err, ErrUsageLimitReached)
	assert.Equal(t, 1, v.UsageCount(t, discountID))
}

func TestRedeemDiscount_ForeignSubscriptionIsNotAdjusted(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	v := NewTestVerification(st)

	owner := f.CreateUser(t, models.RoleRegular, false)
	other := f.CreateUser(t, models.RoleRegular, false)
	pay := f.CreatePendingPayment(t, owner, "50.00")
	discountID := f.CreateDiscount(t, models.Discount{Code: "HALF", Percentage: decimal.NewFromInt(50), IsActive: true})

	adjusted, err := st.RedeemDiscount(context.Background(), discountID, &models.PriceAdjustment{
		SubscriptionID: pay.SubscriptionID,
		UserID:         other,
		Percentage:     decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.False(t, adjusted)

	_, price := v.SubscriptionState(t, pay.SubscriptionID)
	assert.True(t, decimal.NewFromInt(50).Equal(price))
	assert.Equal(t, 1, v.UsageCount(t, discountID))
}

func TestRedeemDiscount_ConcurrentRedemptionsRespectCap(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	v := NewTestVerification(st)

	const (
		maxUsage = 5
		workers  = 20
	)
	discountID := f.CreateDiscount(t, models.Discount{
		Code:          "RACE",
		Percentage:    decimal.NewFromInt(10),
		IsActive:      true,
		MaxUsageCount: intPtr(maxUsage),
	})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.RedeemDiscount(context.Background(), discountID, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrUsageLimitReached):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, maxUsage, success)
	assert.Equal(t, workers-maxUsage, rejected)
	assert.Equal(t, maxUsage, v.UsageCount(t, discountID))
}

func TestListUserDiscounts_Targeting(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	ctx := context.Background()

	vip := f.CreateUser(t, models.RoleVIP, false)
	other := f.CreateUser(t, models.RoleRegular, false)
	roleVIP := models.RoleVIP
	past := time.Now().Add(-time.Hour)

	f.CreateDiscount(t, models.Discount{Code: "GLOBAL", Percentage: decimal.NewFromInt(5), IsActive: true})
	f.CreateDiscount(t, models.Discount{Code: "VIPONLY", Percentage: decimal.NewFromInt(15), IsActive: true, TargetRole: &roleVIP})
	f.CreateDiscount(t, models.Discount{Code: "MINE", Percentage: decimal.NewFromInt(25), IsActive: true, UserID: &vip})
	f.CreateDiscount(t, models.Discount{Code: "THEIRS", Percentage: decimal.NewFromInt(25), IsActive: true, UserID: &other})
	f.CreateDiscount(t, models.Discount{Code: "OFF", Percentage: decimal.NewFromInt(30), IsActive: false})
	f.CreateDiscount(t, models.Discount{Code: "OLD", Percentage: decimal.NewFromInt(30), IsActive: true, ExpiresAt: &past})

	list, err := st.ListUserDiscounts(ctx, vip, models.RoleVIP, time.Now())
	require.NoError(t, err)

	var codes []string
	for _, d := range list {
		codes = append(codes, d.Code)
	}
	assert.ElementsMatch(t, []string{"GLOBAL", "VIPONLY", "MINE"}, codes)

	stats, err := st.DiscountStats(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 4, stats.Active)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.Inactive)
}

func TestCreateDiscount_Constraints(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	ctx := context.Background()

	userID := f.CreateUser(t, models.RoleRegular, false)
	f.CreateDiscount(t, models.Discount{Code: "DUP", Percentage: decimal.NewFromInt(10), IsActive: true})

	_, err := st.CreateDiscount(ctx, models.Discount{Code: "DUP", Percentage: decimal.NewFromInt(10), IsActive: true})
	require.ErrorIs(t, err, ErrAlreadyExists)

	role := models.RoleTester
	_, err = st.CreateDiscount(ctx, models.Discount{
		Code: "BOTH", Percentage: decimal.NewFromInt(10), IsActive: true, UserID: &userID, TargetRole: &role,
	})
	require.Error(t, err)
}

func TestUpdateAndDeleteDiscount(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	ctx := context.Background()

	expires := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	desc := "spring sale"
	id := f.CreateDiscount(t, models.Discount{
		Code:          "EDIT",
		Percentage:    decimal.NewFromInt(10),
		IsActive:      true,
		ExpiresAt:     &expires,
		MaxUsageCount: intPtr(5),
		Description:   &desc,
	})

	inactive := false
	pct := decimal.NewFromInt(150)
	updated, err := st.UpdateDiscount(ctx, id, models.DiscountPatch{IsActive: &inactive, Percentage: &pct})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "EDIT", updated.Code)
	assert.True(t, pct.Equal(updated.Percentage))
	require.NotNil(t, updated.ExpiresAt, "absent fields stay untouched")
	require.NotNil(t, updated.MaxUsageCount)
	assert.Equal(t, 5, *updated.MaxUsageCount)

	cleared, err := st.UpdateDiscount(ctx, id, models.DiscountPatch{
		ExpiresAt:     models.SetNull[time.Time](),
		MaxUsageCount: models.SetNull[int](),
		Description:   models.SetNull[string](),
		TargetRole:    models.SetTo(string(models.RoleVIP)),
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.ExpiresAt)
	assert.Nil(t, cleared.MaxUsageCount)
	assert.Nil(t, cleared.Description)
	require.NotNil(t, cleared.TargetRole)
	assert.Equal(t, models.RoleVIP, *cleared.TargetRole)
	assert.False(t, cleared.IsActive)

	userID := f.CreateUser(t, models.RoleRegular, false)
	_, err = st.UpdateDiscount(ctx, id, models.DiscountPatch{UserID: models.SetTo(userID)})
	require.Error(t, err, "a discount cannot target a user and a role at once")

	retargeted, err := st.UpdateDiscount(ctx, id, models.DiscountPatch{
		UserID:     models.SetTo(userID),
		TargetRole: models.SetNull[string](),
	})
	require.NoError(t, err)
	require.NotNil(t, retargeted.UserID)
	assert.Equal(t, userID, *retargeted.UserID)
	assert.Nil(t, retargeted.TargetRole)

	_, err = st.UpdateDiscount(ctx, "missing", models.DiscountPatch{IsActive: &inactive})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.DeleteDiscount(ctx, id))
	require.ErrorIs(t, st.DeleteDiscount(ctx, id), ErrNotFound)
}
