package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

func TestEnsureUser_Idempotent(t *testing.T) {
	st := setupTestDatabase(t)
	ctx := context.Background()

	u, err := st.EnsureUser(ctx, "auth0|42")
	require.NoError(t, err)
	assert.Equal(t, models.RoleRegular, u.Role)
	assert.False(t, u.IsAdmin)

	again, err := st.EnsureUser(ctx, "auth0|42")
	require.NoError(t, err)
	assert.Equal(t, u.CreatedAt, again.CreatedAt)

	_, err = st.GetUser(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListUsersAndRecipients(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	ctx := context.Background()

	vip := f.CreateUserWithEmail(t, models.RoleVIP, "vip@example.com", true)
	f.CreateUserWithEmail(t, models.RoleRegular, "reg@example.com", true)
	f.CreateUserWithEmail(t, models.RoleRegular, "quiet@example.com", false)
	f.CreateUser(t, models.RoleTester, true)
	f.CreatePendingPayment(t, vip, "9.99")

	role := models.RoleVIP
	users, err := st.ListUsers(ctx, models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 1, users[0].SubscriptionCount)
	assert.Equal(t, 1, users[0].PaymentCount)

	admins, err := st.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 1)

	recipients, err := st.ListNewsletterRecipients(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, recipients, 2)

	vipRecipients, err := st.ListNewsletterRecipients(ctx, &role)
	require.NoError(t, err)
	require.Len(t, vipRecipients, 1)
	assert.Equal(t, vip, vipRecipients[0].ID)
}

func TestTelegramLinking(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	ctx := context.Background()

	userID := f.CreateUser(t, models.RoleRegular, false)
	require.NoError(t, st.CreateTelegramToken(ctx, models.TelegramToken{
		Token:     "abc123",
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	tok, err := st.GetTelegramToken(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, tok.IsUsed)

	username := "vpnfan"
	require.NoError(t, st.LinkTelegram(ctx, tok.ID, userID, "100500", &username))
	require.ErrorIs(t, st.LinkTelegram(ctx, tok.ID, userID, "100500", &username), ErrNotFound)

	u, err := st.GetUserByTelegramID(ctx, "100500")
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)
	require.NotNil(t, u.TelegramUsername)
	assert.Equal(t, "vpnfan", *u.TelegramUsername)
}

func TestMessages(t *testing.T) {
	st := setupTestDatabase(t)
	f := NewTestDataFactory(st)
	ctx := context.Background()

	adminID := f.CreateUser(t, models.RoleRegular, true)
	userID := f.CreateUser(t, models.RoleVIP, false)
	role := models.RoleVIP

	n, err := st.CreateMessages(ctx, []models.Message{
		{Content: "hello", SenderID: adminID, RecipientID: userID, TargetRole: &role},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs, err := st.ListUserMessages(ctx, userID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsRead)
	require.NotNil(t, msgs[0].TargetRole)
	assert.Equal(t, models.RoleVIP, *msgs[0].TargetRole)

	require.NoError(t, st.MarkMessageRead(ctx, msgs[0].ID))
	m, err := st.GetMessage(ctx, msgs[0].ID)
	require.NoError(t, err)
	assert.True(t, m.IsRead)
}

func TestOffersVisibility(t *testing.T) {
	st := setupTestDatabase(t)
	ctx := context.Background()
	now := time.Now()
	future := now.Add(24 * time.Hour)

	_, err := st.CreateOffer(ctx, models.Offer{Title: "low", Description: "d", IsVisible: true, Priority: 1})
	require.NoError(t, err)
	_, err = st.CreateOffer(ctx, models.Offer{Title: "high", Description: "d", IsVisible: true, Priority: 10})
	require.NoError(t, err)
	_, err = st.CreateOffer(ctx, models.Offer{Title: "hidden", Description: "d", IsVisible: false, Priority: 5})
	require.NoError(t, err)
	_, err = st.CreateOffer(ctx, models.Offer{Title: "later", Description: "d", IsVisible: true, StartDate: &future})
	require.NoError(t, err)

	visible, err := st.ListOffers(ctx, &now)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "high", visible[0].Title)
	assert.Equal(t, "low", visible[1].Title)

	all, err := st.ListOffers(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
