package users

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-panel/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockService) GetUserByTelegramID(ctx context.Context, adminID, telegramID string) (*models.User, error) {
	args := m.Called(ctx, adminID, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockService) ListUsers(ctx context.Context, adminID string, role *models.Role) ([]*models.UserWithCounts, error) {
	args := m.Called(ctx, adminID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserWithCounts), args.Error(1)
}

func (m *MockService) SendAdminMessage(ctx context.Context, adminID string, req models.DummyAdminMessage) (int, error) {
	args := m.Called(ctx, adminID, req)
	return args.Int(0), args.Error(1)
}

func (m *MockService) SendNewsletter(ctx context.Context, adminID string, req models.DummyNewsletter) (*models.NewsletterResult, error) {
	args := m.Called(ctx, adminID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NewsletterResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func serve(h http.HandlerFunc, method, pattern, target, body, userID string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, userID))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Me(t *testing.T) {
	svc := new(MockService)
	svc.On("CurrentUser", mock.Anything, "user-1").
		Return(&models.User{ID: "user-1", Role: models.RoleRegular}, nil).Once()

	rec := serve(New(newNoopLogger(), svc).Me, http.MethodGet, "/me", "/me", "", "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"regular"`)
}

func TestHandler_List(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name:   "без фильтра",
			target: "/admin/users",
			setupMock: func(m *MockService) {
				m.On("ListUsers", mock.Anything, "admin-1", (*models.Role)(nil)).Return([]*models.UserWithCounts{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "с ролью",
			target: "/admin/users?role=VIP",
			setupMock: func(m *MockService) {
				m.On("ListUsers", mock.Anything, "admin-1", mock.MatchedBy(func(r *models.Role) bool {
					return r != nil && *r == models.RoleVIP
				})).Return([]*models.UserWithCounts{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "неизвестная роль",
			target:         "/admin/users?role=root",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			rec := serve(New(newNoopLogger(), svc).List, http.MethodGet, "/admin/users", tt.target, "", "admin-1")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_SendMessage(t *testing.T) {
	t.Run("роль вне списка", func(t *testing.T) {
		role := "regular"
		svc := new(MockService)
		svc.On("SendAdminMessage", mock.Anything, "admin-1", models.DummyAdminMessage{Content: "hi", TargetRole: &role}).
			Return(0, apperr.Validation("Can only send role-based messages to VIP and tester users")).Once()

		rec := serve(New(newNoopLogger(), svc).SendMessage, http.MethodPost, "/admin/messages", "/admin/messages",
			`{"content":"hi","targetRole":"regular"}`, "admin-1")

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "Can only send role-based messages to VIP and tester users")
	})

	t.Run("получатели списком", func(t *testing.T) {
		svc := new(MockService)
		svc.On("SendAdminMessage", mock.Anything, "admin-1", models.DummyAdminMessage{Content: "hi", RecipientIDs: []string{"u1", "u2"}}).
			Return(2, nil).Once()

		rec := serve(New(newNoopLogger(), svc).SendMessage, http.MethodPost, "/admin/messages", "/admin/messages",
			`{"content":"hi","recipientIds":["u1","u2"]}`, "admin-1")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"count":2`)
	})
}

func TestHandler_Newsletter(t *testing.T) {
	svc := new(MockService)
	svc.On("SendNewsletter", mock.Anything, "admin-1", models.DummyNewsletter{Subject: "News", Content: "Body"}).
		Return(&models.NewsletterResult{Success: true, SentCount: 2, TotalCount: 3, Message: "Newsletter sent to 2 of 3 users"}, nil).Once()

	rec := serve(New(newNoopLogger(), svc).Newsletter, http.MethodPost, "/admin/newsletter", "/admin/newsletter",
		`{"subject":"News","content":"Body"}`, "admin-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Newsletter sent to 2 of 3 users")
}

func TestHandler_ByTelegram(t *testing.T) {
	svc := new(MockService)
	svc.On("GetUserByTelegramID", mock.Anything, "admin-1", "4242").Return(nil, apperr.NotFound("User not found")).Once()

	rec := serve(New(newNoopLogger(), svc).ByTelegram, http.MethodGet, "/admin/users/telegram/{telegramId}", "/admin/users/telegram/4242", "", "admin-1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"Error","error":"User not found"}`, rec.Body.String())
}
