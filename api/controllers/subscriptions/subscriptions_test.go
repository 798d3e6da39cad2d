package subscriptions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorhub/marketplace-backend/api/middleware"
	subsvc "github.com/motorhub/marketplace-backend/internal/subscriptions"
	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/motorhub/marketplace-backend/pkg/errors"
)

func TestCreateReturns201(t *testing.T) {
	userID := uuid.New()
	svc := &stubService{sub: sampleSubscription(userID)}
	handler := Create(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(`{"planType":"professional","asaasCustomerId":"cus_000001"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, userID, svc.userID)
	assert.Equal(t, enums.PlanTypeProfessional, svc.input.PlanType)
	require.NotNil(t, svc.input.AsaasCustomerID)
	assert.Equal(t, "cus_000001", *svc.input.AsaasCustomerID)

	var envelope struct {
		Data subsvc.SubscriptionDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, enums.SubscriptionStatusActive, envelope.Data.Status)
	assert.True(t, envelope.Data.PlanValue.Equal(decimal.RequireFromString("99.90")))
}

func TestCreateRejectsUnknownPlan(t *testing.T) {
	svc := &stubService{}
	handler := Create(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(`{"planType":"platinum"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, svc.called)
}

func TestCreateRequiresUser(t *testing.T) {
	handler := Create(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(`{"planType":"basic"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateConflict(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeConflict, "user already has an open subscription")}
	handler := Create(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(`{"planType":"basic"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestMeReturnsNullWhenNone(t *testing.T) {
	handler := Me(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, `{"data":null}`+"\n", resp.Body.String())
}

func TestSetBillingCustomerRequiresBody(t *testing.T) {
	svc := &stubService{}
	handler := SetBillingCustomer(svc, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/subscriptions/me/billing-customer", strings.NewReader(`{}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, svc.called)
}

func TestAdminReactivateUsesPathID(t *testing.T) {
	subID := uuid.New()
	actorID := uuid.New()
	svc := &stubService{sub: sampleSubscription(uuid.New())}
	router := chi.NewRouter()
	router.Post("/api/admin/v1/subscriptions/{subscriptionId}/reactivate", AdminReactivate(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/subscriptions/"+subID.String()+"/reactivate", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), actorID.String()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, subID, svc.subscriptionID)
	assert.Equal(t, actorID, svc.userID)
}

func TestAdminCancelRejectsBadID(t *testing.T) {
	svc := &stubService{}
	router := chi.NewRouter()
	router.Post("/api/admin/v1/subscriptions/{subscriptionId}/cancel", AdminCancel(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/subscriptions/not-a-uuid/cancel", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, svc.called)
}

func TestAdminReactivateStateConflict(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "subscription status does not allow this action")}
	router := chi.NewRouter()
	router.Post("/api/admin/v1/subscriptions/{subscriptionId}/reactivate", AdminReactivate(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/subscriptions/"+uuid.NewString()+"/reactivate", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func sampleSubscription(userID uuid.UUID) *models.Subscription {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return &models.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanType:  enums.PlanTypeProfessional,
		PlanValue: decimal.RequireFromString("99.90"),
		Status:    enums.SubscriptionStatusActive,
		StartDate: now,
		EndDate:   now.Add(30 * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type stubService struct {
	called         bool
	userID         uuid.UUID
	subscriptionID uuid.UUID
	input          subsvc.CreateSubscriptionInput
	sub            *models.Subscription
	err            error
}

func (s *stubService) Create(_ context.Context, userID uuid.UUID, input subsvc.CreateSubscriptionInput) (*models.Subscription, error) {
	s.called = true
	s.userID = userID
	s.input = input
	return s.sub, s.err
}

func (s *stubService) GetForUser(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	s.called = true
	s.userID = userID
	return s.sub, s.err
}

func (s *stubService) SetBillingCustomer(_ context.Context, userID uuid.UUID, _ string) (*models.Subscription, error) {
	s.called = true
	s.userID = userID
	return s.sub, s.err
}

func (s *stubService) Cancel(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	s.called = true
	s.userID = userID
	return s.sub, s.err
}

func (s *stubService) CancelByID(_ context.Context, actorID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	s.called = true
	s.userID = actorID
	s.subscriptionID = subscriptionID
	return s.sub, s.err
}

func (s *stubService) Reactivate(_ context.Context, actorID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	s.called = true
	s.userID = actorID
	s.subscriptionID = subscriptionID
	return s.sub, s.err
}
