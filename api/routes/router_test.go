package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorhub/marketplace-backend/internal/notifications"
	"github.com/motorhub/marketplace-backend/internal/plans"
	subsvc "github.com/motorhub/marketplace-backend/internal/subscriptions"
	pkgAuth "github.com/motorhub/marketplace-backend/pkg/auth"
	"github.com/motorhub/marketplace-backend/pkg/config"
	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
	"github.com/motorhub/marketplace-backend/pkg/logger"
)

const testCronSecret = "cron-secret"

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubEngine struct {
	runs     int
	statuses int
	triggers []subsvc.Trigger
}

func (s *stubEngine) Run(ctx context.Context, now time.Time, trigger subsvc.Trigger) (*subsvc.Report, error) {
	s.runs++
	s.triggers = append(s.triggers, trigger)
	return &subsvc.Report{Errors: []subsvc.ItemError{}}, nil
}

func (s *stubEngine) Status(ctx context.Context, now time.Time) (*subsvc.StatusReport, error) {
	s.statuses++
	return &subsvc.StatusReport{Status: "ok", Statistics: subsvc.StatusStatistics{LastCheck: now}}, nil
}

type stubSubscriptions struct {
	reactivated []uuid.UUID
}

func (s *stubSubscriptions) Create(ctx context.Context, userID uuid.UUID, input subsvc.CreateSubscriptionInput) (*models.Subscription, error) {
	return stubSubscription(userID), nil
}

func (s *stubSubscriptions) GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}

func (s *stubSubscriptions) SetBillingCustomer(ctx context.Context, userID uuid.UUID, customerID string) (*models.Subscription, error) {
	return stubSubscription(userID), nil
}

func (s *stubSubscriptions) Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return stubSubscription(userID), nil
}

func (s *stubSubscriptions) CancelByID(ctx context.Context, actorID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	return stubSubscription(uuid.New()), nil
}

func (s *stubSubscriptions) Reactivate(ctx context.Context, actorID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	s.reactivated = append(s.reactivated, subscriptionID)
	sub := stubSubscription(uuid.New())
	sub.ID = subscriptionID
	return sub, nil
}

func stubSubscription(userID uuid.UUID) *models.Subscription {
	now := time.Now().UTC()
	return &models.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanType:  enums.PlanTypeBasic,
		Status:    enums.SubscriptionStatusActive,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, 30),
	}
}

type stubNotifications struct{}

func (stubNotifications) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{Items: []models.Notification{}}, nil
}

func (stubNotifications) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type routerFixture struct {
	handler       http.Handler
	cfg           *config.Config
	engine        *stubEngine
	subscriptions *stubSubscriptions
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	cfg := &config.Config{
		App:  config.AppConfig{Env: "test"},
		JWT:  config.JWTConfig{Secret: "secret", Issuer: "motorhub", ExpirationMinutes: 60},
		Cron: config.CronConfig{SecretKey: testCronSecret, TriggerRateLimit: 10, TriggerRateWindow: time.Minute},
	}
	engine := &stubEngine{}
	subscriptions := &stubSubscriptions{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := NewRouter(cfg, logg, stubPinger{}, nil, prometheus.NewRegistry(), plans.Default(), subscriptions, stubNotifications{}, engine)
	return &routerFixture{handler: handler, cfg: cfg, engine: engine, subscriptions: subscriptions}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func (f *routerFixture) bearer(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	f := newRouterFixture(t)

	live := f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, live.Code)

	ready := f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, ready.Code)
}

func TestMetricsRouteIsServed(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestPlansRouteIsPublic(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"professional"`)
}

func TestAutoBillingTriggerRejectsWithoutBearerSecret(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header"},
		{name: "wrong secret", header: "Bearer wrong"},
		{name: "bare secret", header: testCronSecret},
		{name: "basic scheme", header: "Basic " + testCronSecret},
		{name: "empty bearer", header: "Bearer "},
	}

	for _, tc := range cases {
		for _, method := range []string{http.MethodPost, http.MethodGet} {
			t.Run(tc.name+"/"+method, func(t *testing.T) {
				f := newRouterFixture(t)
				req := httptest.NewRequest(method, "/api/subscriptions/auto-billing", nil)
				if tc.header != "" {
					req.Header.Set("Authorization", tc.header)
				}
				resp := f.do(req)

				assert.Equal(t, http.StatusUnauthorized, resp.Code)
				assert.Contains(t, resp.Body.String(), `"error":"Unauthorized"`)
				assert.Zero(t, f.engine.runs)
				assert.Zero(t, f.engine.statuses)
				assert.Empty(t, f.engine.triggers)
			})
		}
	}
}

type panickingEngine struct{}

func (panickingEngine) Run(context.Context, time.Time, subsvc.Trigger) (*subsvc.Report, error) {
	panic("store unavailable")
}

func (panickingEngine) Status(context.Context, time.Time) (*subsvc.StatusReport, error) {
	panic("store unavailable")
}

func TestAutoBillingTriggerPanicReturnsFlatError(t *testing.T) {
	f := newRouterFixture(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := NewRouter(f.cfg, logg, stubPinger{}, nil, prometheus.NewRegistry(), plans.Default(), f.subscriptions, stubNotifications{}, panickingEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/auto-billing", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"error":"Internal server error","details":"unexpected failure while processing auto-billing"}`, resp.Body.String())
}

func TestAutoBillingTriggerRunsEngine(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/auto-billing", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	resp := f.do(req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Auto-billing process completed")
	require.Equal(t, 1, f.engine.runs)
	assert.Equal(t, subsvc.TriggerHTTP, f.engine.triggers[0])
}

func TestAutoBillingStatusDoesNotRun(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/auto-billing", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	resp := f.do(req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)
	assert.Zero(t, f.engine.runs)
}

func TestSubscriptionRoutesRequireAuth(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/me", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/me", nil)
	req.Header.Set("Authorization", f.bearer(t, enums.UserRoleUser))
	resp = f.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":null}`, resp.Body.String())
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newRouterFixture(t)
	subscriptionID := uuid.New()
	path := "/api/admin/v1/subscriptions/" + subscriptionID.String() + "/reactivate"

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", f.bearer(t, enums.UserRoleUser))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
	assert.Empty(t, f.subscriptions.reactivated)

	req = httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", f.bearer(t, enums.UserRoleAdmin))
	resp := f.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, f.subscriptions.reactivated, 1)
	assert.Equal(t, subscriptionID, f.subscriptions.reactivated[0])
}

func TestNotificationRoutesRequireAuth(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", f.bearer(t, enums.UserRoleUser))
	resp = f.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"items":[]`)
}
