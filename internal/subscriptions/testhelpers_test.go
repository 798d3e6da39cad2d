package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/motorhub/marketplace-backend/pkg/asaas"
	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
	"github.com/motorhub/marketplace-backend/pkg/logger"
)

func setupSubscriptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan_type TEXT NOT NULL,
  plan_value NUMERIC NOT NULL,
  asaas_customer_id TEXT,
  asaas_payment_id TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  start_date DATETIME NOT NULL,
  end_date DATETIME NOT NULL,
  grace_period_ends_at DATETIME,
  blocked_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS subscription_charges (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL,
  asaas_customer_id TEXT NOT NULL,
  asaas_payment_id TEXT NOT NULL,
  external_reference TEXT NOT NULL UNIQUE,
  billing_period DATETIME NOT NULL,
  amount NUMERIC NOT NULL,
  billing_type TEXT NOT NULL DEFAULT 'PIX',
  due_date TEXT NOT NULL,
  description TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`).Error)
	return db
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// flakyTxRunner fails the first failures transactions before delegating.
type flakyTxRunner struct {
	inner    gormTxRunner
	failures int
}

func (r *flakyTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset by peer")
	}
	return r.inner.WithTx(ctx, fn)
}

// fakeGateway keeps created payments by reference, like the provider does.
type fakeGateway struct {
	mu        sync.Mutex
	created   []asaas.ChargeRequest
	lookups   []string
	payments  map[string]*asaas.Payment
	byID      map[string]*asaas.Payment
	fetched   []string
	createErr error
	findErr   error
	getErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*asaas.Payment{}, byID: map[string]*asaas.Payment{}}
}

func (g *fakeGateway) CreateCharge(_ context.Context, req asaas.ChargeRequest) (*asaas.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	payment := &asaas.Payment{
		ID:                fmt.Sprintf("pay_%d", len(g.created)),
		Customer:          req.Customer,
		Status:            "PENDING",
		BillingType:       enums.BillingTypePix,
		Value:             req.Value,
		DueDate:           "2026-10-17",
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
	}
	g.payments[req.ExternalReference] = payment
	g.byID[payment.ID] = payment
	return payment, nil
}

func (g *fakeGateway) FindByExternalReference(_ context.Context, ref string) (*asaas.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups = append(g.lookups, ref)
	if g.findErr != nil {
		return nil, g.findErr
	}
	if p := g.payments[ref]; p != nil && !p.Deleted {
		return p, nil
	}
	return nil, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*asaas.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetched = append(g.fetched, id)
	if g.getErr != nil {
		return nil, g.getErr
	}
	p, ok := g.byID[id]
	if !ok {
		return nil, asaas.ErrPaymentNotFound
	}
	return p, nil
}

// seedPayment registers a payment the provider already holds.
func (g *fakeGateway) seedPayment(p *asaas.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ExternalReference] = p
	g.byID[p.ID] = p
}

func (g *fakeGateway) createCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

type fakeClaimer struct {
	mu       sync.Mutex
	busy     map[uuid.UUID]bool
	err      error
	released int
}

func (c *fakeClaimer) Claim(_ context.Context, id uuid.UUID) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if c.busy[id] {
		return nil, ErrClaimBusy
	}
	return func() {
		c.mu.Lock()
		c.released++
		c.mu.Unlock()
	}, nil
}

type memoryRunRecorder struct {
	last *time.Time
}

func (m *memoryRunRecorder) RecordLastRun(_ context.Context, at time.Time) error {
	at = at.UTC()
	m.last = &at
	return nil
}

func (m *memoryRunRecorder) LastRun(context.Context) (*time.Time, error) {
	return m.last, nil
}

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func insertSubscription(t *testing.T, db *gorm.DB, mutate func(*models.Subscription)) models.Subscription {
	t.Helper()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	sub := models.Subscription{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		PlanType:        enums.PlanTypeProfessional,
		PlanValue:       decimal.RequireFromString("99.90"),
		AsaasCustomerID: strPtr("cus_000001"),
		Status:          enums.SubscriptionStatusActive,
		StartDate:       now.Add(-30 * 24 * time.Hour),
		EndDate:         now.Add(30 * 24 * time.Hour),
		CreatedAt:       now.Add(-30 * 24 * time.Hour),
		UpdatedAt:       now.Add(-30 * 24 * time.Hour),
	}
	if mutate != nil {
		mutate(&sub)
	}
	require.NoError(t, db.Create(&sub).Error)
	return sub
}

func reloadSubscription(t *testing.T, db *gorm.DB, id uuid.UUID) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, db.Where("id = ?", id).First(&sub).Error)
	return sub
}

func outboxEventsFor(t *testing.T, db *gorm.DB, id uuid.UUID) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, db.Where("aggregate_id = ?", id).Order("created_at ASC").Find(&rows).Error)
	return rows
}
