package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/motorhub/marketplace-backend/pkg/enums"
)

// Subscription persists a user's plan and its billing lifecycle.
type Subscription struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanType          enums.PlanType           `gorm:"column:plan_type;type:plan_type;not null"`
	PlanValue         decimal.Decimal          `gorm:"column:plan_value;type:numeric(12,2);not null"`
	AsaasCustomerID   *string                  `gorm:"column:asaas_customer_id"`
	AsaasPaymentID    *string                  `gorm:"column:asaas_payment_id"`
	Status            enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	StartDate         time.Time                `gorm:"column:start_date;not null"`
	EndDate           time.Time                `gorm:"column:end_date;not null"`
	GracePeriodEndsAt *time.Time               `gorm:"column:grace_period_ends_at"`
	BlockedAt         *time.Time               `gorm:"column:blocked_at"`
	CancelledAt       *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// HasBillingCustomer reports whether the provider knows who pays for this subscription.
func (s Subscription) HasBillingCustomer() bool {
	return s.AsaasCustomerID != nil && *s.AsaasCustomerID != ""
}
