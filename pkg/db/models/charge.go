package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/motorhub/marketplace-backend/pkg/enums"
)

// Charge records a renewal charge issued to the payment provider.
type Charge struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID    uuid.UUID          `gorm:"column:subscription_id;type:uuid;not null;index"`
	AsaasCustomerID   string             `gorm:"column:asaas_customer_id;not null"`
	AsaasPaymentID    string             `gorm:"column:asaas_payment_id;not null"`
	ExternalReference string             `gorm:"column:external_reference;not null;unique"`
	BillingPeriod     time.Time          `gorm:"column:billing_period;not null"`
	Amount            decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	BillingType       enums.BillingType  `gorm:"column:billing_type;not null;default:'PIX'"`
	DueDate           string             `gorm:"column:due_date;not null"`
	Description       string             `gorm:"column:description;not null"`
	Status            enums.ChargeStatus `gorm:"column:status;type:charge_status;not null;default:'pending'"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (Charge) TableName() string {
	return "subscription_charges"
}
