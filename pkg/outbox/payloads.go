package outbox

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/motorhub/marketplace-backend/pkg/enums"
)

// SubscriptionEvent is the data block shared by every subscription_* event.
type SubscriptionEvent struct {
	SubscriptionID    uuid.UUID                `json:"subscriptionId"`
	UserID            uuid.UUID                `json:"userId"`
	PlanType          enums.PlanType           `json:"planType"`
	PlanValue         decimal.Decimal          `json:"planValue"`
	PreviousStatus    enums.SubscriptionStatus `json:"previousStatus,omitempty"`
	Status            enums.SubscriptionStatus `json:"status"`
	EndDate           time.Time                `json:"endDate"`
	GracePeriodEndsAt *time.Time               `json:"gracePeriodEndsAt,omitempty"`
	AsaasPaymentID    *string                  `json:"asaasPaymentId,omitempty"`
	ExternalReference string                   `json:"externalReference,omitempty"`
}
