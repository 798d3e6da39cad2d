package subscriptions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
)

// ItemError describes one subscription the run could not process.
type ItemError struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	Step           string    `json:"step"`
	Message        string    `json:"message"`
}

func (e ItemError) Error() string {
	return "subscription " + e.SubscriptionID.String() + " (" + e.Step + "): " + e.Message
}

func newItemError(id uuid.UUID, step, message string) *ItemError {
	return &ItemError{SubscriptionID: id, Step: step, Message: message}
}

// Report is the outcome of one lifecycle run.
type Report struct {
	ProcessedExpired int         `json:"processedExpired"`
	ProcessedBlocked int         `json:"processedBlocked"`
	Errors           []ItemError `json:"errors"`
	TotalExpired     int         `json:"totalExpired"`
	TotalBlocked     int         `json:"totalBlocked"`
}

func (r *Report) addError(err ItemError) {
	r.Errors = append(r.Errors, err)
}

// StatusReport is the read-only view served by the trigger endpoint's GET.
type StatusReport struct {
	Status     string                `json:"status"`
	Statistics StatusStatistics      `json:"statistics"`
	Expired    []SubscriptionSummary `json:"expired"`
	Blockable  []SubscriptionSummary `json:"blockable"`
}

type StatusStatistics struct {
	ExpiredSubscriptions   int        `json:"expiredSubscriptions"`
	BlockableSubscriptions int        `json:"blockableSubscriptions"`
	LastCheck              time.Time  `json:"lastCheck"`
	LastRun                *time.Time `json:"lastRun,omitempty"`
}

// SubscriptionSummary is the compact row listed in status reports.
type SubscriptionSummary struct {
	ID                uuid.UUID                `json:"id"`
	UserID            uuid.UUID                `json:"userId"`
	PlanType          enums.PlanType           `json:"planType"`
	Status            enums.SubscriptionStatus `json:"status"`
	EndDate           time.Time                `json:"endDate"`
	GracePeriodEndsAt *time.Time               `json:"gracePeriodEndsAt,omitempty"`
	HasCustomer       bool                     `json:"hasBillingCustomer"`
}

func summarize(subs []models.Subscription) []SubscriptionSummary {
	out := make([]SubscriptionSummary, 0, len(subs))
	for _, sub := range subs {
		out = append(out, SubscriptionSummary{
			ID:                sub.ID,
			UserID:            sub.UserID,
			PlanType:          sub.PlanType,
			Status:            sub.Status,
			EndDate:           sub.EndDate,
			GracePeriodEndsAt: sub.GracePeriodEndsAt,
			HasCustomer:       sub.HasBillingCustomer(),
		})
	}
	return out
}

// SubscriptionDTO is the API shape of a subscription.
type SubscriptionDTO struct {
	ID                uuid.UUID                `json:"id"`
	UserID            uuid.UUID                `json:"userId"`
	PlanType          enums.PlanType           `json:"planType"`
	PlanValue         decimal.Decimal          `json:"planValue"`
	Status            enums.SubscriptionStatus `json:"status"`
	AsaasCustomerID   *string                  `json:"asaasCustomerId,omitempty"`
	AsaasPaymentID    *string                  `json:"asaasPaymentId,omitempty"`
	StartDate         time.Time                `json:"startDate"`
	EndDate           time.Time                `json:"endDate"`
	GracePeriodEndsAt *time.Time               `json:"gracePeriodEndsAt,omitempty"`
	BlockedAt         *time.Time               `json:"blockedAt,omitempty"`
	CancelledAt       *time.Time               `json:"cancelledAt,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
}

// ToDTO maps a stored subscription; nil stays nil.
func ToDTO(sub *models.Subscription) *SubscriptionDTO {
	if sub == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:                sub.ID,
		UserID:            sub.UserID,
		PlanType:          sub.PlanType,
		PlanValue:         sub.PlanValue,
		Status:            sub.Status,
		AsaasCustomerID:   sub.AsaasCustomerID,
		AsaasPaymentID:    sub.AsaasPaymentID,
		StartDate:         sub.StartDate,
		EndDate:           sub.EndDate,
		GracePeriodEndsAt: sub.GracePeriodEndsAt,
		BlockedAt:         sub.BlockedAt,
		CancelledAt:       sub.CancelledAt,
		CreatedAt:         sub.CreatedAt,
		UpdatedAt:         sub.UpdatedAt,
	}
}
