package subscriptions

import (
	"fmt"
	"slices"
	"time"

	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
)

// Transition is one edge of the subscription state machine.
type Transition struct {
	From enums.SubscriptionStatus
	To   enums.SubscriptionStatus
}

var validTransitions = map[Transition]bool{
	{enums.SubscriptionStatusActive, enums.SubscriptionStatusPendingPayment}:    true, // renewal charge issued
	{enums.SubscriptionStatusPendingPayment, enums.SubscriptionStatusBlocked}:   true, // grace elapsed
	{enums.SubscriptionStatusPendingPayment, enums.SubscriptionStatusActive}:    true, // payment confirmed
	{enums.SubscriptionStatusBlocked, enums.SubscriptionStatusActive}:           true, // admin reactivation
	{enums.SubscriptionStatusBlocked, enums.SubscriptionStatusCancelled}:        true,
	{enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled}:         true,
	{enums.SubscriptionStatusPendingPayment, enums.SubscriptionStatusCancelled}: true,
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to enums.SubscriptionStatus) bool {
	return validTransitions[Transition{From: from, To: to}]
}

// ValidTransitionsFrom returns all valid target statuses from the given status.
func ValidTransitionsFrom(from enums.SubscriptionStatus) []enums.SubscriptionStatus {
	targets := make([]enums.SubscriptionStatus, 0)
	for t := range validTransitions {
		if t.From == from {
			targets = append(targets, t.To)
		}
	}
	slices.Sort(targets)
	return targets
}

// IsExpired reports whether sub is due for a renewal charge.
func IsExpired(sub models.Subscription, now time.Time) bool {
	return sub.Status == enums.SubscriptionStatusActive && !sub.EndDate.After(now)
}

// IsBlockable reports whether sub has outlived its grace period unpaid.
func IsBlockable(sub models.Subscription, now time.Time) bool {
	return sub.Status == enums.SubscriptionStatusPendingPayment &&
		sub.GracePeriodEndsAt != nil &&
		!sub.GracePeriodEndsAt.After(now)
}

// ExternalReference identifies the charge for the billing period that ends at
// sub.EndDate. Retries for the same period produce the same reference.
func ExternalReference(sub models.Subscription, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("sub_%s_%s", sub.ID.String(), sub.EndDate.In(loc).Format("20060102"))
}

// ChargeDescription is the text the payer sees on the PIX charge.
func ChargeDescription(plan enums.PlanType, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("Renovação automática - Plano %s - %s", plan.Label(), now.In(loc).Format("02/01/2006"))
}
