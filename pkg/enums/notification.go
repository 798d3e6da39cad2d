package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypePaymentDue         NotificationType = "payment_due"
	NotificationTypeAccountBlocked     NotificationType = "account_blocked"
	NotificationTypeSubscriptionUpdate NotificationType = "subscription_update"
)

var validNotificationTypes = []NotificationType{
	NotificationTypePaymentDue,
	NotificationTypeAccountBlocked,
	NotificationTypeSubscriptionUpdate,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
