package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrder    NotificationType = "order"
	NotificationTypeDelivery NotificationType = "delivery"
	NotificationTypeRewards  NotificationType = "rewards"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypeDelivery,
	NotificationTypeRewards,
}

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
