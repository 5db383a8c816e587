package enums

import "fmt"

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationTypeLoanCreated          NotificationType = "loan_created"
	NotificationTypeLoanReturned         NotificationType = "loan_returned"
	NotificationTypeLoanRenewed          NotificationType = "loan_renewed"
	NotificationTypeLoanDueSoon          NotificationType = "loan_due_soon"
	NotificationTypeLoanOverdue          NotificationType = "loan_overdue"
	NotificationTypeFineApplied          NotificationType = "fine_applied"
	NotificationTypeFinePaid             NotificationType = "fine_paid"
	NotificationTypeReservationCreated   NotificationType = "reservation_created"
	NotificationTypeReservationConfirmed NotificationType = "reservation_confirmed"
	NotificationTypeReservationCancelled NotificationType = "reservation_cancelled"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeLoanCreated,
	NotificationTypeLoanReturned,
	NotificationTypeLoanRenewed,
	NotificationTypeLoanDueSoon,
	NotificationTypeLoanOverdue,
	NotificationTypeFineApplied,
	NotificationTypeFinePaid,
	NotificationTypeReservationCreated,
	NotificationTypeReservationConfirmed,
	NotificationTypeReservationCancelled,
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

// RelatedKind names the entity a notification points at.
type RelatedKind string

const (
	RelatedKindLoan        RelatedKind = "loan"
	RelatedKindReservation RelatedKind = "reservation"
	RelatedKindFine        RelatedKind = "fine"
)
