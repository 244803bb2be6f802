package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event names dispatched to webhook subscribers.
const (
	EventDeviceRegistered = "device.registered"
	EventDeviceDeleted    = "device.deleted"
	EventQuotaWarning     = "quota.warning"
	EventQuotaExceeded    = "quota.exceeded"
	EventWebhookTest      = "webhook.test"
)

// WebhookAutoDisableThreshold is the consecutive-failure count at which a
// subscription is deactivated. Reactivation is an explicit operator action,
// never automatic.
const WebhookAutoDisableThreshold = 10

// WebhookSubscription is an organization-registered delivery endpoint.
// FailureCount resets to zero on any successful delivery; reaching the
// auto-disable threshold flips IsActive off in the same update.
type WebhookSubscription struct {
	SubscriptionID  uuid.UUID
	OrgID           uuid.UUID
	URL             string
	Secret          string
	Events          []string
	IsActive        bool
	FailureCount    int
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
}

// Subscribed reports whether the subscription wants the named event.
func (s WebhookSubscription) Subscribed(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}
