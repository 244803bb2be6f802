package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
)

// Wire representations of domain types. Keeping the JSON shapes here lets
// the domain structs stay free of serialization concerns.

type identityView struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	OrgID    uuid.UUID `json:"org_id,omitempty"`
}

func toIdentityView(identity domain.Identity) identityView {
	return identityView{
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     string(identity.Role),
		OrgID:    identity.OrgID,
	}
}

type loginView struct {
	Token    string       `json:"token"`
	Identity identityView `json:"identity"`
}

type deviceView struct {
	DeviceID     uuid.UUID  `json:"device_id"`
	OrgID        uuid.UUID  `json:"org_id"`
	Name         string     `json:"name"`
	Model        string     `json:"model,omitempty"`
	FirmwareVer  string     `json:"firmware_ver,omitempty"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
}

func toDeviceView(device domain.Device) deviceView {
	return deviceView{
		DeviceID:     device.DeviceID,
		OrgID:        device.OrgID,
		Name:         device.Name,
		Model:        device.Model,
		FirmwareVer:  device.FirmwareVer,
		LastSeenAt:   device.LastSeenAt,
		RegisteredAt: device.RegisteredAt,
	}
}

func toDeviceViews(devices []domain.Device) []deviceView {
	views := make([]deviceView, 0, len(devices))
	for _, device := range devices {
		views = append(views, toDeviceView(device))
	}
	return views
}

type logView struct {
	LogID      uuid.UUID `json:"log_id"`
	DeviceID   uuid.UUID `json:"device_id"`
	Level      string    `json:"level"`
	Payload    string    `json:"payload"`
	Checksum   string    `json:"checksum"`
	SizeBytes  int64     `json:"size_bytes"`
	Decrypted  bool      `json:"decrypted"`
	IngestedAt time.Time `json:"ingested_at"`
}

func toLogViews(entries []domain.DeviceLog) []logView {
	views := make([]logView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, logView{
			LogID:      entry.LogID,
			DeviceID:   entry.DeviceID,
			Level:      entry.Level,
			Payload:    entry.Payload,
			Checksum:   entry.Checksum,
			SizeBytes:  entry.SizeBytes,
			Decrypted:  entry.Decrypted,
			IngestedAt: entry.IngestedAt,
		})
	}
	return views
}

type subscriptionView struct {
	SubscriptionID  uuid.UUID  `json:"subscription_id"`
	OrgID           uuid.UUID  `json:"org_id"`
	URL             string     `json:"url"`
	Secret          string     `json:"secret,omitempty"`
	Events          []string   `json:"events"`
	IsActive        bool       `json:"is_active"`
	FailureCount    int        `json:"failure_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toSubscriptionView(sub domain.WebhookSubscription) subscriptionView {
	return subscriptionView{
		SubscriptionID:  sub.SubscriptionID,
		OrgID:           sub.OrgID,
		URL:             sub.URL,
		Secret:          sub.Secret,
		Events:          sub.Events,
		IsActive:        sub.IsActive,
		FailureCount:    sub.FailureCount,
		LastTriggeredAt: sub.LastTriggeredAt,
		CreatedAt:       sub.CreatedAt,
	}
}
