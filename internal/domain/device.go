package domain

import (
	"time"

	"github.com/google/uuid"
)

// Device is a registered fleet member owned by exactly one organization.
type Device struct {
	DeviceID     uuid.UUID
	OrgID        uuid.UUID
	Name         string
	Model        string
	FirmwareVer  string
	LastSeenAt   *time.Time
	RegisteredAt time.Time
}

// DeviceKey is the per-device pre-shared key used to decrypt that device's
// log uploads. The key material never leaves the service once set.
type DeviceKey struct {
	DeviceID  uuid.UUID
	Key       []byte
	RotatedAt time.Time
}

// DeviceLog is a stored log entry after ingestion. Checksum is the SHA-256
// hex digest of the stored payload, recomputed by the service when the
// payload arrived encrypted.
type DeviceLog struct {
	LogID      uuid.UUID
	DeviceID   uuid.UUID
	OrgID      uuid.UUID
	Level      string
	Payload    string
	Checksum   string
	SizeBytes  int64
	Decrypted  bool
	IngestedAt time.Time
}
