package application

import (
	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
)

type RegisterUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
	OrgID    uuid.UUID   `json:"org_id,omitempty"`
}

type RegisterUserResponse struct {
	UserID uuid.UUID `json:"user_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// IPAddress is filled in by the transport from the observed peer
	// address; it keys the lockout tracker and is never client-settable.
	IPAddress string `json:"-"`
}

type LoginResponse struct {
	Token    string          `json:"token"`
	Identity domain.Identity `json:"identity"`
}

type BootstrapRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// IPAddress is filled in by the transport, as on LoginRequest.
	IPAddress string `json:"-"`
}

type RegisterDeviceRequest struct {
	OrgID       uuid.UUID `json:"org_id,omitempty"`
	Name        string    `json:"name"`
	Model       string    `json:"model"`
	FirmwareVer string    `json:"firmware_ver"`
}

type IngestLogRequest struct {
	DeviceID uuid.UUID `json:"device_id"`
	Level    string    `json:"level"`
	Payload  string    `json:"payload"`
	// Checksum is the caller-supplied SHA-256 hex digest. For encrypted
	// payloads it is advisory only; the stored checksum is recomputed from
	// the recovered plaintext.
	Checksum string `json:"checksum,omitempty"`
}

type IngestLogResponse struct {
	LogID     uuid.UUID `json:"log_id"`
	Checksum  string    `json:"checksum"`
	Decrypted bool      `json:"decrypted"`
}

type CreateSubscriptionRequest struct {
	OrgID  uuid.UUID `json:"org_id,omitempty"`
	URL    string    `json:"url"`
	Events []string  `json:"events"`
}
