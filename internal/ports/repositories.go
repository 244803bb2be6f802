package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
)

// CreateUserParams captures the inputs for account creation.
type CreateUserParams struct {
	Username     string
	PasswordHash string
	Role         domain.Role
	OrgID        uuid.UUID
	CreatedAtUTC time.Time
}

// UserRepository defines persistence operations for user identities.
type UserRepository interface {
	Create(ctx context.Context, params CreateUserParams) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	CountByOrg(ctx context.Context, orgID uuid.UUID) (int64, error)
	CountByRole(ctx context.Context, role domain.Role) (int64, error)
}

// OrgRepository provides tenant records including quota ceilings.
type OrgRepository interface {
	GetByID(ctx context.Context, orgID uuid.UUID) (domain.Organization, error)
	Create(ctx context.Context, org domain.Organization) (domain.Organization, error)
}

// CreateDeviceParams captures the inputs for device registration.
type CreateDeviceParams struct {
	OrgID           uuid.UUID
	Name            string
	Model           string
	FirmwareVer     string
	RegisteredAtUTC time.Time
}

// DeviceRepository manages fleet membership and per-org usage counts.
type DeviceRepository interface {
	Create(ctx context.Context, params CreateDeviceParams) (domain.Device, error)
	GetByID(ctx context.Context, deviceID uuid.UUID) (domain.Device, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]domain.Device, error)
	Delete(ctx context.Context, deviceID uuid.UUID) error
	CountByOrg(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// LogRepository stores ingested device logs and answers usage/duplicate queries.
type LogRepository interface {
	Insert(ctx context.Context, entry domain.DeviceLog) error
	ExistsByChecksum(ctx context.Context, deviceID uuid.UUID, checksum string) (bool, error)
	ListByDevice(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]domain.DeviceLog, error)
	StoredBytesByOrg(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// DeviceKeyStore owns pre-shared key lifecycle. Get returns domain.ErrNotFound
// when the device has no registered key.
type DeviceKeyStore interface {
	Get(ctx context.Context, deviceID uuid.UUID) (domain.DeviceKey, error)
	Set(ctx context.Context, deviceID uuid.UUID, key []byte, rotatedAt time.Time) error
	Delete(ctx context.Context, deviceID uuid.UUID) error
}

// WebhookRepository manages subscriptions and their delivery bookkeeping.
// RecordFailure must apply the increment and any auto-disable in one update
// so concurrent deliveries to the same subscription cannot lose counts.
type WebhookRepository interface {
	Create(ctx context.Context, sub domain.WebhookSubscription) (domain.WebhookSubscription, error)
	GetByID(ctx context.Context, subscriptionID uuid.UUID) (domain.WebhookSubscription, error)
	ListActiveByOrgEvent(ctx context.Context, orgID uuid.UUID, event string) ([]domain.WebhookSubscription, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]domain.WebhookSubscription, error)
	Delete(ctx context.Context, subscriptionID uuid.UUID) error
	RecordSuccess(ctx context.Context, subscriptionID uuid.UUID, triggeredAt time.Time) error
	RecordFailure(ctx context.Context, subscriptionID uuid.UUID, disableAt int) (int, error)
	Reactivate(ctx context.Context, subscriptionID uuid.UUID) error
}
