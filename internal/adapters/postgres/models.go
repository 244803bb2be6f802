package postgres

import (
	"time"

	"github.com/google/uuid"
)

type orgModel struct {
	OrgID           uuid.UUID `gorm:"column:org_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string    `gorm:"column:name"`
	Plan            string    `gorm:"column:plan"`
	MaxDevices      int64     `gorm:"column:max_devices"`
	MaxStorageBytes int64     `gorm:"column:max_storage_bytes"`
	MaxUsers        int64     `gorm:"column:max_users"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (orgModel) TableName() string { return "organizations" }

type userModel struct {
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string     `gorm:"column:username"`
	PasswordHash string     `gorm:"column:password_hash"`
	Role         string     `gorm:"column:role"`
	OrgID        *uuid.UUID `gorm:"column:org_id"`
	IsActive     bool       `gorm:"column:is_active"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type deviceModel struct {
	DeviceID     uuid.UUID  `gorm:"column:device_id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrgID        uuid.UUID  `gorm:"column:org_id"`
	Name         string     `gorm:"column:name"`
	Model        string     `gorm:"column:model"`
	FirmwareVer  string     `gorm:"column:firmware_ver"`
	LastSeenAt   *time.Time `gorm:"column:last_seen_at"`
	RegisteredAt time.Time  `gorm:"column:registered_at"`
}

func (deviceModel) TableName() string { return "devices" }

type deviceKeyModel struct {
	DeviceID  uuid.UUID `gorm:"column:device_id;type:uuid;primaryKey"`
	Key       []byte    `gorm:"column:key_material"`
	RotatedAt time.Time `gorm:"column:rotated_at"`
}

func (deviceKeyModel) TableName() string { return "device_keys" }

type deviceLogModel struct {
	LogID      uuid.UUID `gorm:"column:log_id;type:uuid;primaryKey"`
	DeviceID   uuid.UUID `gorm:"column:device_id"`
	OrgID      uuid.UUID `gorm:"column:org_id"`
	Level      string    `gorm:"column:level"`
	Payload    string    `gorm:"column:payload"`
	Checksum   string    `gorm:"column:checksum"`
	SizeBytes  int64     `gorm:"column:size_bytes"`
	Decrypted  bool      `gorm:"column:decrypted"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

func (deviceLogModel) TableName() string { return "device_logs" }

type webhookSubscriptionModel struct {
	SubscriptionID  uuid.UUID  `gorm:"column:subscription_id;type:uuid;primaryKey"`
	OrgID           uuid.UUID  `gorm:"column:org_id"`
	URL             string     `gorm:"column:url"`
	Secret          string     `gorm:"column:secret"`
	Events          string     `gorm:"column:events"`
	IsActive        bool       `gorm:"column:is_active"`
	FailureCount    int        `gorm:"column:failure_count"`
	LastTriggeredAt *time.Time `gorm:"column:last_triggered_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
}

func (webhookSubscriptionModel) TableName() string { return "webhook_subscriptions" }
