// Package postgres implements the repository ports over GORM.
package postgres

import (
	"gorm.io/gorm"

	"github.com/edgefleet/fleetcore/internal/ports"
)

// Repositories bundles every Postgres-backed port implementation.
type Repositories struct {
	Users      ports.UserRepository
	Orgs       ports.OrgRepository
	Devices    ports.DeviceRepository
	Logs       ports.LogRepository
	DeviceKeys ports.DeviceKeyStore
	Webhooks   ports.WebhookRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:      &userRepository{db: db},
		Orgs:       &orgRepository{db: db},
		Devices:    &deviceRepository{db: db},
		Logs:       &logRepository{db: db},
		DeviceKeys: &deviceKeyRepository{db: db},
		Webhooks:   &webhookRepository{db: db},
	}
}
