package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Organization is the tenant aggregate. Quota ceilings live on the record
// itself so enforcement needs a single lookup per check.
type Organization struct {
	OrgID           uuid.UUID
	Name            string
	Plan            string
	MaxDevices      int64
	MaxStorageBytes int64
	MaxUsers        int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// QuotaStatus is the outcome of a single quota check against live usage.
type QuotaStatus struct {
	Allowed bool  `json:"allowed"`
	Used    int64 `json:"used"`
	Max     int64 `json:"max"`
}
