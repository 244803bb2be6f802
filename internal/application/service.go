// Package application implements the use-case layer: authentication, device
// registry, log ingestion, webhook subscription management, and quota
// enforcement, wired through the ports package.
package application

import (
	"time"

	"github.com/edgefleet/fleetcore/internal/ingest"
	"github.com/edgefleet/fleetcore/internal/ports"
)

// Config is the application-layer tuning surface.
type Config struct {
	// QuotaWarningRatio is the usage fraction at or above which every
	// enforcement call emits a quota.warning event. Warnings are not
	// deduplicated across calls.
	QuotaWarningRatio float64
}

type Service struct {
	cfg        Config
	users      ports.UserRepository
	orgs       ports.OrgRepository
	devices    ports.DeviceRepository
	logs       ports.LogRepository
	deviceKeys ports.DeviceKeyStore
	webhooks   ports.WebhookRepository
	hasher     ports.PasswordHasher
	tokens     ports.TokenService
	logins     ports.LoginTracker
	dispatcher ports.EventDispatcher
	gate       *ingest.Gate
	nowFn      func() time.Time
}

type Dependencies struct {
	Config     Config
	Users      ports.UserRepository
	Orgs       ports.OrgRepository
	Devices    ports.DeviceRepository
	Logs       ports.LogRepository
	DeviceKeys ports.DeviceKeyStore
	Webhooks   ports.WebhookRepository
	Hasher     ports.PasswordHasher
	Tokens     ports.TokenService
	Logins     ports.LoginTracker
	Dispatcher ports.EventDispatcher
	NowFn      func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.QuotaWarningRatio <= 0 || cfg.QuotaWarningRatio >= 1 {
		cfg.QuotaWarningRatio = 0.8
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = ports.NopDispatcher{}
	}
	nowFn := deps.NowFn
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:        cfg,
		users:      deps.Users,
		orgs:       deps.Orgs,
		devices:    deps.Devices,
		logs:       deps.Logs,
		deviceKeys: deps.DeviceKeys,
		webhooks:   deps.Webhooks,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		logins:     deps.Logins,
		dispatcher: dispatcher,
		gate:       ingest.NewGate(deps.DeviceKeys),
		nowFn:      nowFn,
	}
}
