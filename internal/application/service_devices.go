package application

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/ports"
)

// RegisterDevice enforces the device quota, creates the device, and fans out
// a device.registered event. The quota check happens-before the write; the
// write never proceeds once enforcement fails.
func (s *Service) RegisterDevice(ctx context.Context, actor domain.Identity, req RegisterDeviceRequest) (domain.Device, error) {
	orgID, err := s.resolveOrg(actor, req.OrgID, domain.RoleTechnician)
	if err != nil {
		return domain.Device{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Device{}, fmt.Errorf("%w: device name is required", domain.ErrInvalidInput)
	}

	if err := s.EnforceDeviceQuota(ctx, orgID); err != nil {
		return domain.Device{}, err
	}

	device, err := s.devices.Create(ctx, ports.CreateDeviceParams{
		OrgID:           orgID,
		Name:            name,
		Model:           strings.TrimSpace(req.Model),
		FirmwareVer:     strings.TrimSpace(req.FirmwareVer),
		RegisteredAtUTC: s.nowFn(),
	})
	if err != nil {
		return domain.Device{}, err
	}

	s.dispatcher.Dispatch(ctx, orgID, domain.EventDeviceRegistered, map[string]any{
		"deviceId": device.DeviceID.String(),
		"name":     device.Name,
		"model":    device.Model,
	})
	return device, nil
}

// ListDevices returns an organization's devices with basic pagination.
func (s *Service) ListDevices(ctx context.Context, actor domain.Identity, orgID uuid.UUID, limit, offset int) ([]domain.Device, error) {
	resolved, err := s.resolveOrg(actor, orgID, domain.RoleViewer)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.devices.ListByOrg(ctx, resolved, limit, offset)
}

// DeleteDevice removes a device and its pre-shared key, then announces the
// deletion to subscribers.
func (s *Service) DeleteDevice(ctx context.Context, actor domain.Identity, deviceID uuid.UUID) error {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if _, err := s.resolveOrg(actor, device.OrgID, domain.RoleTechnician); err != nil {
		return err
	}

	if err := s.devices.Delete(ctx, deviceID); err != nil {
		return err
	}
	_ = s.deviceKeys.Delete(ctx, deviceID)

	s.dispatcher.Dispatch(ctx, device.OrgID, domain.EventDeviceDeleted, map[string]any{
		"deviceId": device.DeviceID.String(),
		"name":     device.Name,
	})
	return nil
}

// SetDeviceKey installs or rotates the device's 32-byte pre-shared key.
// The key is returned exactly once from generation; it is never readable
// afterwards through any surface.
func (s *Service) SetDeviceKey(ctx context.Context, actor domain.Identity, deviceID uuid.UUID) ([]byte, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolveOrg(actor, device.OrgID, domain.RoleOrgAdmin); err != nil {
		return nil, err
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate device key: %w", err)
	}
	if err := s.deviceKeys.Set(ctx, deviceID, key, s.nowFn()); err != nil {
		return nil, err
	}
	return key, nil
}

// RevokeDeviceKey deletes the device's pre-shared key; subsequent uploads
// are stored as plaintext.
func (s *Service) RevokeDeviceKey(ctx context.Context, actor domain.Identity, deviceID uuid.UUID) error {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if _, err := s.resolveOrg(actor, device.OrgID, domain.RoleOrgAdmin); err != nil {
		return err
	}
	return s.deviceKeys.Delete(ctx, deviceID)
}
