package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/ports"
)

type deviceRepository struct {
	db *gorm.DB
}

func (r *deviceRepository) Create(ctx context.Context, params ports.CreateDeviceParams) (domain.Device, error) {
	rec := deviceModel{
		OrgID:        params.OrgID,
		Name:         params.Name,
		Model:        params.Model,
		FirmwareVer:  params.FirmwareVer,
		RegisteredAt: params.RegisteredAtUTC,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Device{}, err
	}
	return toDomainDevice(rec), nil
}

func (r *deviceRepository) GetByID(ctx context.Context, deviceID uuid.UUID) (domain.Device, error) {
	var rec deviceModel
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Device{}, domain.ErrNotFound
		}
		return domain.Device{}, err
	}
	return toDomainDevice(rec), nil
}

func (r *deviceRepository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]domain.Device, error) {
	var recs []deviceModel
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("registered_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	devices := make([]domain.Device, 0, len(recs))
	for _, rec := range recs {
		devices = append(devices, toDomainDevice(rec))
	}
	return devices, nil
}

func (r *deviceRepository) Delete(ctx context.Context, deviceID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Delete(&deviceModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *deviceRepository) CountByOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&deviceModel{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	return count, err
}

type deviceKeyRepository struct {
	db *gorm.DB
}

func (r *deviceKeyRepository) Get(ctx context.Context, deviceID uuid.UUID) (domain.DeviceKey, error) {
	var rec deviceKeyModel
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DeviceKey{}, domain.ErrNotFound
		}
		return domain.DeviceKey{}, err
	}
	return domain.DeviceKey{DeviceID: rec.DeviceID, Key: rec.Key, RotatedAt: rec.RotatedAt}, nil
}

func (r *deviceKeyRepository) Set(ctx context.Context, deviceID uuid.UUID, key []byte, rotatedAt time.Time) error {
	rec := deviceKeyModel{DeviceID: deviceID, Key: key, RotatedAt: rotatedAt}
	return r.db.WithContext(ctx).
		Exec(`INSERT INTO device_keys (device_id, key_material, rotated_at) VALUES (?, ?, ?)
		      ON CONFLICT (device_id) DO UPDATE SET key_material = EXCLUDED.key_material, rotated_at = EXCLUDED.rotated_at`,
			rec.DeviceID, rec.Key, rec.RotatedAt).Error
}

func (r *deviceKeyRepository) Delete(ctx context.Context, deviceID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("device_id = ?", deviceID).Delete(&deviceKeyModel{}).Error
}

func toDomainDevice(rec deviceModel) domain.Device {
	return domain.Device{
		DeviceID:     rec.DeviceID,
		OrgID:        rec.OrgID,
		Name:         rec.Name,
		Model:        rec.Model,
		FirmwareVer:  rec.FirmwareVer,
		LastSeenAt:   rec.LastSeenAt,
		RegisteredAt: rec.RegisteredAt,
	}
}
