package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edgefleet/fleetcore/internal/domain"
)

type logRepository struct {
	db *gorm.DB
}

func (r *logRepository) Insert(ctx context.Context, entry domain.DeviceLog) error {
	rec := deviceLogModel{
		LogID:      entry.LogID,
		DeviceID:   entry.DeviceID,
		OrgID:      entry.OrgID,
		Level:      entry.Level,
		Payload:    entry.Payload,
		Checksum:   entry.Checksum,
		SizeBytes:  entry.SizeBytes,
		Decrypted:  entry.Decrypted,
		IngestedAt: entry.IngestedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		// The (device_id, checksum) unique index is the last line of defense
		// against duplicates that slip past the service-level check.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateLog
		}
		return err
	}
	return nil
}

func (r *logRepository) ExistsByChecksum(ctx context.Context, deviceID uuid.UUID, checksum string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&deviceLogModel{}).
		Where("device_id = ? AND checksum = ?", deviceID, checksum).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *logRepository) ListByDevice(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]domain.DeviceLog, error) {
	var recs []deviceLogModel
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("ingested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	entries := make([]domain.DeviceLog, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, domain.DeviceLog{
			LogID:      rec.LogID,
			DeviceID:   rec.DeviceID,
			OrgID:      rec.OrgID,
			Level:      rec.Level,
			Payload:    rec.Payload,
			Checksum:   rec.Checksum,
			SizeBytes:  rec.SizeBytes,
			Decrypted:  rec.Decrypted,
			IngestedAt: rec.IngestedAt,
		})
	}
	return entries, nil
}

func (r *logRepository) StoredBytesByOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&deviceLogModel{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Where("org_id = ?", orgID).
		Scan(&total).Error
	return total, err
}
