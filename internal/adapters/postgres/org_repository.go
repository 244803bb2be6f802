package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edgefleet/fleetcore/internal/domain"
)

type orgRepository struct {
	db *gorm.DB
}

func (r *orgRepository) GetByID(ctx context.Context, orgID uuid.UUID) (domain.Organization, error) {
	var rec orgModel
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Organization{}, domain.ErrNotFound
		}
		return domain.Organization{}, err
	}
	return toDomainOrg(rec), nil
}

func (r *orgRepository) Create(ctx context.Context, org domain.Organization) (domain.Organization, error) {
	rec := orgModel{
		Name:            org.Name,
		Plan:            org.Plan,
		MaxDevices:      org.MaxDevices,
		MaxStorageBytes: org.MaxStorageBytes,
		MaxUsers:        org.MaxUsers,
		CreatedAt:       org.CreatedAt,
		UpdatedAt:       org.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Organization{}, err
	}
	return toDomainOrg(rec), nil
}

func toDomainOrg(rec orgModel) domain.Organization {
	return domain.Organization{
		OrgID:           rec.OrgID,
		Name:            rec.Name,
		Plan:            rec.Plan,
		MaxDevices:      rec.MaxDevices,
		MaxStorageBytes: rec.MaxStorageBytes,
		MaxUsers:        rec.MaxUsers,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}
