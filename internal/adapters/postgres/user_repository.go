package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/ports"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, params ports.CreateUserParams) (domain.User, error) {
	rec := userModel{
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
		Role:         string(params.Role),
		IsActive:     true,
		CreatedAt:    params.CreatedAtUTC,
		UpdatedAt:    params.CreatedAtUTC,
	}
	if params.OrgID != uuid.Nil {
		orgID := params.OrgID
		rec.OrgID = &orgID
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) CountByOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("org_id = ? AND is_active", orgID).
		Count(&count).Error
	return count, err
}

func (r *userRepository) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("role = ?", string(role)).
		Count(&count).Error
	return count, err
}

func toDomainUser(rec userModel) domain.User {
	user := domain.User{
		UserID:       rec.UserID,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		Role:         domain.Role(rec.Role),
		IsActive:     rec.IsActive,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if rec.OrgID != nil {
		user.OrgID = *rec.OrgID
	}
	return user
}
