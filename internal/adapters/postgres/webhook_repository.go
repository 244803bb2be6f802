package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edgefleet/fleetcore/internal/domain"
)

type webhookRepository struct {
	db *gorm.DB
}

func (r *webhookRepository) Create(ctx context.Context, sub domain.WebhookSubscription) (domain.WebhookSubscription, error) {
	rec := toWebhookModel(sub)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.WebhookSubscription{}, err
	}
	return toDomainWebhook(rec), nil
}

func (r *webhookRepository) GetByID(ctx context.Context, subscriptionID uuid.UUID) (domain.WebhookSubscription, error) {
	var rec webhookSubscriptionModel
	if err := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.WebhookSubscription{}, domain.ErrNotFound
		}
		return domain.WebhookSubscription{}, err
	}
	return toDomainWebhook(rec), nil
}

func (r *webhookRepository) ListActiveByOrgEvent(ctx context.Context, orgID uuid.UUID, event string) ([]domain.WebhookSubscription, error) {
	var recs []webhookSubscriptionModel
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND is_active", orgID).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	// Event filtering happens here rather than in SQL because events are
	// stored as a comma-separated list.
	subs := make([]domain.WebhookSubscription, 0, len(recs))
	for _, rec := range recs {
		sub := toDomainWebhook(rec)
		if sub.Subscribed(event) {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (r *webhookRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]domain.WebhookSubscription, error) {
	var recs []webhookSubscriptionModel
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	subs := make([]domain.WebhookSubscription, 0, len(recs))
	for _, rec := range recs {
		subs = append(subs, toDomainWebhook(rec))
	}
	return subs, nil
}

func (r *webhookRepository) Delete(ctx context.Context, subscriptionID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Delete(&webhookSubscriptionModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *webhookRepository) RecordSuccess(ctx context.Context, subscriptionID uuid.UUID, triggeredAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&webhookSubscriptionModel{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"failure_count":     0,
			"last_triggered_at": triggeredAt,
		}).Error
}

// RecordFailure increments the consecutive-failure count and deactivates the
// subscription in the same statement when the threshold is reached, so two
// concurrent deliveries cannot lose an increment or race the disable.
func (r *webhookRepository) RecordFailure(ctx context.Context, subscriptionID uuid.UUID, disableAt int) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Raw(`
		UPDATE webhook_subscriptions
		SET failure_count = failure_count + 1,
		    is_active = CASE WHEN failure_count + 1 >= ? THEN FALSE ELSE is_active END
		WHERE subscription_id = ?
		RETURNING failure_count`,
		disableAt, subscriptionID).Scan(&count).Error
	return count, err
}

func (r *webhookRepository) Reactivate(ctx context.Context, subscriptionID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&webhookSubscriptionModel{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"is_active":     true,
			"failure_count": 0,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toWebhookModel(sub domain.WebhookSubscription) webhookSubscriptionModel {
	return webhookSubscriptionModel{
		SubscriptionID:  sub.SubscriptionID,
		OrgID:           sub.OrgID,
		URL:             sub.URL,
		Secret:          sub.Secret,
		Events:          strings.Join(sub.Events, ","),
		IsActive:        sub.IsActive,
		FailureCount:    sub.FailureCount,
		LastTriggeredAt: sub.LastTriggeredAt,
		CreatedAt:       sub.CreatedAt,
	}
}

func toDomainWebhook(rec webhookSubscriptionModel) domain.WebhookSubscription {
	var events []string
	if rec.Events != "" {
		events = strings.Split(rec.Events, ",")
	}
	return domain.WebhookSubscription{
		SubscriptionID:  rec.SubscriptionID,
		OrgID:           rec.OrgID,
		URL:             rec.URL,
		Secret:          rec.Secret,
		Events:          events,
		IsActive:        rec.IsActive,
		FailureCount:    rec.FailureCount,
		LastTriggeredAt: rec.LastTriggeredAt,
		CreatedAt:       rec.CreatedAt,
	}
}
