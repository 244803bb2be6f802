package application

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
)

// CreateSubscription registers a webhook endpoint for an organization. The
// signing secret is generated server-side and returned once in the created
// record; subscribers use it to verify delivery signatures.
func (s *Service) CreateSubscription(ctx context.Context, actor domain.Identity, req CreateSubscriptionRequest) (domain.WebhookSubscription, error) {
	orgID, err := s.resolveOrg(actor, req.OrgID, domain.RoleOrgAdmin)
	if err != nil {
		return domain.WebhookSubscription{}, err
	}

	parsed, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return domain.WebhookSubscription{}, fmt.Errorf("%w: a valid http(s) url is required", domain.ErrInvalidInput)
	}
	events := dedupeEvents(req.Events)
	if len(events) == 0 {
		return domain.WebhookSubscription{}, fmt.Errorf("%w: at least one event is required", domain.ErrInvalidInput)
	}

	secret, err := randomHex(32)
	if err != nil {
		return domain.WebhookSubscription{}, err
	}

	sub := domain.WebhookSubscription{
		SubscriptionID: uuid.New(),
		OrgID:          orgID,
		URL:            parsed.String(),
		Secret:         secret,
		Events:         events,
		IsActive:       true,
		CreatedAt:      s.nowFn(),
	}
	return s.webhooks.Create(ctx, sub)
}

// ListSubscriptions returns all subscriptions of an organization. Secrets
// are blanked; they are only ever shown at creation time.
func (s *Service) ListSubscriptions(ctx context.Context, actor domain.Identity, orgID uuid.UUID) ([]domain.WebhookSubscription, error) {
	resolved, err := s.resolveOrg(actor, orgID, domain.RoleOrgAdmin)
	if err != nil {
		return nil, err
	}
	subs, err := s.webhooks.ListByOrg(ctx, resolved)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].Secret = ""
	}
	return subs, nil
}

// DeleteSubscription removes a subscription.
func (s *Service) DeleteSubscription(ctx context.Context, actor domain.Identity, subscriptionID uuid.UUID) error {
	sub, err := s.webhooks.GetByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if _, err := s.resolveOrg(actor, sub.OrgID, domain.RoleOrgAdmin); err != nil {
		return err
	}
	return s.webhooks.Delete(ctx, subscriptionID)
}

// ReactivateSubscription is the operator path out of auto-disabled state:
// it clears the failure count and re-enables delivery. Nothing re-enables a
// subscription automatically.
func (s *Service) ReactivateSubscription(ctx context.Context, actor domain.Identity, subscriptionID uuid.UUID) error {
	sub, err := s.webhooks.GetByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if _, err := s.resolveOrg(actor, sub.OrgID, domain.RoleOrgAdmin); err != nil {
		return err
	}
	return s.webhooks.Reactivate(ctx, subscriptionID)
}

// TestSubscription fires a webhook.test event at the organization so a new
// endpoint can be verified end to end.
func (s *Service) TestSubscription(ctx context.Context, actor domain.Identity, orgID uuid.UUID) error {
	resolved, err := s.resolveOrg(actor, orgID, domain.RoleOrgAdmin)
	if err != nil {
		return err
	}
	s.dispatcher.Dispatch(ctx, resolved, domain.EventWebhookTest, map[string]any{
		"message": "test delivery",
	})
	return nil
}

func dedupeEvents(events []string) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
