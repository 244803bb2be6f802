package application

import (
	"context"
	"errors"
	"testing"

	"github.com/edgefleet/fleetcore/internal/domain"
)

func TestCreateSubscription(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	org := env.addOrg(domain.PlanPro, 10, 1<<20, 5)
	admin := env.addUser("admin", domain.RoleOrgAdmin, org.OrgID, "password1")

	sub, err := env.svc.CreateSubscription(context.Background(), identityOf(admin), CreateSubscriptionRequest{
		URL:    "https://hooks.example.com/fleet ",
		Events: []string{"device.registered", " quota.warning", "device.registered", ""},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.URL != "https://hooks.example.com/fleet" {
		t.Fatalf("url = %q", sub.URL)
	}
	if len(sub.Events) != 2 {
		t.Fatalf("events should be trimmed and deduped, got %v", sub.Events)
	}
	if len(sub.Secret) != 64 {
		t.Fatalf("secret should be 64 hex chars, got %d", len(sub.Secret))
	}
	if !sub.IsActive || sub.FailureCount != 0 {
		t.Fatalf("new subscription state: %+v", sub)
	}
}

func TestCreateSubscriptionValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	org := env.addOrg(domain.PlanPro, 10, 1<<20, 5)
	admin := env.addUser("admin", domain.RoleOrgAdmin, org.OrgID, "password1")
	tech := env.addUser("tech", domain.RoleTechnician, org.OrgID, "password1")

	cases := []struct {
		name string
		req  CreateSubscriptionRequest
	}{
		{"missing scheme", CreateSubscriptionRequest{URL: "hooks.example.com", Events: []string{"device.registered"}}},
		{"ftp scheme", CreateSubscriptionRequest{URL: "ftp://hooks.example.com", Events: []string{"device.registered"}}},
		{"no events", CreateSubscriptionRequest{URL: "https://hooks.example.com", Events: []string{" ", ""}}},
	}
	for _, tc := range cases {
		if _, err := env.svc.CreateSubscription(context.Background(), identityOf(admin), tc.req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%s: got %v", tc.name, err)
		}
	}

	if _, err := env.svc.CreateSubscription(context.Background(), identityOf(tech), CreateSubscriptionRequest{
		URL: "https://hooks.example.com", Events: []string{"device.registered"},
	}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("technician must not create subscriptions, got %v", err)
	}
}

func TestListSubscriptionsBlanksSecrets(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	org := env.addOrg(domain.PlanPro, 10, 1<<20, 5)
	admin := env.addUser("admin", domain.RoleOrgAdmin, org.OrgID, "password1")

	created, err := env.svc.CreateSubscription(context.Background(), identityOf(admin), CreateSubscriptionRequest{
		URL: "https://hooks.example.com", Events: []string{"device.registered"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Secret == "" {
		t.Fatal("creation is the one place the secret is shown")
	}

	subs, err := env.svc.ListSubscriptions(context.Background(), identityOf(admin), org.OrgID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("want 1 subscription, got %d", len(subs))
	}
	if subs[0].Secret != "" {
		t.Fatal("listed subscriptions must not expose secrets")
	}
}

func TestDeleteAndReactivateSubscriptionAuthorization(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	orgA := env.addOrg(domain.PlanPro, 10, 1<<20, 5)
	orgB := env.addOrg(domain.PlanPro, 10, 1<<20, 5)
	admin := env.addUser("admin", domain.RoleOrgAdmin, orgA.OrgID, "password1")
	outsider := env.addUser("outsider", domain.RoleOrgAdmin, orgB.OrgID, "password1")

	sub, err := env.svc.CreateSubscription(context.Background(), identityOf(admin), CreateSubscriptionRequest{
		URL: "https://hooks.example.com", Events: []string{"device.registered"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.svc.DeleteSubscription(context.Background(), identityOf(outsider), sub.SubscriptionID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign admin must not delete, got %v", err)
	}
	if err := env.svc.ReactivateSubscription(context.Background(), identityOf(outsider), sub.SubscriptionID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign admin must not reactivate, got %v", err)
	}

	// Reactivation clears the disabled state an operator is recovering from.
	env.webhooks.mu.Lock()
	env.webhooks.subs[sub.SubscriptionID].IsActive = false
	env.webhooks.subs[sub.SubscriptionID].FailureCount = 10
	env.webhooks.mu.Unlock()

	if err := env.svc.ReactivateSubscription(context.Background(), identityOf(admin), sub.SubscriptionID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	restored, err := env.webhooks.GetByID(context.Background(), sub.SubscriptionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !restored.IsActive || restored.FailureCount != 0 {
		t.Fatalf("reactivated state: %+v", restored)
	}

	if err := env.svc.DeleteSubscription(context.Background(), identityOf(admin), sub.SubscriptionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.svc.DeleteSubscription(context.Background(), identityOf(admin), sub.SubscriptionID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
}

func TestTestSubscriptionFiresEvent(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	org := env.addOrg(domain.PlanPro, 10, 1<<20, 5)
	admin := env.addUser("admin", domain.RoleOrgAdmin, org.OrgID, "password1")

	if err := env.svc.TestSubscription(context.Background(), identityOf(admin), org.OrgID); err != nil {
		t.Fatalf("test: %v", err)
	}
	events := env.dispatcher.byEvent(domain.EventWebhookTest)
	if len(events) != 1 || events[0].OrgID != org.OrgID {
		t.Fatalf("want 1 webhook.test event for the org, got %+v", events)
	}
}
