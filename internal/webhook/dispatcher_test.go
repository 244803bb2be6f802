package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
)

type stubSubRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*domain.WebhookSubscription
}

func newStubSubRepo(subs ...domain.WebhookSubscription) *stubSubRepo {
	r := &stubSubRepo{subs: make(map[uuid.UUID]*domain.WebhookSubscription)}
	for i := range subs {
		sub := subs[i]
		r.subs[sub.SubscriptionID] = &sub
	}
	return r
}

func (r *stubSubRepo) Create(_ context.Context, sub domain.WebhookSubscription) (domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.SubscriptionID] = &sub
	return sub, nil
}

func (r *stubSubRepo) GetByID(_ context.Context, id uuid.UUID) (domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return domain.WebhookSubscription{}, domain.ErrNotFound
	}
	return *sub, nil
}

func (r *stubSubRepo) ListActiveByOrgEvent(_ context.Context, orgID uuid.UUID, event string) ([]domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookSubscription
	for _, sub := range r.subs {
		if sub.OrgID == orgID && sub.IsActive && sub.Subscribed(event) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *stubSubRepo) ListByOrg(_ context.Context, orgID uuid.UUID) ([]domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookSubscription
	for _, sub := range r.subs {
		if sub.OrgID == orgID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *stubSubRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	return nil
}

func (r *stubSubRepo) RecordSuccess(ctx context.Context, id uuid.UUID, triggeredAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[id]; ok {
		sub.FailureCount = 0
		sub.LastTriggeredAt = &triggeredAt
	}
	return nil
}

// RecordFailure rejects expired contexts the way the database adapter would.
func (r *stubSubRepo) RecordFailure(ctx context.Context, id uuid.UUID, disableAt int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	sub.FailureCount++
	if sub.FailureCount >= disableAt {
		sub.IsActive = false
	}
	return sub.FailureCount, nil
}

func (r *stubSubRepo) Reactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.IsActive = true
	sub.FailureCount = 0
	return nil
}

type capturedRequest struct {
	signature string
	event     string
	body      []byte
}

func TestDispatchDeliversSignedEnvelope(t *testing.T) {
	t.Parallel()

	captured := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured <- capturedRequest{
			signature: r.Header.Get(HeaderSignature),
			event:     r.Header.Get(HeaderEvent),
			body:      body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	orgID := uuid.New()
	sub := domain.WebhookSubscription{
		SubscriptionID: uuid.New(),
		OrgID:          orgID,
		URL:            srv.URL,
		Secret:         "sub-secret",
		Events:         []string{domain.EventDeviceRegistered},
		IsActive:       true,
	}
	repo := newStubSubRepo(sub)
	d := NewDispatcher(repo)

	d.Dispatch(context.Background(), orgID, domain.EventDeviceRegistered, map[string]any{"device_id": "d-1"})
	d.Flush()

	select {
	case got := <-captured:
		if got.event != domain.EventDeviceRegistered {
			t.Fatalf("event header = %q", got.event)
		}
		want := Sign("sub-secret", got.body)
		if !hmac.Equal([]byte(got.signature), []byte(want)) {
			t.Fatal("signature must be the HMAC of the exact body bytes")
		}
		var env envelope
		if err := json.Unmarshal(got.body, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Event != domain.EventDeviceRegistered || env.OrgID != orgID.String() {
			t.Fatalf("envelope mismatch: %+v", env)
		}
		if env.Data["device_id"] != "d-1" {
			t.Fatalf("data mismatch: %+v", env.Data)
		}
		if _, err := time.Parse(time.RFC3339, env.Timestamp); err != nil {
			t.Fatalf("timestamp not RFC3339: %q", env.Timestamp)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delivery never arrived")
	}

	stored, err := repo.GetByID(context.Background(), sub.SubscriptionID)
	if err != nil {
		t.Fatalf("get sub: %v", err)
	}
	if stored.FailureCount != 0 || stored.LastTriggeredAt == nil {
		t.Fatalf("success bookkeeping not applied: %+v", stored)
	}
}

func TestDispatchSkipsUnmatchedSubscriptions(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	orgID := uuid.New()
	repo := newStubSubRepo(
		domain.WebhookSubscription{
			SubscriptionID: uuid.New(),
			OrgID:          orgID,
			URL:            srv.URL,
			Events:         []string{domain.EventQuotaWarning},
			IsActive:       true,
		},
		domain.WebhookSubscription{
			SubscriptionID: uuid.New(),
			OrgID:          orgID,
			URL:            srv.URL,
			Events:         []string{domain.EventDeviceDeleted},
			IsActive:       false,
		},
	)
	d := NewDispatcher(repo)

	d.Dispatch(context.Background(), orgID, domain.EventDeviceDeleted, nil)
	d.Flush()

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 0 {
		t.Fatalf("no subscription matches device.deleted while active, got %d calls", got)
	}
}

func TestDeliveryFailureCountsAndAutoDisables(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	orgID := uuid.New()
	sub := domain.WebhookSubscription{
		SubscriptionID: uuid.New(),
		OrgID:          orgID,
		URL:            srv.URL,
		Secret:         "s",
		Events:         []string{domain.EventQuotaExceeded},
		IsActive:       true,
	}
	repo := newStubSubRepo(sub)
	d := NewDispatcher(repo)

	for i := 0; i < domain.WebhookAutoDisableThreshold; i++ {
		d.Dispatch(context.Background(), orgID, domain.EventQuotaExceeded, nil)
		d.Flush()
	}

	stored, err := repo.GetByID(context.Background(), sub.SubscriptionID)
	if err != nil {
		t.Fatalf("get sub: %v", err)
	}
	if stored.FailureCount != domain.WebhookAutoDisableThreshold {
		t.Fatalf("failure count = %d, want %d", stored.FailureCount, domain.WebhookAutoDisableThreshold)
	}
	if stored.IsActive {
		t.Fatal("subscription should auto-disable at the threshold")
	}

	// The disabled subscription receives nothing further.
	d.Dispatch(context.Background(), orgID, domain.EventQuotaExceeded, nil)
	d.Flush()

	mu.Lock()
	finalCalls := calls
	mu.Unlock()
	if finalCalls != domain.WebhookAutoDisableThreshold {
		t.Fatalf("disabled subscription still receiving deliveries: %d calls", finalCalls)
	}

	// Reactivation is an explicit operator action and restores delivery.
	if err := repo.Reactivate(context.Background(), sub.SubscriptionID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	d.Dispatch(context.Background(), orgID, domain.EventQuotaExceeded, nil)
	d.Flush()

	mu.Lock()
	afterReactivate := calls
	mu.Unlock()
	if afterReactivate != domain.WebhookAutoDisableThreshold+1 {
		t.Fatalf("reactivated subscription should deliver again, got %d calls", afterReactivate)
	}
}

func TestTimeoutFailureIsCounted(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	orgID := uuid.New()
	sub := domain.WebhookSubscription{
		SubscriptionID: uuid.New(),
		OrgID:          orgID,
		URL:            srv.URL,
		Secret:         "s",
		Events:         []string{domain.EventDeviceRegistered},
		IsActive:       true,
	}
	repo := newStubSubRepo(sub)
	d := NewDispatcher(repo)
	d.timeout = 50 * time.Millisecond

	d.Dispatch(context.Background(), orgID, domain.EventDeviceRegistered, nil)
	d.Flush()

	stored, err := repo.GetByID(context.Background(), sub.SubscriptionID)
	if err != nil {
		t.Fatalf("get sub: %v", err)
	}
	if stored.FailureCount != 1 {
		t.Fatalf("hung delivery must count as a failure, got count %d", stored.FailureCount)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	failNext := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		fail := failNext
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	orgID := uuid.New()
	sub := domain.WebhookSubscription{
		SubscriptionID: uuid.New(),
		OrgID:          orgID,
		URL:            srv.URL,
		Secret:         "s",
		Events:         []string{domain.EventWebhookTest},
		IsActive:       true,
	}
	repo := newStubSubRepo(sub)
	d := NewDispatcher(repo)

	for i := 0; i < domain.WebhookAutoDisableThreshold-1; i++ {
		d.Dispatch(context.Background(), orgID, domain.EventWebhookTest, nil)
		d.Flush()
	}

	mu.Lock()
	failNext = false
	mu.Unlock()
	d.Dispatch(context.Background(), orgID, domain.EventWebhookTest, nil)
	d.Flush()

	stored, err := repo.GetByID(context.Background(), sub.SubscriptionID)
	if err != nil {
		t.Fatalf("get sub: %v", err)
	}
	if stored.FailureCount != 0 {
		t.Fatalf("any success must reset the consecutive count, got %d", stored.FailureCount)
	}
	if !stored.IsActive {
		t.Fatal("subscription should remain active")
	}
}

func TestSignIsDeterministicPerSecret(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"webhook.test"}`)
	if Sign("a", body) == Sign("b", body) {
		t.Fatal("different secrets must produce different signatures")
	}
	if Sign("a", body) != Sign("a", body) {
		t.Fatal("signature must be deterministic")
	}
}
