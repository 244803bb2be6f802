// Package webhook delivers signed event payloads to organization-registered
// endpoints and tracks per-endpoint delivery health.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/metrics"
	"github.com/edgefleet/fleetcore/internal/ports"
)

const (
	// HeaderSignature carries the hex HMAC-SHA256 of the exact body bytes,
	// keyed by the subscription secret. Subscriber implementations reproduce
	// this signature, so header names and signing input are a compatibility
	// contract.
	HeaderSignature = "X-Fleet-Signature"
	HeaderEvent     = "X-Fleet-Event"

	deliveryTimeout = 10 * time.Second

	// bookkeepingTimeout bounds the RecordSuccess/RecordFailure writes.
	// Bookkeeping runs on its own context because the delivery context has
	// usually expired by the time a timed-out delivery is recorded.
	bookkeepingTimeout = 5 * time.Second
)

// envelope is the JSON body POSTed to subscribers.
type envelope struct {
	Event     string         `json:"event"`
	OrgID     string         `json:"orgId"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// Dispatcher fans events out to matching active subscriptions. Deliveries to
// distinct subscriptions run concurrently, each with its own timeout, and
// callers never observe delivery outcomes: failures only accumulate on the
// subscription record, disabling it at the consecutive-failure threshold.
type Dispatcher struct {
	subs    ports.WebhookRepository
	client  *http.Client
	nowFn   func() time.Time
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(subs ports.WebhookRepository) *Dispatcher {
	return &Dispatcher{
		subs:    subs,
		client:  &http.Client{Timeout: deliveryTimeout},
		nowFn:   func() time.Time { return time.Now().UTC() },
		timeout: deliveryTimeout,
	}
}

// Dispatch initiates delivery of event to every active subscription of orgID
// whose event set contains it, then returns without awaiting completion.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID uuid.UUID, event string, data map[string]any) {
	subs, err := d.subs.ListActiveByOrgEvent(ctx, orgID, event)
	if err != nil {
		slog.Default().ErrorContext(ctx, "webhook subscription lookup failed",
			"module", "webhook",
			"operation", "dispatch",
			"outcome", "failure",
			"org_id", orgID,
			"event", event,
			"error", err,
		)
		return
	}
	if len(subs) == 0 {
		return
	}

	body := envelope{
		Event:     event,
		OrgID:     orgID.String(),
		Data:      data,
		Timestamp: d.nowFn().Format(time.RFC3339),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		slog.Default().ErrorContext(ctx, "webhook envelope marshal failed",
			"module", "webhook",
			"operation", "dispatch",
			"outcome", "failure",
			"event", event,
			"error", err,
		)
		return
	}

	for _, sub := range subs {
		d.wg.Add(1)
		go func(sub domain.WebhookSubscription) {
			defer d.wg.Done()
			d.deliver(sub, event, payload)
		}(sub)
	}
}

// Flush blocks until all in-flight deliveries complete. Used on shutdown and
// in tests; request paths never call it.
func (d *Dispatcher) Flush() {
	d.wg.Wait()
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) deliver(sub domain.WebhookSubscription, event string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		d.recordFailure(sub, event, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(sub.Secret, payload))
	req.Header.Set(HeaderEvent, event)

	resp, err := d.client.Do(req)
	if err != nil {
		d.recordFailure(sub, event, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.recordFailure(sub, event, nil)
		slog.Default().WarnContext(ctx, "webhook delivery rejected",
			"module", "webhook",
			"operation", "deliver",
			"outcome", "failure",
			"subscription_id", sub.SubscriptionID,
			"event", event,
			"status_code", resp.StatusCode,
		)
		return
	}

	metrics.WebhookDeliveries.WithLabelValues("success").Inc()
	bkCtx, bkCancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer bkCancel()
	if err := d.subs.RecordSuccess(bkCtx, sub.SubscriptionID, d.nowFn()); err != nil {
		slog.Default().WarnContext(ctx, "webhook success bookkeeping failed",
			"module", "webhook",
			"operation", "record_success",
			"outcome", "failure",
			"subscription_id", sub.SubscriptionID,
			"error", err,
		)
	}
}

func (d *Dispatcher) recordFailure(sub domain.WebhookSubscription, event string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()

	metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
	count, err := d.subs.RecordFailure(ctx, sub.SubscriptionID, domain.WebhookAutoDisableThreshold)
	if err != nil {
		slog.Default().WarnContext(ctx, "webhook failure bookkeeping failed",
			"module", "webhook",
			"operation", "record_failure",
			"outcome", "failure",
			"subscription_id", sub.SubscriptionID,
			"error", err,
		)
		return
	}

	fields := []any{
		"module", "webhook",
		"operation", "deliver",
		"outcome", "failure",
		"subscription_id", sub.SubscriptionID,
		"event", event,
		"failure_count", count,
	}
	if cause != nil {
		fields = append(fields, "error", cause.Error())
	}
	if count >= domain.WebhookAutoDisableThreshold {
		metrics.WebhookAutoDisables.Inc()
		slog.Default().ErrorContext(ctx, "webhook subscription auto-disabled", fields...)
		return
	}
	slog.Default().WarnContext(ctx, "webhook delivery failed", fields...)
}
