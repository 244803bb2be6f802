package ports

import (
	"context"

	"github.com/google/uuid"
)

// EventDispatcher fans a named event out to an organization's registered
// subscribers. Dispatch is fire-and-forget: delivery failures are recorded
// against subscriptions, never returned to the triggering caller.
type EventDispatcher interface {
	Dispatch(ctx context.Context, orgID uuid.UUID, event string, data map[string]any)
}

// NopDispatcher discards events. Used where webhook fan-out is not wired.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, uuid.UUID, string, map[string]any) {}
