package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/application"
)

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "create_subscription")
		return
	}
	var req application.CreateSubscriptionRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_subscription", err)
		return
	}

	sub, err := h.service.CreateSubscription(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_subscription", err)
		return
	}
	// The creation response is the only place the signing secret appears.
	writeSuccess(w, http.StatusCreated, toSubscriptionView(sub))
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "list_subscriptions")
		return
	}
	orgID := uuid.Nil
	if raw := r.URL.Query().Get("org_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeValidationError(r.Context(), w, "list_subscriptions", errInvalidOrgID)
			return
		}
		orgID = parsed
	}

	subs, err := h.service.ListSubscriptions(r.Context(), actor, orgID)
	if err != nil {
		writeMappedError(r.Context(), w, "list_subscriptions", err)
		return
	}
	views := make([]subscriptionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, toSubscriptionView(sub))
	}
	writeSuccess(w, http.StatusOK, views)
}

func (h *Handler) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "delete_subscription")
		return
	}
	subscriptionID, err := pathUUID(r, "subscription_id")
	if err != nil {
		writeValidationError(r.Context(), w, "delete_subscription", err)
		return
	}

	if err := h.service.DeleteSubscription(r.Context(), actor, subscriptionID); err != nil {
		writeMappedError(r.Context(), w, "delete_subscription", err)
		return
	}
	writeMessage(w, http.StatusOK, "subscription deleted")
}

func (h *Handler) reactivateSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "reactivate_subscription")
		return
	}
	subscriptionID, err := pathUUID(r, "subscription_id")
	if err != nil {
		writeValidationError(r.Context(), w, "reactivate_subscription", err)
		return
	}

	if err := h.service.ReactivateSubscription(r.Context(), actor, subscriptionID); err != nil {
		writeMappedError(r.Context(), w, "reactivate_subscription", err)
		return
	}
	writeMessage(w, http.StatusOK, "subscription reactivated")
}

func (h *Handler) testSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "test_subscription")
		return
	}
	orgID := uuid.Nil
	if raw := r.URL.Query().Get("org_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeValidationError(r.Context(), w, "test_subscription", errInvalidOrgID)
			return
		}
		orgID = parsed
	}

	if err := h.service.TestSubscription(r.Context(), actor, orgID); err != nil {
		writeMappedError(r.Context(), w, "test_subscription", err)
		return
	}
	writeMessage(w, http.StatusAccepted, "test event dispatched")
}
