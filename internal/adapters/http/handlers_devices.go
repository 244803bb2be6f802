package http

import (
	"encoding/base64"
	"net/http"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/application"
)

func (h *Handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "register_device")
		return
	}
	var req application.RegisterDeviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register_device", err)
		return
	}

	device, err := h.service.RegisterDevice(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, "register_device", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toDeviceView(device))
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "list_devices")
		return
	}

	orgID := uuid.Nil
	if raw := r.URL.Query().Get("org_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeValidationError(r.Context(), w, "list_devices", errInvalidOrgID)
			return
		}
		orgID = parsed
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	devices, err := h.service.ListDevices(r.Context(), actor, orgID, limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "list_devices", err)
		return
	}
	writeSuccess(w, http.StatusOK, toDeviceViews(devices))
}

func (h *Handler) deleteDevice(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "delete_device")
		return
	}
	deviceID, err := pathUUID(r, "device_id")
	if err != nil {
		writeValidationError(r.Context(), w, "delete_device", err)
		return
	}

	if err := h.service.DeleteDevice(r.Context(), actor, deviceID); err != nil {
		writeMappedError(r.Context(), w, "delete_device", err)
		return
	}
	writeMessage(w, http.StatusOK, "device deleted")
}

func (h *Handler) setDeviceKey(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "set_device_key")
		return
	}
	deviceID, err := pathUUID(r, "device_id")
	if err != nil {
		writeValidationError(r.Context(), w, "set_device_key", err)
		return
	}

	key, err := h.service.SetDeviceKey(r.Context(), actor, deviceID)
	if err != nil {
		writeMappedError(r.Context(), w, "set_device_key", err)
		return
	}
	// The plaintext key is shown exactly once, at rotation time.
	writeSuccess(w, http.StatusCreated, map[string]any{
		"device_id": deviceID,
		"key":       base64.StdEncoding.EncodeToString(key),
	})
}

func (h *Handler) revokeDeviceKey(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "revoke_device_key")
		return
	}
	deviceID, err := pathUUID(r, "device_id")
	if err != nil {
		writeValidationError(r.Context(), w, "revoke_device_key", err)
		return
	}

	if err := h.service.RevokeDeviceKey(r.Context(), actor, deviceID); err != nil {
		writeMappedError(r.Context(), w, "revoke_device_key", err)
		return
	}
	writeMessage(w, http.StatusOK, "device key revoked")
}

func (h *Handler) orgQuota(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "org_quota")
		return
	}
	orgID, err := pathUUID(r, "org_id")
	if err != nil {
		writeValidationError(r.Context(), w, "org_quota", err)
		return
	}

	report, err := h.service.OrgQuota(r.Context(), actor, orgID)
	if err != nil {
		writeMappedError(r.Context(), w, "org_quota", err)
		return
	}
	writeSuccess(w, http.StatusOK, report)
}
