package http

import (
	"net/http"

	"github.com/edgefleet/fleetcore/internal/application"
)

func (h *Handler) ingestLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "ingest_log")
		return
	}
	deviceID, err := pathUUID(r, "device_id")
	if err != nil {
		writeValidationError(r.Context(), w, "ingest_log", err)
		return
	}
	var req application.IngestLogRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "ingest_log", err)
		return
	}
	req.DeviceID = deviceID

	res, err := h.service.IngestLog(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, "ingest_log", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "list_logs")
		return
	}
	deviceID, err := pathUUID(r, "device_id")
	if err != nil {
		writeValidationError(r.Context(), w, "list_logs", err)
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	entries, err := h.service.ListLogs(r.Context(), actor, deviceID, limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "list_logs", err)
		return
	}
	writeSuccess(w, http.StatusOK, toLogViews(entries))
}
