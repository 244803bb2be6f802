package http

import (
	"net/http"

	"github.com/edgefleet/fleetcore/internal/application"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	req.IPAddress = h.clientIP(r)

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, loginView{
		Token:    res.Token,
		Identity: toIdentityView(res.Identity),
	})
}

func (h *Handler) bootstrap(w http.ResponseWriter, r *http.Request) {
	var req application.BootstrapRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "bootstrap_admin", err)
		return
	}
	req.IPAddress = h.clientIP(r)

	res, err := h.service.BootstrapAdmin(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "bootstrap_admin", err)
		return
	}
	writeSuccess(w, http.StatusCreated, loginView{
		Token:    res.Token,
		Identity: toIdentityView(res.Identity),
	})
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "register_user")
		return
	}
	var req application.RegisterUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register_user", err)
		return
	}

	res, err := h.service.RegisterUser(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, "register_user", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) whoami(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingIdentityError(r.Context(), w, "whoami")
		return
	}
	writeSuccess(w, http.StatusOK, toIdentityView(actor))
}
