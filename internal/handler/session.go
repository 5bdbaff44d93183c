package handler

import (
	"log/slog"
	"net/http"

	"storefront/internal/model"
)

// loginResponse carries the session even when the post-login cart merge
// failed; Warning then says why the guest cart is still pending.
type loginResponse struct {
	Session model.Session `json:"session"`
	Warning string        `json:"warning,omitempty"`
}

// handleGetSession returns the current session.
// GET /session
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sf.Session())
}

// handleLogin signs in and merges the guest cart.
// POST /session/login
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var creds model.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "signing in", slog.String("email", creds.Email))

	s, err := h.sf.Login(ctx, creds)
	if err != nil && !s.Authenticated {
		h.writeError(w, err)
		return
	}

	resp := loginResponse{Session: s}
	if err != nil {
		resp.Warning = err.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleLogout ends the session. Always succeeds.
// POST /session/logout
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sf.Logout(r.Context()))
}

// handleRegister creates an account.
// POST /session/register
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := decodeJSON(r, &reg); err != nil {
		h.writeError(w, err)
		return
	}

	user, err := h.sf.Register(r.Context(), reg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

// handleUpdateProfile merges a local profile edit.
// PATCH /session/profile
func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch model.UserProfile
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, err)
		return
	}

	s, err := h.sf.UpdateProfile(r.Context(), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}
