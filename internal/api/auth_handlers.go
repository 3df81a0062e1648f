package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/neexbeast/destinasi/internal/auth"
	"github.com/neexbeast/destinasi/internal/destination"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Register handles POST /api/auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeJSON(w, r, &in) {
		return
	}

	sess, err := h.sessions.SignUp(r.Context(), in.Email, in.Password, auth.Metadata{Username: in.Username, FullName: in.FullName})
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case err != nil:
		h.log.Error("sign up failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusCreated, sess)
	}
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeJSON(w, r, &in) {
		return
	}

	sess, err := h.sessions.SignInWithPassword(r.Context(), in.Email, in.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case err != nil:
		h.log.Error("sign in failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

// RefreshSession handles POST /api/auth/refresh.
func (h *Handlers) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "missing refresh_token")
		return
	}

	sess, err := h.sessions.Refresh(r.Context(), in.RefreshToken)
	switch {
	case errors.Is(err, auth.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "session expired")
	case err != nil:
		h.log.Error("refresh failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

// Logout handles POST /api/auth/logout. An expired access token still signs
// its session out.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	err := h.sessions.SignOut(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case err != nil:
		h.log.Error("sign out failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// CurrentSession handles GET /api/auth/session. It answers {"session": null}
// for anonymous requests.
func (h *Handlers) CurrentSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]*auth.Session{"session": SessionFromContext(r.Context())})
}

// GetProfile handles GET /api/profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	p, err := h.profiles.GetProfile(r.Context(), sess.UserID)
	if err != nil {
		h.log.Error("get profile failed", "user_id", sess.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /api/profile.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	var upd destination.ProfileUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	p, err := h.profiles.UpdateProfile(r.Context(), sess.UserID, upd)
	switch {
	case errors.Is(err, destination.ErrNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
	case err != nil:
		h.log.Error("update profile failed", "user_id", sess.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, p)
	}
}
