package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
	"github.com/carbidx2025/CarbidX-EM/internal/service"
)

// AuthService defines the methods the auth handler requires from the service
// layer.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (service.Session, error)
	Login(ctx context.Context, email, password string) (service.Session, error)
	Me(ctx context.Context, p domain.Principal) (domain.User, error)
	UpdateProfile(ctx context.Context, p domain.Principal, upd domain.UserUpdate) (domain.User, error)
}

// AuthHandler serves registration, login, and profile endpoints.
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler with the given service and logger.
func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register creates a new buyer or dealer account.
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	sess, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// loginRequest is the JSON body of a login call.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates by email and password.
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Me returns the caller's own account.
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	u, err := h.auth.Me(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateProfile applies the caller's own profile changes.
// PUT /api/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var upd domain.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	u, err := h.auth.UpdateProfile(r.Context(), p, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
