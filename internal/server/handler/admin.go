package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// AdminService defines the methods the admin handler requires from the
// service layer.
type AdminService interface {
	ListUsers(ctx context.Context, p domain.Principal) ([]domain.User, error)
	UpdateUser(ctx context.Context, p domain.Principal, id string, upd domain.UserUpdate) (domain.User, error)
	VerifyLicense(ctx context.Context, p domain.Principal, dealerID string) error
	DeleteUser(ctx context.Context, p domain.Principal, id string) error
	ListAuctions(ctx context.Context, p domain.Principal) ([]domain.Auction, error)
	ListBids(ctx context.Context, p domain.Principal) ([]domain.Bid, error)
}

// AdminAuctionService is the lifecycle surface the admin handler needs.
type AdminAuctionService interface {
	SetStatus(ctx context.Context, p domain.Principal, id, status string) error
}

// AdminHandler serves the moderation endpoints.
type AdminHandler struct {
	admin    AdminService
	auctions AdminAuctionService
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given services and logger.
func NewAdminHandler(admin AdminService, auctions AdminAuctionService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, auctions: auctions, logger: logger}
}

// ListUsers returns every account.
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	users, err := h.admin.ListUsers(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// UpdateUser applies an admin edit to any account.
// PUT /api/admin/users/{id}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var upd domain.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	u, err := h.admin.UpdateUser(r.Context(), p, pathParam(r, "id"), upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// VerifyLicense marks a dealer's license as verified.
// PUT /api/admin/verify-license/{id}
func (h *AdminHandler) VerifyLicense(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.admin.VerifyLicense(r.Context(), p, pathParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "license verified"})
}

// DeleteUser removes an account.
// DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.admin.DeleteUser(r.Context(), p, pathParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// ListAuctions returns every auction regardless of status.
// GET /api/admin/auctions
func (h *AdminHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	auctions, err := h.admin.ListAuctions(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if auctions == nil {
		auctions = []domain.Auction{}
	}
	writeJSON(w, http.StatusOK, auctions)
}

// statusRequest is the JSON body of a status transition.
type statusRequest struct {
	Status string `json:"status"`
}

// SetAuctionStatus applies an admin status transition.
// PUT /api/admin/auctions/{id}/status
func (h *AdminHandler) SetAuctionStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	if err := h.auctions.SetStatus(r.Context(), p, pathParam(r, "id"), req.Status); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}

// ListBids returns every bid across all auctions.
// GET /api/admin/bids
func (h *AdminHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	bids, err := h.admin.ListBids(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}
