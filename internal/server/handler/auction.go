package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// AuctionService defines the methods the auction handler requires from the
// service layer.
type AuctionService interface {
	Create(ctx context.Context, p domain.Principal, draft domain.AuctionDraft) (domain.Auction, error)
	List(ctx context.Context, p domain.Principal) ([]domain.Auction, error)
	Get(ctx context.Context, id string) (domain.Auction, error)
}

// AuctionHandler serves the car-request endpoints.
type AuctionHandler struct {
	auctions AuctionService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler with the given service and
// logger.
func NewAuctionHandler(auctions AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, logger: logger}
}

// Create opens a new car request for the calling buyer.
// POST /api/car-requests
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var draft domain.AuctionDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	a, err := h.auctions.Create(r.Context(), p, draft)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// List returns the auctions visible to the caller.
// GET /api/car-requests
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	auctions, err := h.auctions.List(r.Context(), p)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list auctions failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list car requests")
		return
	}
	if auctions == nil {
		auctions = []domain.Auction{}
	}
	writeJSON(w, http.StatusOK, auctions)
}

// Get returns one auction by id.
// GET /api/car-requests/{id}
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(w, r); !ok {
		return
	}

	a, err := h.auctions.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
