package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// BidService defines the methods the bid handler requires from the service
// layer.
type BidService interface {
	Submit(ctx context.Context, p domain.Principal, draft domain.BidDraft) (domain.Bid, error)
	ListForAuction(ctx context.Context, auctionID string) ([]domain.Bid, error)
	ListForDealer(ctx context.Context, p domain.Principal) ([]domain.Bid, error)
}

// BidHandler serves the bid endpoints.
type BidHandler struct {
	bids   BidService
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler with the given service and logger.
func NewBidHandler(bids BidService, logger *slog.Logger) *BidHandler {
	return &BidHandler{bids: bids, logger: logger}
}

// Submit runs a dealer's offer through the admission rules.
// POST /api/bids
func (h *BidHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var draft domain.BidDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	b, err := h.bids.Submit(r.Context(), p, draft)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ListForAuction returns every bid on one auction, best offer first.
// GET /api/bids/{auctionID}
func (h *BidHandler) ListForAuction(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(w, r); !ok {
		return
	}

	bids, err := h.bids.ListForAuction(r.Context(), pathParam(r, "auctionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}

// ListMine returns the calling dealer's own bids, newest first.
// GET /api/my-bids
func (h *BidHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	bids, err := h.bids.ListForDealer(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}
