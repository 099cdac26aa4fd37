package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// auctionSnapshot is the archived representation of a finished auction: the
// auction itself plus its full bid history at close time.
type auctionSnapshot struct {
	Auction    domain.Auction `json:"auction"`
	Bids       []domain.Bid   `json:"bids"`
	ArchivedAt time.Time      `json:"archived_at"`
}

// Archiver implements domain.AuctionArchiver by serializing a closed auction
// and its bids to JSON and uploading the snapshot through a BlobWriter.
//
// Deleting the archived rows from the primary store is intentionally NOT done
// here; the snapshot is a durable record, not a migration.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates a new Archiver writing through the given BlobWriter.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveAuction uploads the snapshot to
// archive/auctions/YYYY-MM/<auction-id>.json and returns the object path.
func (a *Archiver) ArchiveAuction(ctx context.Context, auction domain.Auction, bids []domain.Bid) (string, error) {
	snap := auctionSnapshot{
		Auction:    auction,
		Bids:       bids,
		ArchivedAt: domain.Now(),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return "", fmt.Errorf("s3blob: archive auction %s marshal: %w", auction.ID, err)
	}

	path := archivePath(auction)
	if err := a.writer.Put(ctx, path, &buf, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive auction %s upload: %w", auction.ID, err)
	}
	return path, nil
}

// archivePath builds the S3 key for an auction snapshot, partitioned by the
// year-month the auction ended.
//
//	archive/auctions/2025-01/4bb49fcb-....json
func archivePath(a domain.Auction) string {
	return fmt.Sprintf("archive/auctions/%s/%s.json", a.EndsAt.Format("2006-01"), a.ID)
}

// Compile-time interface check.
var _ domain.AuctionArchiver = (*Archiver)(nil)
