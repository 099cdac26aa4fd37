package domain

import (
	"encoding/json"
	"time"
)

// Bus channels bridged into the websocket hub.
const (
	ChannelAuctions = "auctions"
	ChannelBids     = "bids"
)

// Outbound websocket message types.
const (
	EventNewAuction        = "new_auction"
	EventNewBid            = "new_bid"
	EventJoinedAuction     = "joined_auction"
	EventHeartbeatResponse = "heartbeat_response"
)

// Now returns the current UTC instant truncated to whole seconds. All entity
// timestamps are created through it so they round-trip losslessly through the
// store and render as fixed-format RFC 3339 strings on the wire.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// NewAuctionEvent is broadcast to every live connection when a buyer opens a
// new car request.
type NewAuctionEvent struct {
	Type    string  `json:"type"`
	Auction Auction `json:"auction"`
}

// NewBidEvent is broadcast to every live connection when a bid is accepted.
type NewBidEvent struct {
	Type      string `json:"type"`
	Bid       Bid    `json:"bid"`
	AuctionID string `json:"auction_id"`
}

// EncodeNewAuction builds the wire payload for an auction-created event.
func EncodeNewAuction(a Auction) ([]byte, error) {
	return json.Marshal(NewAuctionEvent{Type: EventNewAuction, Auction: a})
}

// EncodeNewBid builds the wire payload for a bid-accepted event.
func EncodeNewBid(b Bid) ([]byte, error) {
	return json.Marshal(NewBidEvent{Type: EventNewBid, Bid: b, AuctionID: b.AuctionID})
}
