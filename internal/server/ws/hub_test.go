package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
	"github.com/carbidx2025/CarbidX-EM/internal/store/memory"
)

type hubFixture struct {
	hub    *Hub
	bus    *memory.SignalBus
	srv    *httptest.Server
	cancel context.CancelFunc
}

func startHub(t *testing.T) *hubFixture {
	t.Helper()

	bus := memory.NewSignalBus()
	hub := NewHub(bus, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{user_id}", hub.HandleWS)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &hubFixture{hub: hub, bus: bus, srv: srv, cancel: cancel}
}

// dial opens a websocket for the user and performs a heartbeat roundtrip. The
// roundtrip guarantees the connection is fully registered with the hub before
// the test broadcasts anything.
func (f *hubFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "heartbeat"}))
	msg := readMessage(t, conn)
	require.Equal(t, domain.EventHeartbeatResponse, msg["type"])
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHandleWS_RejectsMissingUserID(t *testing.T) {
	f := startHub(t)

	resp, err := http.Get(f.srv.URL + "/ws/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEqual(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

func TestHeartbeat(t *testing.T) {
	f := startHub(t)

	conn := f.dial(t, "user-1")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "heartbeat"}))
	msg := readMessage(t, conn)
	require.Equal(t, domain.EventHeartbeatResponse, msg["type"])
	require.NotEmpty(t, msg["timestamp"])
}

func TestJoinAuctionAck(t *testing.T) {
	f := startHub(t)

	conn := f.dial(t, "user-1")

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":       "join_auction",
		"auction_id": "auction-7",
	}))
	msg := readMessage(t, conn)
	require.Equal(t, domain.EventJoinedAuction, msg["type"])
	require.Equal(t, "auction-7", msg["auction_id"])
}

func TestBroadcastReachesAllUsers(t *testing.T) {
	f := startHub(t)

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	require.Equal(t, 2, f.hub.ConnectionCount())

	f.hub.Broadcast([]byte(`{"type":"new_auction"}`))

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readMessage(t, conn)
		require.Equal(t, "new_auction", msg["type"])
	}
}

func TestSendToUser_TargetsOneUserOnly(t *testing.T) {
	f := startHub(t)

	tab1 := f.dial(t, "alice")
	tab2 := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	require.True(t, f.hub.SendToUser("alice", []byte(`{"type":"direct"}`)))
	require.False(t, f.hub.SendToUser("nobody", []byte(`{"type":"direct"}`)))

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		msg := readMessage(t, conn)
		require.Equal(t, "direct", msg["type"])
	}

	// Bob gets nothing; the next read must time out.
	bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := bob.ReadMessage()
	require.Error(t, err)
}

func TestBusEventsAreBridged(t *testing.T) {
	f := startHub(t)

	conn := f.dial(t, "dealer-1")

	bid := domain.Bid{ID: "bid-1", AuctionID: "auction-1"}
	payload, err := domain.EncodeNewBid(bid)
	require.NoError(t, err)
	require.NoError(t, f.bus.Publish(context.Background(), domain.ChannelBids, payload))

	msg := readMessage(t, conn)
	require.Equal(t, domain.EventNewBid, msg["type"])
	require.Equal(t, "auction-1", msg["auction_id"])
}

func TestRun_ShutdownClosesConnections(t *testing.T) {
	f := startHub(t)

	conn := f.dial(t, "user-1")
	f.cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // socket closed by the hub
		}
	}
}

func TestBroadcastAfterShutdownDoesNotBlock(t *testing.T) {
	f := startHub(t)

	conn := f.dial(t, "user-1")
	f.cancel()

	// Drain until the hub closes the socket, so Run has definitely exited.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Fill the buffered broadcast channel; every call must return even though
	// nothing drains it anymore.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(f.hub.broadcast)+10; i++ {
			f.hub.Broadcast([]byte(`{"type":"new_bid"}`))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked after hub shutdown")
	}
}
