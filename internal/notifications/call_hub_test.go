package notifications

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallHub_JoinAndPeers(t *testing.T) {
	h := NewCallHub()

	require.NoError(t, h.Join("room-1", 1, "alice", nil))

	peers := h.Peers("room-1")
	require.Len(t, peers, 1)
	assert.Equal(t, uint(1), peers[0].UserID)
	assert.Equal(t, "alice", peers[0].Username)

	// Rejoining replaces the stored connection without duplicating the peer.
	require.NoError(t, h.Join("room-1", 1, "alice", nil))
	assert.Len(t, h.Peers("room-1"), 1)

	assert.Empty(t, h.Peers("other-room"))
}

func TestCallHub_LeaveDropsEmptyRoom(t *testing.T) {
	h := NewCallHub()

	require.NoError(t, h.Join("room-1", 1, "alice", nil))
	h.Leave("room-1", 1, true)

	assert.Empty(t, h.Peers("room-1"))
	h.mu.RLock()
	_, exists := h.rooms["room-1"]
	h.mu.RUnlock()
	assert.False(t, exists)

	// Leaving again, or leaving a room never joined, is a no-op.
	h.Leave("room-1", 1, true)
	h.Leave("ghost-room", 1, false)
}

func TestCallHub_RelayToMissingTarget(t *testing.T) {
	h := NewCallHub()

	require.NoError(t, h.Join("room-1", 1, "alice", nil))

	// Neither an unknown target nor an unknown room should panic or leak a
	// frame anywhere.
	h.RelayTo("room-1", 1, CallSignal{Event: "offer", Target: 99})
	h.RelayTo("no-such-room", 1, CallSignal{Event: "offer", Target: 1})

	// A broadcast in a room that only holds the sender writes to nobody.
	h.BroadcastFrom("room-1", 1, CallSignal{Event: "mute"})
}

func TestCallHub_ReadyReachesBothPeers(t *testing.T) {
	h := NewCallHub()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/rtc", websocket.New(func(conn *websocket.Conn) {
		userID, _ := strconv.Atoi(conn.Query("user"))
		if err := h.Join("room-1", uint(userID), conn.Query("name"), conn); err != nil {
			_ = conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	dial := func(userID int, name string) *gws.Conn {
		u := fmt.Sprintf("ws://%s/rtc?user=%d&name=%s", ln.Addr(), userID, name)
		conn, resp, err := gws.DefaultDialer.Dial(u, nil)
		require.NoError(t, err)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}

	readSignal := func(conn *gws.Conn) CallSignal {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var sig CallSignal
		require.NoError(t, json.Unmarshal(raw, &sig))
		return sig
	}

	first := dial(1, "alice")
	require.Eventually(t, func() bool {
		return len(h.Peers("room-1")) == 1
	}, time.Second, 10*time.Millisecond)

	second := dial(2, "bob")

	// Once a second peer joins, both sides hear the room is ready. The very
	// first frame on each side must be the ready signal, which also proves
	// the solo join emitted nothing.
	sig := readSignal(first)
	assert.Equal(t, "ready", sig.Event)
	assert.Equal(t, uint(2), sig.From)
	assert.Equal(t, "bob", sig.Username)
	assert.Equal(t, "room-1", sig.RoomID)

	sig = readSignal(second)
	assert.Equal(t, "ready", sig.Event)
	assert.Equal(t, uint(2), sig.From)
	assert.Equal(t, "room-1", sig.RoomID)
}
