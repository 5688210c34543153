package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// ErrRoomUnavailable is returned when a join is refused by a capacity limit.
var ErrRoomUnavailable = errors.New("room unavailable")

const (
	// MaxPeersPerRoom prevents unbounded room growth
	MaxPeersPerRoom = 10
	// MaxTotalRooms prevents unbounded map growth
	MaxTotalRooms = 1000
)

// CallSignal is a signaling frame relayed through the call hub. The hub
// never touches media; it only moves SDP offers/answers, ICE candidates,
// and peer status between room members.
type CallSignal struct {
	Event    string          `json:"event"`
	RoomID   string          `json:"room_id,omitempty"`
	From     uint            `json:"from,omitempty"`
	Target   uint            `json:"target,omitempty"`
	Username string          `json:"username,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// callPeer tracks a single user's connection in a call room
type callPeer struct {
	UserID   uint
	Username string
	Conn     *websocket.Conn
	writeMu  sync.Mutex // protects concurrent writes to Conn
}

func (p *callPeer) safeWrite(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.Conn.WriteMessage(websocket.TextMessage, data)
}

// PeerInfo is the public shape of a room member.
type PeerInfo struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// CallHub manages WebRTC signaling rooms for the rtc namespace.
type CallHub struct {
	mu sync.RWMutex

	// rooms maps roomID -> userID -> peer
	rooms map[string]map[uint]*callPeer
}

// NewCallHub creates a new CallHub.
func NewCallHub() *CallHub {
	return &CallHub{
		rooms: make(map[string]map[uint]*callPeer),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *CallHub) Name() string { return "call hub" }

// Join adds a user to a call room. Once the room has at least two members,
// a "ready" signal carrying the joiner's identity goes to the existing
// members and to the joiner itself, so both sides know negotiation can
// begin.
func (h *CallHub) Join(roomID string, userID uint, username string, conn *websocket.Conn) error {
	peer := &callPeer{
		UserID:   userID,
		Username: username,
		Conn:     conn,
	}

	h.mu.Lock()

	if h.rooms[roomID] == nil && len(h.rooms) >= MaxTotalRooms {
		h.mu.Unlock()
		h.sendError(peer, "too many active rooms")
		return ErrRoomUnavailable
	}

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[uint]*callPeer)
	}

	if _, exists := h.rooms[roomID][userID]; !exists && len(h.rooms[roomID]) >= MaxPeersPerRoom {
		h.mu.Unlock()
		h.sendError(peer, "room is full")
		return ErrRoomUnavailable
	}

	// Collect existing peers before adding the new one, then send outside
	// the lock.
	existing := make([]*callPeer, 0, len(h.rooms[roomID]))
	for _, p := range h.rooms[roomID] {
		if p.UserID != userID {
			existing = append(existing, p)
		}
	}
	h.rooms[roomID][userID] = peer
	h.mu.Unlock()

	log.Printf("CallHub: user %d (%s) joined room %s (%d peers)", userID, username, roomID, len(existing)+1)

	ready := CallSignal{
		Event:    "ready",
		RoomID:   roomID,
		From:     userID,
		Username: username,
	}
	data, err := json.Marshal(ready)
	if err != nil {
		return nil
	}
	for _, p := range existing {
		if err := p.safeWrite(data); err != nil {
			log.Printf("CallHub: write error to user %d in room %s: %v", p.UserID, roomID, err)
		}
	}
	if len(existing) > 0 {
		if err := peer.safeWrite(data); err != nil {
			log.Printf("CallHub: write error to user %d in room %s: %v", userID, roomID, err)
		}
	}
	return nil
}

// Leave removes a user from a room and tells remaining peers. cleanExit
// distinguishes an explicit leave from a dropped connection; the latter
// surfaces as peer-network-lost so clients can show a reconnect state.
func (h *CallHub) Leave(roomID string, userID uint, cleanExit bool) {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room[userID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	event := "peer-left"
	if !cleanExit {
		event = "peer-network-lost"
	}
	h.BroadcastFrom(roomID, userID, CallSignal{Event: event, RoomID: roomID, From: userID})
}

// RelayTo forwards a targeted signal (offer, answer, ice-candidate) to one
// room member, stamping the sender.
func (h *CallHub) RelayTo(roomID string, fromUserID uint, signal CallSignal) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	target, ok := room[signal.Target]
	h.mu.RUnlock()

	if !ok {
		log.Printf("CallHub: target user %d not found in room %s", signal.Target, roomID)
		return
	}

	signal.From = fromUserID
	signal.RoomID = roomID

	data, err := json.Marshal(signal)
	if err != nil {
		return
	}
	if err := target.safeWrite(data); err != nil {
		log.Printf("CallHub: failed to relay %s to user %d in room %s: %v", signal.Event, signal.Target, roomID, err)
	}
}

// BroadcastFrom sends a signal to every room member except the sender.
func (h *CallHub) BroadcastFrom(roomID string, fromUserID uint, signal CallSignal) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*callPeer, 0, len(room))
	for uid, peer := range room {
		if uid == fromUserID {
			continue
		}
		targets = append(targets, peer)
	}
	h.mu.RUnlock()

	signal.From = fromUserID
	signal.RoomID = roomID

	data, err := json.Marshal(signal)
	if err != nil {
		return
	}
	for _, peer := range targets {
		if err := peer.safeWrite(data); err != nil {
			log.Printf("CallHub: write error to user %d in room %s: %v", peer.UserID, roomID, err)
		}
	}
}

// Peers lists a room's members.
func (h *CallHub) Peers(roomID string) []PeerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[roomID]
	peers := make([]PeerInfo, 0, len(room))
	for _, p := range room {
		peers = append(peers, PeerInfo{UserID: p.UserID, Username: p.Username})
	}
	return peers
}

func (h *CallHub) sendError(peer *callPeer, message string) {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return
	}
	data, err := json.Marshal(CallSignal{Event: "error", Payload: payload})
	if err != nil {
		return
	}
	_ = peer.safeWrite(data)
}

// StartWiring is a no-op for the call hub: signaling is point-to-point on a
// single instance and never routes through Redis.
func (h *CallHub) StartWiring(_ context.Context, _ *Notifier) error { return nil }

// Shutdown gracefully closes all call connections.
func (h *CallHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, peers := range h.rooms {
		for _, peer := range peers {
			if data, err := json.Marshal(CallSignal{Event: "server-shutdown", RoomID: roomID}); err == nil {
				_ = peer.safeWrite(data)
			}
			_ = peer.Conn.Close()
		}
	}
	h.rooms = make(map[string]map[uint]*callPeer)
	return nil
}
