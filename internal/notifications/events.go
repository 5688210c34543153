package notifications

import (
	"context"
	"encoding/json"
	"log"

	"ripple/internal/observability"
)

// Frame is the wire shape for every socket event in both directions:
// an event name plus a JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals an event frame for the wire. Returns nil when the
// payload cannot be marshaled; callers treat nil as "nothing to send".
func EncodeFrame(event string, data interface{}) []byte {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			log.Printf("failed to encode %q frame: %v", event, err)
			return nil
		}
		raw = encoded
	}
	out, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		log.Printf("failed to encode %q frame: %v", event, err)
		return nil
	}
	return out
}

// EventPusher fans events out to all of a user's connections. With Redis
// configured, events route through pub/sub so every instance delivers to its
// own sockets; without it, delivery goes straight to the local hub.
type EventPusher struct {
	hub      *Hub
	notifier *Notifier
}

// NewEventPusher returns a new EventPusher. notifier may be nil.
func NewEventPusher(hub *Hub, notifier *Notifier) *EventPusher {
	return &EventPusher{hub: hub, notifier: notifier}
}

// PushToUser delivers one event frame to every live connection of a user.
func (p *EventPusher) PushToUser(userID uint, event string, data interface{}) {
	payload := EncodeFrame(event, data)
	if payload == nil {
		return
	}
	observability.RecordWebSocketEvent("chat", event)

	if p.notifier != nil && p.notifier.HasRedis() {
		if err := p.notifier.PublishUser(context.Background(), userID, string(payload)); err != nil {
			log.Printf("failed to publish %q to user %d: %v", event, userID, err)
		}
		return
	}
	if p.hub != nil {
		p.hub.Broadcast(userID, string(payload))
	}
}

// PushBroadcast delivers one event frame to every connected user.
func (p *EventPusher) PushBroadcast(event string, data interface{}) {
	payload := EncodeFrame(event, data)
	if payload == nil {
		return
	}
	observability.RecordWebSocketEvent("chat", event)

	if p.notifier != nil && p.notifier.HasRedis() {
		if err := p.notifier.PublishBroadcast(context.Background(), string(payload)); err != nil {
			log.Printf("failed to publish broadcast %q: %v", event, err)
		}
		return
	}
	if p.hub != nil {
		p.hub.BroadcastAll(string(payload))
	}
}
