package server

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ripple/internal/featureflags"
	"ripple/internal/middleware"
	"ripple/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	// rtcPingInterval is how often the server pings idle connections
	rtcPingInterval = 30 * time.Second
	// rtcPongTimeout is how long to wait for a pong before considering the peer dead
	rtcPongTimeout = 40 * time.Second
	// rtcMaxMessageSize allows for large SDP payloads
	rtcMaxMessageSize = 16384
)

// GetRTCConfig handles GET /api/rtc/config. It returns the ICE server list
// clients feed into RTCPeerConnection; TURN credentials come from server
// configuration so they never live in frontend builds.
func (s *Server) GetRTCConfig(c *fiber.Ctx) error {
	iceServers := []fiber.Map{
		{"urls": "stun:stun.l.google.com:19302"},
	}
	if s.config.TURNURL != "" {
		iceServers = append(iceServers, fiber.Map{
			"urls":       s.config.TURNURL,
			"username":   s.config.TURNUsername,
			"credential": s.config.TURNPassword,
		})
	}
	return c.JSON(fiber.Map{"ice_servers": iceServers})
}

// WebSocketRTCHandler handles the rtc namespace: WebRTC signaling rooms.
// The room comes from the "room" query parameter; existing members receive
// a "ready" signal for each joiner and initiate offers toward them. The
// server only relays SDP and ICE payloads, it never inspects them.
func (s *Server) WebSocketRTCHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.WriteMessage(websocket.TextMessage,
				notifications.EncodeFrame("error", fiber.Map{"message": "unauthorized"}))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		roomID := conn.Query("room")
		if roomID == "" {
			_ = conn.WriteMessage(websocket.TextMessage,
				notifications.EncodeFrame("error", fiber.Map{"message": "room parameter required"}))
			_ = conn.Close()
			return
		}

		username := ""
		if user, err := s.userRepo.GetByID(context.Background(), userID); err == nil && user != nil {
			username = user.Username
		}

		log.Printf("RTC WS: User %d (%s) connecting to room %s", userID, username, roomID)

		if s.callHub == nil {
			_ = conn.Close()
			return
		}

		if err := s.callHub.Join(roomID, userID, username, conn); err != nil {
			_ = conn.Close()
			return
		}

		// cleanExit distinguishes an explicit leave from a dropped
		// connection so remaining peers can show a reconnect state.
		cleanExit := false
		defer func() { s.callHub.Leave(roomID, userID, cleanExit) }()

		// Configure read limits and pong handler for heartbeat
		conn.SetReadLimit(rtcMaxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(rtcPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(rtcPongTimeout))
		})

		pingTicker := time.NewTicker(rtcPingInterval)
		defer pingTicker.Stop()

		go func() {
			for range pingTicker.C {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}()

		// Read loop: relay signaling messages
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("RTC WS: Unexpected close from user %d: %v", userID, err)
				}
				break
			}

			var signal notifications.CallSignal
			if err := json.Unmarshal(message, &signal); err != nil {
				log.Printf("RTC WS: Invalid message from user %d: %v", userID, err)
				continue
			}

			switch signal.Event {
			case "offer", "answer", "ice-candidate":
				// Targeted signals relay to one peer
				if signal.Target == 0 {
					log.Printf("RTC WS: %s from user %d missing target", signal.Event, userID)
					continue
				}
				s.callHub.RelayTo(roomID, userID, signal)

			case "screen-start":
				if !s.flags.Enabled(featureflags.ScreenShare, userID) {
					continue
				}
				s.callHub.BroadcastFrom(roomID, userID, notifications.CallSignal{
					Event: "peer-screen-started",
				})

			case "screen-stop":
				s.callHub.BroadcastFrom(roomID, userID, notifications.CallSignal{
					Event: "peer-screen-stopped",
				})

			case "local-status":
				// Mute/camera state fans out as the per-concern events
				// plus the combined one, so clients can bind to either.
				var status struct {
					Muted     bool `json:"muted"`
					CameraOff bool `json:"cameraOff"`
				}
				if err := json.Unmarshal(signal.Payload, &status); err != nil {
					log.Printf("RTC WS: Invalid local-status payload from user %d: %v", userID, err)
					continue
				}
				mutedPayload, _ := json.Marshal(fiber.Map{"muted": status.Muted})
				cameraPayload, _ := json.Marshal(fiber.Map{"cameraOff": status.CameraOff})
				s.callHub.BroadcastFrom(roomID, userID, notifications.CallSignal{
					Event:   "peer-muted",
					Payload: mutedPayload,
				})
				s.callHub.BroadcastFrom(roomID, userID, notifications.CallSignal{
					Event:   "peer-camera-off",
					Payload: cameraPayload,
				})
				s.callHub.BroadcastFrom(roomID, userID, notifications.CallSignal{
					Event:   "peer-status",
					Payload: signal.Payload,
				})

			case "leave":
				cleanExit = true
				return

			default:
				log.Printf("RTC WS: Unknown signal event %q from user %d", signal.Event, userID)
			}
		}
	})
}
