package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/hub"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/store"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	// Buffer size for outbound messages
	sendBufferSize = 256

	// Consecutive missed heartbeat windows before the connection is
	// force-closed
	maxMissedHeartbeats = 3
)

// DeviceClass is the transport sensitivity class of a connection,
// computed once at handshake and never changed afterwards.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

// HeartbeatInterval returns the expected liveness-signal cadence for the
// device class. Mobile transports drop silently more often, so they get a
// tighter window.
func (d DeviceClass) HeartbeatInterval() time.Duration {
	if d == DeviceMobile {
		return 15 * time.Second
	}
	return 30 * time.Second
}

// ClassifyDevice derives the device class from the handshake. The explicit
// device query parameter wins; otherwise the user agent is sniffed.
func ClassifyDevice(queryDevice, userAgent string) DeviceClass {
	if queryDevice == string(DeviceMobile) {
		return DeviceMobile
	}
	if queryDevice == string(DeviceDesktop) {
		return DeviceDesktop
	}

	ua := strings.ToLower(userAgent)
	for _, marker := range []string{"android", "iphone", "ipad", "ipod", "webos", "blackberry", "opera mini"} {
		if strings.Contains(ua, marker) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}

// Session is one client's transport session: connection id, device class,
// outbound queue and heartbeat state. Topic membership lives in the hub;
// the session only issues join/leave commands on the client's behalf.
type Session struct {
	id     string
	device DeviceClass
	conn   *websocket.Conn
	send   chan models.ServerMessage

	hub     *hub.Hub
	matches store.MatchStore
	logger  *zap.Logger

	lastSignal time.Time
	missed     int
	signalMu   sync.Mutex

	closeOnce sync.Once
}

// New creates a session for an upgraded connection
func New(id string, device DeviceClass, conn *websocket.Conn, h *hub.Hub, matches store.MatchStore, logger *zap.Logger) *Session {
	return &Session{
		id:         id,
		device:     device,
		conn:       conn,
		send:       make(chan models.ServerMessage, sendBufferSize),
		hub:        h,
		matches:    matches,
		logger:     logger.With(zap.String("conn", id), zap.String("device", string(device))),
		lastSignal: time.Now(),
	}
}

// ID returns the connection id
func (s *Session) ID() string { return s.id }

// Device returns the immutable device classification
func (s *Session) Device() DeviceClass { return s.device }

// Start registers the session with the hub, pushes the current live-match
// list, and launches the read/write pumps and the heartbeat monitor.
func (s *Session) Start(ctx context.Context) {
	s.hub.Register(s)

	go s.writePump(ctx)
	go s.readPump()
	go s.heartbeatMonitor(ctx)

	s.pushLiveMatches(ctx)
}

// TrySend queues a message without blocking. Returns false when the
// session's buffer is full.
func (s *Session) TrySend(msg models.ServerMessage) bool {
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// Close force-closes the underlying transport. Safe to call repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

// readPump pumps commands from the connection until it drops
func (s *Session) readPump() {
	defer func() {
		s.hub.Unregister(s)
		s.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.recordSignal()
		return nil
	})

	for {
		var msg models.ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Info("unexpected close", zap.Error(err))
			}
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.recordSignal()
		s.handleCommand(msg)
	}
}

// writePump pumps queued messages out and keeps the transport pinged
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Info("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// heartbeatMonitor force-closes half-open connections: a liveness window
// of 2x the expected interval with no signal counts as a miss, and three
// consecutive misses close the connection.
func (s *Session) heartbeatMonitor(ctx context.Context) {
	interval := s.device.HeartbeatInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.checkLiveness(interval) {
				continue
			}
			s.logger.Warn("heartbeat misses exceeded, closing connection")
			s.Close()
			return
		}
	}
}

// checkLiveness updates the missed counter and reports whether the
// connection should stay open.
func (s *Session) checkLiveness(interval time.Duration) bool {
	s.signalMu.Lock()
	defer s.signalMu.Unlock()

	if time.Since(s.lastSignal) > 2*interval {
		s.missed++
	} else {
		s.missed = 0
	}
	return s.missed < maxMissedHeartbeats
}

func (s *Session) recordSignal() {
	s.signalMu.Lock()
	s.lastSignal = time.Now()
	s.missed = 0
	s.signalMu.Unlock()
}

// handleCommand dispatches one inbound client command
func (s *Session) handleCommand(msg models.ClientMessage) {
	ctx := context.Background()

	switch msg.Type {
	case models.CommandRequestLiveMatches:
		s.pushLiveMatches(ctx)

	case models.CommandSubscribeMatch:
		s.subscribeMatch(ctx, msg.MatchID)

	case models.CommandUnsubscribeMatch:
		s.unsubscribeMatch(msg.MatchID)

	case models.CommandSubscribeEvent:
		s.subscribeEvent(msg.Event)

	case models.CommandHeartbeat:
		s.recordSignal()
		s.TrySend(models.ServerMessage{
			Type: models.MessageTypeHeartbeatAck,
			Payload: models.HeartbeatAck{
				Timestamp:       time.Now().UnixMilli(),
				ClientTimestamp: msg.Timestamp,
			},
			Timestamp: time.Now(),
		})

	default:
		s.logger.Warn("unsupported command", zap.String("type", msg.Type))
		s.sendError(models.ErrorPayload{
			Type:    models.ErrorTypeUnknownEvent,
			Message: "event '" + msg.Type + "' is not supported",
		})
	}
}

// pushLiveMatches sends the current live-match list to this session only
func (s *Session) pushLiveMatches(ctx context.Context) {
	matches, err := s.matches.GetActiveLiveMatches(ctx, store.DefaultLiveLimit)
	if err != nil {
		s.logger.Warn("live matches fetch failed", zap.Error(err))
		s.sendError(models.ErrorPayload{
			Type:    models.ErrorTypeFetch,
			Message: "failed to fetch live matches",
		})
		return
	}

	s.TrySend(models.ServerMessage{
		Type:      models.MessageTypeLiveMatches,
		Payload:   matches,
		Timestamp: time.Now(),
	})
}

// subscribeMatch joins the match topic and synchronously pushes the
// current detail snapshot. A store miss produces a scoped error event,
// never a disconnect.
func (s *Session) subscribeMatch(ctx context.Context, matchID string) {
	if matchID == "" {
		s.sendError(models.ErrorPayload{
			Type:    models.ErrorTypeSubscription,
			Message: "match ID is required for subscription",
		})
		return
	}

	s.hub.Subscribe(s, hub.MatchTopic(matchID))
	s.TrySend(models.ServerMessage{
		Type: models.MessageTypeSubscribed,
		Payload: models.SubscriptionAck{
			MatchID: matchID,
			Message: "successfully subscribed to match updates",
		},
		Timestamp: time.Now(),
	})

	match, err := s.matches.GetMatchByID(ctx, matchID)
	if err != nil {
		s.logger.Warn("match snapshot fetch failed",
			zap.String("match", matchID), zap.Error(err))
		s.sendError(models.ErrorPayload{
			Type:    models.ErrorTypeFetch,
			Message: "failed to fetch match details",
			MatchID: matchID,
		})
		return
	}

	s.TrySend(models.ServerMessage{
		Type:      models.MessageTypeMatchUpdated,
		Payload:   match,
		Timestamp: time.Now(),
	})
}

func (s *Session) unsubscribeMatch(matchID string) {
	if matchID == "" {
		return
	}

	s.hub.Unsubscribe(s, hub.MatchTopic(matchID))
	s.TrySend(models.ServerMessage{
		Type: models.MessageTypeUnsubscribed,
		Payload: models.SubscriptionAck{
			MatchID: matchID,
			Message: "successfully unsubscribed from match updates",
		},
		Timestamp: time.Now(),
	})
}

// subscribeEvent joins an event-class topic after validating the name
func (s *Session) subscribeEvent(name string) {
	if !models.ValidEventClass(name) {
		s.sendError(models.ErrorPayload{
			Type:    models.ErrorTypeSubscription,
			Message: "event '" + name + "' is not available for subscription",
		})
		return
	}
	s.hub.Subscribe(s, hub.EventTopic(name))
}

func (s *Session) sendError(payload models.ErrorPayload) {
	s.TrySend(models.ServerMessage{
		Type:      models.MessageTypeError,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}
