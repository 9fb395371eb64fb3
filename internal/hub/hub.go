package hub

import (
	"context"
	"sync"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/store"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"go.uber.org/zap"
)

// Topic names. The global topic is implicit: every registered connection
// receives global broadcasts.
const (
	matchTopicPrefix = "match:"
	eventTopicPrefix = "event:"
)

// MatchTopic returns the topic scoped to a single match
func MatchTopic(matchID string) string {
	return matchTopicPrefix + matchID
}

// EventTopic returns the topic for an event class (goals, cards...)
func EventTopic(class string) string {
	return eventTopicPrefix + class
}

// significantFields are the match fields whose change triggers a global
// live-list refresh in addition to the per-match notification.
var significantFields = map[string]bool{
	"homeScore": true,
	"awayScore": true,
	"status":    true,
	"minute":    true,
	"events":    true,
}

// Conn is the hub's view of a connected session
type Conn interface {
	ID() string
	// TrySend queues a message without blocking. Returns false when the
	// session's buffer is full.
	TrySend(msg models.ServerMessage) bool
	// Close force-closes the underlying transport.
	Close()
}

// SnapshotWriter receives the latest broadcast state for read-side caching
type SnapshotWriter interface {
	WriteLiveMatches(ctx context.Context, matches []models.Match) error
	WriteMatch(ctx context.Context, match *models.Match) error
}

type topicRequest struct {
	conn  Conn
	topic string
}

type outbound struct {
	topic string // "" broadcasts to every connection
	msg   models.ServerMessage
}

// Hub maintains the set of active connections and their topic memberships,
// and fans update/event payloads out to subscribers. All membership state
// is owned by the Run loop; the exported methods only post commands to it.
type Hub struct {
	conns      map[Conn]bool
	topics     map[string]map[Conn]bool
	membership map[Conn]map[string]bool

	register   chan Conn
	unregister chan Conn
	join       chan topicRequest
	leave      chan topicRequest
	broadcast  chan outbound
	// closed when Run returns; unblocks command senders during shutdown
	done chan struct{}

	matches  store.MatchStore
	snapshot SnapshotWriter
	logger   *zap.Logger

	totalConnections int64
	totalMessages    int64
	droppedMessages  int64
	metricsMu        sync.Mutex

	connCount int
	countMu   sync.RWMutex
}

// New creates a hub. The snapshot writer may be nil when no cache is wired.
func New(matches store.MatchStore, snapshot SnapshotWriter, logger *zap.Logger) *Hub {
	return &Hub{
		conns:      make(map[Conn]bool),
		topics:     make(map[string]map[Conn]bool),
		membership: make(map[Conn]map[string]bool),
		register:   make(chan Conn),
		unregister: make(chan Conn),
		join:       make(chan topicRequest),
		leave:      make(chan topicRequest),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
		matches:    matches,
		snapshot:   snapshot,
		logger:     logger,
	}
}

// Run starts the hub's main loop. It owns all membership tables.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.conns[c] = true
			h.membership[c] = make(map[string]bool)
			h.setConnCount(len(h.conns))
			h.bumpConnections()
			h.logger.Info("connection registered",
				zap.String("conn", c.ID()), zap.Int("total", len(h.conns)))

		case c := <-h.unregister:
			h.removeConn(c)

		case req := <-h.join:
			if !h.conns[req.conn] {
				continue
			}
			if h.topics[req.topic] == nil {
				h.topics[req.topic] = make(map[Conn]bool)
			}
			h.topics[req.topic][req.conn] = true
			h.membership[req.conn][req.topic] = true

		case req := <-h.leave:
			h.dropMembership(req.conn, req.topic)

		case out := <-h.broadcast:
			h.fanout(out)
		}
	}
}

// Register adds a connection to the hub. A no-op once the hub has shut
// down, so late-exiting sessions never block.
func (h *Hub) Register(c Conn) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a connection and all its topic memberships
func (h *Hub) Unregister(c Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribe joins a connection to a topic
func (h *Hub) Subscribe(c Conn, topic string) {
	select {
	case h.join <- topicRequest{conn: c, topic: topic}:
	case <-h.done:
	}
}

// Unsubscribe removes a connection from a topic
func (h *Hub) Unsubscribe(c Conn, topic string) {
	select {
	case h.leave <- topicRequest{conn: c, topic: topic}:
	case <-h.done:
	}
}

// BroadcastLiveMatches pushes the live-match list to every connection
func (h *Hub) BroadcastLiveMatches(matches []models.Match) {
	h.send(outbound{msg: models.ServerMessage{
		Type:      models.MessageTypeLiveMatches,
		Payload:   matches,
		Timestamp: time.Now(),
	}})
}

// NotifyMatchUpdate emits the updated match to its topic subscribers.
// When any changed field is significant (score, status, minute, events)
// the live-match list is re-fetched and broadcast globally so list views
// stay consistent with detail views.
//
// Delivery is not idempotent: submitting the same update twice broadcasts
// twice. Applying it twice in the store yields the same document, so
// duplicates are harmless to state.
func (h *Hub) NotifyMatchUpdate(ctx context.Context, matchID string, match *models.Match, changed []string) {
	h.send(outbound{
		topic: MatchTopic(matchID),
		msg: models.ServerMessage{
			Type:      models.MessageTypeMatchUpdated,
			Payload:   match,
			Timestamp: time.Now(),
		},
	})

	if h.snapshot != nil {
		if err := h.snapshot.WriteMatch(ctx, match); err != nil {
			h.logger.Warn("match snapshot write failed",
				zap.String("match", matchID), zap.Error(err))
		}
	}

	if !h.isSignificant(changed) {
		return
	}
	h.refreshLiveList(ctx)
}

// NotifyMatchEvent emits the event to the match topic and, when the event
// type maps to a class (goals/cards/substitutions), a lightweight payload
// to the class topic.
func (h *Hub) NotifyMatchEvent(ctx context.Context, matchID string, event models.MatchEvent, match *models.Match) {
	h.send(outbound{
		topic: MatchTopic(matchID),
		msg: models.ServerMessage{
			Type:      models.MessageTypeMatchEvent,
			Payload:   models.MatchEventMessage{MatchID: matchID, Event: event},
			Timestamp: time.Now(),
		},
	})

	class := models.EventClass(event.Type)
	if class == "" {
		return
	}

	h.send(outbound{
		topic: EventTopic(class),
		msg: models.ServerMessage{
			Type: models.ClassMessageType(class),
			Payload: models.ClassEventMessage{
				MatchID: matchID,
				Event:   event,
				Match:   match.Snapshot(),
			},
			Timestamp: time.Now(),
		},
	})
}

// refreshLiveList re-fetches the live set and broadcasts it globally.
// Store failures are logged and swallowed: an out-of-date list view is
// preferable to dropping the per-match update that triggered the refresh.
func (h *Hub) refreshLiveList(ctx context.Context) {
	matches, err := h.matches.GetActiveLiveMatches(ctx, store.DefaultLiveLimit)
	if err != nil {
		h.logger.Warn("live list refresh failed", zap.Error(err))
		return
	}

	if h.snapshot != nil {
		if err := h.snapshot.WriteLiveMatches(ctx, matches); err != nil {
			h.logger.Warn("live list snapshot write failed", zap.Error(err))
		}
	}

	h.BroadcastLiveMatches(matches)
}

func (h *Hub) isSignificant(changed []string) bool {
	for _, field := range changed {
		if significantFields[field] {
			return true
		}
	}
	return false
}

func (h *Hub) send(out outbound) {
	select {
	case h.broadcast <- out:
	default:
		h.bumpDropped()
		h.logger.Warn("broadcast buffer full, dropping message",
			zap.String("type", out.msg.Type))
	}
}

// fanout delivers one message to its audience. Runs on the hub loop.
func (h *Hub) fanout(out outbound) {
	var audience map[Conn]bool
	if out.topic == "" {
		audience = h.conns
	} else {
		audience = h.topics[out.topic]
	}
	if len(audience) == 0 {
		return
	}

	sent := 0
	for c := range audience {
		if c.TrySend(out.msg) {
			sent++
			continue
		}
		// Buffer full: the session is too slow, cut it loose
		h.logger.Warn("session buffer full, closing",
			zap.String("conn", c.ID()))
		h.removeConn(c)
		c.Close()
	}

	if sent > 0 {
		h.bumpMessages(int64(sent))
	}
}

// removeConn drops a connection from every table. Runs on the hub loop.
func (h *Hub) removeConn(c Conn) {
	if !h.conns[c] {
		return
	}
	delete(h.conns, c)
	for topic := range h.membership[c] {
		h.dropMembership(c, topic)
	}
	delete(h.membership, c)
	h.setConnCount(len(h.conns))
	h.logger.Info("connection unregistered",
		zap.String("conn", c.ID()), zap.Int("total", len(h.conns)))
}

func (h *Hub) dropMembership(c Conn, topic string) {
	if members := h.topics[topic]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics := h.membership[c]; topics != nil {
		delete(topics, topic)
	}
}

func (h *Hub) shutdown() {
	h.logger.Info("hub shutting down", zap.Int("active", len(h.conns)))
	close(h.done)
	for c := range h.conns {
		c.Close()
	}
	h.conns = make(map[Conn]bool)
	h.topics = make(map[string]map[Conn]bool)
	h.membership = make(map[Conn]map[string]bool)
	h.setConnCount(0)
}

// ConnCount returns the number of active connections
func (h *Hub) ConnCount() int {
	h.countMu.RLock()
	defer h.countMu.RUnlock()
	return h.connCount
}

// Metrics returns hub counters for the metrics endpoint
func (h *Hub) Metrics() map[string]interface{} {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return map[string]interface{}{
		"active_connections": h.ConnCount(),
		"total_connections":  h.totalConnections,
		"total_messages":     h.totalMessages,
		"dropped_messages":   h.droppedMessages,
		"broadcast_capacity": cap(h.broadcast),
		"broadcast_usage":    len(h.broadcast),
	}
}

func (h *Hub) setConnCount(n int) {
	h.countMu.Lock()
	h.connCount = n
	h.countMu.Unlock()
}

func (h *Hub) bumpConnections() {
	h.metricsMu.Lock()
	h.totalConnections++
	h.metricsMu.Unlock()
}

func (h *Hub) bumpMessages(n int64) {
	h.metricsMu.Lock()
	h.totalMessages += n
	h.metricsMu.Unlock()
}

func (h *Hub) bumpDropped() {
	h.metricsMu.Lock()
	h.droppedMessages++
	h.metricsMu.Unlock()
}
