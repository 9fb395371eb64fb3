// Package liveclient is the client half of the live match update wire: it
// owns one persistent connection to the server, survives reconnects
// transparently for its subscribers, and degrades to HTTP polling when the
// socket transport keeps failing. After a bounded number of consecutive
// connection failures it disables itself for the rest of the session so
// the embedding application keeps working without live updates.
package liveclient

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"github.com/gorilla/websocket"
)

// State is the controller's connection state
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Transport selects how the controller talks to the server
type Transport int

const (
	TransportWebSocket Transport = iota
	TransportPolling
)

// Callback receives the raw payload of a server message
type Callback func(payload json.RawMessage)

// Options configures a Controller
type Options struct {
	// SocketURL is the WebSocket endpoint, e.g. ws://host:3000/ws
	SocketURL string

	// APIBaseURL is the REST base used by the polling fallback,
	// e.g. http://host:3000
	APIBaseURL string

	// Device is sent on the handshake for server-side classification
	// ("mobile" or "desktop")
	Device string

	// MaxAttempts is the number of consecutive connection failures
	// tolerated before the controller disables itself (default 2)
	MaxAttempts int

	// Backoff delays between reconnection attempts
	Backoff BackoffPolicy

	// PollInterval is the cadence of the HTTP polling fallback
	PollInterval time.Duration

	HandshakeTimeout time.Duration

	Logger *log.Logger
}

func (o *Options) withDefaults() {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 2
	}
	if o.Backoff.Initial == 0 {
		o.Backoff.Initial = time.Second
	}
	if o.Backoff.Max == 0 {
		o.Backoff.Max = 10 * time.Second
	}
	if o.PollInterval == 0 {
		o.PollInterval = 15 * time.Second
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Controller owns a single persistent server connection. One instance is
// shared process-wide; UI components hold a reference and Release it when
// done, and only Shutdown tears the connection down.
type Controller struct {
	opts Options

	mu        sync.Mutex
	state     State
	transport Transport
	conn      *websocket.Conn
	attempts  int
	refs      int
	shutdown  bool
	// generation invalidates read/poll loops from stale connections
	generation int
	// requestedList tracks the one live-list request per connection
	requestedList bool
	noticeSent    bool

	writeMu sync.Mutex

	// subscriptions survive reconnects: callbacks by message type plus
	// the match/event-class interest re-issued on every connect
	subMu     sync.RWMutex
	callbacks map[string]Callback
	matchSubs map[string]bool
	classSubs map[string]bool
	// inFlight tracks running dispatches per topic so Unsubscribe can
	// wait them out without the registry lock being held across user code
	inFlight map[string]*sync.WaitGroup

	httpClient *http.Client
}

// New creates a controller. It does not connect until Connect is called.
func New(opts Options) *Controller {
	opts.withDefaults()
	return &Controller{
		opts:       opts,
		state:      StateIdle,
		callbacks:  make(map[string]Callback),
		matchSubs:  make(map[string]bool),
		classSubs:  make(map[string]bool),
		inFlight:   make(map[string]*sync.WaitGroup),
		httpClient: &http.Client{Timeout: opts.HandshakeTimeout},
	}
}

// State returns the controller's current connection state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Acquire registers a component's interest in the shared connection
func (c *Controller) Acquire() {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
}

// Release drops a component's interest. The connection stays up so view
// navigation does not thrash the transport; only Shutdown disconnects.
func (c *Controller) Release() {
	c.mu.Lock()
	if c.refs > 0 {
		c.refs--
	}
	c.mu.Unlock()
}

// Connect starts the connection state machine. Calling it while already
// connecting, connected, or disabled is a no-op, so any number of UI
// components can call it safely.
func (c *Controller) Connect() {
	c.mu.Lock()
	if c.state != StateIdle || c.shutdown {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	generation := c.generation
	c.mu.Unlock()

	go c.connectLoop(generation)
}

// Shutdown permanently disconnects. No reconnection is attempted.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.generation++
	conn := c.conn
	c.conn = nil
	c.state = StateIdle
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Subscribe registers a callback for a server message type. Re-subscribing
// the same topic replaces the prior callback. Callbacks may call back into
// the controller.
func (c *Controller) Subscribe(topic string, cb Callback) {
	c.subMu.Lock()
	c.callbacks[topic] = cb
	if c.inFlight[topic] == nil {
		c.inFlight[topic] = &sync.WaitGroup{}
	}
	c.subMu.Unlock()
}

// Unsubscribe detaches and forgets the topic's callback. No further
// dispatch for the topic happens after this returns: any dispatch already
// running is waited out. Calling Unsubscribe for a topic from inside that
// topic's own callback deadlocks.
func (c *Controller) Unsubscribe(topic string) {
	c.subMu.Lock()
	delete(c.callbacks, topic)
	wg := c.inFlight[topic]
	c.subMu.Unlock()

	if wg != nil {
		wg.Wait()
	}
}

// SubscribeMatch registers interest in a match's updates. Duplicate
// requests are deduplicated; the server command is sent at most once per
// connection and re-issued automatically after a reconnect.
func (c *Controller) SubscribeMatch(matchID string) {
	c.subMu.Lock()
	already := c.matchSubs[matchID]
	c.matchSubs[matchID] = true
	c.subMu.Unlock()

	if already {
		return
	}
	c.sendCommand(models.ClientMessage{
		Type:    models.CommandSubscribeMatch,
		MatchID: matchID,
	})
}

// UnsubscribeMatch drops interest in a match
func (c *Controller) UnsubscribeMatch(matchID string) {
	c.subMu.Lock()
	delete(c.matchSubs, matchID)
	c.subMu.Unlock()

	c.sendCommand(models.ClientMessage{
		Type:    models.CommandUnsubscribeMatch,
		MatchID: matchID,
	})
}

// SubscribeEventClass registers interest in an event-class feed
// (goals, cards, substitutions)
func (c *Controller) SubscribeEventClass(name string) error {
	if !models.ValidEventClass(name) {
		return &models.ValidationError{Field: "event", Message: "unknown event class " + name}
	}

	c.subMu.Lock()
	already := c.classSubs[name]
	c.classSubs[name] = true
	c.subMu.Unlock()

	if !already {
		c.sendCommand(models.ClientMessage{
			Type:  models.CommandSubscribeEvent,
			Event: name,
		})
	}
	return nil
}

// RequestLiveMatches asks the server for the current live-match list
func (c *Controller) RequestLiveMatches() {
	c.sendCommand(models.ClientMessage{Type: models.CommandRequestLiveMatches})
}

// connectLoop drives connection attempts until one succeeds, the attempt
// budget is exhausted, or the controller is shut down.
func (c *Controller) connectLoop(generation int) {
	for {
		c.mu.Lock()
		if c.shutdown || c.generation != generation || c.state == StateDisabled {
			c.mu.Unlock()
			return
		}
		attempt := c.attempts + 1
		c.mu.Unlock()

		err := c.dial(generation)
		if err == nil {
			return
		}

		c.opts.Logger.Printf("liveclient: %v", &models.ConnectionError{Attempt: attempt, Cause: err})

		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		// Socket transport keeps failing: degrade to HTTP polling for
		// the next attempt
		if c.transport == TransportWebSocket {
			c.transport = TransportPolling
		}
		c.mu.Unlock()

		if attempts >= c.opts.MaxAttempts {
			c.disable()
			return
		}

		time.Sleep(c.opts.Backoff.Delay(attempts))
	}
}

// dial makes one connection attempt over the current transport
func (c *Controller) dial(generation int) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	if transport == TransportPolling {
		return c.startPolling(generation)
	}
	return c.dialWebSocket(generation)
}

func (c *Controller) dialWebSocket(generation int) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	url := c.opts.SocketURL
	if c.opts.Device != "" {
		url += "?device=" + c.opts.Device
	}

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.shutdown || c.generation != generation {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.requestedList = false
	c.mu.Unlock()

	c.opts.Logger.Printf("liveclient: connected to %s", c.opts.SocketURL)
	c.onConnected()

	go c.readLoop(conn, generation)
	return nil
}

// startPolling verifies the REST endpoint is reachable and starts the
// polling loop. In polling mode the controller is "connected": live-list
// payloads keep flowing, but per-match pushes are unavailable.
func (c *Controller) startPolling(generation int) error {
	matches, err := c.fetchLiveMatches()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.shutdown || c.generation != generation {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	c.opts.Logger.Printf("liveclient: degraded to polling %s", c.opts.APIBaseURL)
	c.dispatch(models.MessageTypeLiveMatches, matches)

	go c.pollLoop(generation)
	return nil
}

func (c *Controller) pollLoop(generation int) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		stale := c.shutdown || c.generation != generation
		c.mu.Unlock()
		if stale {
			return
		}

		matches, err := c.fetchLiveMatches()
		if err != nil {
			c.opts.Logger.Printf("liveclient: poll failed: %v", err)
			continue
		}
		c.dispatch(models.MessageTypeLiveMatches, matches)
	}
}

func (c *Controller) fetchLiveMatches() (json.RawMessage, error) {
	resp, err := c.httpClient.Get(c.opts.APIBaseURL + "/api/matches/live")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("live matches endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Matches json.RawMessage `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Matches, nil
}

// onConnected re-issues every stored subscription and requests the live
// list once for this connection, regardless of how many subscribers exist.
func (c *Controller) onConnected() {
	c.subMu.RLock()
	matchIDs := make([]string, 0, len(c.matchSubs))
	for id := range c.matchSubs {
		matchIDs = append(matchIDs, id)
	}
	classes := make([]string, 0, len(c.classSubs))
	for name := range c.classSubs {
		classes = append(classes, name)
	}
	c.subMu.RUnlock()

	for _, id := range matchIDs {
		c.sendCommand(models.ClientMessage{
			Type:    models.CommandSubscribeMatch,
			MatchID: id,
		})
	}
	for _, name := range classes {
		c.sendCommand(models.ClientMessage{
			Type:  models.CommandSubscribeEvent,
			Event: name,
		})
	}

	c.mu.Lock()
	request := !c.requestedList
	c.requestedList = true
	c.mu.Unlock()

	if request {
		c.RequestLiveMatches()
	}
}

func (c *Controller) readLoop(conn *websocket.Conn, generation int) {
	defer conn.Close()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(generation, err)
			return
		}
		c.dispatch(msg.Type, msg.Payload)
	}
}

// handleDisconnect moves a dropped connection back into the reconnect
// machine, unless the drop was a deliberate shutdown.
func (c *Controller) handleDisconnect(generation int, err error) {
	c.mu.Lock()
	if c.shutdown || c.generation != generation {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateConnecting
	c.mu.Unlock()

	c.opts.Logger.Printf("liveclient: connection lost: %v", err)
	go c.connectLoop(generation)
}

// disable parks the controller for the rest of the session and surfaces
// exactly one "live updates unavailable" notice to subscribers. The
// application keeps functioning without live updates.
func (c *Controller) disable() {
	c.mu.Lock()
	c.state = StateDisabled
	notify := !c.noticeSent
	c.noticeSent = true
	c.mu.Unlock()

	c.opts.Logger.Printf("liveclient: giving up after %d attempts, live updates disabled", c.opts.MaxAttempts)
	if !notify {
		return
	}

	payload, _ := json.Marshal(models.ErrorPayload{
		Type:    models.ErrorTypeConnection,
		Message: "live updates unavailable, the app continues without them",
	})
	c.dispatch(models.MessageTypeError, payload)
}

// dispatch invokes the callback registered for the message type, if any.
// The callback runs outside the registry lock so it may re-enter the
// controller; the in-flight counter is raised under the lock, which is
// what lets Unsubscribe wait for deliveries already underway.
func (c *Controller) dispatch(msgType string, payload json.RawMessage) {
	c.subMu.RLock()
	cb, ok := c.callbacks[msgType]
	var wg *sync.WaitGroup
	if ok {
		wg = c.inFlight[msgType]
		wg.Add(1)
	}
	c.subMu.RUnlock()

	if !ok {
		return
	}
	defer wg.Done()
	cb(payload)
}

// sendCommand writes a command to the live socket. Commands issued while
// not connected (or while in polling mode) are dropped; stored
// subscriptions are replayed by onConnected when a socket comes up.
func (c *Controller) sendCommand(msg models.ClientMessage) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		c.opts.Logger.Printf("liveclient: command write failed: %v", err)
	}
}
