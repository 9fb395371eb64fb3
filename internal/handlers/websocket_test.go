package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/testutil"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// wsMessage keeps the payload raw so each test decodes what it expects
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newWSServer(t *testing.T, matches *testutil.FakeMatchStore) *httptest.Server {
	t.Helper()
	router, _ := newTestRouter(t, matches)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, msg models.ClientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write command %s: %v", msg.Type, err)
	}
}

// waitFor reads messages until one of the wanted type arrives, skipping
// interleaved broadcasts.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string) wsMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("no %s message within deadline", msgType)
	return wsMessage{}
}

// drainTypes collects message types arriving within the window
func drainTypes(conn *websocket.Conn, window time.Duration) map[string]int {
	types := make(map[string]int)
	deadline := time.Now().Add(window)
	for {
		conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return types
		}
		types[msg.Type]++
	}
}

func TestWebSocketInitialLiveMatches(t *testing.T) {
	m := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 1, 0)
	srv := newWSServer(t, testutil.NewFakeMatchStore(m))
	conn := dialWS(t, srv, "device=mobile")

	msg := waitFor(t, conn, models.MessageTypeLiveMatches)
	var matches []models.Match
	if err := json.Unmarshal(msg.Payload, &matches); err != nil {
		t.Fatalf("decode live matches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != m.ID {
		t.Errorf("expected the seeded live match, got %d matches", len(matches))
	}
}

func TestWebSocketSubscribeMatchFlow(t *testing.T) {
	m := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 0, 0)
	matches := testutil.NewFakeMatchStore(m)
	srv := newWSServer(t, matches)
	conn := dialWS(t, srv, "")
	waitFor(t, conn, models.MessageTypeLiveMatches)

	sendCommand(t, conn, models.ClientMessage{
		Type:    models.CommandSubscribeMatch,
		MatchID: m.ID.Hex(),
	})

	ack := waitFor(t, conn, models.MessageTypeSubscribed)
	var sub models.SubscriptionAck
	if err := json.Unmarshal(ack.Payload, &sub); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if sub.MatchID != m.ID.Hex() {
		t.Errorf("ack match = %s, want %s", sub.MatchID, m.ID.Hex())
	}

	// The current snapshot follows the ack
	snapshot := waitFor(t, conn, models.MessageTypeMatchUpdated)
	var got models.Match
	if err := json.Unmarshal(snapshot.Payload, &got); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got.ID != m.ID {
		t.Errorf("snapshot match = %s, want %s", got.ID.Hex(), m.ID.Hex())
	}

	// An admin update now flows to the subscriber
	postAdmin(t, srv, "/api/matches/"+m.ID.Hex()+"/update", `{"homeScore":1}`)
	update := waitFor(t, conn, models.MessageTypeMatchUpdated)
	if err := json.Unmarshal(update.Payload, &got); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if got.HomeScore != 1 {
		t.Errorf("updated home score = %d, want 1", got.HomeScore)
	}

	// Score changes also refresh the global list
	waitFor(t, conn, models.MessageTypeLiveMatches)
}

func TestWebSocketSubscribeMissingMatchID(t *testing.T) {
	srv := newWSServer(t, testutil.NewFakeMatchStore())
	conn := dialWS(t, srv, "")
	waitFor(t, conn, models.MessageTypeLiveMatches)

	sendCommand(t, conn, models.ClientMessage{Type: models.CommandSubscribeMatch})

	msg := waitFor(t, conn, models.MessageTypeError)
	var payload models.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Type != models.ErrorTypeSubscription {
		t.Errorf("error type = %s, want %s", payload.Type, models.ErrorTypeSubscription)
	}
}

func TestWebSocketSubscribeUnknownMatchKeepsConnection(t *testing.T) {
	srv := newWSServer(t, testutil.NewFakeMatchStore())
	conn := dialWS(t, srv, "")
	waitFor(t, conn, models.MessageTypeLiveMatches)

	missing := primitive.NewObjectID().Hex()
	sendCommand(t, conn, models.ClientMessage{
		Type:    models.CommandSubscribeMatch,
		MatchID: missing,
	})

	waitFor(t, conn, models.MessageTypeSubscribed)
	msg := waitFor(t, conn, models.MessageTypeError)
	var payload models.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Type != models.ErrorTypeFetch || payload.MatchID != missing {
		t.Errorf("error payload = %+v", payload)
	}

	// Still connected and serving commands
	sendCommand(t, conn, models.ClientMessage{Type: models.CommandRequestLiveMatches})
	waitFor(t, conn, models.MessageTypeLiveMatches)
}

func TestWebSocketUnknownCommand(t *testing.T) {
	srv := newWSServer(t, testutil.NewFakeMatchStore())
	conn := dialWS(t, srv, "")
	waitFor(t, conn, models.MessageTypeLiveMatches)

	sendCommand(t, conn, models.ClientMessage{Type: "teleport"})

	msg := waitFor(t, conn, models.MessageTypeError)
	var payload models.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Type != models.ErrorTypeUnknownEvent {
		t.Errorf("error type = %s, want %s", payload.Type, models.ErrorTypeUnknownEvent)
	}
}

func TestWebSocketHeartbeat(t *testing.T) {
	srv := newWSServer(t, testutil.NewFakeMatchStore())
	conn := dialWS(t, srv, "device=mobile")
	waitFor(t, conn, models.MessageTypeLiveMatches)

	clientClock := time.Now().UnixMilli()
	sendCommand(t, conn, models.ClientMessage{
		Type:      models.CommandHeartbeat,
		Timestamp: clientClock,
	})

	msg := waitFor(t, conn, models.MessageTypeHeartbeatAck)
	var ack models.HeartbeatAck
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.ClientTimestamp != clientClock {
		t.Errorf("echoed client clock = %d, want %d", ack.ClientTimestamp, clientClock)
	}
}

func TestWebSocketEventClassBroadcast(t *testing.T) {
	m := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 60, 0, 0)
	srv := newWSServer(t, testutil.NewFakeMatchStore(m))
	conn := dialWS(t, srv, "")
	waitFor(t, conn, models.MessageTypeLiveMatches)

	sendCommand(t, conn, models.ClientMessage{
		Type:  models.CommandSubscribeEvent,
		Event: models.EventClassGoals,
	})
	// No ack for event subscriptions; give the join time to land
	time.Sleep(100 * time.Millisecond)

	postAdmin(t, srv, "/api/matches/"+m.ID.Hex()+"/events",
		`{"type":"goal","minute":61,"team":"home","player":"Smith"}`)

	msg := waitFor(t, conn, models.MessageTypeGoalScored)
	var payload models.ClassEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode goal payload: %v", err)
	}
	if payload.MatchID != m.ID.Hex() || payload.Event.Type != models.EventGoal {
		t.Errorf("goal payload = %+v", payload)
	}
}

func TestWebSocketInvalidEventClass(t *testing.T) {
	srv := newWSServer(t, testutil.NewFakeMatchStore())
	conn := dialWS(t, srv, "")
	waitFor(t, conn, models.MessageTypeLiveMatches)

	sendCommand(t, conn, models.ClientMessage{
		Type:  models.CommandSubscribeEvent,
		Event: "corners",
	})

	msg := waitFor(t, conn, models.MessageTypeError)
	var payload models.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Type != models.ErrorTypeSubscription {
		t.Errorf("error type = %s, want %s", payload.Type, models.ErrorTypeSubscription)
	}
}

func TestWebSocketTopicIsolation(t *testing.T) {
	m1 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 0, 0)
	m2 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 55, 1, 0)
	srv := newWSServer(t, testutil.NewFakeMatchStore(m1, m2))

	conn1 := dialWS(t, srv, "")
	conn2 := dialWS(t, srv, "")
	waitFor(t, conn1, models.MessageTypeLiveMatches)
	waitFor(t, conn2, models.MessageTypeLiveMatches)

	sendCommand(t, conn1, models.ClientMessage{Type: models.CommandSubscribeMatch, MatchID: m1.ID.Hex()})
	sendCommand(t, conn2, models.ClientMessage{Type: models.CommandSubscribeMatch, MatchID: m2.ID.Hex()})
	waitFor(t, conn1, models.MessageTypeMatchUpdated)
	waitFor(t, conn2, models.MessageTypeMatchUpdated)

	postAdmin(t, srv, "/api/matches/"+m1.ID.Hex()+"/events",
		`{"type":"goal","minute":31,"team":"home","player":"Smith"}`)

	waitFor(t, conn1, models.MessageTypeMatchEvent)

	// The other match's subscriber sees the global list refresh but no
	// per-match traffic for a match it never subscribed to
	seen := drainTypes(conn2, 500*time.Millisecond)
	if seen[models.MessageTypeMatchEvent] != 0 {
		t.Errorf("conn2 received %d match_event messages", seen[models.MessageTypeMatchEvent])
	}
	if seen[models.MessageTypeLiveMatches] == 0 {
		t.Errorf("conn2 should still receive the global live list refresh")
	}
}

func postAdmin(t *testing.T, srv *httptest.Server, path, body string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Admin-Auth", "true")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post %s: status %d", path, resp.StatusCode)
	}
}
