package models

import "time"

// Server-to-client message types
const (
	MessageTypeLiveMatches      = "live_matches"
	MessageTypeMatchUpdated     = "match_updated"
	MessageTypeMatchEvent       = "match_event"
	MessageTypeGoalScored       = "goal_scored"
	MessageTypeCardShown        = "card_shown"
	MessageTypeSubstitutionMade = "substitution_made"
	MessageTypeHeartbeatAck     = "heartbeat_ack"
	MessageTypeSubscribed       = "subscription_success"
	MessageTypeUnsubscribed     = "unsubscription_success"
	MessageTypeError            = "error"
)

// Client-to-server command types
const (
	CommandRequestLiveMatches = "request_live_matches"
	CommandSubscribeMatch     = "subscribe_match"
	CommandUnsubscribeMatch   = "unsubscribe_match"
	CommandSubscribeEvent     = "subscribe_event"
	CommandHeartbeat          = "heartbeat"
)

// Error type codes carried on error events
const (
	ErrorTypeFetch        = "FETCH_ERROR"
	ErrorTypeSubscription = "SUBSCRIPTION_ERROR"
	ErrorTypeUnknownEvent = "UNKNOWN_EVENT"
	ErrorTypeConnection   = "CONNECTION_ERROR"
)

// ClientMessage represents a command from client to server
type ClientMessage struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId,omitempty"`
	Event   string `json:"event,omitempty"`
	// Client clock, echoed back on heartbeat acks
	Timestamp int64 `json:"timestamp,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// MatchEventMessage is the payload for per-match event broadcasts
type MatchEventMessage struct {
	MatchID string     `json:"matchId"`
	Event   MatchEvent `json:"event"`
}

// ClassEventMessage is the payload for event-class broadcasts
// (goal_scored, card_shown, substitution_made)
type ClassEventMessage struct {
	MatchID string        `json:"matchId"`
	Event   MatchEvent    `json:"event"`
	Match   MatchSnapshot `json:"match"`
}

// HeartbeatAck echoes the client clock alongside the server clock
type HeartbeatAck struct {
	Timestamp       int64 `json:"timestamp"`
	ClientTimestamp int64 `json:"clientTimestamp,omitempty"`
}

// SubscriptionAck confirms a subscribe/unsubscribe command
type SubscriptionAck struct {
	MatchID string `json:"matchId"`
	Message string `json:"message"`
}

// ErrorPayload is the payload of an error event. MatchID is set when the
// error is scoped to a single match subscription.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	MatchID string `json:"matchId,omitempty"`
}

// ClassMessageType returns the server message type for an event class
func ClassMessageType(class string) string {
	switch class {
	case EventClassGoals:
		return MessageTypeGoalScored
	case EventClassCards:
		return MessageTypeCardShown
	case EventClassSubstitutions:
		return MessageTypeSubstitutionMade
	default:
		return ""
	}
}
