package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchStatus enumerates the lifecycle states of a match
type MatchStatus string

const (
	StatusScheduled MatchStatus = "SCHEDULED"
	StatusLive      MatchStatus = "LIVE"
	StatusFinished  MatchStatus = "FINISHED"
	StatusPostponed MatchStatus = "POSTPONED"
	StatusCanceled  MatchStatus = "CANCELED"
)

// Match event types
const (
	EventGoal         = "goal"
	EventOwnGoal      = "ownGoal"
	EventYellowCard   = "yellowCard"
	EventRedCard      = "redCard"
	EventSubstitution = "substitution"
	EventPenalty      = "penalty"
	EventKickoff      = "kickoff"
	EventHalftime     = "halftime"
	EventFulltime     = "fulltime"
)

// Event-class topics clients may subscribe to
const (
	EventClassGoals         = "goals"
	EventClassCards         = "cards"
	EventClassSubstitutions = "substitutions"
)

// Regulation time cap; extra time extends to 120
const (
	RegulationMinutes = 90
	ExtraTimeMinutes  = 120
)

// Team holds the display fields joined into match payloads
type Team struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string             `bson:"name" json:"name"`
	ShortName string             `bson:"shortName" json:"shortName"`
	Crest     string             `bson:"crest,omitempty" json:"crest,omitempty"`
	Venue     string             `bson:"venue,omitempty" json:"venue,omitempty"`
	Founded   int                `bson:"founded,omitempty" json:"founded,omitempty"`
}

// MatchEvent is a single in-match occurrence (goal, card, substitution...).
// Events are append-only: once written to a match they are never mutated.
type MatchEvent struct {
	Type           string            `bson:"type" json:"type"`
	Minute         int               `bson:"minute" json:"minute"`
	Team           string            `bson:"team" json:"team"` // "home" or "away"
	Player         string            `bson:"player" json:"player"`
	AdditionalInfo map[string]string `bson:"additionalInfo,omitempty" json:"additionalInfo,omitempty"`
	Timestamp      time.Time         `bson:"timestamp" json:"timestamp"`
}

// Match is the persisted match entity with team display data joined in
type Match struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Competition string             `bson:"competition" json:"competition"`
	Season      string             `bson:"season" json:"season"`
	HomeTeam    Team               `bson:"homeTeam" json:"homeTeam"`
	AwayTeam    Team               `bson:"awayTeam" json:"awayTeam"`
	HomeScore   int                `bson:"homeScore" json:"homeScore"`
	AwayScore   int                `bson:"awayScore" json:"awayScore"`
	Status      MatchStatus        `bson:"status" json:"status"`
	Minute      int                `bson:"minute" json:"minute"`
	StartTime   time.Time          `bson:"startTime" json:"startTime"`
	Venue       string             `bson:"venue,omitempty" json:"venue,omitempty"`
	Referee     string             `bson:"referee,omitempty" json:"referee,omitempty"`
	Events      []MatchEvent       `bson:"events" json:"events"`
	LastUpdated time.Time          `bson:"lastUpdated" json:"lastUpdated"`
}

// MatchSnapshot is the minimal match payload carried on event-class
// broadcasts so cross-cutting subscriptions stay lightweight
type MatchSnapshot struct {
	ID        primitive.ObjectID `json:"id"`
	HomeTeam  Team               `json:"homeTeam"`
	AwayTeam  Team               `json:"awayTeam"`
	HomeScore int                `json:"homeScore"`
	AwayScore int                `json:"awayScore"`
}

// Snapshot returns the minimal view of a match for event-class payloads
func (m *Match) Snapshot() MatchSnapshot {
	return MatchSnapshot{
		ID:        m.ID,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		HomeScore: m.HomeScore,
		AwayScore: m.AwayScore,
	}
}

// IsLive reports whether the match is currently in play
func (m *Match) IsLive() bool {
	return m.Status == StatusLive
}

// MinuteCap returns the maximum clock value for the match's current phase
func (m *Match) MinuteCap() int {
	if m.Minute > RegulationMinutes {
		return ExtraTimeMinutes
	}
	return RegulationMinutes
}

// EventClass maps an event type to its broadcast class topic.
// Returns "" for types that have no dedicated class (kickoff, halftime...).
func EventClass(eventType string) string {
	switch eventType {
	case EventGoal, EventOwnGoal, EventPenalty:
		return EventClassGoals
	case EventYellowCard, EventRedCard:
		return EventClassCards
	case EventSubstitution:
		return EventClassSubstitutions
	default:
		return ""
	}
}

// ValidEventClass reports whether clients may subscribe to the given class
func ValidEventClass(name string) bool {
	switch name {
	case EventClassGoals, EventClassCards, EventClassSubstitutions:
		return true
	}
	return false
}
