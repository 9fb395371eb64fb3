package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEventClass(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{EventGoal, EventClassGoals},
		{EventOwnGoal, EventClassGoals},
		{EventPenalty, EventClassGoals},
		{EventYellowCard, EventClassCards},
		{EventRedCard, EventClassCards},
		{EventSubstitution, EventClassSubstitutions},
		{EventKickoff, ""},
		{EventHalftime, ""},
		{"unknown", ""},
	}

	for _, tt := range tests {
		if got := EventClass(tt.eventType); got != tt.want {
			t.Errorf("EventClass(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestValidEventClass(t *testing.T) {
	for _, name := range []string{EventClassGoals, EventClassCards, EventClassSubstitutions} {
		if !ValidEventClass(name) {
			t.Errorf("ValidEventClass(%q) = false", name)
		}
	}
	for _, name := range []string{"", "corners", "goal"} {
		if ValidEventClass(name) {
			t.Errorf("ValidEventClass(%q) = true", name)
		}
	}
}

func TestClassMessageType(t *testing.T) {
	tests := []struct {
		class string
		want  string
	}{
		{EventClassGoals, MessageTypeGoalScored},
		{EventClassCards, MessageTypeCardShown},
		{EventClassSubstitutions, MessageTypeSubstitutionMade},
		{"corners", ""},
	}
	for _, tt := range tests {
		if got := ClassMessageType(tt.class); got != tt.want {
			t.Errorf("ClassMessageType(%q) = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestMinuteCap(t *testing.T) {
	tests := []struct {
		minute int
		want   int
	}{
		{0, RegulationMinutes},
		{45, RegulationMinutes},
		{90, RegulationMinutes},
		{91, ExtraTimeMinutes},
		{115, ExtraTimeMinutes},
	}
	for _, tt := range tests {
		m := Match{Minute: tt.minute}
		if got := m.MinuteCap(); got != tt.want {
			t.Errorf("MinuteCap() at minute %d = %d, want %d", tt.minute, got, tt.want)
		}
	}
}

func TestIsLive(t *testing.T) {
	if !(&Match{Status: StatusLive}).IsLive() {
		t.Errorf("LIVE match should report live")
	}
	for _, status := range []MatchStatus{StatusScheduled, StatusFinished, StatusPostponed, StatusCanceled} {
		if (&Match{Status: status}).IsLive() {
			t.Errorf("%s match should not report live", status)
		}
	}
}

func TestSnapshot(t *testing.T) {
	m := Match{
		ID:        primitive.NewObjectID(),
		HomeTeam:  Team{Name: "Arsenal", ShortName: "ARS"},
		AwayTeam:  Team{Name: "Chelsea", ShortName: "CHE"},
		HomeScore: 2,
		AwayScore: 1,
		Status:    StatusLive,
		Minute:    78,
		StartTime: time.Now(),
	}

	snap := m.Snapshot()
	if snap.ID != m.ID {
		t.Errorf("snapshot id = %s, want %s", snap.ID.Hex(), m.ID.Hex())
	}
	if snap.HomeTeam.Name != "Arsenal" || snap.AwayTeam.Name != "Chelsea" {
		t.Errorf("snapshot teams = %s vs %s", snap.HomeTeam.Name, snap.AwayTeam.Name)
	}
	if snap.HomeScore != 2 || snap.AwayScore != 1 {
		t.Errorf("snapshot score = %d-%d", snap.HomeScore, snap.AwayScore)
	}
}
