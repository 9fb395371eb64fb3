// Package testutil provides shared fixtures and fakes for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/store"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockMatch creates a test match with teams joined in
func MockMatch(id primitive.ObjectID, status models.MatchStatus, minute, homeScore, awayScore int) models.Match {
	return models.Match{
		ID:          id,
		Competition: "Premier League",
		Season:      "2025/26",
		HomeTeam:    models.Team{ID: primitive.NewObjectID(), Name: "Manchester City", ShortName: "MCI"},
		AwayTeam:    models.Team{ID: primitive.NewObjectID(), Name: "Arsenal", ShortName: "ARS"},
		HomeScore:   homeScore,
		AwayScore:   awayScore,
		Status:      status,
		Minute:      minute,
		StartTime:   time.Now().Add(-time.Duration(minute) * time.Minute),
		Events:      []models.MatchEvent{},
		LastUpdated: time.Now(),
	}
}

// MockEvent creates a test match event
func MockEvent(eventType string, minute int, team string) models.MatchEvent {
	return models.MatchEvent{
		Type:      eventType,
		Minute:    minute,
		Team:      team,
		Player:    "Player 10",
		Timestamp: time.Now(),
	}
}

// FakeMatchStore is an in-memory MatchStore with call recording and
// failure injection.
type FakeMatchStore struct {
	mu      sync.Mutex
	matches map[string]models.Match

	LiveErr   error
	UpdateErr map[string]error

	LiveCalls    int
	UpdateCalls  []string
	AppendCalls  []string
	LastUpdate   store.MatchUpdate
	LastAppended models.MatchEvent
}

// NewFakeMatchStore creates a fake store seeded with the given matches
func NewFakeMatchStore(matches ...models.Match) *FakeMatchStore {
	s := &FakeMatchStore{
		matches:   make(map[string]models.Match),
		UpdateErr: make(map[string]error),
	}
	for _, m := range matches {
		s.matches[m.ID.Hex()] = m
	}
	return s
}

func (s *FakeMatchStore) GetActiveLiveMatches(ctx context.Context, limit int) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LiveCalls++
	if s.LiveErr != nil {
		return nil, s.LiveErr
	}

	var live []models.Match
	for _, m := range s.matches {
		if m.Status == models.StatusLive {
			live = append(live, m)
		}
	}
	return live, nil
}

func (s *FakeMatchStore) GetRecentResults(ctx context.Context, limit int) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finished []models.Match
	for _, m := range s.matches {
		if m.Status == models.StatusFinished {
			finished = append(finished, m)
		}
	}
	return finished, nil
}

func (s *FakeMatchStore) GetMatchByID(ctx context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, models.NotFoundf("match %s", id)
	}
	return &m, nil
}

func (s *FakeMatchStore) ApplyUpdate(ctx context.Context, id string, update store.MatchUpdate) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpdateCalls = append(s.UpdateCalls, id)
	s.LastUpdate = update

	if err := s.UpdateErr[id]; err != nil {
		return nil, err
	}

	m, ok := s.matches[id]
	if !ok {
		return nil, models.NotFoundf("match %s", id)
	}

	if update.HomeScore != nil {
		m.HomeScore = *update.HomeScore
	}
	if update.AwayScore != nil {
		m.AwayScore = *update.AwayScore
	}
	if update.Status != nil {
		m.Status = *update.Status
	}
	if update.Minute != nil {
		m.Minute = *update.Minute
	}
	if update.Venue != nil {
		m.Venue = *update.Venue
	}
	m.LastUpdated = time.Now()

	s.matches[id] = m
	return &m, nil
}

func (s *FakeMatchStore) AppendEvent(ctx context.Context, id string, event models.MatchEvent) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.AppendCalls = append(s.AppendCalls, id)
	s.LastAppended = event

	m, ok := s.matches[id]
	if !ok {
		return nil, models.NotFoundf("match %s", id)
	}

	m.Events = append(m.Events, event)
	m.LastUpdated = time.Now()
	s.matches[id] = m
	return &m, nil
}

// Get returns the stored match by id for assertions
func (s *FakeMatchStore) Get(id string) (models.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	return m, ok
}

// Conn is a fake hub connection that records what it receives
type Conn struct {
	ConnID string

	mu       sync.Mutex
	received []models.ServerMessage
	closed   bool
	full     bool
}

// NewConn creates a fake connection
func NewConn(id string) *Conn {
	return &Conn{ConnID: id}
}

func (c *Conn) ID() string { return c.ConnID }

func (c *Conn) TrySend(msg models.ServerMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.received = append(c.received, msg)
	return true
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Closed reports whether the hub force-closed this connection
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetFull makes subsequent TrySend calls report a full buffer
func (c *Conn) SetFull() {
	c.mu.Lock()
	c.full = true
	c.mu.Unlock()
}

// Received returns a copy of all messages delivered so far
func (c *Conn) Received() []models.ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ServerMessage, len(c.received))
	copy(out, c.received)
	return out
}

// CountType returns how many received messages have the given type
func (c *Conn) CountType(msgType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, msg := range c.received {
		if msg.Type == msgType {
			n++
		}
	}
	return n
}

// WaitForType polls until at least want messages of the given type have
// arrived or the timeout expires. Returns the final count.
func (c *Conn) WaitForType(msgType string, want int, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for {
		if n := c.CountType(msgType); n >= want || time.Now().After(deadline) {
			return n
		}
		time.Sleep(5 * time.Millisecond)
	}
}
