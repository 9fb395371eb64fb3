package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/config"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/hub"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/store"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"go.uber.org/zap"
)

// finishProbability is the chance a match that has reached its minute cap
// transitions to FINISHED on that update.
const finishProbability = 0.5

// Weighted event-type selection: goals are heavier than cards or subs
var eventWeights = []struct {
	eventType string
	weight    float64
}{
	{models.EventGoal, 0.5},
	{models.EventYellowCard, 0.3},
	{models.EventRedCard, 0.1},
	{models.EventSubstitution, 0.1},
}

// randSource is the randomness the simulator consumes. Tests script it.
type randSource interface {
	Float64() float64
	Intn(n int) int
}

// Simulator periodically inspects the live match set and, subject to a
// per-match cooldown, synthesizes clock advances and match events. It
// stands in for a real upstream feed: replacing synthesize() with real
// ingestion keeps the polling, cooldown and notify paths unchanged.
type Simulator struct {
	matches store.MatchStore
	hub     *hub.Hub
	cfg     config.SimulatorConfig
	logger  *zap.Logger

	rng randSource
	now func() time.Time

	// lastUpdate rate-limits synthetic updates per match. Entries for
	// matches that leave the live set simply stop being consulted.
	lastUpdate map[string]time.Time
}

// New creates a simulator with time-seeded randomness
func New(matches store.MatchStore, h *hub.Hub, cfg config.SimulatorConfig, logger *zap.Logger) *Simulator {
	return &Simulator{
		matches:    matches,
		hub:        h,
		cfg:        cfg,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
		lastUpdate: make(map[string]time.Time),
	}
}

// Run polls for live matches until the context is canceled
func (s *Simulator) Run(ctx context.Context) {
	s.logger.Info("match update simulator started",
		zap.Duration("poll", s.cfg.PollInterval),
		zap.Duration("cooldown", s.cfg.UpdateInterval))

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("match update simulator stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one polling cycle. Failures on individual matches are
// isolated: they are logged and do not abort the cycle for other matches.
func (s *Simulator) tick(ctx context.Context) {
	live, err := s.matches.GetActiveLiveMatches(ctx, store.DefaultLiveLimit)
	if err != nil {
		s.logger.Warn("live match fetch failed", zap.Error(err))
		return
	}
	if len(live) == 0 {
		return
	}

	// Keep idle clients in sync even when no individual match changes
	s.hub.BroadcastLiveMatches(live)

	for i := range live {
		match := &live[i]
		id := match.ID.Hex()

		if s.now().Sub(s.lastUpdate[id]) <= s.cfg.UpdateInterval {
			continue
		}

		if err := s.synthesize(ctx, match); err != nil {
			s.logger.Warn("match update failed",
				zap.String("match", id), zap.Error(err))
		}
		// Stamp the cooldown even when nothing changed, so polling
		// faster than the update interval cannot produce write bursts
		s.lastUpdate[id] = s.now()
	}
}

// synthesize rolls for a clock advance and a match event, applies whatever
// changed through the store, and notifies the hub.
//
// Draw order is fixed: clock roll, clock increment, finish roll, event
// roll, event type, event side, player number.
func (s *Simulator) synthesize(ctx context.Context, match *models.Match) error {
	if !match.IsLive() {
		return nil
	}

	id := match.ID.Hex()
	var update store.MatchUpdate
	minute := match.Minute

	if s.rng.Float64() < s.cfg.ClockProbability {
		limit := match.MinuteCap()
		advanced := match.Minute + 1 + s.rng.Intn(3)
		if advanced > limit {
			advanced = limit
		}
		if advanced != match.Minute {
			update.Minute = &advanced
			minute = advanced
		}
		if advanced >= limit && s.rng.Float64() < finishProbability {
			status := models.StatusFinished
			update.Status = &status
		}
	}

	var event *models.MatchEvent
	if s.rng.Float64() < s.cfg.EventProbability {
		event = s.rollEvent(match, minute, &update)
	}

	if update.IsEmpty() && event == nil {
		return nil
	}

	changed := update.ChangedFields()
	updated := match

	if !update.IsEmpty() {
		applied, err := s.matches.ApplyUpdate(ctx, id, update)
		if store.IsNotFound(err) {
			// Match vanished between the poll and the write: skip
			s.logger.Info("match disappeared, skipping", zap.String("match", id))
			return nil
		}
		if err != nil {
			return err
		}
		updated = applied
	}

	if event != nil {
		appended, err := s.matches.AppendEvent(ctx, id, *event)
		if store.IsNotFound(err) {
			s.logger.Info("match disappeared, skipping", zap.String("match", id))
			return nil
		}
		if err != nil {
			return err
		}
		updated = appended
		changed = append(changed, "events")
	}

	s.hub.NotifyMatchUpdate(ctx, id, updated, changed)
	if event != nil {
		s.hub.NotifyMatchEvent(ctx, id, *event, updated)
	}

	s.logger.Info("synthesized match update",
		zap.String("match", id),
		zap.Strings("changed", changed))
	return nil
}

// rollEvent picks a weighted event type and side. Goals adjust the score
// through the partial update; cards and substitutions only emit the event.
func (s *Simulator) rollEvent(match *models.Match, minute int, update *store.MatchUpdate) *models.MatchEvent {
	eventType := s.pickEventType()

	side := "away"
	if s.rng.Float64() < 0.5 {
		side = "home"
	}

	event := &models.MatchEvent{
		Type:      eventType,
		Minute:    minute,
		Team:      side,
		Player:    fmt.Sprintf("Player %d", 1+s.rng.Intn(11)),
		Timestamp: s.now(),
	}

	if eventType == models.EventGoal {
		if side == "home" {
			score := match.HomeScore + 1
			update.HomeScore = &score
		} else {
			score := match.AwayScore + 1
			update.AwayScore = &score
		}
	}
	return event
}

func (s *Simulator) pickEventType() string {
	roll := s.rng.Float64()
	cumulative := 0.0
	for _, entry := range eventWeights {
		cumulative += entry.weight
		if roll <= cumulative {
			return entry.eventType
		}
	}
	return eventWeights[0].eventType
}
