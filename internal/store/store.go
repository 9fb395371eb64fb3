package store

import (
	"context"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
)

// DefaultLiveLimit caps live-match list queries when no limit is given
const DefaultLiveLimit = 20

// MatchStore defines match persistence operations used by the realtime core
type MatchStore interface {
	// GetActiveLiveMatches returns LIVE matches, most recently started
	// first, with team display fields joined in.
	GetActiveLiveMatches(ctx context.Context, limit int) ([]models.Match, error)

	// GetRecentResults returns FINISHED matches, most recent first.
	GetRecentResults(ctx context.Context, limit int) ([]models.Match, error)

	// GetMatchByID returns one match with team fields joined.
	GetMatchByID(ctx context.Context, id string) (*models.Match, error)

	// ApplyUpdate merges the partial update into the stored match, stamps
	// lastUpdated, and returns the updated entity with teams joined.
	ApplyUpdate(ctx context.Context, id string, update MatchUpdate) (*models.Match, error)

	// AppendEvent appends one event to the match's event list, stamps
	// lastUpdated, and returns the updated entity with teams joined.
	AppendEvent(ctx context.Context, id string, event models.MatchEvent) (*models.Match, error)
}

// MatchUpdate is a partial match update. Nil fields are left untouched,
// so re-applying the same update is idempotent.
type MatchUpdate struct {
	HomeScore *int                `json:"homeScore,omitempty"`
	AwayScore *int                `json:"awayScore,omitempty"`
	Status    *models.MatchStatus `json:"status,omitempty"`
	Minute    *int                `json:"minute,omitempty"`
	Venue     *string             `json:"venue,omitempty"`
}

// IsEmpty reports whether the update carries no field changes
func (u MatchUpdate) IsEmpty() bool {
	return u.HomeScore == nil && u.AwayScore == nil && u.Status == nil &&
		u.Minute == nil && u.Venue == nil
}

// ChangedFields lists the names of the fields the update touches
func (u MatchUpdate) ChangedFields() []string {
	var fields []string
	if u.HomeScore != nil {
		fields = append(fields, "homeScore")
	}
	if u.AwayScore != nil {
		fields = append(fields, "awayScore")
	}
	if u.Status != nil {
		fields = append(fields, "status")
	}
	if u.Minute != nil {
		fields = append(fields, "minute")
	}
	if u.Venue != nil {
		fields = append(fields, "venue")
	}
	return fields
}

// SetDocument builds the $set document for the update, always including
// the lastUpdated stamp.
func (u MatchUpdate) SetDocument(now time.Time) bson.M {
	set := bson.M{"lastUpdated": now}
	if u.HomeScore != nil {
		set["homeScore"] = *u.HomeScore
	}
	if u.AwayScore != nil {
		set["awayScore"] = *u.AwayScore
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.Minute != nil {
		set["minute"] = *u.Minute
	}
	if u.Venue != nil {
		set["venue"] = *u.Venue
	}
	return set
}
