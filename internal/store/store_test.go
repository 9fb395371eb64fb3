package store

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"go.mongodb.org/mongo-driver/mongo"
)

func intPtr(v int) *int                          { return &v }
func strPtr(v string) *string                    { return &v }
func statusPtr(v models.MatchStatus) *models.MatchStatus { return &v }

func TestMatchUpdateIsEmpty(t *testing.T) {
	if !(MatchUpdate{}).IsEmpty() {
		t.Errorf("zero update should be empty")
	}
	if (MatchUpdate{Minute: intPtr(45)}).IsEmpty() {
		t.Errorf("update with a minute should not be empty")
	}
	if (MatchUpdate{Venue: strPtr("Anfield")}).IsEmpty() {
		t.Errorf("update with a venue should not be empty")
	}
}

func TestChangedFields(t *testing.T) {
	tests := []struct {
		name   string
		update MatchUpdate
		want   []string
	}{
		{"empty", MatchUpdate{}, nil},
		{"minute only", MatchUpdate{Minute: intPtr(60)}, []string{"minute"}},
		{
			"goal",
			MatchUpdate{HomeScore: intPtr(2), Minute: intPtr(61)},
			[]string{"homeScore", "minute"},
		},
		{
			"full time",
			MatchUpdate{Status: statusPtr(models.StatusFinished), Minute: intPtr(90)},
			[]string{"status", "minute"},
		},
		{"venue", MatchUpdate{Venue: strPtr("Camp Nou")}, []string{"venue"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.update.ChangedFields(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ChangedFields() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetDocumentAlwaysStampsLastUpdated(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)

	set := MatchUpdate{}.SetDocument(now)
	if len(set) != 1 {
		t.Fatalf("empty update should only stamp lastUpdated, got %v", set)
	}
	if set["lastUpdated"] != now {
		t.Errorf("lastUpdated = %v, want %v", set["lastUpdated"], now)
	}
}

func TestSetDocumentCarriesOnlySetFields(t *testing.T) {
	now := time.Now()
	update := MatchUpdate{
		HomeScore: intPtr(3),
		Status:    statusPtr(models.StatusLive),
	}

	set := update.SetDocument(now)
	if set["homeScore"] != 3 {
		t.Errorf("homeScore = %v, want 3", set["homeScore"])
	}
	if set["status"] != models.StatusLive {
		t.Errorf("status = %v, want %v", set["status"], models.StatusLive)
	}
	for _, absent := range []string{"awayScore", "minute", "venue"} {
		if _, ok := set[absent]; ok {
			t.Errorf("unset field %q leaked into the document", absent)
		}
	}
}

func TestSetDocumentIsIdempotent(t *testing.T) {
	now := time.Now()
	update := MatchUpdate{HomeScore: intPtr(1), Minute: intPtr(23)}

	first := update.SetDocument(now)
	second := update.SetDocument(now)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-applying the same update produced a different document:\n%v\n%v", first, second)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", models.ErrNotFound, true},
		{"wrapped sentinel", models.NotFoundf("match %s", "abc"), true},
		{"mongo no documents", mongo.ErrNoDocuments, true},
		{"other", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
