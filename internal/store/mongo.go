package store

import (
	"context"
	"errors"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	matchesCollection = "matches"
	teamsCollection   = "teams"
)

// MongoStore implements MatchStore on top of MongoDB. Matches reference
// teams by id; reads join the team display fields via $lookup.
type MongoStore struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoStore creates a match store backed by the given database
func NewMongoStore(db *mongo.Database, logger *zap.Logger) *MongoStore {
	return &MongoStore{db: db, logger: logger}
}

// EnsureIndexes creates the indexes match queries rely on
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	coll := s.db.Collection(matchesCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "startTime", Value: -1}},
	})
	if err != nil {
		return models.StoreErrorf("creating match indexes")
	}
	return nil
}

// teamJoinStages produces the lookup stages that replace the team id
// references with the full team documents.
func teamJoinStages() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         teamsCollection,
			"localField":   "homeTeam",
			"foreignField": "_id",
			"as":           "homeTeam",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$homeTeam", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         teamsCollection,
			"localField":   "awayTeam",
			"foreignField": "_id",
			"as":           "awayTeam",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$awayTeam", "preserveNullAndEmptyArrays": true}}},
	}
}

func (s *MongoStore) findJoined(ctx context.Context, filter bson.M, sort bson.D, limit int) ([]models.Match, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	if len(sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	pipeline = append(pipeline, teamJoinStages()...)

	cur, err := s.db.Collection(matchesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		s.logger.Error("match query failed", zap.Error(err))
		return nil, models.StoreErrorf("querying matches")
	}
	defer cur.Close(ctx)

	var matches []models.Match
	if err := cur.All(ctx, &matches); err != nil {
		return nil, models.StoreErrorf("decoding matches")
	}
	return matches, nil
}

// GetActiveLiveMatches returns LIVE matches, most recently started first
func (s *MongoStore) GetActiveLiveMatches(ctx context.Context, limit int) ([]models.Match, error) {
	if limit <= 0 {
		limit = DefaultLiveLimit
	}
	return s.findJoined(ctx,
		bson.M{"status": models.StatusLive},
		bson.D{{Key: "startTime", Value: -1}},
		limit)
}

// GetRecentResults returns FINISHED matches, most recent first
func (s *MongoStore) GetRecentResults(ctx context.Context, limit int) ([]models.Match, error) {
	if limit <= 0 {
		limit = DefaultLiveLimit
	}
	return s.findJoined(ctx,
		bson.M{"status": models.StatusFinished},
		bson.D{{Key: "startTime", Value: -1}},
		limit)
}

// GetMatchByID returns one match with team fields joined
func (s *MongoStore) GetMatchByID(ctx context.Context, id string) (*models.Match, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.NotFoundf("match %s", id)
	}

	matches, err := s.findJoined(ctx, bson.M{"_id": oid}, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, models.NotFoundf("match %s", id)
	}
	return &matches[0], nil
}

// ApplyUpdate merges the partial update into the match and returns the
// updated entity. The $set merge means re-applying the same update yields
// the same final document.
func (s *MongoStore) ApplyUpdate(ctx context.Context, id string, update MatchUpdate) (*models.Match, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.NotFoundf("match %s", id)
	}

	res, err := s.db.Collection(matchesCollection).UpdateByID(ctx, oid,
		bson.M{"$set": update.SetDocument(time.Now())})
	if err != nil {
		return nil, models.StoreErrorf("updating match %s", id)
	}
	if res.MatchedCount == 0 {
		return nil, models.NotFoundf("match %s", id)
	}

	return s.GetMatchByID(ctx, id)
}

// AppendEvent appends one event to the match's event list
func (s *MongoStore) AppendEvent(ctx context.Context, id string, event models.MatchEvent) (*models.Match, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.NotFoundf("match %s", id)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	res, err := s.db.Collection(matchesCollection).UpdateByID(ctx, oid, bson.M{
		"$push": bson.M{"events": event},
		"$set":  bson.M{"lastUpdated": time.Now()},
	})
	if err != nil {
		return nil, models.StoreErrorf("appending event to match %s", id)
	}
	if res.MatchedCount == 0 {
		return nil, models.NotFoundf("match %s", id)
	}

	return s.GetMatchByID(ctx, id)
}

// IsNotFound reports whether the error means the entity is absent
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound) || errors.Is(err, mongo.ErrNoDocuments)
}
