// Seeds the database with teams and a handful of live and scheduled
// matches for development.
package main

import (
	"context"
	"os"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/config"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// matchDoc is the stored shape of a match: team references by id, joined
// into full team documents on read.
type matchDoc struct {
	Competition string              `bson:"competition"`
	Season      string              `bson:"season"`
	HomeTeam    primitive.ObjectID  `bson:"homeTeam"`
	AwayTeam    primitive.ObjectID  `bson:"awayTeam"`
	HomeScore   int                 `bson:"homeScore"`
	AwayScore   int                 `bson:"awayScore"`
	Status      models.MatchStatus  `bson:"status"`
	Minute      int                 `bson:"minute"`
	StartTime   time.Time           `bson:"startTime"`
	Venue       string              `bson:"venue"`
	Events      []models.MatchEvent `bson:"events"`
	LastUpdated time.Time           `bson:"lastUpdated"`
}

var teams = []models.Team{
	{Name: "Manchester City", ShortName: "MCI", Venue: "Etihad Stadium", Founded: 1880},
	{Name: "Arsenal", ShortName: "ARS", Venue: "Emirates Stadium", Founded: 1886},
	{Name: "Liverpool", ShortName: "LIV", Venue: "Anfield", Founded: 1892},
	{Name: "Real Madrid", ShortName: "RMA", Venue: "Santiago Bernabeu", Founded: 1902},
	{Name: "Barcelona", ShortName: "BAR", Venue: "Camp Nou", Founded: 1899},
	{Name: "Bayern Munich", ShortName: "BAY", Venue: "Allianz Arena", Founded: 1900},
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal("mongodb connection failed", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.Mongo.Database)

	teamIDs, err := seedTeams(ctx, db)
	if err != nil {
		logger.Fatal("seeding teams failed", zap.Error(err))
	}
	logger.Info("teams seeded", zap.Int("count", len(teamIDs)))

	count, err := seedMatches(ctx, db, teamIDs)
	if err != nil {
		logger.Fatal("seeding matches failed", zap.Error(err))
	}
	logger.Info("matches seeded", zap.Int("count", count))
}

// seedTeams upserts the team fixtures by name and returns their ids
func seedTeams(ctx context.Context, db *mongo.Database) ([]primitive.ObjectID, error) {
	coll := db.Collection("teams")
	ids := make([]primitive.ObjectID, 0, len(teams))

	for _, team := range teams {
		res := coll.FindOneAndUpdate(ctx,
			bson.M{"name": team.Name},
			bson.M{"$set": bson.M{
				"name":      team.Name,
				"shortName": team.ShortName,
				"venue":     team.Venue,
				"founded":   team.Founded,
			}},
			options.FindOneAndUpdate().
				SetUpsert(true).
				SetReturnDocument(options.After))

		var stored models.Team
		if err := res.Decode(&stored); err != nil {
			return nil, err
		}
		ids = append(ids, stored.ID)
	}
	return ids, nil
}

// seedMatches replaces all matches with fresh fixtures: two in progress,
// one scheduled, one finished.
func seedMatches(ctx context.Context, db *mongo.Database, teamIDs []primitive.ObjectID) (int, error) {
	coll := db.Collection("matches")
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return 0, err
	}

	now := time.Now()
	docs := []interface{}{
		matchDoc{
			Competition: "Premier League",
			Season:      "2025/26",
			HomeTeam:    teamIDs[0],
			AwayTeam:    teamIDs[1],
			HomeScore:   1,
			AwayScore:   1,
			Status:      models.StatusLive,
			Minute:      54,
			StartTime:   now.Add(-60 * time.Minute),
			Venue:       "Etihad Stadium",
			Events: []models.MatchEvent{
				{Type: models.EventKickoff, Minute: 0, Team: "home", Player: "-", Timestamp: now.Add(-60 * time.Minute)},
				{Type: models.EventGoal, Minute: 23, Team: "home", Player: "Player 9", Timestamp: now.Add(-37 * time.Minute)},
				{Type: models.EventGoal, Minute: 41, Team: "away", Player: "Player 7", Timestamp: now.Add(-19 * time.Minute)},
			},
			LastUpdated: now,
		},
		matchDoc{
			Competition: "La Liga",
			Season:      "2025/26",
			HomeTeam:    teamIDs[3],
			AwayTeam:    teamIDs[4],
			HomeScore:   0,
			AwayScore:   0,
			Status:      models.StatusLive,
			Minute:      12,
			StartTime:   now.Add(-15 * time.Minute),
			Venue:       "Santiago Bernabeu",
			Events: []models.MatchEvent{
				{Type: models.EventKickoff, Minute: 0, Team: "home", Player: "-", Timestamp: now.Add(-15 * time.Minute)},
			},
			LastUpdated: now,
		},
		matchDoc{
			Competition: "Bundesliga",
			Season:      "2025/26",
			HomeTeam:    teamIDs[5],
			AwayTeam:    teamIDs[2],
			Status:      models.StatusScheduled,
			StartTime:   now.Add(24 * time.Hour),
			Venue:       "Allianz Arena",
			Events:      []models.MatchEvent{},
			LastUpdated: now,
		},
		matchDoc{
			Competition: "Premier League",
			Season:      "2025/26",
			HomeTeam:    teamIDs[2],
			AwayTeam:    teamIDs[0],
			HomeScore:   2,
			AwayScore:   2,
			Status:      models.StatusFinished,
			Minute:      90,
			StartTime:   now.Add(-3 * 24 * time.Hour),
			Venue:       "Anfield",
			Events: []models.MatchEvent{
				{Type: models.EventFulltime, Minute: 90, Team: "home", Player: "-", Timestamp: now.Add(-3 * 24 * time.Hour)},
			},
			LastUpdated: now,
		},
	}

	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return len(res.InsertedIDs), nil
}
