package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/hub"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/testutil"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// settle gives the hub loop time to drain its command channels
func settle() {
	time.Sleep(50 * time.Millisecond)
}

func startHub(t *testing.T, matches *testutil.FakeMatchStore) *hub.Hub {
	t.Helper()
	h := hub.New(matches, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func TestTopicIsolation(t *testing.T) {
	m1 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 0, 0)
	m2 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 55, 1, 0)
	matches := testutil.NewFakeMatchStore(m1, m2)
	h := startHub(t, matches)

	connA := testutil.NewConn("a")
	connB := testutil.NewConn("b")
	h.Register(connA)
	h.Register(connB)
	h.Subscribe(connA, hub.MatchTopic(m1.ID.Hex()))
	h.Subscribe(connB, hub.MatchTopic(m2.ID.Hex()))
	settle()

	// venue is not a significant field, so no global refresh muddies
	// the assertion
	h.NotifyMatchUpdate(context.Background(), m1.ID.Hex(), &m1, []string{"venue"})

	if got := connA.WaitForType(models.MessageTypeMatchUpdated, 1, time.Second); got != 1 {
		t.Fatalf("expected 1 match_updated for subscriber, got %d", got)
	}
	settle()
	if got := connB.CountType(models.MessageTypeMatchUpdated); got != 0 {
		t.Errorf("expected no match_updated for other match's subscriber, got %d", got)
	}
}

func TestSignificantUpdateRefreshesLiveList(t *testing.T) {
	m1 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 0, 0)
	matches := testutil.NewFakeMatchStore(m1)
	h := startHub(t, matches)

	subscriber := testutil.NewConn("sub")
	bystander := testutil.NewConn("bystander")
	h.Register(subscriber)
	h.Register(bystander)
	h.Subscribe(subscriber, hub.MatchTopic(m1.ID.Hex()))
	settle()

	h.NotifyMatchUpdate(context.Background(), m1.ID.Hex(), &m1, []string{"homeScore"})

	if got := subscriber.WaitForType(models.MessageTypeMatchUpdated, 1, time.Second); got != 1 {
		t.Fatalf("expected 1 match_updated, got %d", got)
	}
	if got := subscriber.WaitForType(models.MessageTypeLiveMatches, 1, time.Second); got != 1 {
		t.Errorf("expected 1 live_matches refresh for subscriber, got %d", got)
	}
	if got := bystander.WaitForType(models.MessageTypeLiveMatches, 1, time.Second); got != 1 {
		t.Errorf("expected global live_matches to reach bystander, got %d", got)
	}
	if bystander.CountType(models.MessageTypeMatchUpdated) != 0 {
		t.Errorf("bystander should not receive match_updated")
	}
}

func TestInsignificantUpdateSkipsRefresh(t *testing.T) {
	m1 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 0, 0)
	matches := testutil.NewFakeMatchStore(m1)
	h := startHub(t, matches)

	conn := testutil.NewConn("a")
	h.Register(conn)
	h.Subscribe(conn, hub.MatchTopic(m1.ID.Hex()))
	settle()

	h.NotifyMatchUpdate(context.Background(), m1.ID.Hex(), &m1, []string{"venue"})
	conn.WaitForType(models.MessageTypeMatchUpdated, 1, time.Second)
	settle()

	if got := conn.CountType(models.MessageTypeLiveMatches); got != 0 {
		t.Errorf("venue change should not refresh the live list, got %d broadcasts", got)
	}
	if matches.LiveCalls != 0 {
		t.Errorf("expected no store reads, got %d", matches.LiveCalls)
	}
}

func TestEventClassRouting(t *testing.T) {
	m1 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 60, 1, 0)
	matches := testutil.NewFakeMatchStore(m1)
	h := startHub(t, matches)
	id := m1.ID.Hex()

	matchSubA := testutil.NewConn("match-a")
	matchSubB := testutil.NewConn("match-b")
	goalSub := testutil.NewConn("goals")
	otherMatchSub := testutil.NewConn("other")
	h.Register(matchSubA)
	h.Register(matchSubB)
	h.Register(goalSub)
	h.Register(otherMatchSub)
	h.Subscribe(matchSubA, hub.MatchTopic(id))
	h.Subscribe(matchSubB, hub.MatchTopic(id))
	h.Subscribe(goalSub, hub.EventTopic(models.EventClassGoals))
	h.Subscribe(otherMatchSub, hub.MatchTopic("some-other-match"))
	settle()

	goal := testutil.MockEvent(models.EventGoal, 61, "home")
	h.NotifyMatchEvent(context.Background(), id, goal, &m1)

	for _, conn := range []*testutil.Conn{matchSubA, matchSubB} {
		if got := conn.WaitForType(models.MessageTypeMatchEvent, 1, time.Second); got != 1 {
			t.Fatalf("conn %s: expected 1 match_event, got %d", conn.ConnID, got)
		}
	}
	if got := goalSub.WaitForType(models.MessageTypeGoalScored, 1, time.Second); got != 1 {
		t.Errorf("expected goal_scored on goals topic, got %d", got)
	}
	settle()
	if otherMatchSub.CountType(models.MessageTypeMatchEvent) != 0 ||
		otherMatchSub.CountType(models.MessageTypeGoalScored) != 0 {
		t.Errorf("subscriber of another match should receive nothing")
	}

	// Cards route to the cards topic, not goals
	card := testutil.MockEvent(models.EventYellowCard, 70, "away")
	h.NotifyMatchEvent(context.Background(), id, card, &m1)
	settle()
	if goalSub.CountType(models.MessageTypeCardShown) != 0 {
		t.Errorf("goals subscriber should not receive card_shown")
	}
}

func TestDuplicateDeliveryIsNotSuppressed(t *testing.T) {
	m1 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 0, 0)
	matches := testutil.NewFakeMatchStore(m1)
	h := startHub(t, matches)

	conn := testutil.NewConn("a")
	h.Register(conn)
	h.Subscribe(conn, hub.MatchTopic(m1.ID.Hex()))
	settle()

	// Manual admin retry submits the same logical update twice: both are
	// broadcast, clients must tolerate duplicates
	h.NotifyMatchUpdate(context.Background(), m1.ID.Hex(), &m1, []string{"venue"})
	h.NotifyMatchUpdate(context.Background(), m1.ID.Hex(), &m1, []string{"venue"})

	if got := conn.WaitForType(models.MessageTypeMatchUpdated, 2, time.Second); got != 2 {
		t.Errorf("expected 2 match_updated deliveries, got %d", got)
	}
}

func TestUnregisterCleansMemberships(t *testing.T) {
	m1 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 0, 0)
	matches := testutil.NewFakeMatchStore(m1)
	h := startHub(t, matches)

	conn := testutil.NewConn("a")
	h.Register(conn)
	h.Subscribe(conn, hub.MatchTopic(m1.ID.Hex()))
	h.Subscribe(conn, hub.EventTopic(models.EventClassGoals))
	settle()

	h.Unregister(conn)
	settle()

	if h.ConnCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", h.ConnCount())
	}

	h.NotifyMatchUpdate(context.Background(), m1.ID.Hex(), &m1, []string{"venue"})
	h.NotifyMatchEvent(context.Background(), m1.ID.Hex(), testutil.MockEvent(models.EventGoal, 31, "home"), &m1)
	settle()

	if len(conn.Received()) != 0 {
		t.Errorf("unregistered connection should receive nothing, got %d messages", len(conn.Received()))
	}
}

func TestCommandsReturnAfterShutdown(t *testing.T) {
	matches := testutil.NewFakeMatchStore()
	h := hub.New(matches, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	conn := testutil.NewConn("a")
	h.Register(conn)
	settle()

	cancel()
	settle()

	// A session tearing down after the hub has stopped must not hang
	returned := make(chan struct{})
	go func() {
		h.Register(testutil.NewConn("late"))
		h.Subscribe(conn, hub.MatchTopic("some-match"))
		h.Unsubscribe(conn, hub.MatchTopic("some-match"))
		h.Unregister(conn)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("hub commands blocked after shutdown")
	}
}

func TestSlowConnectionIsDropped(t *testing.T) {
	m1 := testutil.MockMatch(primitive.NewObjectID(), models.StatusLive, 30, 0, 0)
	matches := testutil.NewFakeMatchStore(m1)
	h := startHub(t, matches)

	conn := testutil.NewConn("slow")
	h.Register(conn)
	h.Subscribe(conn, hub.MatchTopic(m1.ID.Hex()))
	settle()

	conn.SetFull()
	h.NotifyMatchUpdate(context.Background(), m1.ID.Hex(), &m1, []string{"venue"})
	settle()

	if !conn.Closed() {
		t.Errorf("expected slow connection to be force-closed")
	}
	if h.ConnCount() != 0 {
		t.Errorf("expected slow connection to be unregistered, got %d", h.ConnCount())
	}
}
