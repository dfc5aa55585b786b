package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/interval"
	"github.com/tripweave/engine/internal/domain/schedule"
	"github.com/tripweave/engine/internal/domain/trip"
	"github.com/tripweave/engine/internal/engine"
	"github.com/tripweave/engine/internal/event"
	"github.com/tripweave/engine/internal/event/mocks"
	"github.com/tripweave/engine/internal/optimizer"
	"github.com/tripweave/engine/internal/routing"
)

// recordingNotifier captures events for assertions. Emission is
// asynchronous, so tests wait on it rather than inspecting inline.
type recordingNotifier struct {
	mu        sync.Mutex
	updated   []event.ScheduleUpdated
	conflicts []event.ConflictDetected
	completed []event.OptimizationCompleted
}

func (n *recordingNotifier) ScheduleUpdated(_ context.Context, e event.ScheduleUpdated) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, e)
}

func (n *recordingNotifier) ConflictDetected(_ context.Context, e event.ConflictDetected) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conflicts = append(n.conflicts, e)
}

func (n *recordingNotifier) OptimizationCompleted(_ context.Context, e event.OptimizationCompleted) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, e)
}

func (n *recordingNotifier) counts() (int, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.updated), len(n.conflicts), len(n.completed)
}

func allDay() []interval.Interval {
	return []interval.Interval{{Start: 0, End: interval.EndOfDay}}
}

func testActivity(id string, cost int64, lat, lon float64) activity.Activity {
	return activity.Activity{
		ID:       id,
		Name:     id,
		Category: activity.CategorySightseeing,
		Location: activity.GeoPoint{Lat: lat, Lon: lon, Resolved: true},
		Cost:     cost,
		Duration: 60 * time.Minute,
		Status:   activity.StatusProposed,
	}
}

func testTrip(id string) (trip.Trip, []trip.Member, []activity.Activity) {
	tr := trip.Trip{
		ID:            id,
		Name:          "Lisbon",
		StartDate:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), // Monday
		EndDate:       time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
		Currency:      "EUR",
		BudgetCeiling: 500,
		MemberIDs:     []string{"alice", "bob"},
	}
	members := []trip.Member{
		{ID: "alice", Role: trip.RoleOwner, Availability: map[int][]interval.Interval{0: allDay(), 1: allDay(), 2: allDay()}},
		{ID: "bob", Role: trip.RoleMember, Availability: map[int][]interval.Interval{0: allDay(), 1: allDay(), 2: allDay()}},
	}
	acts := []activity.Activity{
		testActivity("castle", 150, 38.7139, -9.1334),
		testActivity("tower", 100, 38.6916, -9.2160),
		testActivity("museum", 300, 38.6972, -9.2064),
		testActivity("park", 0, 38.7285, -9.1541),
	}
	return tr, members, acts
}

func newTestEngine(t *testing.T, n event.Notifier) *engine.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(engine.DefaultConfig(), routing.NewHaversineEstimator(), n, logger)
	t.Cleanup(e.Close)
	return e
}

func registerTestTrip(t *testing.T, e *engine.Engine, id string) {
	t.Helper()
	tr, members, acts := testTrip(id)
	require.NoError(t, e.RegisterTrip(context.Background(), tr, members, acts))
}

func addOp(blockID, activityID string, day int, start string, members ...string) schedule.Op {
	return schedule.Op{
		Kind: schedule.OpAdd,
		Block: &schedule.Block{
			ID:         blockID,
			ActivityID: activityID,
			Day:        day,
			Start:      interval.MustMinute(start),
			Duration:   60 * time.Minute,
			MemberIDs:  members,
			Status:     schedule.BlockScheduled,
		},
	}
}

func proposal(id string, base uint64, ops ...schedule.Op) schedule.Proposal {
	return schedule.Proposal{
		ID:          id,
		TripID:      "trip-1",
		AuthorID:    "alice",
		BaseVersion: base,
		Ops:         ops,
	}
}

func TestRegisterTrip_Duplicate(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")

	tr, members, acts := testTrip("trip-1")
	err := e.RegisterTrip(context.Background(), tr, members, acts)
	require.ErrorIs(t, err, engine.ErrTripExists)
}

func TestProposeMutation_UnknownTrip(t *testing.T) {
	e := newTestEngine(t, nil)
	_, _, err := e.ProposeMutation(context.Background(), "nope", proposal("p1", 0))
	require.ErrorIs(t, err, engine.ErrTripNotFound)
}

func TestProposeMutation_CommitIncrementsVersion(t *testing.T) {
	n := &recordingNotifier{}
	e := newTestEngine(t, n)
	registerTestTrip(t, e, "trip-1")

	acc, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice")))
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, uint64(1), acc.Version)
	require.Len(t, acc.Delta.Added, 1)

	s, err := e.Snapshot("trip-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.Version)
	require.Len(t, s.Blocks, 1)
	require.Equal(t, "b1", s.Blocks[0].ID)

	require.Eventually(t, func() bool {
		updated, _, _ := n.counts()
		return updated == 1
	}, time.Second, 5*time.Millisecond)
}

func TestProposeMutation_SecondWriterGetsStaleConflict(t *testing.T) {
	n := &recordingNotifier{}
	e := newTestEngine(t, n)
	registerTestTrip(t, e, "trip-1")

	acc, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice")))
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, uint64(1), acc.Version)

	// Same base version, touching the same activity: the edit the
	// second writer made is already superseded.
	acc2, conflict2, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p2", 0, addOp("b2", "castle", 1, "10:00", "alice")))
	require.NoError(t, err)
	require.Nil(t, acc2)
	require.NotNil(t, conflict2)
	require.Equal(t, schedule.ReasonStaleVersion, conflict2.Reason)
	require.Equal(t, uint64(0), conflict2.BaseVersion)
	require.Equal(t, uint64(1), conflict2.CurrentVersion)
	require.Contains(t, conflict2.ConflictingBlockIDs, "b1")

	s, err := e.Snapshot("trip-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.Version, "rejected proposal must not advance the version")

	require.Eventually(t, func() bool {
		_, conflicts, _ := n.counts()
		return conflicts == 1
	}, time.Second, 5*time.Millisecond)
}

func TestProposeMutation_RejectionEmitsConflictEvent(t *testing.T) {
	n := &mocks.Notifier{}
	emitted := make(chan struct{})
	n.On("ScheduleUpdated", mock.Anything, mock.Anything).Return()
	n.On("ConflictDetected", mock.Anything, mock.MatchedBy(func(e event.ConflictDetected) bool {
		return e.TripID == "trip-1" && e.ProposalID == "p2"
	})).Run(func(mock.Arguments) { close(emitted) }).Once()

	e := newTestEngine(t, n)
	registerTestTrip(t, e, "trip-1")

	_, _, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice")))
	require.NoError(t, err)
	_, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p2", 0, addOp("b2", "castle", 1, "10:00", "alice")))
	require.NoError(t, err)
	require.NotNil(t, conflict)

	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("conflict event not emitted")
	}
	n.AssertExpectations(t)
}

func TestProposeMutation_IndependentStaleEditRebases(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")

	_, _, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice")))
	require.NoError(t, err)

	// Different activity, different member: no true overlap, so the
	// stale base rebases onto version 1.
	acc, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p2", 0, addOp("b2", "tower", 1, "10:00", "bob")))
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, uint64(2), acc.Version)

	s, err := e.Snapshot("trip-1")
	require.NoError(t, err)
	require.Len(t, s.Blocks, 2)
}

func TestProposeMutation_InfeasibleRejected(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")

	// castle 150 + museum 300 + tower 100 breaches the 500 ceiling
	// once tower lands on top of the first two.
	_, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p1", 0,
			addOp("b1", "castle", 0, "09:00", "alice"),
			addOp("b2", "museum", 1, "09:00", "alice")))
	require.NoError(t, err)
	require.Nil(t, conflict)

	acc, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p2", 1, addOp("b3", "tower", 2, "09:00", "bob")))
	require.NoError(t, err)
	require.Nil(t, acc)
	require.NotNil(t, conflict)
	require.Equal(t, schedule.ReasonInfeasible, conflict.Reason)
	require.NotEmpty(t, conflict.Violations)
	require.Equal(t, schedule.BudgetExceeded, conflict.Violations[0].Kind)

	s, err := e.Snapshot("trip-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.Version)
}

func TestProposeMutation_IdempotentReplay(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")

	p := proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice"))
	first, _, err := e.ProposeMutation(context.Background(), "trip-1", p)
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.Version)

	// A retried delivery of the same proposal returns the original
	// outcome without re-applying anything.
	replay, conflict, err := e.ProposeMutation(context.Background(), "trip-1", p)
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, first.Version, replay.Version)

	s, err := e.Snapshot("trip-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.Version)
	require.Len(t, s.Blocks, 1)
}

func TestProposeMutation_ReplayWindowIsBounded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := engine.DefaultConfig()
	cfg.DeltaLogDepth = 2
	e := engine.New(cfg, routing.NewHaversineEstimator(), nil, logger)
	t.Cleanup(e.Close)
	registerTestTrip(t, e, "trip-1")

	p1 := proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice"))
	_, conflict, err := e.ProposeMutation(context.Background(), "trip-1", p1)
	require.NoError(t, err)
	require.Nil(t, conflict)

	// Two more commits roll p1's version out of the retained window.
	_, conflict, err = e.ProposeMutation(context.Background(), "trip-1",
		proposal("p2", 1, addOp("b2", "tower", 1, "10:00", "bob")))
	require.NoError(t, err)
	require.Nil(t, conflict)
	p3 := proposal("p3", 2, addOp("b3", "park", 2, "10:00", "bob"))
	acc3, conflict, err := e.ProposeMutation(context.Background(), "trip-1", p3)
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, uint64(3), acc3.Version)

	// A retry of p1 is now outside the window: rejected as stale
	// rather than replayed, and the schedule stays at version 3.
	acc, conflict, err := e.ProposeMutation(context.Background(), "trip-1", p1)
	require.NoError(t, err)
	require.Nil(t, acc)
	require.NotNil(t, conflict)
	require.Equal(t, schedule.ReasonStaleVersion, conflict.Reason)

	// A retry inside the window still replays idempotently.
	replay, conflict, err := e.ProposeMutation(context.Background(), "trip-1", p3)
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, acc3.Version, replay.Version)

	s, err := e.Snapshot("trip-1")
	require.NoError(t, err)
	require.Equal(t, uint64(3), s.Version)
}

func TestProposeMutation_VersionAhead(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")

	_, _, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p1", 5, addOp("b1", "castle", 0, "10:00", "alice")))
	require.ErrorIs(t, err, engine.ErrVersionAhead)
}

func TestTrips_AreIndependent(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")
	registerTestTrip(t, e, "trip-2")

	p := proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice"))
	_, _, err := e.ProposeMutation(context.Background(), "trip-1", p)
	require.NoError(t, err)

	other, err := e.Snapshot("trip-2")
	require.NoError(t, err)
	require.Equal(t, uint64(0), other.Version)
	require.Empty(t, other.Blocks)
}

func TestUpdateActivities_SwapsPool(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")

	acts := []activity.Activity{testActivity("beach", 20, 38.6979, -9.4026)}
	require.NoError(t, e.UpdateActivities(context.Background(), "trip-1", acts))

	// Old activity is gone from the model, so a block for it is now
	// rejected as unresolvable.
	_, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice")))
	require.NoError(t, err)
	require.NotNil(t, conflict)
	require.Equal(t, schedule.ReasonInfeasible, conflict.Reason)

	acc, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p2", 0, addOp("b2", "beach", 0, "10:00", "alice")))
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, uint64(1), acc.Version)
}

func TestRunOptimization_ResultAppliesAsReplaceAll(t *testing.T) {
	n := &recordingNotifier{}
	e := newTestEngine(t, n)
	registerTestTrip(t, e, "trip-1")

	h, err := e.RunOptimization(context.Background(), "trip-1", engine.RunRequest{
		Seed: 42,
		Params: &optimizer.Params{
			Population:       20,
			Generations:      25,
			TournamentSize:   3,
			MutationRate:     0.2,
			StagnationWindow: 1000,
			TimeBudget:       time.Minute,
		},
	})
	require.NoError(t, err)

	var res optimizer.Result
	select {
	case res = <-h.Result():
	case <-time.After(30 * time.Second):
		t.Fatal("optimizer run did not finish")
	}
	require.Equal(t, optimizer.OutcomeCompleted, res.Outcome)
	require.True(t, res.Feasible)
	require.NotNil(t, res.Schedule)

	acc, conflict, err := e.ProposeMutation(context.Background(), "trip-1",
		engine.ProposalFromResult("trip-1", "alice", 0, res))
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, uint64(1), acc.Version)

	s, err := e.Snapshot("trip-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.Version)
	require.Len(t, s.Blocks, len(res.Schedule.Blocks))

	require.Eventually(t, func() bool {
		_, _, completed := n.counts()
		return completed == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRunOptimization_CancelKeepsPartial(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")

	h, err := e.RunOptimization(context.Background(), "trip-1", engine.RunRequest{
		Seed: 7,
		Params: &optimizer.Params{
			Population:       20,
			Generations:      1_000_000,
			TournamentSize:   3,
			MutationRate:     0.2,
			StagnationWindow: 1_000_000,
			TimeBudget:       time.Hour,
		},
		KeepPartial: true,
	})
	require.NoError(t, err)
	h.Cancel()

	var res optimizer.Result
	select {
	case res = <-h.Result():
	case <-time.After(30 * time.Second):
		t.Fatal("cancelled run did not finish")
	}
	require.Equal(t, optimizer.OutcomeCancelled, res.Outcome)
	require.NotNil(t, res.Schedule, "KeepPartial retains the best-so-far schedule")
}

func TestClose_ConcurrentProposalsDoNotPanic(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")

	const writers = 32
	start := make(chan struct{})
	unexpected := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			p := proposal(fmt.Sprintf("p%d", i), 0,
				addOp(fmt.Sprintf("b%d", i), "castle", 0, "10:00", "alice"))
			_, _, err := e.ProposeMutation(context.Background(), "trip-1", p)
			if err != nil && !errors.Is(err, engine.ErrClosed) {
				unexpected <- err
			}
		}(i)
	}

	// Race the in-flight proposals against shutdown. Each must either
	// resolve normally or report ErrClosed; none may crash.
	close(start)
	e.Close()
	wg.Wait()
	close(unexpected)
	for err := range unexpected {
		t.Errorf("unexpected propose error during close: %v", err)
	}
}

func TestClose_RejectsFurtherWork(t *testing.T) {
	e := newTestEngine(t, nil)
	registerTestTrip(t, e, "trip-1")
	e.Close()

	_, _, err := e.ProposeMutation(context.Background(), "trip-1",
		proposal("p1", 0, addOp("b1", "castle", 0, "10:00", "alice")))
	require.ErrorIs(t, err, engine.ErrClosed)
}
