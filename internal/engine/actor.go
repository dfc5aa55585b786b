package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tripweave/engine/internal/domain/schedule"
	"github.com/tripweave/engine/internal/event"
	"github.com/tripweave/engine/internal/feasibility"
	"github.com/tripweave/engine/internal/routing"
)

// resolverState is the per-trip state machine. Transitions are logged;
// the actor is single-threaded so the state is purely observational.
type resolverState string

const (
	stateIdle       resolverState = "idle"
	stateValidating resolverState = "validating"
	stateApplying   resolverState = "applying"
)

// Accepted is the successful outcome of a proposal: the new schedule
// version and the delta that produced it.
type Accepted struct {
	Version uint64         `json:"version"`
	Delta   schedule.Delta `json:"delta"`
}

type proposeReply struct {
	accepted *Accepted
	conflict *schedule.ConflictRecord
	err      error
}

type proposeCmd struct {
	proposal schedule.Proposal
	reply    chan proposeReply
}

type updateModelCmd struct {
	model  feasibility.Model
	matrix *routing.Matrix
	reply  chan struct{}
}

// actor is the sequential owner of one trip's live schedule. All
// mutation proposals for the trip flow through its command channel in
// arrival order; nothing else ever writes the schedule. Validation is
// CPU-bound and performs no storage or network I/O; notifier fan-out
// happens on separate goroutines so it can never block the next
// proposal.
type actor struct {
	tripID   string
	cmds     chan any
	stopping chan struct{}
	done     chan struct{}
	notifier event.Notifier
	logger   *slog.Logger

	// snapshot and matrix are readable without touching the actor
	// goroutine; both are replaced wholesale, never mutated in place.
	snapshot atomic.Pointer[schedule.Schedule]
	modelPtr atomic.Pointer[feasibility.Model]
	matrix   atomic.Pointer[routing.Matrix]

	// Goroutine-owned state below; only the run loop touches it.
	state    resolverState
	live     *schedule.Schedule
	model    feasibility.Model
	oracle   *routing.Matrix
	deltaLog []schedule.Delta
	// committed maps proposal id to its commit record so replays are
	// idempotent: same id at the same base version commits once.
	committed    map[string]commitRecord
	deltaLogSize int
}

type commitRecord struct {
	baseVersion uint64
	accepted    Accepted
}

func newActor(tripID string, model feasibility.Model, matrix *routing.Matrix, queueSize, deltaLogSize int, notifier event.Notifier, logger *slog.Logger) *actor {
	a := &actor{
		tripID:       tripID,
		cmds:         make(chan any, queueSize),
		stopping:     make(chan struct{}),
		done:         make(chan struct{}),
		notifier:     notifier,
		logger:       logger.With("trip_id", tripID),
		state:        stateIdle,
		live:         &schedule.Schedule{TripID: tripID, Version: 0},
		model:        model,
		oracle:       matrix,
		committed:    make(map[string]commitRecord),
		deltaLogSize: deltaLogSize,
	}
	a.snapshot.Store(a.live.Clone())
	a.modelPtr.Store(&model)
	a.matrix.Store(matrix)
	go a.run()
	return a
}

func (a *actor) run() {
	defer close(a.done)
	for {
		select {
		case <-a.stopping:
			return
		case cmd := <-a.cmds:
			switch c := cmd.(type) {
			case proposeCmd:
				c.reply <- a.handlePropose(c.proposal)
			case updateModelCmd:
				a.model = c.model
				a.oracle = c.matrix
				a.modelPtr.Store(&c.model)
				a.matrix.Store(c.matrix)
				close(c.reply)
			}
		}
	}
}

// stop signals shutdown and waits for the run loop to exit. cmds is
// never closed; senders that lose the race observe stopping instead,
// so a late proposal gets an error rather than a panic.
func (a *actor) stop() {
	close(a.stopping)
	<-a.done
}

func (a *actor) handlePropose(p schedule.Proposal) proposeReply {
	a.transition(stateValidating)
	defer a.transition(stateIdle)

	// Idempotent replay of an already-committed proposal.
	if prior, ok := a.committed[p.ID]; ok && prior.baseVersion == p.BaseVersion {
		a.logger.Debug("proposal replayed", "proposal_id", p.ID, "version", prior.accepted.Version)
		accepted := prior.accepted
		return proposeReply{accepted: &accepted}
	}

	if p.BaseVersion > a.live.Version {
		return proposeReply{err: fmt.Errorf("%w: proposal %s base version %d ahead of live version %d",
			ErrVersionAhead, p.ID, p.BaseVersion, a.live.Version)}
	}

	next, delta, err := schedule.Apply(a.live, p)
	if err != nil {
		if p.BaseVersion != a.live.Version {
			// The block it edits was removed by an intervening
			// mutation: a true overlap, reported as staleness rather
			// than a structural error.
			return proposeReply{conflict: a.staleConflict(p, nil)}
		}
		return proposeReply{err: err}
	}

	if p.BaseVersion != a.live.Version {
		if conflict := a.checkStaleOverlap(p, delta); conflict != nil {
			return proposeReply{conflict: conflict}
		}
	}

	violations := feasibility.Check(next, a.model, a.oracle)
	if len(violations) > 0 {
		conflict := &schedule.ConflictRecord{
			TripID:              a.tripID,
			ProposalID:          p.ID,
			Reason:              schedule.ReasonInfeasible,
			BaseVersion:         p.BaseVersion,
			CurrentVersion:      a.live.Version,
			Violations:          violations,
			ConflictingBlockIDs: conflictingBlocks(violations),
			Message:             fmt.Sprintf("proposal %s violates %d hard constraint(s)", p.ID, len(violations)),
		}
		a.logger.Info("proposal rejected",
			"proposal_id", p.ID, "reason", string(conflict.Reason), "violations", len(violations))
		a.emitConflict(*conflict)
		return proposeReply{conflict: conflict}
	}

	a.transition(stateApplying)
	next.Version = a.live.Version + 1
	delta.Version = next.Version
	a.live = next
	a.snapshot.Store(a.live.Clone())

	a.deltaLog = append(a.deltaLog, *delta)
	if len(a.deltaLog) > a.deltaLogSize {
		a.deltaLog = a.deltaLog[len(a.deltaLog)-a.deltaLogSize:]
		// Replay of a proposal that old would be rejected as stale
		// anyway, so its commit record can go too. Keeps the map
		// bounded by the delta window on long-lived trips.
		oldest := a.deltaLog[0].Version
		for id, rec := range a.committed {
			if rec.accepted.Version < oldest {
				delete(a.committed, id)
			}
		}
	}

	accepted := Accepted{Version: next.Version, Delta: *delta}
	a.committed[p.ID] = commitRecord{baseVersion: p.BaseVersion, accepted: accepted}

	a.logger.Info("proposal committed",
		"proposal_id", p.ID, "version", next.Version, "blocks", len(a.live.Blocks))
	a.emitUpdated(event.ScheduleUpdated{TripID: a.tripID, Version: next.Version, Delta: *delta})
	return proposeReply{accepted: &accepted}
}

// checkStaleOverlap applies the rebase rule: a stale base
// version is rejected only when the proposal's edits truly intersect
// the diff between its base and the live version, by activity or by
// member. Independent stale edits rebase onto the live schedule.
func (a *actor) checkStaleOverlap(p schedule.Proposal, delta *schedule.Delta) *schedule.ConflictRecord {
	span := a.live.Version - p.BaseVersion
	if span > uint64(len(a.deltaLog)) {
		// Base version fell out of the retained window; reject
		// conservatively rather than guess at overlap.
		return a.staleConflict(p, nil)
	}

	touchedActs := delta.TouchedActivities()
	touchedMembers := delta.TouchedMembers()

	var conflicting []string
	for _, past := range a.deltaLog[uint64(len(a.deltaLog))-span:] {
		if past.Intersects(touchedActs, touchedMembers) {
			for _, blocks := range [][]schedule.Block{past.Added, past.Updated} {
				for _, b := range blocks {
					conflicting = append(conflicting, b.ID)
				}
			}
		}
	}
	if len(conflicting) == 0 {
		return nil
	}
	return a.staleConflict(p, conflicting)
}

func (a *actor) staleConflict(p schedule.Proposal, conflicting []string) *schedule.ConflictRecord {
	conflict := &schedule.ConflictRecord{
		TripID:              a.tripID,
		ProposalID:          p.ID,
		Reason:              schedule.ReasonStaleVersion,
		BaseVersion:         p.BaseVersion,
		CurrentVersion:      a.live.Version,
		ConflictingBlockIDs: conflicting,
		Message: fmt.Sprintf("proposal %s based on version %d conflicts with changes up to version %d",
			p.ID, p.BaseVersion, a.live.Version),
	}
	a.logger.Info("proposal rejected",
		"proposal_id", p.ID, "reason", string(conflict.Reason),
		"base_version", p.BaseVersion, "current_version", a.live.Version)
	a.emitConflict(*conflict)
	return conflict
}

func (a *actor) transition(s resolverState) {
	a.state = s
}

func (a *actor) emitUpdated(e event.ScheduleUpdated) {
	go a.notifier.ScheduleUpdated(context.Background(), e)
}

func (a *actor) emitConflict(c schedule.ConflictRecord) {
	go a.notifier.ConflictDetected(context.Background(), event.ConflictDetected{
		TripID:     a.tripID,
		ProposalID: c.ProposalID,
		Conflict:   c,
	})
}

func conflictingBlocks(violations []schedule.Violation) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range violations {
		if v.AgainstBlockID == "" {
			continue
		}
		if _, dup := seen[v.AgainstBlockID]; dup {
			continue
		}
		seen[v.AgainstBlockID] = struct{}{}
		out = append(out, v.AgainstBlockID)
	}
	return out
}
