// Package engine is the public surface of the itinerary core. It owns
// one sequential resolver actor per trip, so concurrent collaborators
// editing the same schedule are serialized while independent trips
// proceed in parallel, and it orchestrates cancellable optimizer runs
// over the per-trip constraint model.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/schedule"
	"github.com/tripweave/engine/internal/domain/trip"
	"github.com/tripweave/engine/internal/event"
	"github.com/tripweave/engine/internal/feasibility"
	"github.com/tripweave/engine/internal/optimizer"
	"github.com/tripweave/engine/internal/routing"
)

var (
	// ErrTripNotFound indicates the trip was never registered.
	ErrTripNotFound = errors.New("trip not found")
	// ErrTripExists indicates a duplicate registration.
	ErrTripExists = errors.New("trip already registered")
	// ErrClosed indicates the engine has shut down.
	ErrClosed = errors.New("engine closed")
	// ErrTooManyActivities indicates the activity pool exceeds the
	// configured matrix bound.
	ErrTooManyActivities = errors.New("too many activities")
	// ErrVersionAhead indicates a proposal claiming a base version the
	// engine has never produced.
	ErrVersionAhead = errors.New("base version ahead of live schedule")
)

// Config bounds the engine's resources.
type Config struct {
	// TravelMode selects the estimator profile for distance matrices.
	TravelMode routing.Mode
	// MaxActivities caps the matrix size per trip.
	MaxActivities int
	// MatrixConcurrency bounds parallel estimator calls per build.
	MatrixConcurrency int
	// MaxConcurrentRuns bounds optimizer runs across all trips.
	MaxConcurrentRuns int
	// ProposalQueueSize is the per-trip FIFO buffer.
	ProposalQueueSize int
	// DeltaLogDepth is how many committed deltas are retained for the
	// stale-overlap rule.
	DeltaLogDepth int
	Optimizer     optimizer.Params
	Weights       optimizer.Weights
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		TravelMode:        routing.ModeWalking,
		MaxActivities:     200,
		MatrixConcurrency: routing.DefaultMatrixConcurrency,
		MaxConcurrentRuns: 4,
		ProposalQueueSize: 64,
		DeltaLogDepth:     64,
		Optimizer:         optimizer.DefaultParams(),
		Weights:           optimizer.DefaultWeights(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TravelMode == "" {
		c.TravelMode = d.TravelMode
	}
	if c.MaxActivities <= 0 {
		c.MaxActivities = d.MaxActivities
	}
	if c.MatrixConcurrency <= 0 {
		c.MatrixConcurrency = d.MatrixConcurrency
	}
	if c.MaxConcurrentRuns <= 0 {
		c.MaxConcurrentRuns = d.MaxConcurrentRuns
	}
	if c.ProposalQueueSize <= 0 {
		c.ProposalQueueSize = d.ProposalQueueSize
	}
	if c.DeltaLogDepth <= 0 {
		c.DeltaLogDepth = d.DeltaLogDepth
	}
	return c
}

// Engine coordinates per-trip resolver actors and optimizer runs.
type Engine struct {
	cfg       Config
	estimator routing.Estimator
	notifier  event.Notifier
	logger    *slog.Logger

	mu     sync.RWMutex
	actors map[string]*actor
	closed bool

	// runSem bounds concurrent optimizer runs across trips.
	runSem chan struct{}
}

// New builds an engine. A nil notifier discards events; a nil logger
// uses the default.
func New(cfg Config, estimator routing.Estimator, notifier event.Notifier, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if notifier == nil {
		notifier = event.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		estimator: estimator,
		notifier:  notifier,
		logger:    logger,
		actors:    make(map[string]*actor),
		runSem:    make(chan struct{}, cfg.MaxConcurrentRuns),
	}
}

// RegisterTrip loads a trip's constraint model, precomputes its
// distance matrix and starts its resolver actor with an empty
// version-0 schedule.
func (e *Engine) RegisterTrip(ctx context.Context, t trip.Trip, members []trip.Member, acts []activity.Activity) error {
	if len(acts) > e.cfg.MaxActivities {
		return fmt.Errorf("%w: %d > %d", ErrTooManyActivities, len(acts), e.cfg.MaxActivities)
	}
	model, err := feasibility.NewModel(t, members, acts)
	if err != nil {
		return fmt.Errorf("registering trip %s: %w", t.ID, err)
	}
	matrix, err := routing.BuildMatrix(ctx, model.ActivityList(), e.cfg.TravelMode, e.estimator, e.cfg.MatrixConcurrency)
	if err != nil {
		return fmt.Errorf("registering trip %s: %w", t.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if _, exists := e.actors[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTripExists, t.ID)
	}
	e.actors[t.ID] = newActor(t.ID, model, matrix, e.cfg.ProposalQueueSize, e.cfg.DeltaLogDepth, e.notifier, e.logger)
	e.logger.Info("trip registered", "trip_id", t.ID, "members", len(members), "activities", len(acts))
	return nil
}

// UpdateActivities replaces a trip's activity pool and rebuilds its
// distance matrix. The swap goes through the actor so validation
// always sees a consistent (model, matrix) pair.
func (e *Engine) UpdateActivities(ctx context.Context, tripID string, acts []activity.Activity) error {
	a, err := e.actor(tripID)
	if err != nil {
		return err
	}
	if len(acts) > e.cfg.MaxActivities {
		return fmt.Errorf("%w: %d > %d", ErrTooManyActivities, len(acts), e.cfg.MaxActivities)
	}

	current := a.modelPtr.Load()
	members := make([]trip.Member, 0, len(current.Members))
	for _, m := range current.Members {
		members = append(members, m)
	}
	model, err := feasibility.NewModel(current.Trip, members, acts)
	if err != nil {
		return fmt.Errorf("updating activities for trip %s: %w", tripID, err)
	}
	matrix, err := routing.BuildMatrix(ctx, model.ActivityList(), e.cfg.TravelMode, e.estimator, e.cfg.MatrixConcurrency)
	if err != nil {
		return fmt.Errorf("updating activities for trip %s: %w", tripID, err)
	}

	reply := make(chan struct{})
	select {
	case a.cmds <- updateModelCmd{model: model, matrix: matrix, reply: reply}:
	case <-a.stopping:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-a.done:
		select {
		case <-reply:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProposeMutation submits a proposal to the trip's resolver and waits
// for the outcome. Proposals for one trip are validated strictly in
// arrival order; the returned conflict is nil on acceptance.
func (e *Engine) ProposeMutation(ctx context.Context, tripID string, p schedule.Proposal) (*Accepted, *schedule.ConflictRecord, error) {
	a, err := e.actor(tripID)
	if err != nil {
		return nil, nil, err
	}
	reply := make(chan proposeReply, 1)
	select {
	case a.cmds <- proposeCmd{proposal: p, reply: reply}:
	case <-a.stopping:
		return nil, nil, ErrClosed
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.accepted, r.conflict, r.err
	case <-a.done:
		// The actor may have committed and replied just before
		// stopping; prefer the reply over reporting a close.
		select {
		case r := <-reply:
			return r.accepted, r.conflict, r.err
		default:
			return nil, nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Snapshot returns a read-only snapshot of the live schedule,
// tagged with the version it reflects.
func (e *Engine) Snapshot(tripID string) (*schedule.Schedule, error) {
	a, err := e.actor(tripID)
	if err != nil {
		return nil, err
	}
	return a.snapshot.Load().Clone(), nil
}

// Close stops all actors. In-flight optimizer runs are cancelled by
// their own handles; proposals submitted after Close fail.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	actors := make([]*actor, 0, len(e.actors))
	for _, a := range e.actors {
		actors = append(actors, a)
	}
	e.actors = make(map[string]*actor)
	e.mu.Unlock()

	for _, a := range actors {
		a.stop()
	}
	e.logger.Info("engine closed", "trips", len(actors))
}

func (e *Engine) actor(tripID string) (*actor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	a, ok := e.actors[tripID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTripNotFound, tripID)
	}
	return a, nil
}
