package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/schedule"
	"github.com/tripweave/engine/internal/event"
	"github.com/tripweave/engine/internal/optimizer"
)

// RunRequest parameterizes one optimization run. Zero-value Weights
// and Params fall back to the engine's configured defaults.
type RunRequest struct {
	Seed        int64
	Preferences map[activity.Category]float64
	Weights     *optimizer.Weights
	Params      *optimizer.Params
	// KeepPartial keeps the best-so-far result when the run is
	// cancelled instead of discarding it.
	KeepPartial bool
}

// RunHandle tracks an in-flight optimization run.
type RunHandle struct {
	// RunID correlates the handle with the OptimizationCompleted event.
	RunID  string
	cancel context.CancelFunc
	result chan optimizer.Result
}

// Cancel stops the run. The run still delivers a result; whether it
// carries a schedule depends on KeepPartial.
func (h *RunHandle) Cancel() {
	h.cancel()
}

// Result yields exactly one value when the run finishes.
func (h *RunHandle) Result() <-chan optimizer.Result {
	return h.result
}

// RunOptimization starts an optimizer run against the trip's current
// model and schedule snapshot. It blocks only while waiting for a run
// slot; the run itself proceeds on its own goroutine and never holds
// up proposal validation. The result is delivered on the handle and
// broadcast as an OptimizationCompleted event.
func (e *Engine) RunOptimization(ctx context.Context, tripID string, req RunRequest) (*RunHandle, error) {
	a, err := e.actor(tripID)
	if err != nil {
		return nil, err
	}
	select {
	case e.runSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	weights := e.cfg.Weights
	if req.Weights != nil {
		weights = *req.Weights
	}
	params := e.cfg.Optimizer
	if req.Params != nil {
		params = *req.Params
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &RunHandle{
		RunID:  uuid.NewString(),
		cancel: cancel,
		result: make(chan optimizer.Result, 1),
	}

	// The model, oracle and schedule are captured at start; proposals
	// committed after this point do not affect the running search.
	model := a.modelPtr.Load()
	oracle := a.matrix.Load()
	current := a.snapshot.Load()

	go func() {
		defer cancel()
		defer func() { <-e.runSem }()

		opt := optimizer.New(*model, oracle, e.logger.With("trip_id", tripID, "run_id", h.RunID))
		res := opt.Run(runCtx, optimizer.Request{
			Current:     current,
			Seed:        req.Seed,
			Preferences: req.Preferences,
			Weights:     weights,
			Params:      params,
			KeepPartial: req.KeepPartial,
		})
		h.result <- res
		e.notifier.OptimizationCompleted(context.Background(), event.OptimizationCompleted{
			TripID: tripID,
			RunID:  h.RunID,
			Result: res,
		})
	}()
	return h, nil
}

// ProposalFromResult wraps an optimizer result in a replace_all
// proposal so it can be applied through the same conflict-checked
// path as any collaborator edit.
func ProposalFromResult(tripID, authorID string, baseVersion uint64, res optimizer.Result) schedule.Proposal {
	var blocks []schedule.Block
	if res.Schedule != nil {
		blocks = res.Schedule.Blocks
	}
	return schedule.Proposal{
		ID:          uuid.NewString(),
		TripID:      tripID,
		AuthorID:    authorID,
		BaseVersion: baseVersion,
		Ops:         []schedule.Op{{Kind: schedule.OpReplaceAll, Blocks: blocks}},
	}
}
