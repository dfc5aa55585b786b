// Package event defines the outbound boundary of the engine: accepted
// deltas, detected conflicts and optimization results are fanned out
// to the surrounding application through a Notifier. Delivery is
// asynchronous and must never block the next proposal's validation.
package event

import (
	"context"

	"github.com/tripweave/engine/internal/domain/schedule"
	"github.com/tripweave/engine/internal/optimizer"
)

// ScheduleUpdated is emitted after a proposal commits.
type ScheduleUpdated struct {
	TripID  string         `json:"trip_id"`
	Version uint64         `json:"version"`
	Delta   schedule.Delta `json:"delta"`
}

// ConflictDetected is emitted when a proposal is rejected.
type ConflictDetected struct {
	TripID     string                  `json:"trip_id"`
	ProposalID string                  `json:"proposal_id"`
	Conflict   schedule.ConflictRecord `json:"conflict"`
}

// OptimizationCompleted is emitted when an optimizer run reaches any
// terminal outcome, including timeout and cancellation.
type OptimizationCompleted struct {
	TripID string           `json:"trip_id"`
	RunID  string           `json:"run_id"`
	Result optimizer.Result `json:"result"`
}

// Notifier receives engine events. Implementations are owned by the
// surrounding application (websocket fan-out, persistence triggers);
// they must tolerate concurrent calls and return quickly.
type Notifier interface {
	ScheduleUpdated(ctx context.Context, e ScheduleUpdated)
	ConflictDetected(ctx context.Context, e ConflictDetected)
	OptimizationCompleted(ctx context.Context, e OptimizationCompleted)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) ScheduleUpdated(context.Context, ScheduleUpdated)             {}
func (NopNotifier) ConflictDetected(context.Context, ConflictDetected)           {}
func (NopNotifier) OptimizationCompleted(context.Context, OptimizationCompleted) {}
