// Package mocks provides testify doubles for the engine's outbound
// boundaries.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/event"
	"github.com/tripweave/engine/internal/routing"
)

// Notifier is a mock for event.Notifier.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) ScheduleUpdated(ctx context.Context, e event.ScheduleUpdated) {
	m.Called(ctx, e)
}

func (m *Notifier) ConflictDetected(ctx context.Context, e event.ConflictDetected) {
	m.Called(ctx, e)
}

func (m *Notifier) OptimizationCompleted(ctx context.Context, e event.OptimizationCompleted) {
	m.Called(ctx, e)
}

// Estimator is a mock for routing.Estimator.
type Estimator struct {
	mock.Mock
}

func (m *Estimator) TravelTime(ctx context.Context, from, to activity.GeoPoint, mode routing.Mode) (time.Duration, error) {
	args := m.Called(ctx, from, to, mode)
	return args.Get(0).(time.Duration), args.Error(1)
}
