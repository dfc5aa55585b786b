// Package optimizer searches the assignment space of a trip's
// candidate activities with a seeded genetic algorithm. All randomness
// in the engine lives here, behind an explicit seed, so every other
// component stays deterministic and independently testable.
package optimizer

import (
	"context"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/schedule"
	"github.com/tripweave/engine/internal/feasibility"
	"github.com/tripweave/engine/internal/routing"
)

// Params bound the search.
type Params struct {
	Population       int           `yaml:"population"`
	Generations      int           `yaml:"generations"`
	TournamentSize   int           `yaml:"tournament_size"`
	MutationRate     float64       `yaml:"mutation_rate"`
	StagnationWindow int           `yaml:"stagnation_window"`
	TimeBudget       time.Duration `yaml:"time_budget"`
}

// DefaultParams returns search bounds suitable for trips of a few
// dozen candidate activities.
func DefaultParams() Params {
	return Params{
		Population:       40,
		Generations:      120,
		TournamentSize:   4,
		MutationRate:     0.15,
		StagnationWindow: 25,
		TimeBudget:       5 * time.Second,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Population <= 1 {
		p.Population = d.Population
	}
	if p.Generations <= 0 {
		p.Generations = d.Generations
	}
	if p.TournamentSize <= 0 {
		p.TournamentSize = d.TournamentSize
	}
	if p.MutationRate <= 0 || p.MutationRate > 1 {
		p.MutationRate = d.MutationRate
	}
	if p.StagnationWindow <= 0 {
		p.StagnationWindow = d.StagnationWindow
	}
	if p.TimeBudget <= 0 {
		p.TimeBudget = d.TimeBudget
	}
	return p
}

// Outcome is the terminal state of a run. Timeout and cancellation
// are valid outcomes carrying the best-so-far result, not errors.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStagnated Outcome = "stagnated"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
)

// Request configures one optimization run.
type Request struct {
	// Current is the live schedule, seeded as the elitism anchor.
	Current *schedule.Schedule
	// Seed makes a (seed, input) pair reproducible.
	Seed int64
	// Preferences weights activity categories in the objective.
	Preferences map[activity.Category]float64
	Weights     Weights
	Params      Params
	// KeepPartial returns the best-so-far individual on cancellation
	// instead of discarding it.
	KeepPartial bool
}

// Result is the outcome of a run.
type Result struct {
	// Schedule is the best individual found, with Version left 0: a
	// result becomes live only by being committed through the
	// conflict resolver. Nil when a cancelled run discarded its work.
	Schedule *schedule.Schedule
	// Feasible reports whether Schedule has zero hard violations.
	Feasible bool
	// Partial is set when no feasible individual was found and the
	// least-violating one is returned instead.
	Partial     bool
	Violations  []schedule.Violation
	Objective   float64
	Generations int
	Outcome     Outcome
	Seed        int64
}

// Optimizer runs seeded genetic searches over one trip's model. It is
// not safe for concurrent use; the engine creates one per run.
type Optimizer struct {
	model   feasibility.Model
	oracle  routing.Oracle
	pool    []activity.Activity
	members []string
	prefs   map[activity.Category]float64
	weights Weights
	params  Params
	logger  *slog.Logger
}

// New builds an optimizer over the model's activity pool. The pool is
// the candidate superset: everything schedulable, including
// unscheduled suggestions.
func New(model feasibility.Model, oracle routing.Oracle, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	members := make([]string, 0, len(model.Members))
	for id := range model.Members {
		members = append(members, id)
	}
	slices.Sort(members)

	return &Optimizer{
		model:   model,
		oracle:  oracle,
		pool:    model.ActivityList(),
		members: members,
		logger:  logger,
	}
}

// Run executes the search. Cancellation is cooperative: the context
// and the wall-clock budget are checked between generations.
func (o *Optimizer) Run(ctx context.Context, req Request) Result {
	o.params = req.Params.withDefaults()
	o.weights = req.Weights
	if o.weights == (Weights{}) {
		o.weights = DefaultWeights()
	}
	o.prefs = req.Preferences

	rng := rand.New(rand.NewSource(req.Seed))
	deadline := time.Now().Add(o.params.TimeBudget)

	pop := o.seedPopulation(req.Current, rng)
	best := pop[0]
	for _, c := range pop {
		if betterThan(c, best) {
			best = c
		}
	}

	outcome := OutcomeCompleted
	sinceImprovement := 0
	gen := 0

loop:
	for gen = 1; gen <= o.params.Generations; gen++ {
		select {
		case <-ctx.Done():
			outcome = OutcomeCancelled
			break loop
		default:
		}
		if time.Now().After(deadline) {
			outcome = OutcomeTimeout
			break loop
		}
		if sinceImprovement >= o.params.StagnationWindow {
			outcome = OutcomeStagnated
			break loop
		}

		next := make([]*chromosome, 0, o.params.Population)
		// Elitism: the best individual survives unconditionally, so
		// the recorded best objective is non-decreasing.
		next = append(next, best.clone())
		for len(next) < o.params.Population {
			p1 := o.tournament(pop, rng)
			p2 := o.tournament(pop, rng)
			child := o.crossover(p1, p2, rng)
			o.mutate(child, rng)
			o.evaluate(child)
			next = append(next, child)
		}
		pop = next

		improved := false
		for _, c := range pop {
			if betterThan(c, best) {
				best = c
				improved = true
			}
		}
		if improved {
			sinceImprovement = 0
		} else {
			sinceImprovement++
		}
	}

	if outcome == OutcomeCancelled && !req.KeepPartial {
		o.logger.Info("optimization cancelled, partial result discarded",
			"trip_id", o.model.Trip.ID, "generations", gen-1)
		return Result{Outcome: OutcomeCancelled, Generations: gen - 1, Seed: req.Seed}
	}

	res := Result{
		Schedule:    best.decode(o.model.Trip.ID),
		Feasible:    best.feasible,
		Partial:     !best.feasible,
		Violations:  slices.Clone(best.violations),
		Objective:   best.objective,
		Generations: gen - 1,
		Outcome:     outcome,
		Seed:        req.Seed,
	}
	o.logger.Info("optimization finished",
		"trip_id", o.model.Trip.ID,
		"outcome", string(outcome),
		"generations", res.Generations,
		"feasible", res.Feasible,
		"objective", res.Objective,
		"blocks", len(res.Schedule.Blocks))
	return res
}

// seedPopulation builds the initial population: the live schedule as
// the elitism anchor plus randomized greedy individuals.
func (o *Optimizer) seedPopulation(current *schedule.Schedule, rng *rand.Rand) []*chromosome {
	pop := make([]*chromosome, 0, o.params.Population)

	anchor := &chromosome{}
	if current != nil {
		anchor = o.encodeSchedule(current)
	}
	o.evaluate(anchor)
	pop = append(pop, anchor)

	for len(pop) < o.params.Population {
		c := o.seedGreedy(rng)
		o.evaluate(c)
		pop = append(pop, c)
	}
	return pop
}

// tournament picks the best of TournamentSize random individuals.
func (o *Optimizer) tournament(pop []*chromosome, rng *rand.Rand) *chromosome {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < o.params.TournamentSize; i++ {
		c := pop[rng.Intn(len(pop))]
		if betterThan(c, best) {
			best = c
		}
	}
	return best
}
