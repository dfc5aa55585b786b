package optimizer

import (
	"time"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/feasibility"
)

// Weights are the objective coefficients:
//
//	objective = Preference*prefScore - Travel*travelMinutes - Cost*totalCost - Penalty*violationCount
//
// Penalty must dwarf the other terms so a feasible individual always
// outranks an infeasible one.
type Weights struct {
	Preference float64 `yaml:"preference"`
	Travel     float64 `yaml:"travel"`
	Cost       float64 `yaml:"cost"`
	Penalty    float64 `yaml:"penalty"`
}

// DefaultWeights favors preference fit with mild travel and cost
// pressure.
func DefaultWeights() Weights {
	return Weights{
		Preference: 10.0,
		Travel:     0.5,
		Cost:       0.01,
		Penalty:    10000.0,
	}
}

// evaluate scores a chromosome. The violation count comes from the
// shared feasibility checker; the objective never re-derives any
// constraint rule.
func (o *Optimizer) evaluate(c *chromosome) {
	s := c.decode(o.model.Trip.ID)
	c.violations = feasibility.Check(s, o.model, o.oracle)
	c.feasible = len(c.violations) == 0

	pref := o.preferenceScore(c)
	travel := o.travelMinutes(c)
	cost := float64(feasibility.TotalCost(s, o.model))

	c.objective = o.weights.Preference*pref -
		o.weights.Travel*travel -
		o.weights.Cost*cost -
		o.weights.Penalty*float64(len(c.violations))
}

func (o *Optimizer) preferenceScore(c *chromosome) float64 {
	var score float64
	for _, g := range c.genes {
		a := o.model.Activities[g.ActivityID]
		score += o.categoryWeight(a.Category)
	}
	return score
}

// categoryWeight defaults to 1.0 for categories the trip has no
// stated preference for, so scheduling more is better than less.
func (o *Optimizer) categoryWeight(cat activity.Category) float64 {
	if w, ok := o.prefs[cat]; ok {
		return w
	}
	return 1.0
}

// travelMinutes sums travel time between consecutive same-day genes,
// using the precomputed matrix. Unknown pairs contribute nothing here;
// they already surface as violations through the checker.
func (o *Optimizer) travelMinutes(c *chromosome) float64 {
	byDay := c.genesByDay()
	var total time.Duration
	for _, genes := range byDay {
		for i := 1; i < len(genes); i++ {
			if d, ok := o.oracle.TravelTime(genes[i-1].ActivityID, genes[i].ActivityID); ok {
				total += d
			}
		}
	}
	return total.Minutes()
}

// betterThan orders chromosomes by objective with a deterministic
// tie-break so elitism is stable across runs with the same seed.
func betterThan(a, b *chromosome) bool {
	if a.objective != b.objective {
		return a.objective > b.objective
	}
	return len(a.violations) < len(b.violations)
}
