package optimizer

import (
	"math/rand"
	"slices"
	"time"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/interval"
	"github.com/tripweave/engine/internal/domain/schedule"
)

// slotStep is the granularity at which candidate start times are
// scanned inside an opening window.
const slotStep = 15

// gene assigns one activity to a (day, start, lead member) tuple. The
// duration is stamped in from the activity at construction so decoding
// does not need the model.
type gene struct {
	ActivityID string
	Day        int
	Start      interval.Minute
	Lead       string
	duration   time.Duration
}

// chromosome is one candidate schedule: a subset of the activity pool
// with concrete placements, plus its cached evaluation.
type chromosome struct {
	genes      []gene
	objective  float64
	violations []schedule.Violation
	feasible   bool
}

func (c *chromosome) clone() *chromosome {
	return &chromosome{
		genes:      slices.Clone(c.genes),
		objective:  c.objective,
		violations: slices.Clone(c.violations),
		feasible:   c.feasible,
	}
}

// sortGenes keeps genes in (day, start, activity) order so decoding
// and crossover are deterministic.
func (c *chromosome) sortGenes() {
	slices.SortFunc(c.genes, func(a, b gene) int {
		if a.Day != b.Day {
			return a.Day - b.Day
		}
		if a.Start != b.Start {
			return int(a.Start - b.Start)
		}
		return compareStrings(a.ActivityID, b.ActivityID)
	})
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (c *chromosome) genesByDay() map[int][]gene {
	out := make(map[int][]gene)
	for _, g := range c.genes {
		out[g.Day] = append(out[g.Day], g)
	}
	return out
}

func (c *chromosome) hasActivity(id string) bool {
	return slices.ContainsFunc(c.genes, func(g gene) bool { return g.ActivityID == id })
}

// decode turns the chromosome into a schedule. Block ids are derived
// from activity ids: an activity appears at most once per chromosome.
func (c *chromosome) decode(tripID string) *schedule.Schedule {
	s := &schedule.Schedule{TripID: tripID, Blocks: make([]schedule.Block, 0, len(c.genes))}
	for _, g := range c.genes {
		var members []string
		if g.Lead != "" {
			members = []string{g.Lead}
		}
		s.Blocks = append(s.Blocks, schedule.Block{
			ID:         "opt-" + g.ActivityID,
			ActivityID: g.ActivityID,
			Day:        g.Day,
			Start:      g.Start,
			Duration:   g.duration,
			MemberIDs:  members,
			Status:     schedule.BlockScheduled,
		})
	}
	s.Sort()
	return s
}

// encodeSchedule converts the live schedule into the elitism anchor.
// Blocks referencing activities outside the pool are kept as-is so the
// anchor faithfully reproduces the current state.
func (o *Optimizer) encodeSchedule(s *schedule.Schedule) *chromosome {
	c := &chromosome{}
	for _, b := range s.Blocks {
		if b.Status == schedule.BlockCancelled {
			continue
		}
		lead := ""
		if len(b.MemberIDs) > 0 {
			lead = b.MemberIDs[0]
		}
		c.genes = append(c.genes, gene{
			ActivityID: b.ActivityID,
			Day:        b.Day,
			Start:      b.Start,
			Lead:       lead,
			duration:   b.Duration,
		})
	}
	c.sortGenes()
	return c
}

// seedGreedy builds one randomized-but-greedy individual: candidates
// are visited in shuffled order and placed at the earliest feasible
// slot that respects opening hours, lead availability, travel buffers
// against already-placed genes and the remaining budget.
func (o *Optimizer) seedGreedy(rng *rand.Rand) *chromosome {
	order := slices.Clone(o.pool)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	c := &chromosome{}
	var spent int64
	for _, a := range order {
		if a.Status == activity.StatusCancelled {
			continue
		}
		if o.model.Trip.BudgetCeiling > 0 && spent+a.Cost > o.model.Trip.BudgetCeiling {
			continue
		}
		lead := o.pickLead(a, rng)
		if g, ok := o.placeEarliest(a, lead, c); ok {
			c.genes = append(c.genes, g)
			spent += a.Cost
		}
	}
	c.sortGenes()
	return c
}

// pickLead honors a pinned person-in-charge, otherwise assigns a
// random trip member.
func (o *Optimizer) pickLead(a activity.Activity, rng *rand.Rand) string {
	if a.PersonInCharge != "" {
		return a.PersonInCharge
	}
	if len(o.members) == 0 {
		return ""
	}
	return o.members[rng.Intn(len(o.members))]
}

// placeEarliest finds the earliest (day, start) where the activity
// fits an opening window and, for the chosen lead, availability and
// travel buffers against the chromosome's same-day genes hold.
func (o *Optimizer) placeEarliest(a activity.Activity, lead string, c *chromosome) (gene, bool) {
	byDay := c.genesByDay()
	for day := 0; day < o.model.Trip.Days(); day++ {
		if start, ok := o.earliestStartOn(a, day, lead, byDay[day]); ok {
			return gene{ActivityID: a.ID, Day: day, Start: start, Lead: lead, duration: a.Duration}, true
		}
	}
	return gene{}, false
}

// earliestStartOn scans the activity's windows for one day, at
// slotStep granularity, starting at or after floor minutes.
func (o *Optimizer) earliestStartOn(a activity.Activity, day int, lead string, dayGenes []gene) (interval.Minute, bool) {
	return o.earliestStartFrom(a, day, lead, dayGenes, 0)
}

func (o *Optimizer) earliestStartFrom(a activity.Activity, day int, lead string, dayGenes []gene, floor interval.Minute) (interval.Minute, bool) {
	wd := o.model.Trip.Weekday(day)
	for _, w := range a.WindowsOn(wd) {
		start := w.Start
		if floor > start {
			start = floor
		}
		for ; w.ContainsMinute(start); start += slotStep {
			span := interval.Interval{Start: start, End: start.Add(a.Duration)}
			if span.End > w.End && !a.AllowOverflow {
				break
			}
			if span.End > interval.EndOfDay {
				break
			}
			if o.slotFits(a, day, lead, span, dayGenes) {
				return start, true
			}
		}
	}
	return 0, false
}

// slotFits checks lead availability and travel buffers for a tentative
// placement. Unknown travel times fail the slot: the checker would
// flag them anyway, so greedy construction avoids them outright.
func (o *Optimizer) slotFits(a activity.Activity, day int, lead string, span interval.Interval, dayGenes []gene) bool {
	if lead != "" {
		member, ok := o.model.Members[lead]
		if !ok || !member.IsAvailable(day, span) {
			return false
		}
	}
	for _, g := range dayGenes {
		if lead == "" || g.Lead != lead {
			continue
		}
		other := interval.Interval{Start: g.Start, End: g.Start.Add(g.duration)}
		if other.Start <= span.Start {
			travel, ok := o.oracle.TravelTime(g.ActivityID, a.ID)
			if !ok || other.Gap(span) < travel {
				return false
			}
		} else {
			travel, ok := o.oracle.TravelTime(a.ID, g.ActivityID)
			if !ok || span.Gap(other) < travel {
				return false
			}
		}
	}
	return true
}

// crossover splices day-level sub-schedules from either parent, then
// repairs each day with a nearest-neighbor reorder so travel buffers
// broken by the splice are restored locally.
func (o *Optimizer) crossover(p1, p2 *chromosome, rng *rand.Rand) *chromosome {
	child := &chromosome{}
	d1, d2 := p1.genesByDay(), p2.genesByDay()
	for day := 0; day < o.model.Trip.Days(); day++ {
		src := d1[day]
		if rng.Intn(2) == 1 {
			src = d2[day]
		}
		for _, g := range src {
			if !child.hasActivity(g.ActivityID) {
				child.genes = append(child.genes, g)
			}
		}
	}
	o.repair(child)
	child.sortGenes()
	return child
}

// repair re-orders each day's genes by the nearest-neighbor heuristic
// and re-sequences start times so each gene starts at the earliest
// feasible slot after its predecessor plus travel.
func (o *Optimizer) repair(c *chromosome) {
	byDay := c.genesByDay()
	days := make([]int, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	slices.Sort(days)

	var repaired []gene
	for _, day := range days {
		repaired = append(repaired, o.repairDay(day, byDay[day])...)
	}
	c.genes = repaired
}

func (o *Optimizer) repairDay(day int, genes []gene) []gene {
	if len(genes) <= 1 {
		return o.resequence(day, genes)
	}

	// Nearest-neighbor order, starting from the earliest original
	// start; ties break on activity id for determinism.
	slices.SortFunc(genes, func(a, b gene) int {
		if a.Start != b.Start {
			return int(a.Start - b.Start)
		}
		return compareStrings(a.ActivityID, b.ActivityID)
	})

	ordered := []gene{genes[0]}
	remaining := slices.Clone(genes[1:])
	for len(remaining) > 0 {
		last := ordered[len(ordered)-1]
		bestIdx := -1
		var bestTravel time.Duration
		for i, g := range remaining {
			travel, ok := o.oracle.TravelTime(last.ActivityID, g.ActivityID)
			if !ok {
				// Unknown pairs rank last so known-good routes come first.
				travel = time.Duration(1<<30) * time.Second
			}
			if bestIdx < 0 || travel < bestTravel ||
				(travel == bestTravel && g.ActivityID < remaining[bestIdx].ActivityID) {
				bestIdx, bestTravel = i, travel
			}
		}
		ordered = append(ordered, remaining[bestIdx])
		remaining = slices.Delete(remaining, bestIdx, bestIdx+1)
	}

	return o.resequence(day, ordered)
}

// resequence walks the day's genes in order and pushes each start to
// the earliest feasible slot after the previous gene plus travel.
// Genes that no longer fit anywhere on the day are dropped; the
// checker and penalty would reject them anyway.
func (o *Optimizer) resequence(day int, ordered []gene) []gene {
	var out []gene
	var placed []gene
	floor := interval.Minute(0)
	for _, g := range ordered {
		a, ok := o.model.Activities[g.ActivityID]
		if !ok {
			out = append(out, g)
			continue
		}
		start, found := o.earliestStartFrom(a, day, g.Lead, placed, floor)
		if !found {
			continue
		}
		g.Start = start
		g.Day = day
		out = append(out, g)
		placed = append(placed, g)
		if end := start.Add(a.Duration); end > floor {
			floor = end
		}
	}
	return out
}

// mutate applies, per gene with probability rate, one of: shifting the
// start within feasible windows, swapping the lead member, or
// replacing the activity with an unscheduled candidate of the same
// category.
func (o *Optimizer) mutate(c *chromosome, rng *rand.Rand) {
	for i := range c.genes {
		if rng.Float64() >= o.params.MutationRate {
			continue
		}
		switch rng.Intn(3) {
		case 0:
			o.mutateShift(c, i, rng)
		case 1:
			o.mutateLead(c, i, rng)
		case 2:
			o.mutateReplace(c, i, rng)
		}
	}
	c.sortGenes()
}

func (o *Optimizer) mutateShift(c *chromosome, i int, rng *rand.Rand) {
	g := c.genes[i]
	a, ok := o.model.Activities[g.ActivityID]
	if !ok {
		return
	}
	others := sameDayExcept(c, i)
	wd := o.model.Trip.Weekday(g.Day)
	windows := a.WindowsOn(wd)
	if len(windows) == 0 {
		return
	}
	w := windows[rng.Intn(len(windows))]
	offset := interval.Minute(rng.Intn(int(w.End-w.Start)/slotStep+1) * slotStep)
	if start, found := o.earliestStartFrom(a, g.Day, g.Lead, others, w.Start+offset); found {
		c.genes[i].Start = start
	}
}

func (o *Optimizer) mutateLead(c *chromosome, i int, rng *rand.Rand) {
	if len(o.members) < 2 {
		return
	}
	a, ok := o.model.Activities[c.genes[i].ActivityID]
	if ok && a.PersonInCharge != "" {
		return // pinned leads are not swappable
	}
	c.genes[i].Lead = o.members[rng.Intn(len(o.members))]
}

func (o *Optimizer) mutateReplace(c *chromosome, i int, rng *rand.Rand) {
	g := c.genes[i]
	current, ok := o.model.Activities[g.ActivityID]
	if !ok {
		return
	}
	var candidates []activity.Activity
	for _, a := range o.pool {
		if a.ID != g.ActivityID && a.Category == current.Category &&
			a.Status != activity.StatusCancelled && !c.hasActivity(a.ID) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		o.mutateShift(c, i, rng)
		return
	}
	repl := candidates[rng.Intn(len(candidates))]
	others := sameDayExcept(c, i)
	if start, found := o.earliestStartFrom(repl, g.Day, g.Lead, others, 0); found {
		c.genes[i] = gene{ActivityID: repl.ID, Day: g.Day, Start: start, Lead: g.Lead, duration: repl.Duration}
	}
}

func sameDayExcept(c *chromosome, i int) []gene {
	var out []gene
	for j, g := range c.genes {
		if j != i && g.Day == c.genes[i].Day {
			out = append(out, g)
		}
	}
	return out
}
