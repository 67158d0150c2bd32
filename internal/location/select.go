package location

import "time"

// SelectClosest picks the candidate nearest in time to target.
// Candidates without a usable coordinate or timestamp are ignored; zone-less
// timestamps are read in loc. Ties keep the earliest candidate in input order.
// The boolean is false when nothing usable is left.
func SelectClosest(target time.Time, candidates []Candidate, loc *time.Location) (Match, bool) {
	target = target.UTC()

	var (
		best  Match
		found bool
	)
	for _, c := range candidates {
		if c.Coord == nil || !c.Coord.Valid() {
			continue
		}
		ts, err := c.Time.Resolve(loc)
		if err != nil {
			continue
		}
		delta := absDuration(ts.Sub(target))
		if found && delta >= best.Delta {
			continue
		}
		best = Match{Candidate: c, Time: ts, Delta: delta}
		found = true
	}
	return best, found
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
