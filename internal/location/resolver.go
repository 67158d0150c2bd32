package location

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Resolver finds the best recorded position for a capture time.
type Resolver struct {
	Source   Source
	Geocoder Geocoder
	// Window pads the fallback query on both sides of the target.
	// Zero disables the fallback.
	Window time.Duration
	Policy Policy
	// Timeout bounds every single collaborator call. Zero means no extra bound.
	Timeout time.Duration
	// Location is used for zone-less timestamps reported by the source.
	Location *time.Location
}

// Result is the outcome of one resolution.
type Result struct {
	Match Match
	Found bool
	// Windowed is set when the match came from the padded query.
	Windowed bool
	// Geocoded is set when the geocoder was consulted successfully.
	Geocoded bool
	// EnrichErr keeps a geocoder failure; the match itself is still usable.
	EnrichErr error
}

// Resolve queries the source for target, first with a zero-width window and
// then with the padded window, and optionally enriches the selected match.
// Source failures are returned as *TransportError; "no data" is a Result with
// Found == false and a nil error.
func (r *Resolver) Resolve(ctx context.Context, target time.Time) (Result, error) {
	if r.Source == nil {
		return Result{}, errors.New("resolver has no point source")
	}
	target = target.UTC()

	match, found, err := r.query(ctx, target, target)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	if !found && r.Window > 0 {
		match, found, err = r.query(ctx, target.Add(-r.Window), target.Add(r.Window))
		if err != nil {
			return Result{}, err
		}
		res.Windowed = found
	}
	if !found {
		return res, nil
	}
	res.Match = match
	res.Found = true

	if r.Geocoder == nil || !r.Policy.ShouldEnrich(match.Place) {
		return res, nil
	}

	place, err := r.reverse(ctx, *match.Coord)
	if err != nil {
		res.EnrichErr = err
		return res, nil
	}
	res.Match.Place = r.Policy.Merge(match.Place, place)
	res.Geocoded = true
	return res, nil
}

func (r *Resolver) query(ctx context.Context, start, end time.Time) (Match, bool, error) {
	callCtx, cancel := r.bound(ctx)
	defer cancel()

	candidates, err := r.Source.QueryRange(callCtx, start, end)
	if err != nil {
		op := fmt.Sprintf("query points %s..%s", start.Format(time.RFC3339), end.Format(time.RFC3339))
		return Match{}, false, asTransport(op, err)
	}
	target := start.Add(end.Sub(start) / 2)
	match, found := SelectClosest(target, candidates, r.Location)
	return match, found, nil
}

func (r *Resolver) reverse(ctx context.Context, coord Coordinate) (Place, error) {
	callCtx, cancel := r.bound(ctx)
	defer cancel()

	place, err := r.Geocoder.Reverse(callCtx, coord)
	if err != nil {
		return Place{}, asTransport(fmt.Sprintf("reverse geocode %.6f,%.6f", coord.Latitude, coord.Longitude), err)
	}
	return place, nil
}

func (r *Resolver) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout > 0 {
		return context.WithTimeout(ctx, r.Timeout)
	}
	return context.WithCancel(ctx)
}
