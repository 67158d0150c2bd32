package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nir0k/mediageo/internal/timestamp"
)

type queryCall struct {
	start, end time.Time
}

type fakeSource struct {
	calls   []queryCall
	answers [][]Candidate
	err     error
	block   bool
}

func (f *fakeSource) QueryRange(ctx context.Context, start, end time.Time) ([]Candidate, error) {
	f.calls = append(f.calls, queryCall{start: start, end: end})
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.calls) - 1
	if idx < len(f.answers) {
		return f.answers[idx], nil
	}
	return nil, nil
}

type fakeGeocoder struct {
	calls int
	place Place
	err   error
}

func (f *fakeGeocoder) Reverse(ctx context.Context, coord Coordinate) (Place, error) {
	f.calls++
	return f.place, f.err
}

func TestResolveFallsBackToWindow(t *testing.T) {
	src := &fakeSource{answers: [][]Candidate{
		nil,
		{
			candidateAt(50.1, 8.6, 50*time.Second),
			candidateAt(50.2, 8.7, -10*time.Second),
		},
	}}
	r := &Resolver{Source: src, Window: 60 * time.Second, Location: time.UTC}

	res, err := r.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Found || !res.Windowed {
		t.Fatalf("expected windowed match, got %+v", res)
	}
	if res.Match.Coord.Latitude != 50.2 || res.Match.DeltaSeconds() != 10 {
		t.Errorf("got lat=%v delta=%ds, want 50.2 and 10s", res.Match.Coord.Latitude, res.Match.DeltaSeconds())
	}

	if len(src.calls) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(src.calls))
	}
	if !src.calls[0].start.Equal(target) || !src.calls[0].end.Equal(target) {
		t.Errorf("first query should be zero-width, got %+v", src.calls[0])
	}
	if !src.calls[1].start.Equal(target.Add(-time.Minute)) || !src.calls[1].end.Equal(target.Add(time.Minute)) {
		t.Errorf("second query window wrong: %+v", src.calls[1])
	}
}

func TestResolveExactMatchSkipsWindow(t *testing.T) {
	src := &fakeSource{answers: [][]Candidate{{candidateAt(1, 2, 0)}}}
	r := &Resolver{Source: src, Window: time.Minute}

	res, err := r.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Found || res.Windowed || res.Match.Delta != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(src.calls) != 1 {
		t.Errorf("expected 1 query, got %d", len(src.calls))
	}
}

func TestResolveNoData(t *testing.T) {
	src := &fakeSource{answers: [][]Candidate{nil, {candidateAt(0, 0, time.Second)}}}
	r := &Resolver{Source: src, Window: time.Minute}

	res, err := r.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("no data must not be an error: %v", err)
	}
	if res.Found {
		t.Errorf("expected no match, got %+v", res)
	}
}

func TestResolveTransportFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	r := &Resolver{Source: src, Window: time.Minute}

	_, err := r.Resolve(context.Background(), target)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if IsTimeout(err) {
		t.Error("plain failure must not be reported as timeout")
	}
	if len(src.calls) != 1 {
		t.Errorf("resolver must stop after a transport failure, made %d calls", len(src.calls))
	}
}

func TestResolveTimeout(t *testing.T) {
	src := &fakeSource{block: true}
	r := &Resolver{Source: src, Timeout: 20 * time.Millisecond}

	_, err := r.Resolve(context.Background(), target)
	if !errors.Is(err, ErrTransport) || !IsTimeout(err) {
		t.Fatalf("error = %v, want transport timeout", err)
	}
}

func TestResolveEnrichment(t *testing.T) {
	berlin := Candidate{
		Coord: &Coordinate{Latitude: 52.52, Longitude: 13.40},
		Time:  timestamp.FromEpoch(target.Unix()),
		Place: Place{City: "Berlin"},
	}
	geo := Place{Country: "Germany", City: "Munich", CountryCode: "DE"}

	tests := []struct {
		name      string
		policy    Policy
		primary   Place
		wantPlace Place
		wantCalls int
	}{
		{"fill missing", PolicyFillMissing, berlin.Place, Place{Country: "Germany", City: "Berlin", CountryCode: "DE"}, 1},
		{"always override", PolicyAlwaysOverride, berlin.Place, geo, 1},
		{"complete primary", PolicyFillMissing, Place{Country: "Germany", City: "Berlin", CountryCode: "DE"}, Place{Country: "Germany", City: "Berlin", CountryCode: "DE"}, 0},
		{"off", PolicyOff, berlin.Place, berlin.Place, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := berlin
			c.Place = tt.primary
			gc := &fakeGeocoder{place: geo}
			r := &Resolver{Source: &fakeSource{answers: [][]Candidate{{c}}}, Geocoder: gc, Policy: tt.policy}

			res, err := r.Resolve(context.Background(), target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Match.Place != tt.wantPlace {
				t.Errorf("place = %+v, want %+v", res.Match.Place, tt.wantPlace)
			}
			if gc.calls != tt.wantCalls {
				t.Errorf("geocoder calls = %d, want %d", gc.calls, tt.wantCalls)
			}
		})
	}
}

func TestResolveEnrichmentFailureKeepsMatch(t *testing.T) {
	gc := &fakeGeocoder{err: errors.New("photon down")}
	r := &Resolver{
		Source:   &fakeSource{answers: [][]Candidate{{candidateAt(45, 7, 0)}}},
		Geocoder: gc,
		Policy:   PolicyAlwaysOverride,
	}

	res, err := r.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Found || res.Geocoded {
		t.Errorf("unexpected result %+v", res)
	}
	if !errors.Is(res.EnrichErr, ErrTransport) {
		t.Errorf("EnrichErr = %v, want ErrTransport", res.EnrichErr)
	}
}
