package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nir0k/mediageo/internal/location"
)

const (
	maxAutoOffset = 12 * time.Hour
	// maxOffsetSamples bounds the number of wide queries issued against the source.
	maxOffsetSamples = 10
)

// detectOffset tries to find a consistent offset between camera time and recorded points.
func detectOffset(ctx context.Context, source location.Source, captures []time.Time, loc *time.Location) (time.Duration, int, error) {
	var diffs []time.Duration

	for _, capture := range sampleCaptures(captures, maxOffsetSamples) {
		candidates, err := source.QueryRange(ctx, capture.Add(-maxAutoOffset), capture.Add(maxAutoOffset))
		if err != nil {
			if ctx.Err() != nil {
				return 0, 0, ctx.Err()
			}
			continue
		}
		match, ok := location.SelectClosest(capture, candidates, loc)
		if !ok {
			continue
		}
		diffs = append(diffs, match.Time.Sub(capture))
	}

	if len(diffs) == 0 {
		return 0, 0, fmt.Errorf("unable to detect offset: no usable samples within %s window", maxAutoOffset)
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i] < diffs[j]
	})

	var median time.Duration
	mid := len(diffs) / 2
	if len(diffs)%2 == 0 {
		median = (diffs[mid-1] + diffs[mid]) / 2
	} else {
		median = diffs[mid]
	}

	return median.Round(time.Second), len(diffs), nil
}

// sampleCaptures picks up to n captures spread evenly over the input.
func sampleCaptures(captures []time.Time, n int) []time.Time {
	if len(captures) <= n {
		return captures
	}
	out := make([]time.Time, 0, n)
	step := float64(len(captures)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out = append(out, captures[int(float64(i)*step+0.5)])
	}
	return out
}

// ParseOffset accepts human-friendly strings like "1h30m", "01:30:00", "-15m", "+90s".
func ParseOffset(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}

	// Support ±HH:MM or ±HH:MM:SS.
	sign := time.Duration(1)
	if strings.HasPrefix(raw, "-") {
		sign = -1
		raw = strings.TrimPrefix(raw, "-")
	} else {
		raw = strings.TrimPrefix(raw, "+")
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time offset format: %q", raw)
	}
	limits := []int64{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, part := range parts {
		val, err := parseComponent(part, limits[i])
		if err != nil {
			return 0, err
		}
		total += time.Duration(val) * units[i]
	}
	return sign * total, nil
}

func parseComponent(v string, max int64) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	val, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time component %q", v)
	}
	if val < 0 || val > max {
		return 0, fmt.Errorf("time component %q is out of range", v)
	}
	return val, nil
}
