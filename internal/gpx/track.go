package gpx

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nir0k/mediageo/internal/location"
	"github.com/nir0k/mediageo/internal/timestamp"
	gogpx "github.com/tkrajina/gpxgo/gpx"
)

// TrackIndex keeps GPX points sorted by timestamp for quick range lookups.
type TrackIndex struct {
	points []trackPoint
}

type trackPoint struct {
	coord location.Coordinate
	time  time.Time
}

// LoadTrack parses a GPX file and prepares the lookup index.
func LoadTrack(path string) (*TrackIndex, error) {
	parsed, err := gogpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	return NewTrackIndex(parsed)
}

// NewTrackIndex indexes every timed point of an already parsed document.
func NewTrackIndex(doc *gogpx.GPX) (*TrackIndex, error) {
	collected := collectPoints(doc)
	if len(collected) == 0 {
		return nil, fmt.Errorf("gpx file contains no timed track points")
	}

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].time.Before(collected[j].time)
	})

	return &TrackIndex{points: collected}, nil
}

// QueryRange returns all points within [start, end] in time order.
func (ti *TrackIndex) QueryRange(ctx context.Context, start, end time.Time) ([]location.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		start, end = end, start
	}

	from := sort.Search(len(ti.points), func(i int) bool {
		return !ti.points[i].time.Before(start)
	})

	var out []location.Candidate
	for i := from; i < len(ti.points) && !ti.points[i].time.After(end); i++ {
		coord := ti.points[i].coord
		out = append(out, location.Candidate{
			Coord: &coord,
			Time:  timestamp.FromTime(ti.points[i].time),
		})
	}
	return out, nil
}

// Bounds returns the first and last timestamps in the track.
func (ti *TrackIndex) Bounds() (time.Time, time.Time) {
	if len(ti.points) == 0 {
		return time.Time{}, time.Time{}
	}
	return ti.points[0].time, ti.points[len(ti.points)-1].time
}

// PointCount returns number of GPX points indexed.
func (ti *TrackIndex) PointCount() int {
	return len(ti.points)
}

func collectPoints(doc *gogpx.GPX) []trackPoint {
	points := make([]trackPoint, 0)

	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, pt := range segment.Points {
				if pt.Timestamp.IsZero() {
					continue
				}
				points = append(points, trackPoint{
					coord: toCoordinate(pt),
					time:  pt.Timestamp.UTC(),
				})
			}
		}
	}

	return points
}

func toCoordinate(pt gogpx.GPXPoint) location.Coordinate {
	coord := location.Coordinate{
		Latitude:  pt.GetLatitude(),
		Longitude: pt.GetLongitude(),
	}
	if ele := pt.GetElevation(); ele.NotNull() {
		val := ele.Value()
		coord.Altitude = &val
	}
	return coord
}
