package gpx

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	gogpx "github.com/tkrajina/gpxgo/gpx"
)

// CleanOptions controls which points Clean removes besides the always-dropped
// untimed and (0,0) points.
type CleanOptions struct {
	// MaxSpeed in metres per second; a point reached faster than this from the
	// previous kept point is treated as a GPS jump. Zero disables the check.
	MaxSpeed float64
}

// CleanStats counts what Clean removed.
type CleanStats struct {
	Kept            int
	NoTime          int
	ZeroCoordinates int
	Duplicates      int
	SpeedJumps      int
	EmptySegments   int
	EmptyTracks     int
}

// Removed returns the total number of dropped points.
func (s CleanStats) Removed() int {
	return s.NoTime + s.ZeroCoordinates + s.Duplicates + s.SpeedJumps
}

// Clean sorts every segment by time and drops unusable points in place.
func Clean(doc *gogpx.GPX, opts CleanOptions) CleanStats {
	var stats CleanStats

	tracks := doc.Tracks[:0]
	for _, track := range doc.Tracks {
		segments := track.Segments[:0]
		for _, segment := range track.Segments {
			segment.Points = cleanSegment(segment.Points, opts, &stats)
			if len(segment.Points) == 0 {
				stats.EmptySegments++
				continue
			}
			segments = append(segments, segment)
		}
		track.Segments = segments
		if len(track.Segments) == 0 {
			stats.EmptyTracks++
			continue
		}
		tracks = append(tracks, track)
	}
	doc.Tracks = tracks

	return stats
}

func cleanSegment(points []gogpx.GPXPoint, opts CleanOptions, stats *CleanStats) []gogpx.GPXPoint {
	valid := make([]gogpx.GPXPoint, 0, len(points))
	for _, pt := range points {
		switch {
		case pt.Timestamp.IsZero():
			stats.NoTime++
		case pt.GetLatitude() == 0 && pt.GetLongitude() == 0:
			stats.ZeroCoordinates++
		default:
			valid = append(valid, pt)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})

	kept := valid[:0]
	for _, pt := range valid {
		if len(kept) == 0 {
			kept = append(kept, pt)
			continue
		}
		prev := kept[len(kept)-1]
		if pt.Timestamp.Equal(prev.Timestamp) {
			stats.Duplicates++
			continue
		}
		if opts.MaxSpeed > 0 && speed(prev, pt) > opts.MaxSpeed {
			stats.SpeedJumps++
			continue
		}
		kept = append(kept, pt)
	}
	stats.Kept += len(kept)
	return kept
}

func speed(from, to gogpx.GPXPoint) float64 {
	seconds := to.Timestamp.Sub(from.Timestamp).Seconds()
	if seconds <= 0 {
		return 0
	}
	meters := gogpx.Distance2D(from.GetLatitude(), from.GetLongitude(), to.GetLatitude(), to.GetLongitude(), true)
	return meters / seconds
}

// Save writes doc as GPX 1.1.
func Save(doc *gogpx.GPX, path string) error {
	payload, err := doc.ToXml(gogpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write gpx: %w", err)
	}
	return nil
}

// CleanFile parses in, cleans it and writes the result to out. in and out may
// be the same path.
func CleanFile(in, out string, opts CleanOptions) (CleanStats, error) {
	doc, err := gogpx.ParseFile(in)
	if err != nil {
		return CleanStats{}, fmt.Errorf("parse gpx: %w", err)
	}
	stats := Clean(doc, opts)
	if stats.Kept == 0 {
		return stats, fmt.Errorf("no usable points left in %s", in)
	}
	if err := Save(doc, out); err != nil {
		return stats, err
	}
	return stats, nil
}
