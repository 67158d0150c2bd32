package location

import (
	"context"
	"time"

	"github.com/nir0k/mediageo/internal/timestamp"
)

// Coordinate represents a position in decimal degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
}

// Valid reports whether the coordinate looks like a real reading.
// (0,0) is what trackers emit when they have no fix.
func (c Coordinate) Valid() bool {
	if c.Latitude == 0 && c.Longitude == 0 {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Place holds optional human-readable location fields.
type Place struct {
	Country     string
	City        string
	CountryCode string
}

// Complete reports whether all place fields are filled.
func (p Place) Complete() bool {
	return p.Country != "" && p.City != "" && p.CountryCode != ""
}

// Empty reports whether no place field is filled.
func (p Place) Empty() bool {
	return p.Country == "" && p.City == "" && p.CountryCode == ""
}

// Candidate is one reported position from a point source.
type Candidate struct {
	Coord *Coordinate
	Time  timestamp.Field
	Place Place
}

// Match is the selected candidate together with its distance in time to the target.
type Match struct {
	Candidate
	Time  time.Time
	Delta time.Duration
}

// DeltaSeconds returns the absolute time distance in whole seconds.
func (m Match) DeltaSeconds() int64 {
	return int64(m.Delta / time.Second)
}

// Source returns recorded positions within an inclusive time range.
// An empty slice with a nil error is a legitimate "no data" answer.
type Source interface {
	QueryRange(ctx context.Context, start, end time.Time) ([]Candidate, error)
}

// Geocoder resolves a coordinate into place names.
type Geocoder interface {
	Reverse(ctx context.Context, coord Coordinate) (Place, error)
}
