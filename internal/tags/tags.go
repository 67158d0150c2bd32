package tags

import (
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/nir0k/mediageo/internal/location"
	"github.com/nir0k/mediageo/internal/media"
)

// ErrGPSAlreadyPresent is returned when GPS tags already exist and overwriting is disabled.
var ErrGPSAlreadyPresent = errors.New("gps already present in file")

// Outcome is the result of a tag write.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeWrote
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWrote:
		return "wrote"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "failed"
	}
}

// Tool is the subset of *exiftool.Exiftool used here.
type Tool interface {
	ExtractMetadata(files ...string) []exiftool.FileMetadata
	WriteMetadata(fileMetadata []exiftool.FileMetadata)
}

// coordEpsilon is roughly 1cm; closer coordinates count as unchanged.
const coordEpsilon = 1e-7

var imageDateTags = []string{"DateTimeOriginal", "CreateDate", "ModifyDate"}

// QuickTime CreationDate carries a zone; the other QuickTime dates are UTC
// by definition of the container format.
var videoDateTags = []string{"CreationDate", "CreateDate", "MediaCreateDate", "TrackCreateDate", "DateTimeOriginal"}

var videoUTCTags = map[string]bool{
	"CreateDate":      true,
	"MediaCreateDate": true,
	"TrackCreateDate": true,
}

var gpsTags = []string{"GPSLatitude", "GPSLongitude", "GPSPosition", "GPSCoordinates"}

// Info summarizes what a file already carries.
type Info struct {
	RawDate string
	DateTag string
	// AssumeUTC is set when RawDate has no zone but is defined as UTC.
	AssumeUTC bool
	HasGPS    bool
	Latitude  float64
	Longitude float64
	Place     location.Place
}

// Tagger reads and writes media tags through exiftool.
type Tagger struct {
	tool Tool
}

// New wraps an exiftool-compatible tool.
func New(tool Tool) *Tagger {
	return &Tagger{tool: tool}
}

// Open starts a long-lived exiftool process.
func Open(backupOriginal bool) (*Tagger, error) {
	opts := []func(*exiftool.Exiftool) error{exiftool.CoordFormant("%+.8f")}
	if backupOriginal {
		opts = append(opts, exiftool.BackupOriginal())
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return New(et), nil
}

// Close stops the underlying exiftool process when it has one.
func (t *Tagger) Close() error {
	if c, ok := t.tool.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Inspect reads the capture date and existing GPS state of a file.
func (t *Tagger) Inspect(target media.Target) (Info, error) {
	fm, err := t.extract(target.Path)
	if err != nil {
		return Info{}, err
	}

	var info Info
	dateTags := imageDateTags
	if target.Kind == media.KindVideo {
		dateTags = videoDateTags
	}
	for _, tag := range dateTags {
		raw, err := fm.GetString(tag)
		if err != nil || strings.TrimSpace(raw) == "" || strings.HasPrefix(raw, "0000:00:00") {
			continue
		}
		info.RawDate = strings.TrimSpace(raw)
		info.DateTag = tag
		info.AssumeUTC = target.Kind == media.KindVideo && videoUTCTags[tag]
		break
	}
	if info.DateTag == "DateTimeOriginal" && !hasZone(info.RawDate) {
		if offset, err := fm.GetString("OffsetTimeOriginal"); err == nil && strings.TrimSpace(offset) != "" {
			info.RawDate += strings.TrimSpace(offset)
		}
	}

	for _, tag := range gpsTags {
		if fm.Fields[tag] != nil {
			info.HasGPS = true
			break
		}
	}
	if lat, err := fm.GetFloat("GPSLatitude"); err == nil {
		info.Latitude = lat
	}
	if lon, err := fm.GetFloat("GPSLongitude"); err == nil {
		info.Longitude = lon
	}
	info.Place = location.Place{
		Country:     stringField(fm, "Country"),
		City:        stringField(fm, "City"),
		CountryCode: stringField(fm, "CountryCode"),
	}
	return info, nil
}

// Write stores the match as GPS and place tags. Images get EXIF GPS tags,
// videos get QuickTime GPSCoordinates; both get XMP place tags.
func (t *Tagger) Write(target media.Target, match location.Match, capture time.Time, overwrite bool) (Outcome, error) {
	if match.Coord == nil {
		return OutcomeFailed, fmt.Errorf("match has no coordinate")
	}

	info, err := t.Inspect(target)
	if err != nil {
		return OutcomeFailed, err
	}
	if info.HasGPS && sameCoordinate(info, *match.Coord) && placeCovered(info.Place, match.Place) {
		return OutcomeUnchanged, nil
	}
	if info.HasGPS && !overwrite {
		return OutcomeUnchanged, ErrGPSAlreadyPresent
	}

	fm := exiftool.FileMetadata{File: target.Path, Fields: map[string]interface{}{}}
	if target.Kind == media.KindVideo {
		videoFields(&fm, *match.Coord)
	} else {
		imageFields(&fm, *match.Coord, capture)
	}
	placeFields(&fm, match.Place)

	batch := []exiftool.FileMetadata{fm}
	t.tool.WriteMetadata(batch)
	if batch[0].Err != nil {
		return OutcomeFailed, fmt.Errorf("write tags to %s: %w", target.Path, batch[0].Err)
	}
	return OutcomeWrote, nil
}

func (t *Tagger) extract(path string) (exiftool.FileMetadata, error) {
	infos := t.tool.ExtractMetadata(path)
	if len(infos) == 0 {
		return exiftool.FileMetadata{}, fmt.Errorf("no metadata returned for %s", path)
	}
	if infos[0].Err != nil {
		return exiftool.FileMetadata{}, fmt.Errorf("read metadata of %s: %w", path, infos[0].Err)
	}
	return infos[0], nil
}

func imageFields(fm *exiftool.FileMetadata, coord location.Coordinate, capture time.Time) {
	latRef, lonRef := "N", "E"
	if coord.Latitude < 0 {
		latRef = "S"
	}
	if coord.Longitude < 0 {
		lonRef = "W"
	}
	fm.SetFloat("GPSLatitude", math.Abs(coord.Latitude))
	fm.SetString("GPSLatitudeRef", latRef)
	fm.SetFloat("GPSLongitude", math.Abs(coord.Longitude))
	fm.SetString("GPSLongitudeRef", lonRef)
	if coord.Altitude != nil {
		altRef := "0"
		if *coord.Altitude < 0 {
			altRef = "1"
		}
		fm.SetFloat("GPSAltitude", math.Abs(*coord.Altitude))
		fm.SetString("GPSAltitudeRef", altRef)
	}
	if !capture.IsZero() {
		fm.SetString("GPSDateStamp", capture.UTC().Format("2006:01:02"))
		fm.SetString("GPSTimeStamp", capture.UTC().Format("15:04:05"))
	}
}

func videoFields(fm *exiftool.FileMetadata, coord location.Coordinate) {
	value := formatFloat(coord.Latitude) + " " + formatFloat(coord.Longitude)
	if coord.Altitude != nil {
		value += " " + formatFloat(*coord.Altitude)
	}
	fm.SetString("Keys:GPSCoordinates", value)
	fm.SetString("UserData:GPSCoordinates", value)
	fm.SetFloat("XMP:GPSLatitude", coord.Latitude)
	fm.SetFloat("XMP:GPSLongitude", coord.Longitude)
}

func placeFields(fm *exiftool.FileMetadata, place location.Place) {
	if place.City != "" {
		fm.SetString("XMP-photoshop:City", place.City)
	}
	if place.Country != "" {
		fm.SetString("XMP-photoshop:Country", place.Country)
	}
	if place.CountryCode != "" {
		fm.SetString("XMP-iptcCore:CountryCode", place.CountryCode)
	}
}

func sameCoordinate(info Info, coord location.Coordinate) bool {
	return math.Abs(info.Latitude-coord.Latitude) < coordEpsilon &&
		math.Abs(info.Longitude-coord.Longitude) < coordEpsilon
}

// placeCovered reports whether every non-empty field of want is already stored.
func placeCovered(have, want location.Place) bool {
	return (want.City == "" || want.City == have.City) &&
		(want.Country == "" || want.Country == have.Country) &&
		(want.CountryCode == "" || want.CountryCode == have.CountryCode)
}

func stringField(fm exiftool.FileMetadata, key string) string {
	v, err := fm.GetString(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// zoneSuffixRegex matches Z, UTC, ±HH:MM and ±HHMM at the end of a date string.
var zoneSuffixRegex = regexp.MustCompile(`(?i)(?:Z|UTC|[+-]\d{2}:?\d{2})$`)

func hasZone(raw string) bool {
	return zoneSuffixRegex.MatchString(strings.TrimSpace(raw))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}
