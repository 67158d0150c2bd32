package timestamp

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrUnparseable signals that a date string matched none of the known layouts.
var ErrUnparseable = errors.New("unparseable timestamp")

// zonedLayouts carry an explicit offset or UTC marker and must be tried before
// the bare layouts, otherwise the offset would be silently dropped.
var zonedLayouts = []string{
	"2006:01:02 15:04:05Z0700",
	"2006:01:02 15:04:05 Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05 Z0700",
	"2006:01:02T15:04:05Z0700",
	"2006-01-02T15:04Z0700",
}

var localLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006:01:02T15:04:05",
	"2006:01:02 15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006:01:02",
	"2006-01-02",
}

var (
	offsetColonRegex = regexp.MustCompile(`([+-]\d{2}):(\d{2})$`)
	fractionRegex    = regexp.MustCompile(`(\d{2}:\d{2}:\d{2})[.,]\d+`)
	utcSuffixRegex   = regexp.MustCompile(`(?i)\s*UTC$`)
)

// Normalize converts an EXIF or ISO-8601 style date string into a UTC instant.
// Values without zone information are interpreted in loc (time.Local when nil).
func Normalize(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrUnparseable)
	}
	if loc == nil {
		loc = time.Local
	}

	value = utcSuffixRegex.ReplaceAllString(value, "Z")
	value = offsetColonRegex.ReplaceAllString(value, "$1$2")
	value = fractionRegex.ReplaceAllString(value, "$1")

	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, raw)
}
