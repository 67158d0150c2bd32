package timestamp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tells which variant a Field holds.
type Kind int

const (
	Missing Kind = iota
	Epoch
	ISO
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1_000_000_000_000

// Field is a timestamp as reported by an API: epoch seconds, a date string,
// or nothing at all.
type Field struct {
	kind  Kind
	epoch int64
	text  string
}

// FromEpoch wraps epoch seconds (or milliseconds, see Resolve).
func FromEpoch(sec int64) Field {
	return Field{kind: Epoch, epoch: sec}
}

// FromString wraps a date string. Digit-only strings are treated as epoch values.
func FromString(s string) Field {
	s = strings.TrimSpace(s)
	if s == "" {
		return Field{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FromEpoch(n)
	}
	return Field{kind: ISO, text: s}
}

// FromTime wraps an already known instant.
func FromTime(ts time.Time) Field {
	if ts.IsZero() {
		return Field{}
	}
	return Field{kind: ISO, text: ts.UTC().Format(time.RFC3339Nano)}
}

// Kind returns the variant.
func (f Field) Kind() Kind { return f.kind }

// IsMissing reports whether no timestamp was supplied.
func (f Field) IsMissing() bool { return f.kind == Missing }

// Resolve converts the field into a UTC instant. Zone-less strings are read in loc.
func (f Field) Resolve(loc *time.Location) (time.Time, error) {
	switch f.kind {
	case Epoch:
		if f.epoch > epochMillisThreshold || f.epoch < -epochMillisThreshold {
			return time.UnixMilli(f.epoch).UTC(), nil
		}
		return time.Unix(f.epoch, 0).UTC(), nil
	case ISO:
		return Normalize(f.text, loc)
	default:
		return time.Time{}, fmt.Errorf("%w: missing value", ErrUnparseable)
	}
}

func (f Field) String() string {
	switch f.kind {
	case Epoch:
		return strconv.FormatInt(f.epoch, 10)
	case ISO:
		return f.text
	default:
		return "<missing>"
	}
}

// UnmarshalJSON accepts null, numbers and strings.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Field{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FromString(s)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("timestamp field: %w", err)
	}
	if n, err := num.Int64(); err == nil {
		*f = FromEpoch(n)
		return nil
	}
	v, err := num.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("timestamp field: invalid number %s", num)
	}
	*f = FromEpoch(int64(v))
	return nil
}
