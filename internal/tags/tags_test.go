package tags

import (
	"errors"
	"testing"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/nir0k/mediageo/internal/location"
	"github.com/nir0k/mediageo/internal/media"
	"github.com/nir0k/mediageo/internal/timestamp"
)

type fakeTool struct {
	fields   map[string]interface{}
	extract  error
	writeErr error
	written  []exiftool.FileMetadata
}

func (f *fakeTool) ExtractMetadata(files ...string) []exiftool.FileMetadata {
	out := make([]exiftool.FileMetadata, 0, len(files))
	for _, file := range files {
		fields := make(map[string]interface{}, len(f.fields))
		for k, v := range f.fields {
			fields[k] = v
		}
		out = append(out, exiftool.FileMetadata{File: file, Fields: fields, Err: f.extract})
	}
	return out
}

func (f *fakeTool) WriteMetadata(fileMetadata []exiftool.FileMetadata) {
	for i := range fileMetadata {
		fileMetadata[i].Err = f.writeErr
	}
	f.written = append(f.written, fileMetadata...)
}

func TestInspectImage(t *testing.T) {
	tool := &fakeTool{fields: map[string]interface{}{
		"DateTimeOriginal":   "2024:04:22 15:30:00",
		"OffsetTimeOriginal": "+02:00",
		"CreateDate":         "2024:04:22 15:31:00",
		"GPSLatitude":        52.52,
		"GPSLongitude":       13.405,
		"City":               "Berlin",
	}}

	info, err := New(tool).Inspect(media.Target{Path: "a.jpg", Kind: media.KindImage})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.RawDate != "2024:04:22 15:30:00+02:00" || info.DateTag != "DateTimeOriginal" || info.AssumeUTC {
		t.Errorf("unexpected date info %+v", info)
	}
	if !info.HasGPS || info.Latitude != 52.52 || info.Place.City != "Berlin" {
		t.Errorf("unexpected gps info %+v", info)
	}
}

func TestInspectImageKeepsExistingOffset(t *testing.T) {
	tests := []struct {
		name string
		date string
		want string
	}{
		{"compact offset", "2024:04:22 15:30:00+0200", "2024:04:22 15:30:00+0200"},
		{"colon offset", "2024:04:22 15:30:00-05:00", "2024:04:22 15:30:00-05:00"},
		{"zulu", "2024:04:22 13:30:00Z", "2024:04:22 13:30:00Z"},
		{"no offset", "2024:04:22 15:30:00", "2024:04:22 15:30:00+02:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &fakeTool{fields: map[string]interface{}{
				"DateTimeOriginal":   tt.date,
				"OffsetTimeOriginal": "+02:00",
			}}
			info, err := New(tool).Inspect(media.Target{Path: "a.jpg", Kind: media.KindImage})
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if info.RawDate != tt.want {
				t.Errorf("RawDate = %q, want %q", info.RawDate, tt.want)
			}
			if _, err := timestamp.Normalize(info.RawDate, time.UTC); err != nil {
				t.Errorf("Normalize(%q): %v", info.RawDate, err)
			}
		})
	}
}

func TestInspectVideoPrefersZonedCreationDate(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]interface{}
		wantTag   string
		wantUTC   bool
		wantEmpty bool
	}{
		{"creation date", map[string]interface{}{"CreationDate": "2024:06:01 14:00:00+02:00", "CreateDate": "2024:06:01 12:00:00"}, "CreationDate", false, false},
		{"quicktime utc", map[string]interface{}{"CreateDate": "2024:06:01 12:00:00"}, "CreateDate", true, false},
		{"zero date skipped", map[string]interface{}{"CreateDate": "0000:00:00 00:00:00", "MediaCreateDate": "2024:06:01 12:00:00"}, "MediaCreateDate", true, false},
		{"no date", map[string]interface{}{}, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := New(&fakeTool{fields: tt.fields}).Inspect(media.Target{Path: "clip.mov", Kind: media.KindVideo})
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if info.DateTag != tt.wantTag || info.AssumeUTC != tt.wantUTC || (info.RawDate == "") != tt.wantEmpty {
				t.Errorf("unexpected info %+v", info)
			}
		})
	}
}

func TestInspectExtractError(t *testing.T) {
	_, err := New(&fakeTool{extract: errors.New("boom")}).Inspect(media.Target{Path: "a.jpg", Kind: media.KindImage})
	if err == nil {
		t.Error("expected error")
	}
}

func TestWriteImage(t *testing.T) {
	alt := -12.5
	tool := &fakeTool{fields: map[string]interface{}{"DateTimeOriginal": "2024:06:01 12:00:00"}}
	match := location.Match{Candidate: location.Candidate{
		Coord: &location.Coordinate{Latitude: -33.86, Longitude: 151.21, Altitude: &alt},
		Place: location.Place{Country: "Australia", City: "Sydney", CountryCode: "AU"},
	}}
	capture := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)

	outcome, err := New(tool).Write(media.Target{Path: "a.jpg", Kind: media.KindImage}, match, capture, false)
	if err != nil || outcome != OutcomeWrote {
		t.Fatalf("Write = %s, %v", outcome, err)
	}
	if len(tool.written) != 1 {
		t.Fatalf("expected one write, got %d", len(tool.written))
	}
	fields := tool.written[0].Fields
	checks := map[string]interface{}{
		"GPSLatitude":              33.86,
		"GPSLatitudeRef":           "S",
		"GPSLongitude":             151.21,
		"GPSLongitudeRef":          "E",
		"GPSAltitude":              12.5,
		"GPSAltitudeRef":           "1",
		"GPSDateStamp":             "2024:06:01",
		"GPSTimeStamp":             "02:00:00",
		"XMP-photoshop:City":       "Sydney",
		"XMP-photoshop:Country":    "Australia",
		"XMP-iptcCore:CountryCode": "AU",
	}
	for k, want := range checks {
		if fields[k] != want {
			t.Errorf("field %s = %v, want %v", k, fields[k], want)
		}
	}
	if _, ok := fields["Keys:GPSCoordinates"]; ok {
		t.Error("image must not get QuickTime coordinates")
	}
}

func TestWriteVideo(t *testing.T) {
	tool := &fakeTool{fields: map[string]interface{}{}}
	match := location.Match{Candidate: location.Candidate{
		Coord: &location.Coordinate{Latitude: 48.8566, Longitude: 2.3522},
	}}

	outcome, err := New(tool).Write(media.Target{Path: "clip.mp4", Kind: media.KindVideo}, match, time.Time{}, false)
	if err != nil || outcome != OutcomeWrote {
		t.Fatalf("Write = %s, %v", outcome, err)
	}
	fields := tool.written[0].Fields
	if fields["Keys:GPSCoordinates"] != "48.85660000 2.35220000" {
		t.Errorf("Keys:GPSCoordinates = %v", fields["Keys:GPSCoordinates"])
	}
	if fields["XMP:GPSLatitude"] != 48.8566 {
		t.Errorf("XMP:GPSLatitude = %v", fields["XMP:GPSLatitude"])
	}
	if _, ok := fields["XMP-photoshop:City"]; ok {
		t.Error("empty place must not be written")
	}
}

func TestWriteOutcomes(t *testing.T) {
	match := location.Match{Candidate: location.Candidate{
		Coord: &location.Coordinate{Latitude: 52.52, Longitude: 13.405},
		Place: location.Place{City: "Berlin"},
	}}
	target := media.Target{Path: "a.jpg", Kind: media.KindImage}

	t.Run("same data is unchanged", func(t *testing.T) {
		tool := &fakeTool{fields: map[string]interface{}{"GPSLatitude": "+52.52000000", "GPSLongitude": "+13.40500000", "City": "Berlin"}}
		outcome, err := New(tool).Write(target, match, time.Time{}, true)
		if err != nil || outcome != OutcomeUnchanged || len(tool.written) != 0 {
			t.Errorf("got %s, %v with %d writes", outcome, err, len(tool.written))
		}
	})

	t.Run("existing gps without overwrite", func(t *testing.T) {
		tool := &fakeTool{fields: map[string]interface{}{"GPSLatitude": 1.0, "GPSLongitude": 1.0}}
		outcome, err := New(tool).Write(target, match, time.Time{}, false)
		if !errors.Is(err, ErrGPSAlreadyPresent) || outcome != OutcomeUnchanged {
			t.Errorf("got %s, %v", outcome, err)
		}
	})

	t.Run("existing gps with overwrite", func(t *testing.T) {
		tool := &fakeTool{fields: map[string]interface{}{"GPSLatitude": 1.0, "GPSLongitude": 1.0}}
		outcome, err := New(tool).Write(target, match, time.Time{}, true)
		if err != nil || outcome != OutcomeWrote {
			t.Errorf("got %s, %v", outcome, err)
		}
	})

	t.Run("write failure", func(t *testing.T) {
		tool := &fakeTool{fields: map[string]interface{}{}, writeErr: errors.New("read-only")}
		outcome, err := New(tool).Write(target, match, time.Time{}, false)
		if err == nil || outcome != OutcomeFailed {
			t.Errorf("got %s, %v", outcome, err)
		}
	})
}
