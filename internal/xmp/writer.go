package xmp

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nir0k/mediageo/internal/location"
)

// ErrGPSAlreadyPresent is returned when GPS tags already exist and overwriting is disabled.
var ErrGPSAlreadyPresent = errors.New("gps already present in sidecar")

// namespace prefixes this package writes into rdf:Description.
var namespaces = []struct {
	prefix string
	uri    string
	decl   *regexp.Regexp
}{
	{"exif", "http://ns.adobe.com/exif/1.0/", regexp.MustCompile(`(?is)\bxmlns:exif\s*=`)},
	{"photoshop", "http://ns.adobe.com/photoshop/1.0/", regexp.MustCompile(`(?is)\bxmlns:photoshop\s*=`)},
	{"Iptc4xmpCore", "http://iptc.org/std/Iptc4xmpCore/1.0/xmlns/", regexp.MustCompile(`(?is)\bxmlns:Iptc4xmpCore\s*=`)},
}

// BuildSidecar returns a fresh XMP payload with GPS and place information.
func BuildSidecar(coord location.Coordinate, place location.Place, ts time.Time) []byte {
	attrs := make([]string, 0, len(namespaces)+12)
	for _, ns := range namespaces {
		attrs = append(attrs, fmt.Sprintf(`xmlns:%s="%s"`, ns.prefix, ns.uri))
	}
	attrs = append(attrs, locationAttributes(coord, place, ts)...)

	var builder strings.Builder
	builder.WriteString(`<?xpacket begin=" " id="W5M0MpCehiHzreSzNTczkc9d"?>`)
	builder.WriteString("\n<x:xmpmeta xmlns:x=\"adobe:ns:meta/\" x:xmptk=\"mediageo\">\n")
	builder.WriteString("  <rdf:RDF xmlns:rdf=\"http://www.w3.org/1999/02/22-rdf-syntax-ns#\">\n")
	builder.WriteString("    <rdf:Description rdf:about=\"\"")
	for _, attr := range attrs {
		builder.WriteString("\n      ")
		builder.WriteString(attr)
	}
	builder.WriteString(">\n")
	builder.WriteString("    </rdf:Description>\n")
	builder.WriteString("  </rdf:RDF>\n")
	builder.WriteString("</x:xmpmeta>\n")
	builder.WriteString("<?xpacket end=\"w\"?>")

	return []byte(builder.String())
}

func locationAttributes(coord location.Coordinate, place location.Place, ts time.Time) []string {
	latVal, latRef := formatGPSCoordinate(coord.Latitude, "N", "S")
	lonVal, lonRef := formatGPSCoordinate(coord.Longitude, "E", "W")

	attrs := []string{
		fmt.Sprintf(`exif:GPSLatitude="%s"`, latVal),
		fmt.Sprintf(`exif:GPSLatitudeRef="%s"`, latRef),
		fmt.Sprintf(`exif:GPSLongitude="%s"`, lonVal),
		fmt.Sprintf(`exif:GPSLongitudeRef="%s"`, lonRef),
		`exif:GPSVersionID="2.3.0.0"`,
	}
	if coord.Altitude != nil {
		altVal := *coord.Altitude
		altRef := 0
		if altVal < 0 {
			altRef = 1
			altVal = math.Abs(altVal)
		}
		attrs = append(attrs,
			fmt.Sprintf(`exif:GPSAltitude="%0.2f"`, altVal),
			fmt.Sprintf(`exif:GPSAltitudeRef="%d"`, altRef),
		)
	}
	if !ts.IsZero() {
		attrs = append(attrs,
			fmt.Sprintf(`exif:GPSDateStamp="%s"`, ts.UTC().Format("2006:01:02")),
			fmt.Sprintf(`exif:GPSTimeStamp="%s"`, ts.UTC().Format("15:04:05")),
		)
	}
	if place.City != "" {
		attrs = append(attrs, fmt.Sprintf(`photoshop:City="%s"`, escapeAttr(place.City)))
	}
	if place.Country != "" {
		attrs = append(attrs, fmt.Sprintf(`photoshop:Country="%s"`, escapeAttr(place.Country)))
	}
	if place.CountryCode != "" {
		attrs = append(attrs, fmt.Sprintf(`Iptc4xmpCore:CountryCode="%s"`, escapeAttr(place.CountryCode)))
	}
	return attrs
}

func escapeAttr(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

func formatGPSCoordinate(value float64, positiveRef, negativeRef string) (string, string) {
	ref := positiveRef
	if value < 0 {
		ref = negativeRef
	}

	abs := math.Abs(value)
	deg := math.Floor(abs)
	minutes := (abs - deg) * 60

	minutes = math.Round(minutes*1e10) / 1e10
	if minutes >= 60 {
		deg++
		minutes = 0
	}

	degStr := strconv.FormatFloat(deg, 'f', 0, 64)
	minStr := strconv.FormatFloat(minutes, 'f', 10, 64)
	minStr = strings.TrimRight(minStr, "0")
	minStr = strings.TrimRight(minStr, ".")
	if minStr == "" {
		minStr = "0"
	}

	return fmt.Sprintf("%s,%s%s", degStr, minStr, ref), ref
}

// SidecarPath returns the expected XMP filename for a media file.
func SidecarPath(mediaPath string) string {
	// If path already ends with .xmp (or .XMP), strip it first, then drop the previous extension.
	path := mediaPath
	if strings.EqualFold(filepath.Ext(path), ".xmp") {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}

	ext := filepath.Ext(path)
	if ext == "" {
		return path + ".xmp"
	}
	return strings.TrimSuffix(path, ext) + ".xmp"
}

// HasGPS reports whether the sidecar at path already carries GPS tags.
// A missing sidecar has none.
func HasGPS(path string) (bool, error) {
	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read existing sidecar: %w", err)
	}
	return hasGPSData(existing), nil
}

// MergeAndWrite updates or creates an XMP sidecar with GPS and place tags, preserving other tags.
// It returns ErrGPSAlreadyPresent when GPS exists and overwrite is false.
func MergeAndWrite(path string, coord location.Coordinate, place location.Place, ts time.Time, overwrite bool) (bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read existing sidecar: %w", err)
	}

	if !overwrite && len(existing) > 0 && hasGPSData(existing) {
		return false, ErrGPSAlreadyPresent
	}

	payload, err := mergeSidecar(existing, coord, place, ts)
	if err != nil {
		return false, err
	}
	if bytes.Equal(payload, existing) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create sidecar dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func mergeSidecar(existing []byte, coord location.Coordinate, place location.Place, ts time.Time) ([]byte, error) {
	if len(bytes.TrimSpace(existing)) == 0 {
		return BuildSidecar(coord, place, ts), nil
	}
	return mergeInPlace(existing, coord, place, ts)
}

var descriptionTagRegex = regexp.MustCompile(`(?is)<rdf:Description\b[^>]*>`)
var managedAttrRegex = regexp.MustCompile(`(?is)\s+(?:exif:GPS(?:Latitude|LatitudeRef|Longitude|LongitudeRef|Altitude|AltitudeRef|VersionID|DateStamp|TimeStamp)|photoshop:(?:City|Country)|Iptc4xmpCore:CountryCode)\s*=\s*("[^"]*"|'[^']*')`)

func mergeInPlace(existing []byte, coord location.Coordinate, place location.Place, ts time.Time) ([]byte, error) {
	text := string(existing)
	loc := descriptionTagRegex.FindStringIndex(text)
	if loc == nil {
		return nil, fmt.Errorf("rdf:Description tag not found")
	}

	tag := text[loc[0]:loc[1]]
	clean := managedAttrRegex.ReplaceAllString(tag, "")

	attrs := make([]string, 0, len(namespaces)+12)
	for _, ns := range namespaces {
		if !ns.decl.MatchString(clean) {
			attrs = append(attrs, fmt.Sprintf(`xmlns:%s="%s"`, ns.prefix, ns.uri))
		}
	}
	attrs = append(attrs, locationAttributes(coord, place, ts)...)

	updatedTag, err := insertTagAttributes(clean, attrs)
	if err != nil {
		return nil, err
	}

	updated := text[:loc[0]] + updatedTag + text[loc[1]:]
	// Element-form values elsewhere would shadow the attributes just written.
	updated = stripManagedElements(updated)

	return []byte(updated), nil
}

func insertTagAttributes(tag string, attrs []string) (string, error) {
	if len(attrs) == 0 {
		return tag, nil
	}

	closeIdx := strings.LastIndex(tag, ">")
	if closeIdx == -1 {
		return "", fmt.Errorf("invalid rdf:Description tag")
	}

	prefix := tag[:closeIdx]
	suffix := tag[closeIdx:]
	if strings.HasSuffix(prefix, "/") {
		prefix = strings.TrimSuffix(prefix, "/")
		suffix = "/>"
	}

	if strings.Contains(prefix, "\n") {
		indent := guessAttributeIndent(prefix)
		var b strings.Builder
		b.WriteString(prefix)
		for _, attr := range attrs {
			b.WriteString("\n")
			b.WriteString(indent)
			b.WriteString(attr)
		}
		b.WriteString(suffix)
		return b.String(), nil
	}

	return prefix + " " + strings.Join(attrs, " ") + suffix, nil
}

func guessAttributeIndent(prefix string) string {
	lines := strings.Split(prefix, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		for i, r := range line {
			if r != ' ' && r != '\t' {
				return line[:i]
			}
		}
		return line
	}
	return "  "
}

func stripManagedElements(text string) string {
	for _, re := range managedElementRegexes {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

func hasGPSData(data []byte) bool {
	text := strings.ToLower(string(data))
	for _, tag := range []string{
		"<exif:gpslatitude",
		"exif:gpslatitude=",
		"<exif:gpslongitude",
		"exif:gpslongitude=",
	} {
		if strings.Contains(text, tag) {
			return true
		}
	}
	return false
}

var managedElementRegexes = func() []*regexp.Regexp {
	names := []string{
		"exif:GPSLatitudeRef", "exif:GPSLatitude",
		"exif:GPSLongitudeRef", "exif:GPSLongitude",
		"exif:GPSAltitudeRef", "exif:GPSAltitude",
		"exif:GPSVersionID", "exif:GPSDateStamp", "exif:GPSTimeStamp",
		"photoshop:City", "photoshop:Country", "Iptc4xmpCore:CountryCode",
	}
	out := make([]*regexp.Regexp, 0, len(names))
	for _, name := range names {
		out = append(out, regexp.MustCompile(`(?is)\s*<`+name+`\b[^>]*>.*?</`+name+`>`))
	}
	return out
}()
