package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nir0k/mediageo/internal/dawarich"
	"github.com/nir0k/mediageo/internal/location"
	"github.com/nir0k/mediageo/internal/photon"
)

// SourceKind selects where recorded positions come from.
type SourceKind string

const (
	SourceDawarich SourceKind = "dawarich"
	SourceGPX      SourceKind = "gpx"
)

// WriteMode selects where tags end up.
type WriteMode string

const (
	WriteEmbed   WriteMode = "embed"
	WriteSidecar WriteMode = "sidecar"
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Source SourceKind

	DawarichURL       string
	DawarichAPIKey    string
	DawarichPerPage   int
	DawarichRateLimit float64
	PointSchema       dawarich.Schema

	GPXPath string

	PhotonURL       string
	PhotonLang      string
	PhotonRateLimit float64
	GeocoderProps   photon.Properties
	GeocodePolicy   location.Policy
	TimeWindow      time.Duration
	HTTPTimeout     time.Duration
	Timezone        *time.Location
	WriteMode       WriteMode
	OverwriteGPS    bool
	BackupOriginals bool
	Workers         int
}

// lookup resolves keys against the file values with real environment
// variables taking precedence.
type lookup struct {
	file map[string]string
}

// get returns the first non-empty value among keys; later keys are deprecated names.
func (l lookup) get(keys ...string) (string, string, bool) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, key, true
		}
		if v := strings.TrimSpace(l.file[key]); v != "" {
			return v, key, true
		}
	}
	return "", "", false
}

func (l lookup) str(def string, keys ...string) string {
	if v, _, ok := l.get(keys...); ok {
		return v
	}
	return def
}

// Load reads a dotenv-style configuration file (optional when path is empty)
// and returns a validated configuration.
func Load(path string) (Config, error) {
	values := map[string]string{}
	if strings.TrimSpace(path) != "" {
		read, err := godotenv.Read(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		values = read
	}
	return build(lookup{file: values})
}

func build(l lookup) (Config, error) {
	var err error
	cfg := Config{
		Source:         SourceKind(strings.ToLower(l.str(string(SourceDawarich), "SOURCE"))),
		DawarichURL:    l.str("", "DAWARICH_URL", "DAWARICH_HOST"),
		DawarichAPIKey: l.str("", "DAWARICH_API_KEY", "API_KEY"),
		GPXPath:        l.str("", "GPX_PATH"),
		PhotonURL:      l.str(photon.DefaultBaseURL, "PHOTON_URL", "GEOCODER_URL"),
		PhotonLang:     l.str("", "PHOTON_LANG"),
		WriteMode:      WriteMode(strings.ToLower(l.str(string(WriteEmbed), "WRITE_MODE"))),
		PointSchema: dawarich.Schema{
			Latitude:    l.str("", "POINT_LATITUDE_FIELD"),
			Longitude:   l.str("", "POINT_LONGITUDE_FIELD"),
			Altitude:    l.str("", "POINT_ALTITUDE_FIELD"),
			Timestamp:   l.str("", "POINT_TIMESTAMP_FIELD"),
			Country:     l.str("", "POINT_COUNTRY_FIELD"),
			City:        l.str("", "POINT_CITY_FIELD"),
			CountryCode: l.str("", "POINT_COUNTRY_CODE_FIELD"),
		},
		GeocoderProps: photon.Properties{
			Country:     l.str("", "GEOCODER_COUNTRY_FIELD"),
			City:        l.str("", "GEOCODER_CITY_FIELD"),
			CountryCode: l.str("", "GEOCODER_COUNTRY_CODE_FIELD"),
		},
	}

	if cfg.DawarichPerPage, err = intValue(l, 500, "DAWARICH_PER_PAGE"); err != nil {
		return Config{}, err
	}
	if cfg.DawarichRateLimit, err = floatValue(l, 0, "DAWARICH_RATE_LIMIT"); err != nil {
		return Config{}, err
	}
	if cfg.PhotonRateLimit, err = floatValue(l, 1, "PHOTON_RATE_LIMIT"); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = intValue(l, 1, "WORKERS"); err != nil {
		return Config{}, err
	}
	if cfg.OverwriteGPS, err = boolValue(l, false, "OVERWRITE_GPS", "OVERWRITE"); err != nil {
		return Config{}, err
	}
	if cfg.BackupOriginals, err = boolValue(l, false, "BACKUP_ORIGINALS"); err != nil {
		return Config{}, err
	}
	if cfg.TimeWindow, err = durationValue(l, 5*time.Minute, "TIME_WINDOW", "TOLERANCE_SECONDS"); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = durationValue(l, 10*time.Second, "HTTP_TIMEOUT", "TIMEOUT_SECONDS"); err != nil {
		return Config{}, err
	}
	if cfg.GeocodePolicy, err = policyValue(l); err != nil {
		return Config{}, err
	}
	if cfg.Timezone, err = zoneValue(l); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enum values and the settings required by the selected source.
func (c Config) Validate() error {
	switch c.Source {
	case SourceDawarich:
		if c.DawarichURL == "" {
			return fmt.Errorf("DAWARICH_URL is required for the dawarich source")
		}
		if c.DawarichAPIKey == "" {
			return fmt.Errorf("DAWARICH_API_KEY is required for the dawarich source")
		}
	case SourceGPX:
		if c.GPXPath == "" {
			return fmt.Errorf("GPX_PATH is required for the gpx source")
		}
	default:
		return fmt.Errorf("invalid SOURCE %q (expected dawarich or gpx)", c.Source)
	}
	switch c.WriteMode {
	case WriteEmbed, WriteSidecar:
	default:
		return fmt.Errorf("invalid WRITE_MODE %q (expected embed or sidecar)", c.WriteMode)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if c.TimeWindow < 0 {
		return fmt.Errorf("TIME_WINDOW must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func intValue(l lookup, def int, keys ...string) (int, error) {
	raw, key, ok := l.get(keys...)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return v, nil
}

func floatValue(l lookup, def float64, keys ...string) (float64, error) {
	raw, key, ok := l.get(keys...)
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return v, nil
}

func boolValue(l lookup, def bool, keys ...string) (bool, error) {
	raw, key, ok := l.get(keys...)
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, raw)
	}
	return v, nil
}

// durationValue accepts Go durations for the current key and plain seconds
// for any key, which is how the deprecated names stored them.
func durationValue(l lookup, def time.Duration, keys ...string) (time.Duration, error) {
	raw, key, ok := l.get(keys...)
	if !ok {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func policyValue(l lookup) (location.Policy, error) {
	if raw, _, ok := l.get("GEOCODE_MODE"); ok {
		return location.ParsePolicy(raw)
	}
	if raw, key, ok := l.get("ALWAYS_GEOCODE"); ok {
		always, err := strconv.ParseBool(raw)
		if err != nil {
			return "", fmt.Errorf("%s: invalid boolean %q", key, raw)
		}
		if always {
			return location.PolicyAlwaysOverride, nil
		}
		return location.PolicyFillMissing, nil
	}
	return location.PolicyFillMissing, nil
}

func zoneValue(l lookup) (*time.Location, error) {
	raw, key, ok := l.get("TIMEZONE", "TZ_NAME")
	if !ok || strings.EqualFold(raw, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return loc, nil
}
