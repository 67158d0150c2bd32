package location

import (
	"fmt"
	"strings"
)

// Policy controls when reverse geocoding runs and how its answer is merged.
type Policy string

const (
	PolicyOff            Policy = "off"
	PolicyFillMissing    Policy = "fill-missing"
	PolicyAlwaysOverride Policy = "always"
)

// ParsePolicy accepts the policy names used in configuration files.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyOff, PolicyFillMissing, PolicyAlwaysOverride:
		return p, nil
	case "":
		return PolicyFillMissing, nil
	case "always-override", "override":
		return PolicyAlwaysOverride, nil
	case "none", "never":
		return PolicyOff, nil
	default:
		return "", fmt.Errorf("invalid geocode mode %q (expected off, fill-missing or always)", s)
	}
}

// ShouldEnrich reports whether the geocoder has to be called for primary.
func (p Policy) ShouldEnrich(primary Place) bool {
	switch p {
	case PolicyAlwaysOverride:
		return true
	case PolicyFillMissing:
		return !primary.Complete()
	default:
		return false
	}
}

// Merge combines primary place data with geocoder output.
// An empty enriched field never blanks a primary value.
func (p Policy) Merge(primary, enriched Place) Place {
	switch p {
	case PolicyFillMissing:
		return Place{
			Country:     fillMissing(primary.Country, enriched.Country),
			City:        fillMissing(primary.City, enriched.City),
			CountryCode: fillMissing(primary.CountryCode, enriched.CountryCode),
		}
	case PolicyAlwaysOverride:
		return Place{
			Country:     override(primary.Country, enriched.Country),
			City:        override(primary.City, enriched.City),
			CountryCode: override(primary.CountryCode, enriched.CountryCode),
		}
	default:
		return primary
	}
}

func fillMissing(primary, enriched string) string {
	if primary == "" {
		return enriched
	}
	return primary
}

func override(primary, enriched string) string {
	if enriched != "" {
		return enriched
	}
	return primary
}
