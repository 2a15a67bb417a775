package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SourceKind identifies which feed produced a report.
type SourceKind string

const (
	SourceSichuanEEW SourceKind = "sc-eew"
	SourceICLEEW     SourceKind = "icl-eew"
	SourceCEAEEW     SourceKind = "cea-eew"
	SourceCENC       SourceKind = "cenc"
	SourceTest       SourceKind = "test"
)

// IntensityUnknown is the sentinel for "no usable intensity".
const IntensityUnknown = -1

// DefaultDepthKm substitutes for missing or non-positive depths.
const DefaultDepthKm = 10.0

// Valid reports whether k is a recognized feed kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceSichuanEEW, SourceICLEEW, SourceCEAEEW, SourceCENC, SourceTest:
		return true
	}
	return false
}

// AgencyLabel returns the display name for the issuing agency.
func (k SourceKind) AgencyLabel() string {
	switch k {
	case SourceSichuanEEW:
		return "Sichuan EEW"
	case SourceICLEEW:
		return "ICL EEW"
	case SourceCEAEEW:
		return "CEA EEW"
	case SourceCENC:
		return "CENC"
	case SourceTest:
		return "Drill"
	}
	return string(k)
}

// Snapshot is the normalized form of one feed report. Lat, Lon and Magnitude
// are NaN when the feed omitted them or they failed to parse.
type Snapshot struct {
	EventID           string
	Source            SourceKind
	Place             string
	Lat               float64
	Lon               float64
	Magnitude         float64
	Depth             float64 // km, defaulted via DefaultDepthKm
	OriginTime        string  // opaque display string
	ReportNo          int
	SuppliedIntensity int // IntensityUnknown when not provided
	Cancel            bool
	Final             bool
}

// Locatable reports whether the snapshot carries everything needed to place
// an alert on the map: finite latitude, longitude and magnitude.
func (s Snapshot) Locatable() bool {
	return !math.IsNaN(s.Lat) && !math.IsNaN(s.Lon) && !math.IsNaN(s.Magnitude)
}

// AlertFields is the displayable record derived from a snapshot. It is the
// content of an alert banner; the reconciler replaces it wholesale on update.
type AlertFields struct {
	Place      string  `json:"place"`
	Agency     string  `json:"agency"`
	Magnitude  float64 `json:"magnitude"`
	Depth      float64 `json:"depth_km"`
	Intensity  int     `json:"intensity"` // IntensityUnknown when not derivable
	ReportNo   int     `json:"report_no"`
	OriginTime string  `json:"origin_time"`
}

// IntensityLabel renders the intensity class for display.
func (f AlertFields) IntensityLabel() string {
	if f.Intensity == IntensityUnknown {
		return "unknown"
	}
	return strconv.Itoa(f.Intensity)
}

// DeriveFields builds the displayable record for a locatable snapshot.
// Intensity is recomputed from magnitude and depth whenever the magnitude is
// usable; the feed-supplied value is only a fallback for non-locatable data
// paths, so in practice it applies when the estimator declines (M < 3).
func DeriveFields(s Snapshot) AlertFields {
	intensity := IntensityUnknown
	switch {
	case !math.IsNaN(s.Magnitude) && s.Magnitude >= 3.0:
		intensity = EstimateIntensity(s.Magnitude, s.Depth)
	case s.SuppliedIntensity >= 0:
		intensity = s.SuppliedIntensity
	}
	return AlertFields{
		Place:      s.Place,
		Agency:     s.Source.AgencyLabel(),
		Magnitude:  s.Magnitude,
		Depth:      s.Depth,
		Intensity:  intensity,
		ReportNo:   s.ReportNo,
		OriginTime: s.OriginTime,
	}
}

// HistoryEntry is one row of the CENC recent-quake catalog, rendered as the
// earthquake list alongside the map.
type HistoryEntry struct {
	ID         string  `json:"id"`
	Place      string  `json:"place"`
	Magnitude  float64 `json:"magnitude"`
	Depth      float64 `json:"depth_km"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	OriginTime string  `json:"origin_time"`
}

// SynthesizeID produces a deterministic identifier for feeds that omit one.
// Hashing source, origin time and epicenter means re-polling the same report
// lands on the same active alert rather than creating a duplicate.
func SynthesizeID(kind SourceKind, originTime string, lat, lon float64) string {
	input := fmt.Sprintf("%s|%s|%.4f|%.4f", kind, originTime, lat, lon)
	hash := sha256.Sum256([]byte(input))
	return string(kind) + "-" + hex.EncodeToString(hash[:8])
}

// parseFloatOrNaN parses a string as float64, returning NaN on failure so the
// absence survives normalization instead of masquerading as coordinate 0.
func parseFloatOrNaN(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// normalizeDepth applies the default for missing or non-positive depths.
func normalizeDepth(depth float64) float64 {
	if math.IsNaN(depth) || depth <= 0 {
		return DefaultDepthKm
	}
	return depth
}
