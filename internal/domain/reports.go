package domain

import "math"

// Each feed has its own wire shape. The variants below are fixed, statically
// typed records, one per source kind, each with a Normalize method producing
// the common Snapshot. Adapters decode JSON into a variant and never poke at
// untyped maps.

// SichuanEEWReport is the Sichuan Earthquake Administration warning shape.
// Numeric fields arrive as JSON numbers; an absent magnitude decodes to 0,
// which is treated as missing (a magnitude-zero warning is not a thing).
type SichuanEEWReport struct {
	EventID      string  `json:"EventID"`
	ReportNum    int     `json:"ReportNum"`
	Latitude     float64 `json:"Latitude"`
	Longitude    float64 `json:"Longitude"`
	Magnitude    float64 `json:"Magunitude"` // sic, misspelled upstream
	Depth        float64 `json:"Depth"`
	HypoCenter   string  `json:"HypoCenter"`
	OriginTime   string  `json:"OriginTime"`
	MaxIntensity float64 `json:"MaxIntensity"`
	IsCancel     bool    `json:"isCancel"`
	IsFinal      bool    `json:"isFinal"`
}

// Normalize converts the report to a Snapshot.
func (r SichuanEEWReport) Normalize() Snapshot {
	s := Snapshot{
		EventID:           r.EventID,
		Source:            SourceSichuanEEW,
		Place:             r.HypoCenter,
		Lat:               zeroAsMissing(r.Latitude),
		Lon:               zeroAsMissing(r.Longitude),
		Magnitude:         zeroAsMissing(r.Magnitude),
		Depth:             normalizeDepth(r.Depth),
		OriginTime:        r.OriginTime,
		ReportNo:          r.ReportNum,
		SuppliedIntensity: suppliedIntensity(r.MaxIntensity),
		Cancel:            r.IsCancel,
		Final:             r.IsFinal,
	}
	if s.EventID == "" {
		s.EventID = SynthesizeID(s.Source, s.OriginTime, s.Lat, s.Lon)
	}
	return s
}

// ICLEEWReport is the Institute of Care-Life warning shape. Every numeric
// field arrives as a string.
type ICLEEWReport struct {
	ID        string `json:"id"`
	Updates   int    `json:"updates"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Magnitude string `json:"magnitude"`
	Depth     string `json:"depth"`
	Epicenter string `json:"epicenter"`
	StartAt   string `json:"startAt"`
	Intensity string `json:"epiIntensity"`
	Cancelled bool   `json:"cancelled"`
	Final     bool   `json:"final"`
}

// Normalize converts the report to a Snapshot.
func (r ICLEEWReport) Normalize() Snapshot {
	s := Snapshot{
		EventID:           r.ID,
		Source:            SourceICLEEW,
		Place:             r.Epicenter,
		Lat:               parseFloatOrNaN(r.Latitude),
		Lon:               parseFloatOrNaN(r.Longitude),
		Magnitude:         parseFloatOrNaN(r.Magnitude),
		Depth:             normalizeDepth(parseFloatOrNaN(r.Depth)),
		OriginTime:        r.StartAt,
		ReportNo:          r.Updates,
		SuppliedIntensity: suppliedIntensity(parseFloatOrNaN(r.Intensity)),
		Cancel:            r.Cancelled,
		Final:             r.Final,
	}
	if s.EventID == "" {
		s.EventID = SynthesizeID(s.Source, s.OriginTime, s.Lat, s.Lon)
	}
	return s
}

// CEAEEWReport is the national warning shape. Status encodes the lifecycle
// flags as an enum instead of booleans.
type CEAEEWReport struct {
	EventID   string  `json:"eventId"`
	ReportNo  int     `json:"reportNo"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Mag       float64 `json:"mag"`
	Depth     float64 `json:"depth"`
	PlaceName string  `json:"placeName"`
	ShockTime string  `json:"shockTime"`
	MaxInt    float64 `json:"maxInt"`
	Status    int     `json:"status"` // 0 in progress, 1 final report, 2 cancelled
}

// Normalize converts the report to a Snapshot.
func (r CEAEEWReport) Normalize() Snapshot {
	s := Snapshot{
		EventID:           r.EventID,
		Source:            SourceCEAEEW,
		Place:             r.PlaceName,
		Lat:               zeroAsMissing(r.Lat),
		Lon:               zeroAsMissing(r.Lon),
		Magnitude:         zeroAsMissing(r.Mag),
		Depth:             normalizeDepth(r.Depth),
		OriginTime:        r.ShockTime,
		ReportNo:          r.ReportNo,
		SuppliedIntensity: suppliedIntensity(r.MaxInt),
		Cancel:            r.Status == 2,
		Final:             r.Status == 1,
	}
	if s.EventID == "" {
		s.EventID = SynthesizeID(s.Source, s.OriginTime, s.Lat, s.Lon)
	}
	return s
}

// CENCQuake is one row of the CENC recent-quake catalog. Field names follow
// the upstream API verbatim; all values are strings.
type CENCQuake struct {
	CataID   string `json:"CATA_ID"`
	OTime    string `json:"O_TIME"`
	EpiLat   string `json:"EPI_LAT"`
	EpiLon   string `json:"EPI_LON"`
	EpiDepth string `json:"EPI_DEPTH"`
	Mag      string `json:"M"`
	Location string `json:"LOCATION_C"`
}

// Normalize promotes a catalog row to a Snapshot. Catalog rows are located
// quakes, never cancellations, and carry no intensity.
func (r CENCQuake) Normalize() Snapshot {
	s := Snapshot{
		EventID:           r.CataID,
		Source:            SourceCENC,
		Place:             r.Location,
		Lat:               parseFloatOrNaN(r.EpiLat),
		Lon:               parseFloatOrNaN(r.EpiLon),
		Magnitude:         parseFloatOrNaN(r.Mag),
		Depth:             normalizeDepth(parseFloatOrNaN(r.EpiDepth)),
		OriginTime:        r.OTime,
		SuppliedIntensity: IntensityUnknown,
	}
	if s.EventID == "" {
		s.EventID = SynthesizeID(s.Source, s.OriginTime, s.Lat, s.Lon)
	}
	return s
}

// HistoryEntry converts a catalog row for the earthquake list.
func (r CENCQuake) HistoryEntry() HistoryEntry {
	s := r.Normalize()
	return HistoryEntry{
		ID:         s.EventID,
		Place:      s.Place,
		Magnitude:  s.Magnitude,
		Depth:      s.Depth,
		Lat:        s.Lat,
		Lon:        s.Lon,
		OriginTime: s.OriginTime,
	}
}

// TestReport is a manually injected drill, posted to the inject endpoint.
type TestReport struct {
	EventID    string  `json:"event_id,omitempty"`
	Place      string  `json:"place"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Magnitude  float64 `json:"magnitude"`
	Depth      float64 `json:"depth"`
	OriginTime string  `json:"origin_time"`
	Cancel     bool    `json:"cancel"`
	Final      bool    `json:"final"`
}

// Normalize converts the drill to a Snapshot.
func (r TestReport) Normalize() Snapshot {
	s := Snapshot{
		EventID:           r.EventID,
		Source:            SourceTest,
		Place:             r.Place,
		Lat:               zeroAsMissing(r.Lat),
		Lon:               zeroAsMissing(r.Lon),
		Magnitude:         zeroAsMissing(r.Magnitude),
		Depth:             normalizeDepth(r.Depth),
		OriginTime:        r.OriginTime,
		SuppliedIntensity: IntensityUnknown,
	}
	s.Cancel = r.Cancel
	s.Final = r.Final
	if s.EventID == "" {
		s.EventID = SynthesizeID(s.Source, s.OriginTime, s.Lat, s.Lon)
	}
	return s
}

// zeroAsMissing maps the JSON zero value of numeric feed fields to NaN.
// A true zero latitude or magnitude never occurs in these feeds, while an
// omitted field always decodes to 0.
func zeroAsMissing(v float64) float64 {
	if v == 0 {
		return math.NaN()
	}
	return v
}

// suppliedIntensity converts a feed-reported intensity to the internal
// representation: non-positive or unparseable values mean "not provided".
func suppliedIntensity(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return IntensityUnknown
	}
	i := int(math.Round(v))
	if i > 12 {
		i = 12
	}
	return i
}
