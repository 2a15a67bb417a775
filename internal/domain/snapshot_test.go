package domain

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceKind(t *testing.T) {
	t.Run("valid kinds", func(t *testing.T) {
		for _, k := range []SourceKind{SourceSichuanEEW, SourceICLEEW, SourceCEAEEW, SourceCENC, SourceTest} {
			assert.True(t, k.Valid(), string(k))
			assert.NotEmpty(t, k.AgencyLabel())
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		assert.False(t, SourceKind("jma-eew").Valid())
	})
}

func TestSichuanEEWReportNormalize(t *testing.T) {
	t.Run("complete report", func(t *testing.T) {
		r := SichuanEEWReport{
			EventID:      "20260830123456",
			ReportNum:    3,
			Latitude:     31.02,
			Longitude:    103.61,
			Magnitude:    6.8,
			Depth:        14,
			HypoCenter:   "Wenchuan, Sichuan",
			OriginTime:   "2026-08-30 12:34:56",
			MaxIntensity: 9,
		}
		s := r.Normalize()

		assert.Equal(t, "20260830123456", s.EventID)
		assert.Equal(t, SourceSichuanEEW, s.Source)
		assert.Equal(t, 31.02, s.Lat)
		assert.Equal(t, 103.61, s.Lon)
		assert.Equal(t, 6.8, s.Magnitude)
		assert.Equal(t, 14.0, s.Depth)
		assert.Equal(t, 3, s.ReportNo)
		assert.Equal(t, 9, s.SuppliedIntensity)
		assert.True(t, s.Locatable())
		assert.False(t, s.Cancel)
		assert.False(t, s.Final)
	})

	t.Run("missing magnitude is not locatable", func(t *testing.T) {
		r := SichuanEEWReport{EventID: "x", Latitude: 31, Longitude: 103}
		s := r.Normalize()

		assert.True(t, math.IsNaN(s.Magnitude))
		assert.False(t, s.Locatable())
	})

	t.Run("missing depth defaults to 10km", func(t *testing.T) {
		r := SichuanEEWReport{EventID: "x", Latitude: 31, Longitude: 103, Magnitude: 5}
		assert.Equal(t, DefaultDepthKm, r.Normalize().Depth)
	})

	t.Run("missing event ID is synthesized deterministically", func(t *testing.T) {
		r := SichuanEEWReport{Latitude: 31, Longitude: 103, Magnitude: 5, OriginTime: "2026-08-30 12:34:56"}
		s1 := r.Normalize()
		s2 := r.Normalize()

		require.NotEmpty(t, s1.EventID)
		assert.True(t, strings.HasPrefix(s1.EventID, "sc-eew-"))
		assert.Equal(t, s1.EventID, s2.EventID)
	})

	t.Run("cancel flag survives", func(t *testing.T) {
		r := SichuanEEWReport{EventID: "x", IsCancel: true}
		assert.True(t, r.Normalize().Cancel)
	})
}

func TestICLEEWReportNormalize(t *testing.T) {
	t.Run("string fields parse", func(t *testing.T) {
		r := ICLEEWReport{
			ID:        "icl-778",
			Updates:   2,
			Latitude:  "30.55",
			Longitude: "104.07",
			Magnitude: "5.2",
			Depth:     "18",
			Epicenter: "Longquanyi, Chengdu",
			StartAt:   "2026-08-30 09:12:01",
			Intensity: "6",
		}
		s := r.Normalize()

		assert.Equal(t, SourceICLEEW, s.Source)
		assert.Equal(t, 30.55, s.Lat)
		assert.Equal(t, 5.2, s.Magnitude)
		assert.Equal(t, 18.0, s.Depth)
		assert.Equal(t, 6, s.SuppliedIntensity)
		assert.True(t, s.Locatable())
	})

	t.Run("garbage numerics degrade to missing", func(t *testing.T) {
		r := ICLEEWReport{ID: "icl-779", Latitude: "n/a", Longitude: "", Magnitude: "??", Depth: "-3", Intensity: "x"}
		s := r.Normalize()

		assert.True(t, math.IsNaN(s.Lat))
		assert.True(t, math.IsNaN(s.Lon))
		assert.True(t, math.IsNaN(s.Magnitude))
		assert.Equal(t, DefaultDepthKm, s.Depth)
		assert.Equal(t, IntensityUnknown, s.SuppliedIntensity)
		assert.False(t, s.Locatable())
	})
}

func TestCEAEEWReportNormalize(t *testing.T) {
	tests := []struct {
		name   string
		status int
		cancel bool
		final  bool
	}{
		{"in progress", 0, false, false},
		{"final report", 1, false, true},
		{"cancelled", 2, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CEAEEWReport{EventID: "cea-1", Lat: 31, Lon: 103, Mag: 6, Status: tt.status}
			s := r.Normalize()
			assert.Equal(t, tt.cancel, s.Cancel)
			assert.Equal(t, tt.final, s.Final)
		})
	}
}

func TestCENCQuakeNormalize(t *testing.T) {
	r := CENCQuake{
		CataID:   "CC20260830061800",
		OTime:    "2026-08-30 06:18:00",
		EpiLat:   "31.00",
		EpiLon:   "103.00",
		EpiDepth: "20",
		Mag:      "6.8",
		Location: "Wenchuan, Sichuan",
	}

	t.Run("promoted to snapshot", func(t *testing.T) {
		s := r.Normalize()

		assert.Equal(t, "CC20260830061800", s.EventID)
		assert.Equal(t, SourceCENC, s.Source)
		assert.True(t, s.Locatable())
		assert.Equal(t, IntensityUnknown, s.SuppliedIntensity)
		assert.False(t, s.Cancel)
		assert.False(t, s.Final)
	})

	t.Run("history entry mirrors normalized values", func(t *testing.T) {
		e := r.HistoryEntry()

		assert.Equal(t, "CC20260830061800", e.ID)
		assert.Equal(t, "Wenchuan, Sichuan", e.Place)
		assert.Equal(t, 6.8, e.Magnitude)
		assert.Equal(t, 20.0, e.Depth)
	})
}

func TestTestReportNormalize(t *testing.T) {
	r := TestReport{Place: "Drill epicenter", Lat: 31, Lon: 103, Magnitude: 6.8, Depth: 20}
	s := r.Normalize()

	assert.Equal(t, SourceTest, s.Source)
	assert.True(t, strings.HasPrefix(s.EventID, "test-"))
	assert.True(t, s.Locatable())
}

func TestDeriveFields(t *testing.T) {
	t.Run("intensity recomputed from magnitude and depth", func(t *testing.T) {
		s := Snapshot{
			Source: SourceSichuanEEW, Place: "Wenchuan, Sichuan",
			Lat: 31, Lon: 103, Magnitude: 6.8, Depth: 10,
			SuppliedIntensity: 3, // deliberately contradicts the estimate
			ReportNo:          2, OriginTime: "2026-08-30 12:34:56",
		}

		expected := AlertFields{
			Place:      "Wenchuan, Sichuan",
			Agency:     "Sichuan EEW",
			Magnitude:  6.8,
			Depth:      10,
			Intensity:  10, // estimator wins over supplied value
			ReportNo:   2,
			OriginTime: "2026-08-30 12:34:56",
		}
		if diff := cmp.Diff(expected, DeriveFields(s)); diff != "" {
			t.Errorf("DeriveFields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("supplied intensity used below the estimator floor", func(t *testing.T) {
		s := Snapshot{Source: SourceICLEEW, Lat: 31, Lon: 103, Magnitude: 2.5, Depth: 10, SuppliedIntensity: 2}
		assert.Equal(t, 2, DeriveFields(s).Intensity)
	})

	t.Run("unknown when nothing usable", func(t *testing.T) {
		s := Snapshot{Source: SourceICLEEW, Lat: 31, Lon: 103, Magnitude: 2.5, Depth: 10, SuppliedIntensity: IntensityUnknown}
		f := DeriveFields(s)
		assert.Equal(t, IntensityUnknown, f.Intensity)
		assert.Equal(t, "unknown", f.IntensityLabel())
	})
}

func TestSynthesizeID(t *testing.T) {
	a := SynthesizeID(SourceICLEEW, "2026-08-30 09:12:01", 30.55, 104.07)
	b := SynthesizeID(SourceICLEEW, "2026-08-30 09:12:01", 30.55, 104.07)
	c := SynthesizeID(SourceICLEEW, "2026-08-30 09:12:02", 30.55, 104.07)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "icl-eew-"))
}
