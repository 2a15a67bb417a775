package ws

import "github.com/quakewatch/eew-alert-service/internal/domain"

// Command op names. The browser client switches on Op and applies the
// operation to its Leaflet layer or banner DOM.
const (
	OpBannerRender   = "banner_render"
	OpBannerUpdate   = "banner_update"
	OpBannerRemove   = "banner_remove"
	OpQuakeList      = "quake_list"
	OpPlaceEpicenter = "place_epicenter"
	OpAddWave        = "add_wave"
	OpSetWaveRadius  = "set_wave_radius"
	OpSetWaveOpacity = "set_wave_opacity"
	OpRemoveObjects  = "remove_objects"
	OpFitView        = "fit_view"
	OpResetView      = "reset_view"
)

// Command is one render instruction pushed to every connected viewer.
// Fields are populated per Op; the rest stay at their zero value and are
// omitted from the wire form.
type Command struct {
	Op string `json:"op"`

	EventID string              `json:"event_id,omitempty"`
	Banner  string              `json:"banner,omitempty"`
	Fields  *domain.AlertFields `json:"fields,omitempty"`
	FadeMs  int                 `json:"fade_ms,omitempty"`

	Entries []domain.HistoryEntry `json:"entries,omitempty"`

	Handle  string   `json:"handle,omitempty"`
	Handles []string `json:"handles,omitempty"`
	Lat     float64  `json:"lat,omitempty"`
	Lon     float64  `json:"lon,omitempty"`
	// Radius and opacities are not omitempty: zero is a meaningful value for
	// all three (a fully faded front still gets its final restyle).
	Radius float64 `json:"radius_m"`
	Stroke float64 `json:"stroke_opacity"`
	Fill   float64 `json:"fill_opacity"`
	Padding int      `json:"padding,omitempty"`
	Zoom    int      `json:"zoom,omitempty"`
}
