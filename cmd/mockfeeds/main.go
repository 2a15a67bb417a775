// Command mockfeeds serves local stand-ins for all four upstream feeds,
// replaying a scripted warning scenario for manual testing. It uses the
// actual domain report types so the wire shapes match real feed behavior.
//
// Usage:
//
//	go run ./cmd/mockfeeds -addr :9000 -delay 10s -reports 5 -report-every 5s
//
// Point the service at it with:
//
//	FEED_SC_URL=http://localhost:9000/sc_eew.json \
//	FEED_ICL_URL=http://localhost:9000/v1/earlywarnings \
//	FEED_CEA_URL=http://localhost:9000/cea_eew.json \
//	FEED_CENC_URL=http://localhost:9000/quakenews
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/quakewatch/eew-alert-service/internal/domain"
)

type scenario struct {
	start       time.Time
	delay       time.Duration
	reports     int
	reportEvery time.Duration
	loop        bool

	lat       float64
	lon       float64
	depth     float64
	magnitude float64
	place     string
}

// phase returns the current report number, or 0 while idle. The final report
// number carries the final flag.
func (sc *scenario) phase(now time.Time) int {
	elapsed := now.Sub(sc.start)
	if sc.loop {
		cycle := sc.delay + time.Duration(sc.reports)*sc.reportEvery + sc.delay
		elapsed %= cycle
	}
	if elapsed < sc.delay {
		return 0
	}
	n := int((elapsed-sc.delay)/sc.reportEvery) + 1
	if n > sc.reports {
		return 0
	}
	return n
}

// mag grows slightly across reports, the way real warnings get revised.
func (sc *scenario) mag(report int) float64 {
	return sc.magnitude + 0.1*float64(report-1)
}

func (sc *scenario) originTime() string {
	return sc.start.Add(sc.delay).Format("2006-01-02 15:04:05")
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":9000", "listen address")
	delay := flag.Duration("delay", 10*time.Second, "idle period before the first report")
	reports := flag.Int("reports", 5, "number of reports in the scenario")
	reportEvery := flag.Duration("report-every", 5*time.Second, "spacing between reports")
	loop := flag.Bool("loop", false, "restart the scenario after it completes")
	lat := flag.Float64("lat", 31.0, "epicenter latitude")
	lon := flag.Float64("lon", 103.4, "epicenter longitude")
	depth := flag.Float64("depth", 14, "hypocenter depth in km")
	magnitude := flag.Float64("magnitude", 6.2, "initial magnitude estimate")
	place := flag.String("place", "Wenchuan, Sichuan", "epicenter place name")
	flag.Parse()

	if *reports < 1 {
		return fmt.Errorf("-reports must be at least 1")
	}

	sc := &scenario{
		start:       time.Now(),
		delay:       *delay,
		reports:     *reports,
		reportEvery: *reportEvery,
		loop:        *loop,
		lat:         *lat,
		lon:         *lon,
		depth:       *depth,
		magnitude:   *magnitude,
		place:       *place,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sc_eew.json", serveSichuan(sc))
	mux.HandleFunc("GET /v1/earlywarnings", serveICL(sc))
	mux.HandleFunc("GET /cea_eew.json", serveCEA(sc))
	mux.HandleFunc("GET /quakenews", serveCENC(sc))

	log.Printf("mock feeds listening on %s (first report in %s, %d reports every %s)",
		*addr, *delay, *reports, *reportEvery)
	return http.ListenAndServe(*addr, mux)
}

func serveSichuan(sc *scenario) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := sc.phase(time.Now())
		if n == 0 {
			writeJSON(w, struct{}{})
			return
		}
		writeJSON(w, domain.SichuanEEWReport{
			EventID:    "mock-" + sc.originTime(),
			ReportNum:  n,
			Latitude:   sc.lat,
			Longitude:  sc.lon,
			Magnitude:  sc.mag(n),
			Depth:      sc.depth,
			HypoCenter: sc.place,
			OriginTime: sc.originTime(),
			IsFinal:    n == sc.reports,
		})
	}
}

func serveICL(sc *scenario) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := sc.phase(time.Now())
		if n == 0 {
			writeJSON(w, struct{}{})
			return
		}
		writeJSON(w, domain.ICLEEWReport{
			ID:        "mock-icl-" + sc.originTime(),
			Updates:   n,
			Latitude:  formatFloat(sc.lat),
			Longitude: formatFloat(sc.lon),
			Magnitude: formatFloat(sc.mag(n)),
			Depth:     formatFloat(sc.depth),
			Epicenter: sc.place,
			StartAt:   sc.originTime(),
			Final:     n == sc.reports,
		})
	}
}

func serveCEA(sc *scenario) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := sc.phase(time.Now())
		if n == 0 {
			writeJSON(w, struct{}{})
			return
		}
		status := 0
		if n == sc.reports {
			status = 1
		}
		writeJSON(w, domain.CEAEEWReport{
			EventID:   "mock-cea-" + sc.originTime(),
			ReportNo:  n,
			Lat:       sc.lat,
			Lon:       sc.lon,
			Mag:       sc.mag(n),
			Depth:     sc.depth,
			PlaceName: sc.place,
			ShockTime: sc.originTime(),
			Status:    status,
		})
	}
}

func serveCENC(sc *scenario) http.HandlerFunc {
	catalog := []domain.CENCQuake{
		{CataID: "CC20260815001", OTime: "2026-08-15 03:12:44", EpiLat: "29.61", EpiLon: "102.08", EpiDepth: "12", Mag: "4.1", Location: "Ya'an, Sichuan"},
		{CataID: "CC20260821002", OTime: "2026-08-21 18:40:09", EpiLat: "32.75", EpiLon: "104.22", EpiDepth: "20", Mag: "3.6", Location: "Jiuzhaigou, Sichuan"},
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		records := catalog
		if n := sc.phase(time.Now()); n == sc.reports {
			// The scenario quake reaches the catalog with its final report.
			records = append([]domain.CENCQuake{{
				CataID:   "CC-mock-" + sc.originTime(),
				OTime:    sc.originTime(),
				EpiLat:   formatFloat(sc.lat),
				EpiLon:   formatFloat(sc.lon),
				EpiDepth: formatFloat(sc.depth),
				Mag:      formatFloat(sc.mag(n)),
				Location: sc.place,
			}}, catalog...)
		}
		writeJSON(w, map[string]any{"records": records})
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
