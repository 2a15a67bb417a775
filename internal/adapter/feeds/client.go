// Package feeds implements the HTTP clients for each polled feed endpoint.
// Each client decodes its agency's wire shape into the matching domain
// variant and returns the normalized snapshot.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/quakewatch/eew-alert-service/internal/domain"
)

// getJSON fetches url and decodes the body into v. Non-2xx statuses and
// malformed bodies are errors; the poller turns them into "no data".
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feed returned status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode feed response: %w", err)
	}
	return nil
}

// SichuanSource polls the Sichuan Earthquake Administration warning feed.
type SichuanSource struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSichuanSource creates the client.
func NewSichuanSource(url string, timeout time.Duration, logger *slog.Logger) *SichuanSource {
	return &SichuanSource{url: url, httpClient: &http.Client{Timeout: timeout}, logger: logger}
}

func (s *SichuanSource) Kind() domain.SourceKind { return domain.SourceSichuanEEW }

// Fetch returns the feed's current warning, or nil when the feed is idle.
func (s *SichuanSource) Fetch(ctx context.Context) (*domain.Snapshot, []domain.HistoryEntry, error) {
	var report domain.SichuanEEWReport
	if err := getJSON(ctx, s.httpClient, s.url, &report); err != nil {
		return nil, nil, err
	}
	if report == (domain.SichuanEEWReport{}) {
		return nil, nil, nil
	}
	snap := report.Normalize()
	return &snap, nil, nil
}

// ICLSource polls the Institute of Care-Life warning feed.
type ICLSource struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewICLSource creates the client.
func NewICLSource(url string, timeout time.Duration, logger *slog.Logger) *ICLSource {
	return &ICLSource{url: url, httpClient: &http.Client{Timeout: timeout}, logger: logger}
}

func (s *ICLSource) Kind() domain.SourceKind { return domain.SourceICLEEW }

// Fetch returns the feed's current warning, or nil when the feed is idle.
func (s *ICLSource) Fetch(ctx context.Context) (*domain.Snapshot, []domain.HistoryEntry, error) {
	var report domain.ICLEEWReport
	if err := getJSON(ctx, s.httpClient, s.url, &report); err != nil {
		return nil, nil, err
	}
	if report == (domain.ICLEEWReport{}) {
		return nil, nil, nil
	}
	snap := report.Normalize()
	return &snap, nil, nil
}

// CEASource polls the national warning feed.
type CEASource struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewCEASource creates the client.
func NewCEASource(url string, timeout time.Duration, logger *slog.Logger) *CEASource {
	return &CEASource{url: url, httpClient: &http.Client{Timeout: timeout}, logger: logger}
}

func (s *CEASource) Kind() domain.SourceKind { return domain.SourceCEAEEW }

// Fetch returns the feed's current warning, or nil when the feed is idle.
func (s *CEASource) Fetch(ctx context.Context) (*domain.Snapshot, []domain.HistoryEntry, error) {
	var report domain.CEAEEWReport
	if err := getJSON(ctx, s.httpClient, s.url, &report); err != nil {
		return nil, nil, err
	}
	if report == (domain.CEAEEWReport{}) {
		return nil, nil, nil
	}
	snap := report.Normalize()
	return &snap, nil, nil
}

// cencResponse wraps the CENC catalog payload.
type cencResponse struct {
	Records []domain.CENCQuake `json:"records"`
}

// CENCSource polls the CENC recent-quake catalog. It returns the full list
// for the earthquake panel and promotes the newest row (the first record) to
// a snapshot so confirmed quakes raise alerts too.
type CENCSource struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewCENCSource creates the client.
func NewCENCSource(url string, timeout time.Duration, logger *slog.Logger) *CENCSource {
	return &CENCSource{url: url, httpClient: &http.Client{Timeout: timeout}, logger: logger}
}

func (s *CENCSource) Kind() domain.SourceKind { return domain.SourceCENC }

// Fetch returns the newest catalog row as a snapshot plus the full list.
func (s *CENCSource) Fetch(ctx context.Context) (*domain.Snapshot, []domain.HistoryEntry, error) {
	var resp cencResponse
	if err := getJSON(ctx, s.httpClient, s.url, &resp); err != nil {
		return nil, nil, err
	}
	if len(resp.Records) == 0 {
		return nil, nil, nil
	}

	entries := make([]domain.HistoryEntry, 0, len(resp.Records))
	for _, rec := range resp.Records {
		entries = append(entries, rec.HistoryEntry())
	}

	snap := resp.Records[0].Normalize()
	return &snap, entries, nil
}
