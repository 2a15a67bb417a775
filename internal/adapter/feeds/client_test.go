package feeds

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakewatch/eew-alert-service/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSichuanSourceFetch(t *testing.T) {
	t.Run("active warning", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{
			"EventID":"20260830123456","ReportNum":2,
			"Latitude":31.02,"Longitude":103.61,"Magunitude":6.8,"Depth":14,
			"HypoCenter":"Wenchuan, Sichuan","OriginTime":"2026-08-30 12:34:56",
			"MaxIntensity":9,"isCancel":false,"isFinal":false
		}`)
		src := NewSichuanSource(srv.URL, time.Second, testLogger())

		snap, history, err := src.Fetch(context.Background())

		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Nil(t, history)
		assert.Equal(t, "20260830123456", snap.EventID)
		assert.Equal(t, domain.SourceSichuanEEW, snap.Source)
		assert.Equal(t, 6.8, snap.Magnitude)
		assert.True(t, snap.Locatable())
	})

	t.Run("idle feed returns no snapshot", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{}`)
		src := NewSichuanSource(srv.URL, time.Second, testLogger())

		snap, _, err := src.Fetch(context.Background())

		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("http error", func(t *testing.T) {
		srv := serve(t, http.StatusBadGateway, "upstream broken")
		src := NewSichuanSource(srv.URL, time.Second, testLogger())

		_, _, err := src.Fetch(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 502")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"EventID":`)
		src := NewSichuanSource(srv.URL, time.Second, testLogger())

		_, _, err := src.Fetch(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode feed response")
	})
}

func TestICLSourceFetch(t *testing.T) {
	srv := serve(t, http.StatusOK, `{
		"id":"icl-778","updates":1,
		"latitude":"30.55","longitude":"104.07","magnitude":"5.2","depth":"18",
		"epicenter":"Longquanyi, Chengdu","startAt":"2026-08-30 09:12:01","epiIntensity":"6"
	}`)
	src := NewICLSource(srv.URL, time.Second, testLogger())

	snap, _, err := src.Fetch(context.Background())

	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, domain.SourceICLEEW, snap.Source)
	assert.Equal(t, 5.2, snap.Magnitude)
	assert.Equal(t, 6, snap.SuppliedIntensity)
}

func TestCEASourceFetch(t *testing.T) {
	srv := serve(t, http.StatusOK, `{
		"eventId":"cea-42","reportNo":4,"lat":31.0,"lon":103.0,"mag":6.1,"depth":12,
		"placeName":"Wenchuan, Sichuan","shockTime":"2026-08-30 12:34:56","status":1
	}`)
	src := NewCEASource(srv.URL, time.Second, testLogger())

	snap, _, err := src.Fetch(context.Background())

	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, domain.SourceCEAEEW, snap.Source)
	assert.True(t, snap.Final)
}

func TestCENCSourceFetch(t *testing.T) {
	t.Run("catalog with rows", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"records":[
			{"CATA_ID":"CC2","O_TIME":"2026-08-30 06:18:00","EPI_LAT":"31.00","EPI_LON":"103.00","EPI_DEPTH":"20","M":"6.8","LOCATION_C":"Wenchuan, Sichuan"},
			{"CATA_ID":"CC1","O_TIME":"2026-08-29 22:01:10","EPI_LAT":"29.98","EPI_LON":"102.95","EPI_DEPTH":"15","M":"4.2","LOCATION_C":"Ya'an, Sichuan"}
		]}`)
		src := NewCENCSource(srv.URL, time.Second, testLogger())

		snap, history, err := src.Fetch(context.Background())

		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, "CC2", snap.EventID, "newest row is promoted")
		require.Len(t, history, 2)
		assert.Equal(t, "Ya'an, Sichuan", history[1].Place)
	})

	t.Run("empty catalog", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"records":[]}`)
		src := NewCENCSource(srv.URL, time.Second, testLogger())

		snap, history, err := src.Fetch(context.Background())

		require.NoError(t, err)
		assert.Nil(t, snap)
		assert.Empty(t, history)
	})
}
