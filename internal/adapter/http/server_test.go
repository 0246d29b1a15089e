package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/firewatch-service/internal/domain"
	"github.com/emberline/firewatch-service/internal/imagery"
	"github.com/emberline/firewatch-service/internal/store"
)

type stubReady struct{ err error }

func (s stubReady) CheckReadiness(context.Context) error { return s.err }

type stubStore struct {
	recent       []domain.Detection
	recentHours  int
	recentMinC   float64
	recentLimit  int
	nearby       []domain.Detection
	nearbyCenter domain.GeoPoint
	nearbyRadius float64
	nearbyDays   int
	stats        store.Statistics
	err          error
}

func (s *stubStore) QueryRecent(_ context.Context, hours int, minConfidence float64, limit int) ([]domain.Detection, error) {
	s.recentHours, s.recentMinC, s.recentLimit = hours, minConfidence, limit
	return s.recent, s.err
}

func (s *stubStore) QueryByLocation(_ context.Context, center domain.GeoPoint, radiusKm float64, days int) ([]domain.Detection, error) {
	s.nearbyCenter, s.nearbyRadius, s.nearbyDays = center, radiusKm, days
	return s.nearby, s.err
}

func (s *stubStore) Stats(_ context.Context, days int) (store.Statistics, error) {
	if s.err != nil {
		return store.Statistics{}, s.err
	}
	st := s.stats
	st.PeriodDays = days
	return st, nil
}

type stubFetcher struct {
	blob   []byte
	ok     bool
	params imagery.FetchParams
}

func (s *stubFetcher) Fetch(_ context.Context, params imagery.FetchParams) ([]byte, bool) {
	s.params = params
	return s.blob, s.ok
}

func newTestServer(ready ReadinessChecker, detections DetectionStore, fetcher ImageryFetcher) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", ready, detections, fetcher, logger)
}

func doRequest(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(stubReady{}, &stubStore{}, &stubFetcher{})

	rec := doRequest(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestServer_Ready(t *testing.T) {
	srv := newTestServer(stubReady{}, &stubStore{}, &stubFetcher{})
	rec := doRequest(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = newTestServer(stubReady{err: errors.New("not yet")}, &stubStore{}, &stubFetcher{})
	rec = doRequest(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not yet", decodeBody(t, rec)["error"])
}

func TestServer_Recent(t *testing.T) {
	st := &stubStore{recent: []domain.Detection{
		{
			DetectionTime: time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC),
			Location:      domain.GeoPoint{Lat: 38.5, Lon: -120.5},
			Confidence:    0.9,
			Source:        "VIIRS_SNPP_NRT",
		},
	}}
	srv := newTestServer(stubReady{}, st, &stubFetcher{})

	rec := doRequest(t, srv, "/api/detections/recent?hours=48&min_confidence=0.7&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 48, st.recentHours)
	assert.InDelta(t, 0.7, st.recentMinC, 1e-9)
	assert.Equal(t, 10, st.recentLimit)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])
	detections := body["detections"].([]any)
	first := detections[0].(map[string]any)
	assert.Equal(t, "VIIRS_SNPP_NRT", first["source"])
	assert.Equal(t, "2026-08-15T14:30:00Z", first["timestamp"])
}

func TestServer_Recent_Defaults(t *testing.T) {
	st := &stubStore{}
	srv := newTestServer(stubReady{}, st, &stubFetcher{})

	rec := doRequest(t, srv, "/api/detections/recent")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 24, st.recentHours)
	assert.Zero(t, st.recentMinC)
	assert.Equal(t, 100, st.recentLimit)
}

func TestServer_Nearby(t *testing.T) {
	st := &stubStore{nearby: []domain.Detection{{Confidence: 0.8}}}
	srv := newTestServer(stubReady{}, st, &stubFetcher{})

	rec := doRequest(t, srv, "/api/detections/nearby?coordinates=38.5,-120.5&radius_km=75&days=7")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, domain.GeoPoint{Lat: 38.5, Lon: -120.5}, st.nearbyCenter)
	assert.InDelta(t, 75, st.nearbyRadius, 1e-9)
	assert.Equal(t, 7, st.nearbyDays)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])
}

func TestServer_Nearby_BadCoordinates(t *testing.T) {
	srv := newTestServer(stubReady{}, &stubStore{}, &stubFetcher{})

	for _, coords := range []string{"", "38.5", "38.5,-120.5,7", "91,-120.5", "nope,-120.5"} {
		rec := doRequest(t, srv, "/api/detections/nearby?coordinates="+coords)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "coordinates=%q", coords)
	}
}

func TestServer_Nearby_ClampsRadius(t *testing.T) {
	st := &stubStore{}
	srv := newTestServer(stubReady{}, st, &stubFetcher{})

	rec := doRequest(t, srv, "/api/detections/nearby?coordinates=38.5,-120.5&radius_km=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, domain.MaxRadiusKm, st.nearbyRadius, 1e-9)
}

func TestServer_Statistics(t *testing.T) {
	st := &stubStore{stats: store.Statistics{Total: 5, HighConfidenceCount: 2, AvgConfidence: 0.7}}
	srv := newTestServer(stubReady{}, st, &stubFetcher{})

	rec := doRequest(t, srv, "/api/statistics?days=7")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 5, body["total_detections"])
	assert.EqualValues(t, 2, body["high_confidence_detections"])
	assert.EqualValues(t, 7, body["period_days"])
}

func TestServer_Imagery(t *testing.T) {
	fetcher := &stubFetcher{blob: []byte("jpeg-bytes"), ok: true}
	srv := newTestServer(stubReady{}, &stubStore{}, fetcher)

	rec := doRequest(t, srv, "/api/imagery?coordinates=38.5,-120.5&satellite=VIIRS&product=VNP09&date=2026-08-15&radius_km=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	assert.Equal(t, "VNP09", fetcher.params.Product)
	assert.Equal(t, "2026-08-15", fetcher.params.Date)
	assert.Equal(t, domain.GeoPoint{Lat: 38.5, Lon: -120.5}, fetcher.params.Center)
}

func TestServer_Imagery_Placeholder(t *testing.T) {
	fetcher := &stubFetcher{ok: false}
	srv := newTestServer(stubReady{}, &stubStore{}, fetcher)

	rec := doRequest(t, srv, "/api/imagery?coordinates=38.5,-120.5&product=VNP09&date=2026-08-15")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, true, body["placeholder"])
	assert.Equal(t, "VNP09", body["product"])
}

func TestServer_Imagery_DateDefaultsToToday(t *testing.T) {
	fetcher := &stubFetcher{ok: false}
	srv := newTestServer(stubReady{}, &stubStore{}, fetcher)

	rec := doRequest(t, srv, "/api/imagery?coordinates=38.5,-120.5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, fetcher.params.Date)
}

func TestServer_StoreErrorIs500(t *testing.T) {
	st := &stubStore{err: errors.New("db broken")}
	srv := newTestServer(stubReady{}, st, &stubFetcher{})

	rec := doRequest(t, srv, "/api/detections/recent")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeBody(t, rec)["error"])
}
