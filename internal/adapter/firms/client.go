// Package firms queries the NASA FIRMS area API for active fire detections.
package firms

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/emberline/firewatch-service/internal/domain"
	"github.com/emberline/firewatch-service/internal/geo"
	"github.com/emberline/firewatch-service/internal/observability"
)

// DefaultSources are the sensor constellations queried when none are
// configured.
var DefaultSources = []string{"VIIRS_NOAA20_NRT", "VIIRS_SNPP_NRT", "MODIS_NRT"}

// Client implements domain.EventSource using the FIRMS area CSV API.
type Client struct {
	mapKey     string
	sources    []string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a FIRMS area client querying the given sources.
func NewClient(mapKey string, sources []string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	return &Client{
		mapKey:  mapKey,
		sources: sources,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://firms.modaps.eosdis.nasa.gov/api/area/csv",
		logger:  logger,
		metrics: metrics,
	}
}

// FetchEvents queries every configured source for detections around center
// and returns the union of the sources that succeeded. A network or parse
// failure on one source is logged and contributes zero events; the call
// never fails all-or-nothing across sources. Out-of-range coordinates are
// rejected before any request is issued.
func (c *Client) FetchEvents(ctx context.Context, center domain.GeoPoint, radiusKm float64, dayRange int) ([]domain.Detection, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	radiusKm = domain.ClampRadius(radiusKm)
	if dayRange < 1 {
		dayRange = 1
	}
	if dayRange > domain.MaxDayRange {
		dayRange = domain.MaxDayRange
	}

	var all []domain.Detection
	for _, source := range c.sources {
		detections, err := c.fetchSource(ctx, source, center, radiusKm, dayRange)
		if err != nil {
			c.metrics.FeedRequests.WithLabelValues(source, "error").Inc()
			c.logger.Warn("feed source failed",
				"source", source,
				"error", err,
			)
			continue
		}
		if len(detections) == 0 {
			c.metrics.FeedRequests.WithLabelValues(source, "empty").Inc()
			continue
		}
		c.metrics.FeedRequests.WithLabelValues(source, "success").Inc()
		all = append(all, detections...)
	}
	return all, nil
}

// fetchSource issues one area query:
// {base}/{map_key}/{source}/{lon},{lat},{radius_km}/{day_range}.
func (c *Client) fetchSource(ctx context.Context, source string, center domain.GeoPoint, radiusKm float64, dayRange int) ([]domain.Detection, error) {
	start := time.Now()
	defer func() {
		c.metrics.FeedDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}()

	u := fmt.Sprintf("%s/%s/%s/%.4f,%.4f,%.0f/%d",
		c.baseURL, c.mapKey, source, center.Lon, center.Lat, radiusKm, dayRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "firewatch-service/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("area query %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("FIRMS API error: status %d: %s", resp.StatusCode, body)
	}

	return c.parseTable(resp.Body, source, center, radiusKm)
}

// parseTable turns the row-oriented CSV response into detections. Each row
// is parsed independently: a malformed row is skipped and counted, never
// discarding the rest of the response.
func (c *Client) parseTable(r io.Reader, source string, center domain.GeoPoint, radiusKm float64) ([]domain.Detection, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var detections []domain.Detection
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.metrics.FeedRowsSkipped.Inc()
			c.logger.Warn("skipping unreadable feed row", "source", source, "error", err)
			continue
		}

		d, ok := c.parseRow(row, cols, source, center, radiusKm)
		if !ok {
			c.metrics.FeedRowsSkipped.Inc()
			continue
		}
		c.metrics.FeedRowsParsed.Inc()
		detections = append(detections, d)
	}
	return detections, nil
}

func (c *Client) parseRow(row []string, cols map[string]int, source string, center domain.GeoPoint, radiusKm float64) (domain.Detection, bool) {
	lat, latErr := strconv.ParseFloat(field(row, cols, "latitude"), 64)
	lon, lonErr := strconv.ParseFloat(field(row, cols, "longitude"), 64)
	if latErr != nil || lonErr != nil {
		return domain.Detection{}, false
	}
	location := domain.GeoPoint{Lat: lat, Lon: lon}
	if err := location.Validate(); err != nil {
		return domain.Detection{}, false
	}

	return domain.Detection{
		DetectionTime:  parseAcquisitionTime(field(row, cols, "acq_date"), field(row, cols, "acq_time")),
		Location:       location,
		Confidence:     domain.NormalizeConfidence(field(row, cols, "confidence")),
		PowerMW:        parseFloatOrZero(field(row, cols, "frp")),
		DistanceKm:     geo.HaversineKm(center, location),
		Source:         source,
		SearchRadiusKm: radiusKm,
		Center:         center,
	}, true
}

// field returns the named column of a row, or "" when the column is missing
// or the row is short.
func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
// Numeric feed fields default to zero when absent or unparseable.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseAcquisitionTime combines the acq_date (YYYY-MM-DD) and acq_time
// (HHMM, three-digit values zero-padded) columns into a UTC instant.
// Unparseable values fall back to the current time.
func parseAcquisitionTime(acqDate, acqTime string) time.Time {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(acqDate))
	if err != nil {
		return domain.Now().UTC()
	}

	hhmm := strings.TrimSpace(acqTime)
	if len(hhmm) == 3 {
		hhmm = "0" + hhmm
	}
	if len(hhmm) != 4 {
		return day
	}
	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour > 23 || mins > 59 {
		return day
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, mins, 0, 0, time.UTC)
}
