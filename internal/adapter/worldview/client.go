// Package worldview fetches satellite snapshot imagery from the NASA
// Worldview / GIBS WMS endpoint.
package worldview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/emberline/firewatch-service/internal/imagery"
)

// snapshot geometry: a ~1 degree box around the center rendered at 512x512.
const (
	bboxHalfSpanDeg = 0.5
	snapshotWidth   = "512"
	snapshotHeight  = "512"
)

// Client implements imagery.LayerFetcher against the Worldview WMS API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Worldview imagery client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://worldview.earthdata.nasa.gov/geoserver/wms"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// FetchLayer requests one WMS layer snapshot. A 204 or an empty body is
// reported as "no data" (nil, nil) rather than an error so the caller can
// fall through to the next layer without burning retries.
func (c *Client) FetchLayer(ctx context.Context, layer string, p imagery.FetchParams) ([]byte, error) {
	params := url.Values{
		"service": {"WMS"},
		"version": {"1.3.0"},
		"request": {"GetMap"},
		"layers":  {layer},
		"bbox": {fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			p.Center.Lon-bboxHalfSpanDeg, p.Center.Lat-bboxHalfSpanDeg,
			p.Center.Lon+bboxHalfSpanDeg, p.Center.Lat+bboxHalfSpanDeg)},
		"width":  {snapshotWidth},
		"height": {snapshotHeight},
		"crs":    {"EPSG:4326"},
		"format": {"image/jpeg"},
		"time":   {p.Date},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch layer %s: %w", layer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("worldview API error: status %d: %s", resp.StatusCode, body)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read layer %s body: %w", layer, err)
	}
	return blob, nil
}
