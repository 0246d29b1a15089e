// Package pipeline orchestrates the periodic fetch-classify-persist scan
// over the configured watch regions.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/emberline/firewatch-service/internal/config"
	"github.com/emberline/firewatch-service/internal/domain"
	"github.com/emberline/firewatch-service/internal/observability"
)

// HistoryStore is the slice of the history store the pipeline writes to.
type HistoryStore interface {
	AddBatch(ctx context.Context, detections []domain.Detection) ([]int64, error)
	MarkAlertSent(ctx context.Context, id int64) (bool, error)
	PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// AlertPublisher forwards high-confidence detections to alerting
// collaborators.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, detections []domain.Detection) error
}

// Pipeline runs the scan loop: fetch events per region, classify, persist
// atomically, publish high-confidence alerts, and purge expired history.
type Pipeline struct {
	source    domain.EventSource
	store     HistoryStore
	publisher AlertPublisher // nil when alert publishing is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics

	regions       []config.Region
	dayRange      int
	scanInterval  time.Duration
	retentionDays int

	ready atomic.Bool
}

// New creates a Pipeline. Pass a nil publisher to disable alert publishing.
func New(source domain.EventSource, store HistoryStore, publisher AlertPublisher, logger *slog.Logger, metrics *observability.Metrics, cfg *config.Config) *Pipeline {
	return &Pipeline{
		source:        source,
		store:         store,
		publisher:     publisher,
		logger:        logger,
		metrics:       metrics,
		regions:       cfg.Regions,
		dayRange:      cfg.FeedDayRange,
		scanInterval:  cfg.ScanInterval,
		retentionDays: cfg.RetentionDays,
	}
}

// CheckReadiness returns nil once at least one scan cycle has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no scan cycle has completed yet")
	}
	return nil
}

// Run executes scan cycles until the context is cancelled. A failing cycle
// retries with exponential backoff instead of waiting the full scan
// interval.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("scan loop started",
		"regions", len(p.regions),
		"interval", p.scanInterval,
	)
	p.metrics.ScanRunning.Set(1)
	defer p.metrics.ScanRunning.Set(0)

	// Start at 200ms, double each failure, cap at 5s. Keeps retry storms
	// short without tight-looping during feed outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		if ctx.Err() != nil {
			p.logger.Info("scan loop stopping", "reason", ctx.Err())
			return nil
		}

		if err := p.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.metrics.ScanErrors.Inc()
			p.logger.Error("scan cycle failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = 200 * time.Millisecond
		p.ready.Store(true)
		if !sleepWithContext(ctx, p.scanInterval) {
			return nil
		}
	}
}

// runCycle scans every region once and then purges expired history.
func (p *Pipeline) runCycle(ctx context.Context) error {
	scanID := uuid.NewString()
	start := time.Now()

	var firstErr error
	for _, region := range p.regions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.scanRegion(ctx, scanID, region); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}

	purged, err := p.store.PurgeOlderThan(ctx, p.retentionDays)
	if err != nil {
		return err
	}
	p.metrics.RecordsPurged.Add(float64(purged))

	p.metrics.ScanCycles.Inc()
	p.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	return nil
}

// scanRegion fetches, classifies, persists, and alerts for one region.
// Detections only enter the store through this classify-then-persist path.
func (p *Pipeline) scanRegion(ctx context.Context, scanID string, region config.Region) error {
	center := domain.GeoPoint{Lat: region.Lat, Lon: region.Lon}

	detections, err := p.source.FetchEvents(ctx, center, region.RadiusKm, p.dayRange)
	if err != nil {
		return err
	}
	if len(detections) == 0 {
		p.logger.Debug("no detections in region", "scan_id", scanID, "region", region.Name)
		return nil
	}

	classified := domain.Classify(detections)

	persisted := make([]domain.Detection, 0, classified.Total())
	persisted = append(persisted, classified.High...)
	persisted = append(persisted, classified.Moderate...)
	persisted = append(persisted, classified.Low...)

	ids, err := p.store.AddBatch(ctx, persisted)
	if err != nil {
		return err
	}
	for i := range persisted {
		persisted[i].ID = ids[i]
	}
	p.metrics.EventsPersisted.Add(float64(len(persisted)))

	p.logger.Info("region scanned",
		"scan_id", scanID,
		"region", region.Name,
		"detections", len(persisted),
		"high_confidence", len(classified.High),
	)

	// High-confidence detections were persisted first, so they occupy the
	// head of the id slice.
	return p.publishAlerts(ctx, persisted[:len(classified.High)])
}

func (p *Pipeline) publishAlerts(ctx context.Context, alerts []domain.Detection) error {
	if p.publisher == nil || len(alerts) == 0 {
		return nil
	}

	if err := p.publisher.PublishAlerts(ctx, alerts); err != nil {
		// Alerting is best-effort; the detections are already durable.
		p.logger.Warn("alert publish failed", "error", err, "alerts", len(alerts))
		return nil
	}
	p.metrics.AlertsPublished.Add(float64(len(alerts)))

	for _, d := range alerts {
		if _, err := p.store.MarkAlertSent(ctx, d.ID); err != nil {
			p.logger.Warn("mark alert sent failed", "error", err, "id", d.ID)
		}
	}
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
