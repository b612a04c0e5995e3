package cycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/river-alert-service/internal/alerts"
	"github.com/couchcryptid/river-alert-service/internal/domain"
	"github.com/couchcryptid/river-alert-service/internal/observability"
)

// Provider fetches the upstream sensor feed.
type Provider interface {
	LatestTime(ctx context.Context) (int64, error)
	Stations(ctx context.Context, timestamp int64) ([]domain.Observation, error)
	StationReading(ctx context.Context, stationID string) (int64, float64, error)
}

// StationStore applies observations to the station records.
type StationStore interface {
	PersistObservation(ctx context.Context, obs domain.Observation) (bool, error)
}

// AlertProcessor evaluates subscriptions for a freshly ingested observation.
type AlertProcessor interface {
	ProcessStation(ctx context.Context, obs domain.Observation) (alerts.Report, error)
}

// EventPublisher emits downstream events for applied observations and
// completed cycles.
type EventPublisher interface {
	PublishObservation(ctx context.Context, cycleID string, obs domain.Observation) error
	PublishSummary(ctx context.Context, summary Summary) error
}

// Summary is the folded outcome of one fetch cycle.
type Summary struct {
	CycleID          string        `json:"cycle_id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Found            int           `json:"found"`
	Updated          int           `json:"updated"`
	Stale            int           `json:"stale"`
	Errored          int           `json:"errored"`
	Reactivated      int           `json:"reactivated"`
	Delivered        int           `json:"delivered"`
	DeliveryFailures int           `json:"delivery_failures"`
}

// stationResult carries one station's outcome back to the fold. Exactly one
// of applied/stale is set when err is nil.
type stationResult struct {
	applied bool
	stale   bool
	err     error
	report  alerts.Report
}

// Options tunes the fetch loop.
type Options struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	Workers      int
}

// Runner orchestrates the periodic fetch cycle: resolve the feed timestamp,
// list stations, fan out per-station fetch/ingest/evaluate under a bounded
// worker budget, and fold the results.
type Runner struct {
	provider  Provider
	stations  StationStore
	processor AlertProcessor
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	opts      Options
	ready     atomic.Bool

	mu   sync.Mutex
	last Summary
	have bool
}

const defaultWorkers = 40

// New creates a Runner. processor and publisher may be nil when alerts or
// event publishing are disabled.
func New(p Provider, s StationStore, a AlertProcessor, pub EventPublisher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return &Runner{
		provider:  p,
		stations:  s,
		processor: a,
		publisher: pub,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil once at least one cycle has completed,
// or an error describing why the service is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no fetch cycle has completed yet")
	}
	return nil
}

// LastSummary returns the most recent cycle summary, if any cycle has run.
func (r *Runner) LastSummary() (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.have
}

// Run executes fetch cycles until the context is cancelled. The first cycle
// starts immediately; later cycles wait out the configured interval. A failed
// cycle is logged and the loop keeps going.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner started",
		"interval", r.opts.Interval,
		"workers", r.opts.Workers,
	)

	for {
		if _, err := r.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				r.logger.Info("runner stopping", "reason", ctx.Err())
				return nil
			}
			r.logger.Error("cycle failed", "error", err)
		}

		if !sleepWithContext(ctx, r.clock, r.opts.Interval) {
			r.logger.Info("runner stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunCycle executes a single fetch cycle and returns its summary. It fails
// only when the feed cannot be listed at all; individual station failures are
// folded into the summary instead.
func (r *Runner) RunCycle(ctx context.Context) (Summary, error) {
	if r.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CycleTimeout)
		defer cancel()
	}

	cycleID := uuid.NewString()
	start := r.clock.Now()

	r.metrics.CyclesTotal.Inc()
	r.metrics.CycleRunning.Set(1)
	defer r.metrics.CycleRunning.Set(0)

	latest, err := r.provider.LatestTime(ctx)
	if err != nil {
		return Summary{}, err
	}

	observations, err := r.provider.Stations(ctx, latest)
	if err != nil {
		return Summary{}, err
	}

	r.metrics.StationsFound.Add(float64(len(observations)))

	results := r.fanOut(ctx, cycleID, observations)

	summary := Summary{
		CycleID:   cycleID,
		StartedAt: start,
		Found:     len(observations),
	}
	for _, res := range results {
		if res.err != nil {
			summary.Errored++
		}
		if res.applied {
			summary.Updated++
		}
		if res.stale {
			summary.Stale++
		}
		summary.Reactivated += res.report.Reactivated
		summary.Delivered += res.report.Delivered
		summary.DeliveryFailures += res.report.DeliveryFailures
	}
	summary.Duration = r.clock.Since(start)

	r.metrics.CycleDuration.Observe(summary.Duration.Seconds())
	r.metrics.StationsErrored.Add(float64(summary.Errored))

	r.mu.Lock()
	r.last = summary
	r.have = true
	r.mu.Unlock()
	r.ready.Store(true)

	if r.publisher != nil {
		if err := r.publisher.PublishSummary(ctx, summary); err != nil {
			r.logger.Warn("publish cycle summary failed", "error", err, "cycle_id", cycleID)
		}
	}

	logFn := r.logger.Info
	if summary.Errored > 0 {
		logFn = r.logger.Warn
	}
	logFn("cycle complete",
		"cycle_id", cycleID,
		"found", summary.Found,
		"updated", summary.Updated,
		"stale", summary.Stale,
		"errored", summary.Errored,
		"reactivated", summary.Reactivated,
		"delivered", summary.Delivered,
		"delivery_failures", summary.DeliveryFailures,
		"duration", summary.Duration,
	)

	return summary, nil
}

// fanOut processes every station concurrently under the worker budget and
// returns one result per station. Counters are folded by the caller after
// the wait, so the workers never share mutable state.
func (r *Runner) fanOut(ctx context.Context, cycleID string, observations []domain.Observation) []stationResult {
	results := make([]stationResult, len(observations))
	sem := make(chan struct{}, r.opts.Workers)
	var wg sync.WaitGroup

	for i := range observations {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, obs domain.Observation) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.processStation(ctx, cycleID, obs)
		}(i, observations[i])
	}
	wg.Wait()

	return results
}

// processStation runs one station end to end: fetch its latest reading,
// apply the conditional write, publish the applied observation, and hand the
// observation to the alert engine.
func (r *Runner) processStation(ctx context.Context, cycleID string, obs domain.Observation) stationResult {
	start := r.clock.Now()
	defer func() {
		r.metrics.StationDuration.Observe(r.clock.Since(start).Seconds())
	}()

	timestamp, value, err := r.provider.StationReading(ctx, obs.StationID)
	if err != nil {
		r.logger.Warn("station reading failed", "error", err, "station", obs.Name, "cycle_id", cycleID)
		return stationResult{err: err}
	}
	obs.Timestamp = timestamp
	obs.Value = value

	applied, err := r.stations.PersistObservation(ctx, obs)
	if err != nil {
		r.logger.Warn("persist observation failed", "error", err, "station", obs.Name, "cycle_id", cycleID)
		return stationResult{err: err}
	}

	result := stationResult{applied: applied, stale: !applied}

	if applied {
		r.metrics.ObservationsApplied.Inc()
		if r.publisher != nil {
			if err := r.publisher.PublishObservation(ctx, cycleID, obs); err != nil {
				// Publishing is best effort; the record is already persisted.
				r.logger.Warn("publish observation failed", "error", err, "station", obs.Name, "cycle_id", cycleID)
			}
		}
	} else {
		r.metrics.ObservationsStale.Inc()
	}

	if r.processor != nil {
		report, err := r.processor.ProcessStation(ctx, obs)
		if err != nil {
			r.logger.Warn("alert evaluation failed", "error", err, "station", obs.Name, "cycle_id", cycleID)
			return stationResult{applied: applied, stale: !applied, err: err}
		}
		result.report = report
	}

	return result
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
