// Package orchestrator drives the collection pipeline: it runs one cycle of
// collect, validate, store, detect and correlate, retries the whole cycle on
// failure and schedules cycles, health checks and weekly summaries.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/correlation"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/detector"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/monitor"
	"github.com/tphakala/pokerwatch/internal/news"
	"github.com/tphakala/pokerwatch/internal/notification"
	"github.com/tphakala/pokerwatch/internal/observability/metrics"
	"github.com/tphakala/pokerwatch/internal/sites"
	"github.com/tphakala/pokerwatch/internal/source"
	"github.com/tphakala/pokerwatch/internal/validator"
)

// ErrCycleRunning is returned when a cycle is requested while another one
// is in flight. The request is dropped.
var ErrCycleRunning = errors.NewStd("collection cycle already running")

// EventPublisher fans change events out to external consumers.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events []datastore.ChangeEvent) (int, error)
}

// Orchestrator owns the pipeline state. It is the only writer to the store.
type Orchestrator struct {
	settings  *conf.Settings
	store     datastore.Interface
	source    source.Source
	registry  *sites.Registry
	validator *validator.Validator
	detector  *detector.Detector
	engine    *correlation.Engine
	news      news.Provider
	publisher EventPublisher
	notifier  notification.Notifier
	disk      monitor.DiskChecker
	metrics   *metrics.PipelineMetrics
	log       logger.Logger
	loc       *time.Location

	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	running atomic.Bool
	mu      sync.RWMutex
	state   State
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNewsProvider enables news refresh before correlation.
func WithNewsProvider(p news.Provider) Option {
	return func(o *Orchestrator) {
		o.news = p
	}
}

// WithPublisher publishes detected change events after each cycle.
func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithNotifier sets the notifier used for abandoned cycles, failed health
// checks and weekly summaries.
func WithNotifier(n notification.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithMetrics sets the pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithRegistry replaces the default site roster.
func WithRegistry(r *sites.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = r
	}
}

// WithDiskChecker replaces the gopsutil based disk checker.
func WithDiskChecker(d monitor.DiskChecker) Option {
	return func(o *Orchestrator) {
		o.disk = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// GetLogger returns the orchestrator module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("orchestrator")
}

// New creates an orchestrator over store and src.
func New(settings *conf.Settings, store datastore.Interface, src source.Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		settings:    settings,
		store:       store,
		source:      src,
		notifier:    notification.Nop{},
		loc:         settings.Location(),
		maxAttempts: settings.Retry.MaxRetries,
		retryDelay:  settings.Retry.Delay,
		now:         time.Now,
		sleep:       sleepContext,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.log == nil {
		o.log = GetLogger()
	}
	if o.registry == nil {
		o.registry = sites.DefaultRegistry().WithBaselines(settings.Validation.Baselines)
	}
	if o.disk == nil {
		o.disk = monitor.NewChecker()
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}

	o.validator = validator.New(o.registry, &settings.Validation)
	o.detector = detector.New(store, detector.ThresholdsFromSettings(&settings.Detection))
	o.engine = correlation.New(o.registry, &settings.Correlation)
	o.observe(func(m *metrics.PipelineMetrics) { m.SetState(string(StateIdle), allStates) })
	return o
}

// State returns the current pipeline step.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Running reports whether a cycle is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.observe(func(m *metrics.PipelineMetrics) { m.SetState(string(s), allStates) })
}

func (o *Orchestrator) observe(fn func(m *metrics.PipelineMetrics)) {
	if o.metrics != nil {
		fn(o.metrics)
	}
}

// RunCycle runs one collection cycle, retrying the whole cycle up to the
// configured number of attempts. A request that arrives while a cycle is
// running returns ErrCycleRunning. Exhausted retries abandon the cycle and
// return an error; the orchestrator is back in IDLE either way.
func (o *Orchestrator) RunCycle(ctx context.Context, trigger string) (*datastore.CycleRun, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.observe(func(m *metrics.PipelineMetrics) { m.RecordTickDropped() })
		o.log.Warn("collection cycle already running, dropping trigger",
			logger.String("trigger", trigger))
		return nil, ErrCycleRunning
	}
	defer o.running.Store(false)

	run := &datastore.CycleRun{
		ID:        uuid.NewString(),
		StartedAt: o.now(),
		Trigger:   trigger,
		Status:    datastore.CycleStatusRunning,
	}
	log := o.log.With(logger.String("cycle_id", run.ID), logger.String("trigger", trigger))
	log.Info("collection cycle started", logger.Int("max_attempts", o.maxAttempts))
	o.saveRun(run, log)

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		run.Attempts = attempt
		lastErr = o.attempt(ctx, run, log)
		if lastErr == nil {
			break
		}

		o.setState(StateFailed)
		log.Warn("collection attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", o.maxAttempts),
			logger.String("category", string(errors.CategoryOf(lastErr))),
			logger.Error(lastErr))

		if attempt == o.maxAttempts || ctx.Err() != nil {
			break
		}
		o.observe(func(m *metrics.PipelineMetrics) { m.RecordRetry() })
		log.Info("retrying collection cycle", logger.Duration("delay", o.retryDelay))
		if err := o.sleep(ctx, o.retryDelay); err != nil {
			break
		}
	}

	return o.finish(ctx, run, lastErr, log)
}

// attempt runs the pipeline once. Collection, storage and detection errors
// fail the attempt; correlation and publishing are advisory.
func (o *Orchestrator) attempt(ctx context.Context, run *datastore.CycleRun, log logger.Logger) error {
	run.SitesCollected, run.RecordsDropped, run.TotalPlayers = 0, 0, 0
	run.EventsDetected, run.CorrelationsFound = 0, 0

	var records []source.Record
	err := o.step(ctx, StateCollecting, func(ctx context.Context) error {
		var err error
		records, err = o.source.Fetch(ctx)
		if err == nil && len(records) == 0 {
			err = errors.Newf("source %s returned no records", o.source.Name()).
				Component("orchestrator").
				Category(errors.CategorySourceUnavailable).
				Build()
		}
		return err
	})
	if err != nil {
		return err
	}
	collectedAt := o.now().In(o.loc)

	var result validator.Result
	_ = o.step(ctx, StateValidating, func(context.Context) error {
		result = o.validator.Validate(records)
		return nil
	})
	run.RecordsDropped = len(result.Dropped)

	date := collectedAt.Format(datastore.DateLayout)
	snapshots, stats := o.buildCollection(result.Kept, collectedAt)
	err = o.step(ctx, StateStoring, func(context.Context) error {
		return o.store.SaveCollection(snapshots, stats)
	})
	if err != nil {
		return err
	}
	run.SitesCollected = stats.SitesCollected
	run.TotalPlayers = stats.TotalPlayers
	o.observe(func(m *metrics.PipelineMetrics) {
		m.RecordCollection(stats.SitesCollected, stats.TotalPlayers, dropCounts(result.Dropped))
	})

	var events []datastore.ChangeEvent
	err = o.step(ctx, StateDetecting, func(ctx context.Context) error {
		var err error
		events, err = o.detector.Detect(ctx, date)
		return err
	})
	if err != nil {
		return err
	}
	run.EventsDetected = len(events)
	o.observe(func(m *metrics.PipelineMetrics) {
		for i := range events {
			m.RecordEvent(string(events[i].Magnitude))
		}
	})

	if o.settings.Correlation.Enabled && len(events) > 0 {
		correlations, err := o.correlate(ctx, date, collectedAt)
		if err != nil {
			log.Warn("correlation failed, keeping cycle results", logger.Error(err))
		}
		run.CorrelationsFound = len(correlations)
	}

	o.publish(ctx, events, log)

	log.Info("collection attempt completed",
		logger.String("date", date),
		logger.Int("records", len(records)),
		logger.Int("sites_collected", stats.SitesCollected),
		logger.Int("records_dropped", len(result.Dropped)),
		logger.Int("clamped", result.Clamped),
		logger.Int("events", len(events)),
		logger.Int("correlations", run.CorrelationsFound))
	return nil
}

// step runs fn as pipeline step s and records its duration and outcome.
func (o *Orchestrator) step(ctx context.Context, s State, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("orchestrator").
			Category(errors.CategoryCancellation).
			Context("state", string(s)).
			Build()
	}

	o.setState(s)
	start := time.Now()
	err := fn(ctx)

	op := s.operation()
	o.observe(func(m *metrics.PipelineMetrics) {
		m.RecordDuration(op, time.Since(start).Seconds())
		if err != nil {
			m.RecordOperation(op, metrics.StatusError)
			m.RecordError(op, string(errors.CategoryOf(err)))
			return
		}
		m.RecordOperation(op, metrics.StatusSuccess)
	})
	return err
}

// buildCollection converts validated records into snapshot rows and the
// matching collection statistics.
func (o *Orchestrator) buildCollection(kept []source.Record, at time.Time) ([]datastore.Snapshot, *datastore.CollectionStats) {
	date := at.Format(datastore.DateLayout)
	clock := at.Format(datastore.TimeLayout)

	stats := &datastore.CollectionStats{Date: date, Time: clock}
	snapshots := make([]datastore.Snapshot, 0, len(kept))
	for _, rec := range kept {
		snapshots = append(snapshots, datastore.Snapshot{
			SiteName:      rec.SiteName,
			Date:          date,
			Time:          clock,
			PlayersOnline: rec.PlayersOnline,
			CashPlayers:   rec.CashPlayers,
			Peak24h:       rec.Peak24h,
			SevenDayAvg:   rec.SevenDayAvg,
			CollectedAt:   at,
		})
		stats.SitesCollected++
		stats.TotalPlayers += rec.PlayersOnline
		stats.TotalCashPlayers += rec.CashPlayers
		if site, ok := o.registry.Lookup(rec.SiteName); ok && site.Category == sites.CategoryOwn {
			stats.OwnNetworkSites++
		}
	}
	return snapshots, stats
}

// correlate refreshes stored news and correlates the events of date.
func (o *Orchestrator) correlate(ctx context.Context, date string, at time.Time) ([]datastore.CorrelationRecord, error) {
	var records []datastore.CorrelationRecord
	err := o.step(ctx, StateCorrelating, func(ctx context.Context) error {
		o.refreshNews(ctx, at)
		var err error
		records, err = o.engine.Run(ctx, o.store, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.observe(func(m *metrics.PipelineMetrics) { m.RecordCorrelations(len(records)) })
	return records, nil
}

// refreshNews stores recent items from the news provider. Failures only
// reduce what correlation can see.
func (o *Orchestrator) refreshNews(ctx context.Context, at time.Time) {
	if o.news == nil {
		return
	}

	lookback := o.settings.News.LookbackDays
	if lookback <= 0 {
		lookback = conf.DefaultNewsLookbackDays
	}
	since := at.AddDate(0, 0, -lookback)

	start := time.Now()
	items, err := o.news.FetchRecentItems(ctx, since)
	if err == nil {
		err = o.store.UpsertNewsItems(news.ToStoreItems(items, o.loc, o.now()))
	}

	o.observe(func(m *metrics.PipelineMetrics) {
		m.RecordDuration(metrics.OpNewsFetch, time.Since(start).Seconds())
		if err != nil {
			m.RecordOperation(metrics.OpNewsFetch, metrics.StatusError)
			m.RecordError(metrics.OpNewsFetch, string(errors.CategoryOf(err)))
			return
		}
		m.RecordOperation(metrics.OpNewsFetch, metrics.StatusSuccess)
	})
	if err != nil {
		o.log.Warn("news refresh failed", logger.Error(err))
		return
	}
	o.log.Debug("news refreshed", logger.Int("items", len(items)))
}

func (o *Orchestrator) publish(ctx context.Context, events []datastore.ChangeEvent, log logger.Logger) {
	if o.publisher == nil || len(events) == 0 {
		return
	}
	n, err := o.publisher.PublishEvents(ctx, events)
	if err != nil {
		log.Warn("publishing change events failed",
			logger.Int("published", n),
			logger.Int("events", len(events)),
			logger.Error(err))
	}
}

// finish records the outcome of a cycle and returns the orchestrator to
// IDLE.
func (o *Orchestrator) finish(ctx context.Context, run *datastore.CycleRun, lastErr error, log logger.Logger) (*datastore.CycleRun, error) {
	finished := o.now()
	run.FinishedAt = &finished
	duration := finished.Sub(run.StartedAt)

	var err error
	switch {
	case lastErr == nil:
		run.Status = datastore.CycleStatusSuccess
		run.Error = ""
		o.observe(func(m *metrics.PipelineMetrics) {
			m.RecordOperation(metrics.OpCycle, metrics.StatusSuccess)
			m.SetLastSuccess(float64(finished.Unix()))
		})
		log.Info("collection cycle completed",
			logger.Int("attempts", run.Attempts),
			logger.Int("sites_collected", run.SitesCollected),
			logger.Int("total_players", run.TotalPlayers),
			logger.Duration("duration", duration))

	case ctx.Err() != nil:
		run.Status = datastore.CycleStatusFailed
		run.Error = lastErr.Error()
		err = errors.New(lastErr).
			Component("orchestrator").
			Category(errors.CategoryCancellation).
			Context("cycle_id", run.ID).
			Context("attempts", run.Attempts).
			Build()
		o.observe(func(m *metrics.PipelineMetrics) { m.RecordOperation(metrics.OpCycle, metrics.StatusError) })
		log.Warn("collection cycle interrupted by shutdown",
			logger.Int("attempts", run.Attempts),
			logger.Error(lastErr))

	default:
		run.Status = datastore.CycleStatusAbandoned
		run.Error = lastErr.Error()
		err = errors.New(lastErr).
			Component("orchestrator").
			Category(errors.CategoryRetry).
			Priority(errors.PriorityCritical).
			Context("cycle_id", run.ID).
			Context("attempts", run.Attempts).
			Timing("collection_cycle", duration).
			Build()
		o.observe(func(m *metrics.PipelineMetrics) { m.RecordOperation(metrics.OpCycle, metrics.StatusAbandoned) })
		log.Error("collection cycle abandoned after retries",
			logger.String("severity", "critical"),
			logger.Int("attempts", run.Attempts),
			logger.Duration("duration", duration),
			logger.Error(lastErr))
		o.notify(ctx, "pokerwatch: collection cycle abandoned",
			fmt.Sprintf("Cycle %s failed %d attempt(s) and was abandoned: %v", run.ID, run.Attempts, lastErr))
	}

	o.setState(StateIdle)
	o.saveRun(run, log)

	if failures, ferr := o.store.ConsecutiveFailures(); ferr == nil {
		o.observe(func(m *metrics.PipelineMetrics) { m.SetConsecutiveFailures(failures) })
	}
	return run, err
}

// saveRun persists run. Bookkeeping failures are logged and never change
// the cycle outcome.
func (o *Orchestrator) saveRun(run *datastore.CycleRun, log logger.Logger) {
	if err := o.store.SaveCycleRun(run); err != nil {
		log.Warn("failed to record cycle run",
			logger.String("status", run.Status),
			logger.Error(err))
	}
}

func (o *Orchestrator) notify(ctx context.Context, title, message string) {
	start := time.Now()
	err := o.notifier.Notify(context.WithoutCancel(ctx), title, message)
	o.observe(func(m *metrics.PipelineMetrics) {
		m.RecordDuration(metrics.OpNotification, time.Since(start).Seconds())
		if err != nil {
			m.RecordOperation(metrics.OpNotification, metrics.StatusError)
			return
		}
		m.RecordOperation(metrics.OpNotification, metrics.StatusSuccess)
	})
	if err != nil {
		o.log.Warn("notification failed", logger.String("title", title), logger.Error(err))
	}
}

// Reanalyze re-runs detection and correlation for date over stored
// snapshots. It shares the single-writer guard with RunCycle.
func (o *Orchestrator) Reanalyze(ctx context.Context, date string) ([]datastore.ChangeEvent, []datastore.CorrelationRecord, error) {
	if _, err := time.Parse(datastore.DateLayout, date); err != nil {
		return nil, nil, errors.New(err).
			Component("orchestrator").
			Category(errors.CategoryValidation).
			Context("date", date).
			Build()
	}
	if !o.running.CompareAndSwap(false, true) {
		return nil, nil, ErrCycleRunning
	}
	defer o.running.Store(false)
	defer o.setState(StateIdle)

	var events []datastore.ChangeEvent
	err := o.step(ctx, StateDetecting, func(ctx context.Context) error {
		var err error
		events, err = o.detector.Detect(ctx, date)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if !o.settings.Correlation.Enabled || len(events) == 0 {
		return events, nil, nil
	}

	day, _ := time.ParseInLocation(datastore.DateLayout, date, o.loc)
	correlations, err := o.correlate(ctx, date, day)
	if err != nil {
		return events, nil, err
	}
	return events, correlations, nil
}

// RegisterSites upserts the roster into the store. Snapshots reference
// sites, so this must run before the first collection.
func (o *Orchestrator) RegisterSites() (int, error) {
	return RegisterSites(o.store, o.registry)
}

// RegisterSites upserts every site of registry into store.
func RegisterSites(store datastore.Interface, registry *sites.Registry) (int, error) {
	roster := registry.Sites()
	rows := make([]datastore.Site, 0, len(roster))
	for _, s := range roster {
		rows = append(rows, datastore.Site{
			Name:            s.Name,
			Category:        string(s.Category),
			Priority:        s.Priority,
			ExpectedPlayers: s.ExpectedPlayers,
		})
	}
	if err := store.UpsertSites(rows); err != nil {
		return 0, err
	}
	GetLogger().Info("site roster registered", logger.Int("sites", len(rows)))
	return len(rows), nil
}

func dropCounts(drops []validator.Drop) map[string]int {
	counts := make(map[string]int, len(drops))
	for _, d := range drops {
		counts[string(d.Reason)]++
	}
	return counts
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
