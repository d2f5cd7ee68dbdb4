package orchestrator

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/monitor"
	"github.com/tphakala/pokerwatch/internal/news"
	"github.com/tphakala/pokerwatch/internal/observability/metrics"
	"github.com/tphakala/pokerwatch/internal/sites"
	"github.com/tphakala/pokerwatch/internal/source"
)

var (
	day1 = time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
)

// fakeSource returns the next batch on every call. A nil batch with a
// non-nil error fails that call.
type fakeSource struct {
	mu      sync.Mutex
	batches [][]source.Record
	errs    []error
	calls   int
	fetched chan struct{}
	release chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context) ([]source.Record, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()

	if f.fetched != nil {
		f.fetched <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	return f.batches[min(i, len(f.batches)-1)], nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNews struct {
	items []news.Item
}

func (f *fakeNews) FetchRecentItems(_ context.Context, since time.Time) ([]news.Item, error) {
	var out []news.Item
	for _, it := range f.items {
		if !it.Published.Before(since) {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (f *fakeNotifier) Notify(_ context.Context, title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeNotifier) Titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.titles...)
}

type fakeDisk struct {
	free uint64
	err  error
}

func (f fakeDisk) Check(path string) (monitor.DiskStatus, error) {
	if f.err != nil {
		return monitor.DiskStatus{}, f.err
	}
	return monitor.DiskStatus{Path: path, Total: 100 << 30, Free: f.free}, nil
}

type fakePublisher struct {
	published int
}

func (f *fakePublisher) PublishEvents(_ context.Context, events []datastore.ChangeEvent) (int, error) {
	f.published += len(events)
	return len(events), nil
}

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func createTestSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Main.Timezone = "UTC"
	s.Retry.MaxRetries = conf.DefaultMaxRetries
	s.Retry.Delay = conf.DefaultRetryDelay
	s.Detection = conf.DetectionSettings{Significant: 15, Major: 25, Anomaly: 50}
	s.Validation = conf.ValidationSettings{MinRatio: 0.01, MaxRatio: 10, MaxPlayers: 500000}
	s.Correlation = conf.CorrelationSettings{Enabled: true, WindowDays: 3, MinScore: 1}
	s.News.LookbackDays = 7
	s.Health.StaleAfter = 24 * time.Hour
	s.Health.MinFreeBytes = 1 << 30
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = ":memory:"
	return s
}

func openTestStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()
	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	_, err := RegisterSites(store, sites.DefaultRegistry())
	require.NoError(t, err)
	return store
}

type harness struct {
	orch     *Orchestrator
	store    datastore.Interface
	src      *fakeSource
	clock    *testClock
	notifier *fakeNotifier
	registry *prometheus.Registry
	logs     *bytes.Buffer
	delays   []time.Duration
}

func newHarness(t *testing.T, src *fakeSource, opts ...Option) *harness {
	t.Helper()
	settings := createTestSettings()
	h := &harness{
		store:    openTestStore(t, settings),
		src:      src,
		clock:    &testClock{now: day1},
		notifier: &fakeNotifier{},
		registry: prometheus.NewRegistry(),
		logs:     &bytes.Buffer{},
	}

	pipeline, err := metrics.NewPipelineMetrics(h.registry)
	require.NoError(t, err)

	base := []Option{
		WithClock(h.clock.Now),
		WithNotifier(h.notifier),
		WithMetrics(pipeline),
		WithDiskChecker(fakeDisk{free: 50 << 30}),
		WithLogger(logger.NewSlogLogger(h.logs, logger.LogLevelDebug, time.UTC)),
	}
	h.orch = New(settings, h.store, src, append(base, opts...)...)
	h.orch.sleep = func(ctx context.Context, d time.Duration) error {
		h.delays = append(h.delays, d)
		return ctx.Err()
	}
	return h
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				sum += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				sum += m.GetGauge().GetValue()
			}
		}
		return sum
	}
	return 0
}

func ggRecord(players int) source.Record {
	return source.Record{SiteName: "GG Poker", PlayersOnline: players, CashPlayers: 10000, Peak24h: 150000, SevenDayAvg: 120000}
}

func TestRunCycle_DetectsAndCorrelates(t *testing.T) {
	t.Parallel()

	src := &fakeSource{batches: [][]source.Record{
		{ggRecord(100000), {SiteName: "PokerStars", PlayersOnline: 50000, CashPlayers: 60000}},
		{ggRecord(130000), {SiteName: "PokerStars", PlayersOnline: 50000, CashPlayers: 60000}, {SiteName: "Unknown Room", PlayersOnline: 10}},
	}}
	feed := &fakeNews{items: []news.Item{{
		Title:     "GGPoker announces record guaranteed series",
		Body:      "The network confirmed a new festival.",
		URL:       "https://news.example.com/gg-series",
		Published: day2.Add(-time.Hour),
	}}}
	pub := &fakePublisher{}
	h := newHarness(t, src, WithNewsProvider(feed), WithPublisher(pub))

	run, err := h.orch.RunCycle(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, datastore.CycleStatusSuccess, run.Status)
	assert.Equal(t, 1, run.Attempts)
	assert.Equal(t, 2, run.SitesCollected)
	assert.Equal(t, 0, run.EventsDetected, "first observation has no baseline")

	h.clock.Set(day2)
	run, err = h.orch.RunCycle(context.Background(), TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, datastore.CycleStatusSuccess, run.Status)
	assert.Equal(t, 1, run.RecordsDropped)
	assert.Equal(t, 180000, run.TotalPlayers)
	require.Equal(t, 1, run.EventsDetected)
	assert.Positive(t, run.CorrelationsFound)
	assert.Equal(t, 1, pub.published)
	assert.Equal(t, StateIdle, h.orch.State())
	assert.False(t, h.orch.Running())

	events, err := h.store.GetChangeEvents("2026-03-08")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "GGNetwork", events[0].SiteName)
	assert.Equal(t, datastore.MetricPlayersOnline, events[0].Metric)
	assert.Equal(t, datastore.MagnitudeMajor, events[0].Magnitude)

	snaps, err := h.store.QuerySnapshots("PokerStars", "", "")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 50000, snaps[1].CashPlayers, "cash players are clamped")
	assert.Equal(t, "09:00:00", snaps[1].Time)

	stats, err := h.store.LatestCollectionStats(1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].OwnNetworkSites)
	assert.Equal(t, 2, stats[0].SitesCollected)

	assert.InDelta(t, 1, metricValue(t, h.registry, "pokerwatch_change_events_total"), 0)
	assert.InDelta(t, 1, metricValue(t, h.registry, "pokerwatch_records_dropped_total"), 0)
	assert.InDelta(t, float64(day2.Unix()), metricValue(t, h.registry, "pokerwatch_last_success_timestamp_seconds"), 0)
}

func TestRunCycle_RetriesThenAbandons(t *testing.T) {
	t.Parallel()

	unavailable := errors.Newf("upstream down").
		Component("source").
		Category(errors.CategorySourceUnavailable).
		Build()
	src := &fakeSource{errs: []error{unavailable, unavailable, unavailable, unavailable}}
	h := newHarness(t, src)

	run, err := h.orch.RunCycle(context.Background(), TriggerSchedule)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryRetry))
	require.NotNil(t, run)
	assert.Equal(t, datastore.CycleStatusAbandoned, run.Status)
	assert.Equal(t, 3, run.Attempts)
	assert.Equal(t, 3, src.Calls())
	assert.Equal(t, []time.Duration{5 * time.Minute, 5 * time.Minute}, h.delays)
	assert.Equal(t, StateIdle, h.orch.State())

	assert.Contains(t, h.logs.String(), "collection cycle abandoned after retries")
	assert.Equal(t, 1, strings.Count(h.logs.String(), "severity=critical"), "exactly one critical entry per abandoned cycle")
	assert.Equal(t, []string{"pokerwatch: collection cycle abandoned"}, h.notifier.Titles())

	snaps, err := h.store.QuerySnapshots("", "", "")
	require.NoError(t, err)
	assert.Empty(t, snaps, "an abandoned cycle stores nothing")

	failures, err := h.store.ConsecutiveFailures()
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	assert.InDelta(t, 2, metricValue(t, h.registry, "pokerwatch_cycle_retries_total"), 0)
	assert.InDelta(t, 1, metricValue(t, h.registry, "pokerwatch_consecutive_failures"), 0)

	status, err := h.orch.Status(5)
	require.NoError(t, err)
	require.Len(t, status.Cycles, 1)
	assert.Equal(t, "upstream down", status.Cycles[0].Error)
	assert.Nil(t, status.LastSuccess)
}

func TestRunCycle_RecoversOnLaterAttempt(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		errs:    []error{errors.NewStd("timeout"), errors.NewStd("timeout")},
		batches: [][]source.Record{{ggRecord(100000)}},
	}
	h := newHarness(t, src)

	run, err := h.orch.RunCycle(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, datastore.CycleStatusSuccess, run.Status)
	assert.Equal(t, 3, run.Attempts)
	assert.Equal(t, 3, src.Calls())
	assert.Len(t, h.delays, 2)
	assert.Empty(t, h.notifier.Titles())
	assert.NotContains(t, h.logs.String(), "severity=critical")

	snaps, err := h.store.QuerySnapshots("GGNetwork", "", "")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	status, err := h.orch.Status(0)
	require.NoError(t, err)
	require.NotNil(t, status.LastSuccess)
	assert.Equal(t, 0, status.ConsecutiveFailures)
}

func TestRunCycle_EmptySourceIsRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeSource{})

	run, err := h.orch.RunCycle(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Equal(t, datastore.CycleStatusAbandoned, run.Status)
	assert.Equal(t, 3, run.Attempts)
}

func TestRunCycle_DropsTriggerWhileRunning(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		batches: [][]source.Record{{ggRecord(100000)}},
		fetched: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	h := newHarness(t, src)

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.RunCycle(context.Background(), TriggerSchedule)
		done <- err
	}()

	<-src.fetched
	assert.True(t, h.orch.Running())
	assert.Equal(t, StateCollecting, h.orch.State())

	run, err := h.orch.RunCycle(context.Background(), TriggerAPI)
	assert.Nil(t, run)
	require.ErrorIs(t, err, ErrCycleRunning)

	_, _, err = h.orch.Reanalyze(context.Background(), "2026-03-07")
	require.ErrorIs(t, err, ErrCycleRunning)

	close(src.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, src.Calls())
	assert.InDelta(t, 1, metricValue(t, h.registry, "pokerwatch_ticks_dropped_total"), 0)
}

func TestRunCycle_CancelAbortsRetryDelay(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		errs:    []error{errors.NewStd("refused"), errors.NewStd("refused"), errors.NewStd("refused")},
		fetched: make(chan struct{}, 3),
	}
	h := newHarness(t, src)
	h.orch.retryDelay = time.Hour
	h.orch.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct {
		run *datastore.CycleRun
		err error
	}, 1)
	go func() {
		run, err := h.orch.RunCycle(ctx, TriggerSchedule)
		done <- struct {
			run *datastore.CycleRun
			err error
		}{run, err}
	}()

	<-src.fetched
	cancel()

	select {
	case res := <-done:
		require.Error(t, res.err)
		assert.True(t, errors.IsCategory(res.err, errors.CategoryCancellation))
		assert.Equal(t, datastore.CycleStatusFailed, res.run.Status)
		assert.Equal(t, 1, res.run.Attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not stop after cancellation")
	}
	assert.Empty(t, h.notifier.Titles())
}

func TestReanalyze(t *testing.T) {
	t.Parallel()

	src := &fakeSource{batches: [][]source.Record{{ggRecord(100000)}, {ggRecord(40000)}}}
	h := newHarness(t, src)

	_, err := h.orch.RunCycle(context.Background(), TriggerManual)
	require.NoError(t, err)
	h.clock.Set(day2)
	_, err = h.orch.RunCycle(context.Background(), TriggerManual)
	require.NoError(t, err)

	events, correlations, err := h.orch.Reanalyze(context.Background(), "2026-03-08")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, datastore.MagnitudeAnomaly, events[0].Magnitude)
	assert.Equal(t, datastore.DirectionDecrease, events[0].Direction)
	assert.Empty(t, correlations)

	stored, err := h.store.GetChangeEvents("2026-03-08")
	require.NoError(t, err)
	assert.Len(t, stored, 1, "re-running detection replaces the date's events")

	_, _, err = h.orch.Reanalyze(context.Background(), "08/03/2026")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestCheckHealth(t *testing.T) {
	t.Parallel()

	src := &fakeSource{batches: [][]source.Record{{ggRecord(100000)}}}
	h := newHarness(t, src)

	report := h.orch.CheckHealth(context.Background())
	assert.False(t, report.Healthy)
	assert.True(t, report.Stale)
	assert.True(t, report.DatabaseOK)
	assert.False(t, report.LowDisk)
	assert.Equal(t, []string{"pokerwatch: health check warning"}, h.notifier.Titles())

	_, err := h.orch.RunCycle(context.Background(), TriggerManual)
	require.NoError(t, err)

	h.clock.Set(day1.Add(3 * time.Hour))
	report = h.orch.CheckHealth(context.Background())
	assert.True(t, report.Healthy, report.Problems)
	require.NotNil(t, report.LastSuccess)
	assert.Equal(t, day1, report.LastSuccess.UTC())

	h.clock.Set(day1.Add(30 * time.Hour))
	report = h.orch.CheckHealth(context.Background())
	assert.True(t, report.Stale)

	h.orch.disk = fakeDisk{free: 10 << 20}
	h.clock.Set(day1.Add(time.Hour))
	report = h.orch.CheckHealth(context.Background())
	assert.False(t, report.Stale)
	assert.True(t, report.LowDisk)
	require.NotNil(t, report.Disk)
	assert.False(t, report.Healthy)
}
