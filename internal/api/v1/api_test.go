package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/orchestrator"
	"github.com/tphakala/pokerwatch/internal/sites"
)

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) RunCycle(ctx context.Context, trigger string) (*datastore.CycleRun, error) {
	args := m.Called(ctx, trigger)
	run, _ := args.Get(0).(*datastore.CycleRun)
	return run, args.Error(1)
}

func (m *mockPipeline) Status(limit int) (*orchestrator.StatusReport, error) {
	args := m.Called(limit)
	report, _ := args.Get(0).(*orchestrator.StatusReport)
	return report, args.Error(1)
}

func (m *mockPipeline) Health(ctx context.Context) orchestrator.HealthReport {
	args := m.Called(ctx)
	return args.Get(0).(orchestrator.HealthReport)
}

func (m *mockPipeline) Running() bool {
	return m.Called().Bool(0)
}

func setupTestEnvironment(t *testing.T) (*echo.Echo, datastore.Interface, *mockPipeline, *Controller) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Main.Timezone = "UTC"
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	_, err := orchestrator.RegisterSites(store, sites.DefaultRegistry())
	require.NoError(t, err)

	e := echo.New()
	pipeline := &mockPipeline{}
	c := New(e, store, settings, pipeline)
	c.now = func() time.Time { return time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(c.Shutdown)
	return e, store, pipeline, c
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func seedStore(t *testing.T, store datastore.Interface) {
	t.Helper()
	require.NoError(t, store.UpsertSnapshots([]datastore.Snapshot{
		{SiteName: "GGNetwork", Date: "2026-03-07", Time: "09:00:00", PlayersOnline: 100000},
		{SiteName: "GGNetwork", Date: "2026-03-08", Time: "09:00:00", PlayersOnline: 130000},
		{SiteName: "PokerStars", Date: "2026-03-08", Time: "09:00:00", PlayersOnline: 50000},
	}))
	saved, err := store.ReplaceChangeEvents("2026-03-08", []datastore.ChangeEvent{{
		SiteName: "GGNetwork", Date: "2026-03-08", Metric: datastore.MetricPlayersOnline,
		PreviousDate: "2026-03-07", Previous: 100000, Current: 130000, PctChange: 30,
		Direction: datastore.DirectionIncrease, Magnitude: datastore.MagnitudeMajor,
	}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.NoError(t, store.ReplaceCorrelations([]uint{saved[0].ID}, []datastore.CorrelationRecord{{
		ChangeEventID: saved[0].ID, NewsTitle: "GGPoker launches spring series",
		NewsDate: "2026-03-07", Confidence: 0.8, CorrelationType: "site", DaysApart: 1,
	}}))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		report   orchestrator.HealthReport
		wantCode int
	}{
		{"healthy", orchestrator.HealthReport{Healthy: true, DatabaseOK: true}, http.StatusOK},
		{"stale", orchestrator.HealthReport{Stale: true, DatabaseOK: true, Problems: []string{"no successful collection recorded"}}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, pipeline, _ := setupTestEnvironment(t)
			pipeline.On("Health", mock.Anything).Return(tt.report)

			rec := serve(e, http.MethodGet, Prefix+"/health")
			assert.Equal(t, tt.wantCode, rec.Code)

			got := decode[orchestrator.HealthReport](t, rec)
			assert.Equal(t, tt.report.Healthy, got.Healthy)
			assert.Equal(t, tt.report.Problems, got.Problems)
		})
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	e, _, pipeline, _ := setupTestEnvironment(t)
	pipeline.On("Status", 5).Return(&orchestrator.StatusReport{State: orchestrator.StateIdle, ConsecutiveFailures: 2}, nil)

	rec := serve(e, http.MethodGet, Prefix+"/status?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[orchestrator.StatusReport](t, rec)
	assert.Equal(t, orchestrator.StateIdle, got.State)
	assert.Equal(t, 2, got.ConsecutiveFailures)

	rec = serve(e, http.MethodGet, Prefix+"/status?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Len(t, resp.CorrelationID, 8)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	pipeline.AssertExpectations(t)
}

func TestTriggerCollection_Async(t *testing.T) {
	t.Parallel()

	e, _, pipeline, c := setupTestEnvironment(t)
	started := make(chan struct{})
	pipeline.On("Running").Return(false)
	pipeline.On("RunCycle", mock.Anything, orchestrator.TriggerAPI).
		Run(func(mock.Arguments) { close(started) }).
		Return(&datastore.CycleRun{ID: "c1", Status: datastore.CycleStatusSuccess}, nil)

	rec := serve(e, http.MethodPost, Prefix+"/collect")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "accepted", decode[CollectResponse](t, rec).Status)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("collection was not started")
	}
	c.Shutdown()
	pipeline.AssertExpectations(t)
}

func TestTriggerCollection_Wait(t *testing.T) {
	t.Parallel()

	e, _, pipeline, _ := setupTestEnvironment(t)
	pipeline.On("Running").Return(false)
	pipeline.On("RunCycle", mock.Anything, orchestrator.TriggerAPI).
		Return(&datastore.CycleRun{ID: "c2", Status: datastore.CycleStatusSuccess}, nil)

	rec := serve(e, http.MethodPost, Prefix+"/collect?wait=true")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[CollectResponse](t, rec)
	assert.Equal(t, "c2", got.CycleID)
	assert.Equal(t, datastore.CycleStatusSuccess, got.Status)
}

func TestTriggerCollection_Abandoned(t *testing.T) {
	t.Parallel()

	e, _, pipeline, _ := setupTestEnvironment(t)
	pipeline.On("Running").Return(false)
	pipeline.On("RunCycle", mock.Anything, orchestrator.TriggerAPI).
		Return(&datastore.CycleRun{ID: "c3", Status: datastore.CycleStatusAbandoned, Error: "source down"},
			errors.NewStd("source down"))

	rec := serve(e, http.MethodPost, Prefix+"/collect?wait=true")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	got := decode[CollectResponse](t, rec)
	assert.Equal(t, datastore.CycleStatusAbandoned, got.Status)
	assert.Equal(t, "source down", got.Error)
}

func TestTriggerCollection_ConflictWhileRunning(t *testing.T) {
	t.Parallel()

	e, _, pipeline, _ := setupTestEnvironment(t)
	pipeline.On("Running").Return(true)

	rec := serve(e, http.MethodPost, Prefix+"/collect")
	assert.Equal(t, http.StatusConflict, rec.Code)
	pipeline.AssertNotCalled(t, "RunCycle", mock.Anything, mock.Anything)
}

func TestGetEvents(t *testing.T) {
	t.Parallel()

	e, store, _, _ := setupTestEnvironment(t)
	seedStore(t, store)

	// defaults to today in the schedule timezone
	rec := serve(e, http.MethodGet, Prefix+"/events")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]EventResponse](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "GGNetwork", events[0].Site)
	assert.Equal(t, "MAJOR", events[0].Magnitude)
	assert.InDelta(t, 30.0, events[0].PctChange, 0.001)

	rec = serve(e, http.MethodGet, Prefix+"/events?date=2026-03-07")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]EventResponse](t, rec))

	rec = serve(e, http.MethodGet, Prefix+"/events?date=08.03.2026")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCorrelations(t *testing.T) {
	t.Parallel()

	e, store, _, _ := setupTestEnvironment(t)
	seedStore(t, store)

	rec := serve(e, http.MethodGet, Prefix+"/correlations?date=2026-03-08")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]CorrelationResponse](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "GGPoker launches spring series", got[0].Title)
	assert.Equal(t, 1, got[0].DaysApart)
}

func TestGetSnapshots(t *testing.T) {
	t.Parallel()

	e, store, _, _ := setupTestEnvironment(t)
	seedStore(t, store)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantLen  int
	}{
		{"all", "", http.StatusOK, 3},
		{"alias is normalized", "?site=ggpoker", http.StatusOK, 2},
		{"date range", "?from=2026-03-08&to=2026-03-08", http.StatusOK, 2},
		{"unknown site", "?site=nowhere", http.StatusBadRequest, 0},
		{"inverted range", "?from=2026-03-09&to=2026-03-01", http.StatusBadRequest, 0},
		{"bad date", "?from=yesterday", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, Prefix+"/snapshots"+tt.query)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Len(t, decode[[]SnapshotResponse](t, rec), tt.wantLen)
			}
		})
	}
}

func TestGetSnapshots_UnaliasedRosterSite(t *testing.T) {
	t.Parallel()

	e, store, _, _ := setupTestEnvironment(t)
	require.NoError(t, store.UpsertSites([]datastore.Site{{Name: "Natural8", Category: "NICHE", Priority: 3}}))
	require.NoError(t, store.UpsertSnapshots([]datastore.Snapshot{
		{SiteName: "Natural8", Date: "2026-03-08", Time: "09:00:00", PlayersOnline: 4200},
	}))

	for _, query := range []string{"Natural8", "natural8", "%20NATURAL8"} {
		rec := serve(e, http.MethodGet, Prefix+"/snapshots?site="+query)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rows := decode[[]SnapshotResponse](t, rec)
		require.Len(t, rows, 1, query)
		assert.Equal(t, "Natural8", rows[0].Site)
	}
}

func TestGetSites(t *testing.T) {
	t.Parallel()

	e, _, _, _ := setupTestEnvironment(t)

	rec := serve(e, http.MethodGet, Prefix+"/sites")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]SiteResponse](t, rec), len(sites.DefaultRegistry().Sites()))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	build := func(c errors.ErrorCategory) error {
		return errors.Newf("x").Category(c).Build()
	}
	assert.Equal(t, http.StatusBadRequest, statusFor(build(errors.CategoryValidation)))
	assert.Equal(t, http.StatusNotFound, statusFor(build(errors.CategoryNotFound)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(build(errors.CategoryDatabase)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.NewStd("plain")))
}
