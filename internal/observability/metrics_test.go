package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	t.Parallel()

	first, err := NewMetrics()
	require.NoError(t, err)
	second, err := NewMetrics()
	require.NoError(t, err, "each instance owns its registry")

	assert.NotNil(t, first.Pipeline)
	assert.NotNil(t, first.MQTT)
	assert.NotSame(t, first.Registry(), second.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Pipeline.RecordRetry()

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pokerwatch_cycle_retries_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
