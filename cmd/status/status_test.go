package status

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/orchestrator"
)

func TestPrint(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	finished := started.Add(40 * time.Second)
	report := &orchestrator.StatusReport{
		LastSuccess:         &finished,
		ConsecutiveFailures: 1,
		Cycles: []datastore.CycleRun{
			{StartedAt: started.Add(6 * time.Hour), Trigger: "schedule", Status: "abandoned", Attempts: 3, Error: "source down"},
			{StartedAt: started, Trigger: "manual", Status: "success", Attempts: 1, SitesCollected: 11, EventsDetected: 2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, report, time.UTC))

	out := buf.String()
	assert.Contains(t, out, "Last success:          2026-03-08 09:00:40")
	assert.Contains(t, out, "Consecutive failures:  1")
	assert.Contains(t, out, "STARTED")
	assert.Contains(t, out, "source down")
	assert.Regexp(t, `2026-03-08 09:00:00\s+manual\s+success\s+1\s+11\s+0\s+2`, out)
}

func TestPrint_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, &orchestrator.StatusReport{}, time.UTC))
	assert.Contains(t, buf.String(), "Last success:          never")
	assert.Contains(t, buf.String(), "No collection cycles recorded.")
}
