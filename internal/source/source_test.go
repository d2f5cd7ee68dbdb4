package source

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
)

const testURL = "https://stats.example.com/v1/sites"

func newMockedSource(t *testing.T) (*HTTPSource, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := &http.Client{Transport: transport, Timeout: time.Second}
	settings := &conf.SourceSettings{Type: "http", URL: testURL, UserAgent: "pokerwatch-test"}
	return NewHTTPSource(settings, client), transport
}

func TestHTTPSource_FetchArray(t *testing.T) {
	t.Parallel()

	src, transport := newMockedSource(t)
	transport.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "pokerwatch-test", req.Header.Get("User-Agent"))
		return httpmock.NewStringResponse(http.StatusOK, `[
			{"site_name": "GGPoker", "players_online": 131000, "cash_players": 9000, "peak_24h": 150000, "seven_day_avg": 128000},
			{"site_name": "Winamax", "players_online": 812.0}
		]`), nil
	})

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Record{SiteName: "GGPoker", PlayersOnline: 131000, CashPlayers: 9000, Peak24h: 150000, SevenDayAvg: 128000}, records[0])
	assert.Equal(t, Record{SiteName: "Winamax", PlayersOnline: 812}, records[1])
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestHTTPSource_FetchWrappedObject(t *testing.T) {
	t.Parallel()

	src, transport := newMockedSource(t)
	transport.RegisterResponder("GET", testURL,
		httpmock.NewStringResponder(http.StatusOK, `{"sites": [{"name": "PokerStars", "players_online": 54000}]}`))

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PokerStars", records[0].SiteName)
}

func TestHTTPSource_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"server error", httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway")},
		{"html body", httpmock.NewStringResponder(http.StatusOK, "<html>maintenance</html>")},
		{"missing players", httpmock.NewStringResponder(http.StatusOK, `[{"site_name": "GGPoker"}]`)},
		{"transport error", httpmock.NewErrorResponder(assert.AnError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src, transport := newMockedSource(t)
			transport.RegisterResponder("GET", testURL, tt.responder)

			_, err := src.Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategorySourceUnavailable))
		})
	}
}

func TestHTTPSource_OptionalMetrics(t *testing.T) {
	t.Parallel()

	src, transport := newMockedSource(t)
	transport.RegisterResponder("GET", testURL, httpmock.NewStringResponder(http.StatusOK, `[
		{"site_name": "GGPoker", "players_online": 131000, "cash_players": "n/a"},
		{"site_name": "PokerStars", "players_online": 54000, "peak_24h": {"value": 60000}},
		{"site_name": "Winamax", "players_online": 812, "cash_players": null},
		{"site_name": "iPoker", "players_online": 990, "seven_day_avg": 1010.0}
	]`))

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{SiteName: "Winamax", PlayersOnline: 812},
		{SiteName: "iPoker", PlayersOnline: 990, SevenDayAvg: 1010},
	}, records)
}

func TestParseRecords_Shapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{"array", `[{"site_name": "a", "players_online": 1}, {"site_name": "b", "players_online": 2}]`, 2, false},
		{"wrapped", `{"sites": [{"site_name": "a", "players_online": 1}]}`, 1, false},
		{"empty array", `[]`, 0, false},
		{"array of scalars", `[1, 2, 3]`, 0, true},
		{"object without sites", `{"status": "ok"}`, 0, true},
		{"scalar", `42`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			records, err := parseRecords(strings.NewReader(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestNew_SelectsSource(t *testing.T) {
	t.Parallel()

	src, err := New(&conf.SourceSettings{Type: "file", Path: "x.json"})
	require.NoError(t, err)
	assert.Equal(t, "file", src.Name())

	_, err = New(&conf.SourceSettings{Type: "http"})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = New(&conf.SourceSettings{Type: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "snapshots.json")
	yamlPath := filepath.Join(dir, "snapshots.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"site_name": "iPoker", "players_online": 990}]`), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte("- site_name: 888poker\n  players_online: 2100\n  cash_players: 300\n"), 0o600))

	records, err := NewFileSource(jsonPath).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Record{{SiteName: "iPoker", PlayersOnline: 990}}, records)

	records, err = NewFileSource(yamlPath).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Record{{SiteName: "888poker", PlayersOnline: 2100, CashPlayers: 300}}, records)

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).Fetch(context.Background())
	assert.True(t, errors.IsCategory(err, errors.CategorySourceUnavailable))
}
