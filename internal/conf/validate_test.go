package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSettings(t *testing.T) *Settings {
	t.Helper()
	return &Settings{
		Main: MainSettings{Name: "pokerwatch", Timezone: "UTC"},
		Schedule: ScheduleSettings{
			CollectionTimes: []string{"09:00", "15:00", "21:00"},
			HealthCheckTime: "00:00",
			SummaryDay:      "sunday",
			SummaryTime:     "10:00",
		},
		Retry:       RetrySettings{MaxRetries: DefaultMaxRetries, Delay: DefaultRetryDelay},
		Detection:   DetectionSettings{Significant: 15, Major: 25, Anomaly: 50},
		Validation:  ValidationSettings{MinRatio: 0.01, MaxRatio: 10, MaxPlayers: 500000},
		Correlation: CorrelationSettings{Enabled: true, WindowDays: 3, MinScore: 1},
		Source:      SourceSettings{Type: "http", URL: "https://stats.example.com/v1/sites", Timeout: time.Second},
		Output:      OutputSettings{SQLite: SQLiteSettings{Enabled: true, Path: "test.db"}},
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateSettings(createTestSettings(t)))
}

func TestValidateSettings_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	s := createTestSettings(t)
	s.Schedule.CollectionTimes = []string{"25:00"}
	s.Retry.MaxRetries = 0
	s.Detection.Major = 60
	s.Source.Type = "ftp"
	s.Output.MySQL.Enabled = true

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 5)
}

func TestValidateSettings_Collaborators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"news without feed", func(s *Settings) { s.News = NewsSettings{Enabled: true, LookbackDays: 7} }, "feed_url"},
		{"mqtt without broker", func(s *Settings) { s.MQTT.Enabled = true }, "broker"},
		{"notification without urls", func(s *Settings) { s.Notification.Enabled = true }, "url"},
		{"negative baseline", func(s *Settings) { s.Validation.Baselines = map[string]int{"Winamax": -1} }, "Winamax"},
		{"zero correlation score", func(s *Settings) { s.Correlation.MinScore = 0 }, "min_score"},
		{"bad timezone", func(s *Settings) { s.Main.Timezone = "Mars/Olympus" }, "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := createTestSettings(t)
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"21:30", 21, 30, false},
		{"0:05", 0, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"12:5", 0, 0, true},
		{"noon", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()

	d, err := ParseWeekday("Sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	d, err = ParseWeekday("wed")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, d)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}
