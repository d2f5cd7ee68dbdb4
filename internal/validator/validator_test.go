package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/sites"
	"github.com/tphakala/pokerwatch/internal/source"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	return New(sites.DefaultRegistry(), &conf.ValidationSettings{
		MinRatio:   conf.DefaultMinRatio,
		MaxRatio:   conf.DefaultMaxRatio,
		MaxPlayers: conf.DefaultMaxPlayers,
	})
}

func TestValidate_ClampsCashPlayers(t *testing.T) {
	t.Parallel()

	res := newTestValidator(t).Validate([]source.Record{
		{SiteName: "Winamax", PlayersOnline: 400, CashPlayers: 500},
	})

	require.Len(t, res.Kept, 1)
	assert.Equal(t, 400, res.Kept[0].CashPlayers)
	assert.Equal(t, 1, res.Clamped)
	assert.Empty(t, res.Dropped)
}

func TestValidate_NormalizesSiteName(t *testing.T) {
	t.Parallel()

	res := newTestValidator(t).Validate([]source.Record{{SiteName: "gg poker", PlayersOnline: 120000}})

	require.Len(t, res.Kept, 1)
	assert.Equal(t, "GGNetwork", res.Kept[0].SiteName)
}

func TestValidate_Drops(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		rec    source.Record
		reason DropReason
	}{
		{"unknown site", source.Record{SiteName: "Bovada", PlayersOnline: 1000}, ReasonUnknownSite},
		{"negative players", source.Record{SiteName: "PokerStars", PlayersOnline: -1}, ReasonNegative},
		{"negative peak", source.Record{SiteName: "PokerStars", PlayersOnline: 50000, Peak24h: -5}, ReasonNegative},
		{"over cap", source.Record{SiteName: "PokerStars.it", PlayersOnline: 600000}, ReasonOverCap},
		{"far below baseline", source.Record{SiteName: "GGNetwork", PlayersOnline: 1000}, ReasonOutlier},
		{"far above baseline", source.Record{SiteName: "Winamax", PlayersOnline: 8001}, ReasonOutlier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := newTestValidator(t).Validate([]source.Record{tt.rec})
			assert.Empty(t, res.Kept)
			require.Len(t, res.Dropped, 1)
			assert.Equal(t, tt.reason, res.Dropped[0].Reason)
		})
	}
}

func TestValidate_RatioBandIsInclusive(t *testing.T) {
	t.Parallel()

	// Winamax expects 800: 8 players is exactly 0.01, 8000 exactly 10
	res := newTestValidator(t).Validate([]source.Record{
		{SiteName: "Winamax", PlayersOnline: 8},
		{SiteName: "Winamax", PlayersOnline: 8000},
	})
	assert.Len(t, res.Kept, 2)
}

func TestValidate_NoBaselineSkipsRatio(t *testing.T) {
	t.Parallel()

	res := newTestValidator(t).Validate([]source.Record{{SiteName: "PokerStars.it", PlayersOnline: 1}})
	assert.Len(t, res.Kept, 1)
}

func TestValidate_KeepsOrderAndContinuesAfterDrops(t *testing.T) {
	t.Parallel()

	res := newTestValidator(t).Validate([]source.Record{
		{SiteName: "PokerStars", PlayersOnline: 54000},
		{SiteName: "nope", PlayersOnline: 10},
		{SiteName: "iPoker", PlayersOnline: 900},
	})

	require.Len(t, res.Kept, 2)
	assert.Equal(t, "PokerStars", res.Kept[0].SiteName)
	assert.Equal(t, "iPoker", res.Kept[1].SiteName)
	assert.Len(t, res.Dropped, 1)
}
