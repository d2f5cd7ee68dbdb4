package sites

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"GGPoker", "GGNetwork", true},
		{"  gg   network ", "GGNetwork", true},
		{"GGPOKER ON", "GGPoker ON", true},
		{"ＧＧＰｏｋｅｒ", "GGNetwork", true}, // full-width
		{"PokerStars.IT", "PokerStars.it", true},
		{"WorldPokerTour", "WPT Global", true},
		{"888 Poker", "888poker", true},
		{"Party Poker", "partypoker", true},
		{"chico", "Chico Poker", true},
		{"iPoker", "iPoker", true},
		{"Bovada", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := Normalize(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAliases_LongestFirst(t *testing.T) {
	t.Parallel()

	got := Aliases("GGNetwork")
	assert.Equal(t, []string{"gg network", "ggnetwork", "gg poker", "ggpoker"}, got)

	// callers may not mutate the shared table
	got[0] = "changed"
	assert.Equal(t, "gg network", Aliases("GGNetwork")[0])
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	all := r.Sites()
	require.Len(t, all, 11)
	assert.Equal(t, 1, all[0].Priority)
	assert.Equal(t, 4, all[len(all)-1].Priority)

	s, ok := r.Lookup("gg poker")
	require.True(t, ok)
	assert.Equal(t, "GGNetwork", s.Name)
	assert.Equal(t, CategoryOwn, s.Category)
	assert.Equal(t, 130000, s.ExpectedPlayers)

	s, ok = r.Lookup("pokerstars.it")
	require.True(t, ok)
	assert.Zero(t, s.ExpectedPlayers)

	_, ok = r.Lookup("unknown room")
	assert.False(t, ok)
}

func TestRegistry_WithBaselines(t *testing.T) {
	t.Parallel()

	base := DefaultRegistry()
	r := base.WithBaselines(map[string]int{"ggpoker": 90000, "nowhere": 10})

	s, _ := r.Lookup("GGNetwork")
	assert.Equal(t, 90000, s.ExpectedPlayers)

	orig, _ := base.Lookup("GGNetwork")
	assert.Equal(t, 130000, orig.ExpectedPlayers, "original registry must be untouched")
}

func TestNewRegistry_Rejects(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]Site{{Name: "GGPoker", Category: CategoryOwn}, {Name: "gg network", Category: CategoryOwn}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = NewRegistry([]Site{{Name: "X", Category: "BOGUS"}})
	require.Error(t, err)
}

func TestNewRegistry_UnaliasedSite(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry([]Site{{Name: "Bovada", Category: CategoryNiche, Priority: 4}})
	require.NoError(t, err)

	s, ok := r.Lookup("BOVADA")
	require.True(t, ok)
	assert.Equal(t, "Bovada", s.Name)
	assert.Equal(t, []string{"bovada"}, r.Names("Bovada"))
}

func TestLoadRoster(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roster.yaml")
	content := `sites:
  - name: GGNetwork
    category: OWN
    priority: 1
    expected_players: 125000
  - name: Winamax
    category: NICHE
    priority: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	roster, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, 125000, roster[0].ExpectedPlayers)
	assert.Equal(t, CategoryNiche, roster[1].Category)

	_, err = LoadRoster(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
