// Package sites holds the monitored site roster and the site-name alias
// table shared by the validator and the correlation engine.
package sites

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"gopkg.in/yaml.v3"
)

// Category classifies a site relative to the owned network.
type Category string

const (
	CategoryOwn      Category = "OWN"
	CategoryDirect   Category = "DIRECT"
	CategoryIndirect Category = "INDIRECT"
	CategoryNiche    Category = "NICHE"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryOwn, CategoryDirect, CategoryIndirect, CategoryNiche:
		return true
	}
	return false
}

// Site is one monitored service.
type Site struct {
	Name            string   `yaml:"name"`
	Category        Category `yaml:"category"`
	Priority        int      `yaml:"priority"`
	ExpectedPlayers int      `yaml:"expected_players,omitempty"` // 0 when unknown
}

// GetLogger returns the sites module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("sites")
}

// DefaultRoster returns the built-in site roster.
func DefaultRoster() []Site {
	return []Site{
		{Name: "GGNetwork", Category: CategoryOwn, Priority: 1, ExpectedPlayers: 130000},
		{Name: "GGPoker ON", Category: CategoryOwn, Priority: 1, ExpectedPlayers: 5000},
		{Name: "PokerStars", Category: CategoryDirect, Priority: 2, ExpectedPlayers: 55000},
		{Name: "PokerStars Ontario", Category: CategoryDirect, Priority: 2, ExpectedPlayers: 55000},
		{Name: "PokerStars.it", Category: CategoryDirect, Priority: 2},
		{Name: "WPT Global", Category: CategoryIndirect, Priority: 3, ExpectedPlayers: 3000},
		{Name: "888poker", Category: CategoryIndirect, Priority: 3, ExpectedPlayers: 2000},
		{Name: "partypoker", Category: CategoryIndirect, Priority: 3, ExpectedPlayers: 1500},
		{Name: "Chico Poker", Category: CategoryNiche, Priority: 4, ExpectedPlayers: 2000},
		{Name: "iPoker", Category: CategoryNiche, Priority: 4, ExpectedPlayers: 1000},
		{Name: "Winamax", Category: CategoryNiche, Priority: 4, ExpectedPlayers: 800},
	}
}

// Registry is a read-only view of the roster keyed by canonical name.
type Registry struct {
	byName map[string]Site
	order  []string
}

// NewRegistry builds a registry from roster. Names are normalized through
// the alias table when possible; names without an alias are kept verbatim
// so operators can register sites the table does not know yet.
func NewRegistry(roster []Site) (*Registry, error) {
	r := &Registry{byName: make(map[string]Site, len(roster))}
	for _, s := range roster {
		if s.Name == "" {
			return nil, errors.Newf("site with empty name").
				Component("sites").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if !s.Category.Valid() {
			return nil, errors.Newf("site %q has invalid category %q", s.Name, s.Category).
				Component("sites").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if canonical, ok := Normalize(s.Name); ok {
			s.Name = canonical
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, errors.Newf("duplicate site %q in roster", s.Name).
				Component("sites").
				Category(errors.CategoryConfiguration).
				Build()
		}
		r.byName[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	return r, nil
}

// DefaultRegistry returns a registry over DefaultRoster.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultRoster())
	if err != nil {
		panic(fmt.Sprintf("default roster is invalid: %v", err))
	}
	return r
}

// WithBaselines returns a copy of r whose expected players are overridden
// by baselines. Keys may be any alias spelling.
func (r *Registry) WithBaselines(baselines map[string]int) *Registry {
	out := &Registry{byName: make(map[string]Site, len(r.byName)), order: slices.Clone(r.order)}
	for name, s := range r.byName {
		out.byName[name] = s
	}
	for key, expected := range baselines {
		name, ok := r.resolve(key)
		if !ok {
			GetLogger().Warn("baseline configured for unknown site",
				logger.String("site", key))
			continue
		}
		s := out.byName[name]
		s.ExpectedPlayers = expected
		out.byName[name] = s
	}
	return out
}

// Lookup resolves a raw site name to a registered site.
func (r *Registry) Lookup(raw string) (Site, bool) {
	name, ok := r.resolve(raw)
	if !ok {
		return Site{}, false
	}
	return r.byName[name], true
}

func (r *Registry) resolve(raw string) (string, bool) {
	if canonical, ok := Normalize(raw); ok {
		if _, registered := r.byName[canonical]; registered {
			return canonical, true
		}
	}
	folded := Fold(raw)
	for _, name := range r.order {
		if Fold(name) == folded {
			return name, true
		}
	}
	return "", false
}

// Sites returns the registered sites ordered by priority, then name.
func (r *Registry) Sites() []Site {
	out := make([]Site, 0, len(r.byName))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	slices.SortStableFunc(out, func(a, b Site) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Names returns every spelling that identifies name in free text: the
// alias table entries plus the folded name itself.
func (r *Registry) Names(name string) []string {
	list := Aliases(name)
	folded := Fold(name)
	if !slices.Contains(list, folded) {
		list = append(list, folded)
	}
	return list
}

type rosterFile struct {
	Sites []Site `yaml:"sites"`
}

// LoadRoster reads a YAML roster file of the form
//
//	sites:
//	  - name: GGNetwork
//	    category: OWN
//	    priority: 1
//	    expected_players: 130000
func LoadRoster(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("sites").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, errors.New(err).
			Component("sites").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	if len(rf.Sites) == 0 {
		return nil, errors.Newf("roster file %s lists no sites", path).
			Component("sites").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return rf.Sites, nil
}
