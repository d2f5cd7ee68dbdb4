package sites

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// aliases maps folded spellings to canonical site names. It is the single
// table consulted by both the validator and the correlation engine.
var aliases = map[string]string{
	"ggnetwork":          "GGNetwork",
	"gg network":         "GGNetwork",
	"ggpoker":            "GGNetwork",
	"gg poker":           "GGNetwork",
	"ggpoker on":         "GGPoker ON",
	"gg poker on":        "GGPoker ON",
	"pokerstars":         "PokerStars",
	"pokerstars ontario": "PokerStars Ontario",
	"pokerstars.it":      "PokerStars.it",
	"wpt global":         "WPT Global",
	"worldpokertour":     "WPT Global",
	"888poker":           "888poker",
	"888 poker":          "888poker",
	"partypoker":         "partypoker",
	"party poker":        "partypoker",
	"chico poker":        "Chico Poker",
	"chico":              "Chico Poker",
	"ipoker":             "iPoker",
	"winamax":            "Winamax",
}

var (
	// cases.Caser is stateful and not safe for concurrent use
	folderPool = sync.Pool{New: func() any { c := cases.Fold(); return &c }}

	aliasesOnce  sync.Once
	aliasesByKey map[string][]string
)

// Fold returns the comparison key for a site name: NFKC normalized, case
// folded, trimmed, with internal whitespace collapsed to single spaces.
func Fold(name string) string {
	folder := folderPool.Get().(*cases.Caser)
	defer folderPool.Put(folder)

	folded := folder.String(norm.NFKC.String(name))
	return strings.Join(strings.Fields(folded), " ")
}

// Normalize maps a raw site name to its canonical name. The second result
// is false when the name is not in the alias table.
func Normalize(name string) (string, bool) {
	canonical, ok := aliases[Fold(name)]
	return canonical, ok
}

// Aliases returns every folded spelling that normalizes to canonical,
// including the folded canonical name itself. The result is sorted longest
// first so that callers matching text prefer the most specific spelling.
func Aliases(canonical string) []string {
	aliasesOnce.Do(func() {
		aliasesByKey = make(map[string][]string)
		for alias, name := range aliases {
			aliasesByKey[name] = append(aliasesByKey[name], alias)
		}
		for name, list := range aliasesByKey {
			sortLongestFirst(list)
			aliasesByKey[name] = list
		}
	})
	list := aliasesByKey[canonical]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func sortLongestFirst(list []string) {
	slices.SortFunc(list, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}
