package correlation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tphakala/pokerwatch/internal/datastore"
)

// domainKeywords are tournament, promotion and regulatory terms that make a
// news item relevant to traffic changes in general.
var domainKeywords = []string{
	"wsop", "world series", "ept", "main event", "bracelet", "final table",
	"tournament", "cash game", "high stakes", "bounty", "pko", "series",
	"championship", "promotion", "bonus", "regulation",
}

// factor is a plausible cause of a change, with the terms that indicate it.
type factor struct {
	Label string
	Terms []string
}

var (
	majorFactors = []factor{
		{"Major tournament announcement", []string{"announce", "guaranteed", "gtd"}},
		{"Platform update or maintenance", []string{"maintenance", "outage", "downtime", "platform update"}},
		{"Promotional campaign launch", []string{"campaign", "launch", "giveaway"}},
		{"Regulatory news", []string{"regulator", "licence", "license", "ban"}},
		{"Partnership announcement", []string{"partnership", "partners with", "sponsor", "ambassador"}},
	}

	significantFactors = []factor{
		{"Weekly tournament series", []string{"weekly", "series"}},
		{"Bonus promotion", []string{"bonus", "rakeback", "freeroll"}},
		{"Software update", []string{"software", "new client", "update"}},
		{"Market news", []string{"market", "traffic"}},
	}

	pokerStarsFactors = []factor{
		{"SCOOP/WCOOP event", []string{"scoop", "wcoop"}},
		{"EPT tournament", []string{"ept", "european poker tour"}},
		{"Sunday Million special", []string{"sunday million"}},
	}

	ggFactors = []factor{
		{"WSOP satellite", []string{"wsop satellite", "satellite"}},
		{"GG Masters series", []string{"gg masters"}},
		{"Bounty tournament", []string{"bounty"}},
	}

	wptFactors = []factor{
		{"WPT500 series", []string{"wpt500"}},
		{"World Poker Tour event", []string{"world poker tour"}},
	}
)

// factorsFor returns the candidate causes of event: the magnitude list
// followed by the site-specific list.
func factorsFor(event *datastore.ChangeEvent) []factor {
	var out []factor
	switch event.Magnitude {
	case datastore.MagnitudeMajor, datastore.MagnitudeAnomaly:
		out = append(out, majorFactors...)
	case datastore.MagnitudeSignificant:
		out = append(out, significantFactors...)
	}

	switch {
	case strings.Contains(event.SiteName, "PokerStars"):
		out = append(out, pokerStarsFactors...)
	case strings.Contains(event.SiteName, "GG"):
		out = append(out, ggFactors...)
	case strings.Contains(event.SiteName, "WPT"):
		out = append(out, wptFactors...)
	}
	return out
}

// FactorLabels returns the labels of the candidate causes of event.
func FactorLabels(event *datastore.ChangeEvent) []string {
	factors := factorsFor(event)
	labels := make([]string, len(factors))
	for i, f := range factors {
		labels[i] = f.Label
	}
	return labels
}

// containsTerm reports whether folded text contains term starting at a word
// boundary. Terms of four bytes or fewer must also end at a boundary, so
// "ept" does not match "accepted" while "tournament" matches "tournaments".
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		if boundaryBefore(text, start) && (len(term) > 4 || boundaryAfter(text, end)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return !isWordRune(r)
}

func boundaryAfter(text string, pos int) bool {
	if pos >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[pos:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
