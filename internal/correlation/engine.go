// Package correlation links detected change events to news items published
// near the event date. Results are advisory and never block a cycle.
package correlation

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/sites"
)

// Correlation types.
const (
	TypeSite        = "site"
	TypeKeyword     = "keyword"
	TypeSiteKeyword = "site+keyword"
)

// Score weights.
const (
	titleMatchScore = 3.0
	bodyMatchScore  = 1.0
	termMatchScore  = 0.5
)

// maxNotedFactors caps how many matched factors are written to the notes.
const maxNotedFactors = 3

// Store is the part of the datastore the engine needs.
type Store interface {
	GetChangeEvents(date string) ([]datastore.ChangeEvent, error)
	GetNewsItemsBetween(from, to string) ([]datastore.NewsItem, error)
	ReplaceCorrelations(eventIDs []uint, records []datastore.CorrelationRecord) error
}

// Engine scores news items against change events.
type Engine struct {
	registry   *sites.Registry
	windowDays int
	minScore   float64
	log        logger.Logger
}

// GetLogger returns the correlation module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("correlation")
}

// New creates an engine. A nil registry means the default roster.
func New(registry *sites.Registry, settings *conf.CorrelationSettings) *Engine {
	if registry == nil {
		registry = sites.DefaultRegistry()
	}
	e := &Engine{
		registry:   registry,
		windowDays: conf.DefaultWindowDays,
		minScore:   conf.DefaultMinScore,
		log:        GetLogger(),
	}
	if settings != nil {
		if settings.WindowDays >= 0 {
			e.windowDays = settings.WindowDays
		}
		// zero means unset; loaded configuration rejects it
		if settings.MinScore > 0 {
			e.minScore = settings.MinScore
		}
	}
	return e
}

// WindowDays returns the configured half width of the date window.
func (e *Engine) WindowDays() int {
	return e.windowDays
}

// Match is the score of one news item against one change event.
type Match struct {
	Score       float64
	Type        string
	SiteInTitle bool
	SiteInBody  bool
	Terms       []string
	Factors     []string
}

// Score evaluates item against event. A site name or alias in the title
// scores 3, in the body only 1, and each distinct matched keyword or
// factor term adds 0.5.
func (e *Engine) Score(event *datastore.ChangeEvent, item *datastore.NewsItem) Match {
	title := sites.Fold(item.Title)
	body := sites.Fold(item.Body)

	var m Match
	for _, name := range e.registry.Names(event.SiteName) {
		if containsTerm(title, name) {
			m.SiteInTitle = true
			break
		}
		if containsTerm(body, name) {
			m.SiteInBody = true
		}
	}
	switch {
	case m.SiteInTitle:
		m.Score += titleMatchScore
		m.SiteInBody = false
	case m.SiteInBody:
		m.Score += bodyMatchScore
	}

	seen := make(map[string]bool)
	matches := func(term string) bool {
		return containsTerm(title, term) || containsTerm(body, term)
	}
	for _, kw := range domainKeywords {
		if !seen[kw] && matches(kw) {
			seen[kw] = true
			m.Terms = append(m.Terms, kw)
		}
	}
	for _, f := range factorsFor(event) {
		hit := false
		for _, term := range f.Terms {
			if !matches(term) {
				continue
			}
			hit = true
			if !seen[term] {
				seen[term] = true
				m.Terms = append(m.Terms, term)
			}
		}
		if hit {
			m.Factors = append(m.Factors, f.Label)
		}
	}
	m.Score += termMatchScore * float64(len(m.Terms))

	site := m.SiteInTitle || m.SiteInBody
	switch {
	case site && len(m.Terms) > 0:
		m.Type = TypeSiteKeyword
	case site:
		m.Type = TypeSite
	case len(m.Terms) > 0:
		m.Type = TypeKeyword
	}
	return m
}

// Correlate returns, for every event in order, the news items published
// within windowDays of the event date whose score reaches the minimum,
// highest confidence first. Equal scores prefer the item published nearer
// the event date. An empty result is not an error.
func (e *Engine) Correlate(events []datastore.ChangeEvent, items []datastore.NewsItem, windowDays int) []datastore.CorrelationRecord {
	var out []datastore.CorrelationRecord
	for i := range events {
		event := &events[i]
		eventDate, err := time.Parse(datastore.DateLayout, event.Date)
		if err != nil {
			e.log.Warn("skipping event with malformed date",
				logger.String("site", event.SiteName),
				logger.String("date", event.Date))
			continue
		}

		var records []datastore.CorrelationRecord
		for j := range items {
			item := &items[j]
			published, err := time.Parse(datastore.DateLayout, item.PublishedDate)
			if err != nil {
				continue
			}
			days := daysBetween(eventDate, published)
			if abs(days) > windowDays {
				continue
			}

			m := e.Score(event, item)
			if m.Score < e.minScore {
				continue
			}
			records = append(records, datastore.CorrelationRecord{
				ChangeEventID:   event.ID,
				NewsTitle:       item.Title,
				NewsURL:         item.URL,
				NewsDate:        item.PublishedDate,
				Confidence:      m.Score,
				CorrelationType: m.Type,
				DaysApart:       days,
				Notes:           notes(m, days),
			})
		}

		slices.SortStableFunc(records, func(a, b datastore.CorrelationRecord) int {
			if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
				return c
			}
			return cmp.Compare(abs(a.DaysApart), abs(b.DaysApart))
		})
		out = append(out, records...)
	}
	return out
}

// Run correlates the stored events of date with the stored news inside the
// window and replaces that date's correlations.
func (e *Engine) Run(ctx context.Context, store Store, date string) ([]datastore.CorrelationRecord, error) {
	start := time.Now()

	day, err := time.Parse(datastore.DateLayout, date)
	if err != nil {
		return nil, errors.New(err).
			Component("correlation").
			Category(errors.CategoryValidation).
			Context("date", date).
			Build()
	}

	events, err := store.GetChangeEvents(date)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	from := day.AddDate(0, 0, -e.windowDays).Format(datastore.DateLayout)
	to := day.AddDate(0, 0, e.windowDays).Format(datastore.DateLayout)
	items, err := store.GetNewsItemsBetween(from, to)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.New(err).
			Component("correlation").
			Category(errors.CategoryCancellation).
			Context("date", date).
			Build()
	}

	records := e.Correlate(events, items, e.windowDays)

	ids := make([]uint, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	if err := store.ReplaceCorrelations(ids, records); err != nil {
		return nil, errors.New(err).
			Component("correlation").
			Category(errors.CategoryCorrelation).
			Context("date", date).
			Build()
	}

	e.log.Info("correlation completed",
		logger.String("date", date),
		logger.Int("events", len(events)),
		logger.Int("news_items", len(items)),
		logger.Int("correlations", len(records)),
		logger.Duration("duration", time.Since(start)))
	return records, nil
}

func notes(m Match, days int) string {
	var parts []string
	if len(m.Factors) > 0 {
		factors := m.Factors
		if len(factors) > maxNotedFactors {
			factors = factors[:maxNotedFactors]
		}
		parts = append(parts, "factors: "+strings.Join(factors, ", "))
	}
	if len(m.Terms) > 0 {
		parts = append(parts, "keywords: "+strings.Join(m.Terms, ", "))
	}
	switch {
	case days == 0:
		parts = append(parts, "published on event date")
	case days < 0:
		parts = append(parts, fmt.Sprintf("published %d day(s) before event", -days))
	default:
		parts = append(parts, fmt.Sprintf("published %d day(s) after event", days))
	}
	return strings.Join(parts, "; ")
}

// daysBetween returns the signed whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
