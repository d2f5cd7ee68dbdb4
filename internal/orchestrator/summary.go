package orchestrator

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/logger"
)

// SiteTrend compares one site's average players over two consecutive weeks.
type SiteTrend struct {
	Site        string  `json:"site"`
	AvgPlayers  float64 `json:"avg_players"`
	PrevAvg     float64 `json:"prev_avg"`
	ChangePct   float64 `json:"change_pct"`
	HasPrevious bool    `json:"has_previous"`
	Samples     int     `json:"samples"`
}

// WeeklySummary is the per-site traffic and event digest for the seven days
// ending on To.
type WeeklySummary struct {
	From        string                      `json:"from"`
	To          string                      `json:"to"`
	Sites       []SiteTrend                 `json:"sites"`
	Events      map[datastore.Magnitude]int `json:"events"`
	TotalEvents int                         `json:"total_events"`
}

// BuildWeeklySummary aggregates the seven days ending on the day of now
// and the seven days before them.
func (o *Orchestrator) BuildWeeklySummary(now time.Time) (*WeeklySummary, error) {
	day := now.In(o.loc)
	to := day.Format(datastore.DateLayout)
	from := day.AddDate(0, 0, -6).Format(datastore.DateLayout)
	prevTo := day.AddDate(0, 0, -7).Format(datastore.DateLayout)
	prevFrom := day.AddDate(0, 0, -13).Format(datastore.DateLayout)

	current, err := o.store.SiteAverages(from, to)
	if err != nil {
		return nil, err
	}
	previous, err := o.store.SiteAverages(prevFrom, prevTo)
	if err != nil {
		return nil, err
	}
	events, err := o.store.GetChangeEventsBetween(from, to)
	if err != nil {
		return nil, err
	}

	prev := make(map[string]float64, len(previous))
	for _, p := range previous {
		prev[p.SiteName] = p.AvgPlayers
	}

	summary := &WeeklySummary{
		From:   from,
		To:     to,
		Events: make(map[datastore.Magnitude]int),
	}
	for _, c := range current {
		trend := SiteTrend{Site: c.SiteName, AvgPlayers: c.AvgPlayers, Samples: c.Samples}
		if p, ok := prev[c.SiteName]; ok && p > 0 {
			trend.PrevAvg = p
			trend.HasPrevious = true
			trend.ChangePct = (c.AvgPlayers - p) / p * 100
		}
		summary.Sites = append(summary.Sites, trend)
	}
	slices.SortStableFunc(summary.Sites, func(a, b SiteTrend) int {
		if c := cmp.Compare(b.AvgPlayers, a.AvgPlayers); c != 0 {
			return c
		}
		return strings.Compare(a.Site, b.Site)
	})

	for i := range events {
		summary.Events[events[i].Magnitude]++
	}
	summary.TotalEvents = len(events)
	return summary, nil
}

// Render formats the summary as plain text.
func (s *WeeklySummary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly summary %s to %s\n\n", s.From, s.To)

	if len(s.Sites) == 0 {
		b.WriteString("No snapshots collected this week.\n")
	} else {
		fmt.Fprintf(&b, "%-20s %12s %12s %9s\n", "Site", "Avg players", "Prev week", "Change")
		for _, t := range s.Sites {
			prev, change := "-", "-"
			if t.HasPrevious {
				prev = fmt.Sprintf("%.0f", t.PrevAvg)
				change = fmt.Sprintf("%+.2f%%", t.ChangePct)
			}
			fmt.Fprintf(&b, "%-20s %12.0f %12s %9s\n", t.Site, t.AvgPlayers, prev, change)
		}
	}

	fmt.Fprintf(&b, "\nChange events: %d (SIGNIFICANT %d, MAJOR %d, ANOMALY %d)\n",
		s.TotalEvents,
		s.Events[datastore.MagnitudeSignificant],
		s.Events[datastore.MagnitudeMajor],
		s.Events[datastore.MagnitudeAnomaly])
	return b.String()
}

// SendWeeklySummary builds, logs and notifies the weekly summary.
func (o *Orchestrator) SendWeeklySummary(ctx context.Context) error {
	summary, err := o.BuildWeeklySummary(o.now())
	if err != nil {
		o.log.Warn("weekly summary failed", logger.Error(err))
		return err
	}

	text := summary.Render()
	o.log.Info("weekly summary",
		logger.String("from", summary.From),
		logger.String("to", summary.To),
		logger.Int("sites", len(summary.Sites)),
		logger.Int("events", summary.TotalEvents))
	o.log.Debug(text)

	o.notify(ctx, "pokerwatch: weekly summary "+summary.To, text)
	return nil
}
