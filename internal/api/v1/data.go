package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/pokerwatch/internal/sites"
)

// SiteResponse is one roster entry.
type SiteResponse struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Priority        int    `json:"priority"`
	ExpectedPlayers int    `json:"expected_players,omitempty"`
}

// SnapshotResponse is one stored observation.
type SnapshotResponse struct {
	Site          string    `json:"site"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	PlayersOnline int       `json:"players_online"`
	CashPlayers   int       `json:"cash_players"`
	Peak24h       int       `json:"peak_24h"`
	SevenDayAvg   int       `json:"seven_day_avg"`
	CollectedAt   time.Time `json:"collected_at"`
}

// EventResponse is one change event.
type EventResponse struct {
	ID           uint    `json:"id"`
	Site         string  `json:"site"`
	Date         string  `json:"date"`
	Metric       string  `json:"metric"`
	PreviousDate string  `json:"previous_date"`
	Previous     int     `json:"previous"`
	Current      int     `json:"current"`
	PctChange    float64 `json:"pct_change"`
	Direction    string  `json:"direction"`
	Magnitude    string  `json:"magnitude"`
}

// CorrelationResponse links an event to a news item.
type CorrelationResponse struct {
	EventID    uint    `json:"event_id"`
	Title      string  `json:"title"`
	URL        string  `json:"url,omitempty"`
	NewsDate   string  `json:"news_date"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type"`
	DaysApart  int     `json:"days_apart"`
	Notes      string  `json:"notes,omitempty"`
}

// GetSites lists the registered roster.
func (c *Controller) GetSites(ctx echo.Context) error {
	rows, err := c.DS.GetSites()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read sites", statusFor(err))
	}
	out := make([]SiteResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, SiteResponse{
			Name:            s.Name,
			Category:        s.Category,
			Priority:        s.Priority,
			ExpectedPlayers: s.ExpectedPlayers,
		})
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetSnapshots returns stored snapshots, optionally filtered by site and an
// inclusive date range. The site name is resolved through the alias table
// and then against the registered roster.
func (c *Controller) GetSnapshots(ctx echo.Context) error {
	site := ctx.QueryParam("site")
	if site != "" {
		canonical, err := c.resolveSite(site)
		if err != nil {
			return c.HandleError(ctx, err, "Unknown site", statusFor(err))
		}
		site = canonical
	}
	from, err := parseDate(ctx.QueryParam("from"), "")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid from date", http.StatusBadRequest)
	}
	to, err := parseDate(ctx.QueryParam("to"), "")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid to date", http.StatusBadRequest)
	}
	if from != "" && to != "" && from > to {
		return c.HandleError(ctx, badRequest("from %s is after to %s", from, to), "Invalid date range", http.StatusBadRequest)
	}

	rows, err := c.DS.QuerySnapshots(site, from, to)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to query snapshots", statusFor(err))
	}
	out := make([]SnapshotResponse, 0, len(rows))
	for i := range rows {
		s := &rows[i]
		out = append(out, SnapshotResponse{
			Site:          s.SiteName,
			Date:          s.Date,
			Time:          s.Time,
			PlayersOnline: s.PlayersOnline,
			CashPlayers:   s.CashPlayers,
			Peak24h:       s.Peak24h,
			SevenDayAvg:   s.SevenDayAvg,
			CollectedAt:   s.CollectedAt,
		})
	}
	return ctx.JSON(http.StatusOK, out)
}

// resolveSite maps a requested site name to its stored name. Roster sites
// without an alias entry match on their folded name.
func (c *Controller) resolveSite(raw string) (string, error) {
	if canonical, ok := sites.Normalize(raw); ok {
		return canonical, nil
	}
	registered, err := c.DS.GetSites()
	if err != nil {
		return "", err
	}
	key := sites.Fold(raw)
	for i := range registered {
		if sites.Fold(registered[i].Name) == key {
			return registered[i].Name, nil
		}
	}
	return "", badRequest("unknown site %q", raw)
}

// GetEvents returns the change events detected on date, today by default.
func (c *Controller) GetEvents(ctx echo.Context) error {
	date, err := parseDate(ctx.QueryParam("date"), c.today())
	if err != nil {
		return c.HandleError(ctx, err, "Invalid date", http.StatusBadRequest)
	}

	rows, err := c.DS.GetChangeEvents(date)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read change events", statusFor(err))
	}
	out := make([]EventResponse, 0, len(rows))
	for i := range rows {
		e := &rows[i]
		out = append(out, EventResponse{
			ID:           e.ID,
			Site:         e.SiteName,
			Date:         e.Date,
			Metric:       string(e.Metric),
			PreviousDate: e.PreviousDate,
			Previous:     e.Previous,
			Current:      e.Current,
			PctChange:    e.PctChange,
			Direction:    e.Direction,
			Magnitude:    string(e.Magnitude),
		})
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetCorrelations returns the correlation records of events detected on
// date, today by default.
func (c *Controller) GetCorrelations(ctx echo.Context) error {
	date, err := parseDate(ctx.QueryParam("date"), c.today())
	if err != nil {
		return c.HandleError(ctx, err, "Invalid date", http.StatusBadRequest)
	}

	rows, err := c.DS.GetCorrelations(date)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read correlations", statusFor(err))
	}
	out := make([]CorrelationResponse, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		out = append(out, CorrelationResponse{
			EventID:    r.ChangeEventID,
			Title:      r.NewsTitle,
			URL:        r.NewsURL,
			NewsDate:   r.NewsDate,
			Confidence: r.Confidence,
			Type:       r.CorrelationType,
			DaysApart:  r.DaysApart,
			Notes:      r.Notes,
		})
	}
	return ctx.JSON(http.StatusOK, out)
}
