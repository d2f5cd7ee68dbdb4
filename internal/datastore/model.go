// model.go this code defines the data model for the application
package datastore

import "time"

// Date and time-of-day layouts used for the string columns. Lexical order of
// these strings equals chronological order.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Metric identifies one of the four tracked values of a snapshot.
type Metric string

const (
	MetricPlayersOnline Metric = "players_online"
	MetricCashPlayers   Metric = "cash_players"
	MetricPeak24h       Metric = "peak_24h"
	MetricSevenDayAvg   Metric = "seven_day_avg"
)

// Metrics lists every tracked metric in a stable order.
var Metrics = []Metric{MetricPlayersOnline, MetricCashPlayers, MetricPeak24h, MetricSevenDayAvg}

// Magnitude is the tier of a percentage change.
type Magnitude string

const (
	MagnitudeNone        Magnitude = ""
	MagnitudeSignificant Magnitude = "SIGNIFICANT"
	MagnitudeMajor       Magnitude = "MAJOR"
	MagnitudeAnomaly     Magnitude = "ANOMALY"
)

// Direction of a change event.
const (
	DirectionIncrease = "INCREASE"
	DirectionDecrease = "DECREASE"
)

// Cycle run statuses.
const (
	CycleStatusRunning   = "running"
	CycleStatusSuccess   = "success"
	CycleStatusFailed    = "failed"
	CycleStatusAbandoned = "abandoned"
)

// Site is a registered monitored service.
type Site struct {
	Name            string `gorm:"primaryKey;size:64"`
	Category        string `gorm:"size:16;not null"`
	Priority        int    `gorm:"not null;index:idx_sites_priority"`
	ExpectedPlayers int    // 0 when no baseline is known
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Snapshot is one observation of the four metrics for one site.
type Snapshot struct {
	ID            uint      `gorm:"primaryKey"`
	SiteName      string    `gorm:"size:64;not null;uniqueIndex:idx_snapshots_site_date_time,priority:1"`
	Date          string    `gorm:"column:collection_date;size:10;not null;uniqueIndex:idx_snapshots_site_date_time,priority:2;index:idx_snapshots_date"`
	Time          string    `gorm:"column:collection_time;size:8;not null;uniqueIndex:idx_snapshots_site_date_time,priority:3"`
	PlayersOnline int       `gorm:"not null;default:0"`
	CashPlayers   int       `gorm:"not null;default:0"`
	Peak24h       int       `gorm:"column:peak_24h;not null;default:0"`
	SevenDayAvg   int       `gorm:"not null;default:0"`
	CollectedAt   time.Time // full timestamp of the collection cycle
	Site          *Site     `gorm:"foreignKey:SiteName;references:Name;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// Value returns the value of metric m.
func (s *Snapshot) Value(m Metric) int {
	switch m {
	case MetricPlayersOnline:
		return s.PlayersOnline
	case MetricCashPlayers:
		return s.CashPlayers
	case MetricPeak24h:
		return s.Peak24h
	case MetricSevenDayAvg:
		return s.SevenDayAvg
	}
	return 0
}

// ChangeEvent is a detected shift of one metric for one site between the
// previous distinct collection date and Date.
type ChangeEvent struct {
	ID           uint                `gorm:"primaryKey"`
	SiteName     string              `gorm:"size:64;not null;uniqueIndex:idx_change_events_site_date_metric,priority:1"`
	Date         string              `gorm:"column:detection_date;size:10;not null;uniqueIndex:idx_change_events_site_date_metric,priority:2;index:idx_change_events_date"`
	Metric       Metric              `gorm:"size:32;not null;uniqueIndex:idx_change_events_site_date_metric,priority:3"`
	PreviousDate string              `gorm:"size:10;not null"`
	Previous     int                 `gorm:"not null"`
	Current      int                 `gorm:"not null"`
	PctChange    float64             `gorm:"not null"` // signed, rounded to 2 decimals
	Direction    string              `gorm:"size:8;not null"`
	Magnitude    Magnitude           `gorm:"size:16;not null;index:idx_change_events_magnitude"`
	CreatedAt    time.Time           `gorm:"index"`
	Site         *Site               `gorm:"foreignKey:SiteName;references:Name;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Correlations []CorrelationRecord `gorm:"foreignKey:ChangeEventID;constraint:OnDelete:CASCADE"`
}

// CorrelationRecord links a change event to a news item. Advisory only.
type CorrelationRecord struct {
	ID              uint    `gorm:"primaryKey"`
	ChangeEventID   uint    `gorm:"index;not null"`
	NewsTitle       string  `gorm:"size:512;not null"`
	NewsURL         string  `gorm:"size:1024"`
	NewsDate        string  `gorm:"size:10;not null"`
	Confidence      float64 `gorm:"not null;index"`
	CorrelationType string  `gorm:"size:16;not null"` // site, keyword or site+keyword
	DaysApart       int
	Notes           string `gorm:"type:text"`
	CreatedAt       time.Time
}

// NewsItem is a stored external text item.
type NewsItem struct {
	ID            uint      `gorm:"primaryKey"`
	URL           string    `gorm:"size:768;not null;uniqueIndex:idx_news_items_url"`
	Title         string    `gorm:"size:512;not null"`
	Body          string    `gorm:"type:text"`
	Source        string    `gorm:"size:128"`
	PublishedDate string    `gorm:"size:10;not null;index:idx_news_items_published"`
	PublishedAt   time.Time
	FetchedAt     time.Time
}

// CycleRun records one scheduled or manual collection cycle, including its
// retries.
type CycleRun struct {
	ID                string    `gorm:"primaryKey;size:36"`
	StartedAt         time.Time `gorm:"not null;index:idx_cycle_runs_started"`
	FinishedAt        *time.Time
	Trigger           string `gorm:"size:16"` // schedule, manual or api
	Status            string `gorm:"size:16;not null;index:idx_cycle_runs_status"`
	Attempts          int
	SitesCollected    int
	RecordsDropped    int
	EventsDetected    int
	CorrelationsFound int
	TotalPlayers      int
	Error             string `gorm:"type:text"`
}

// CollectionStats summarizes one stored collection.
type CollectionStats struct {
	ID               uint   `gorm:"primaryKey"`
	Date             string `gorm:"column:collection_date;size:10;not null;uniqueIndex:idx_collection_stats_date_time,priority:1"`
	Time             string `gorm:"column:collection_time;size:8;not null;uniqueIndex:idx_collection_stats_date_time,priority:2"`
	SitesCollected   int
	OwnNetworkSites  int
	TotalPlayers     int
	TotalCashPlayers int
	CreatedAt        time.Time
}

// SiteAverage is the mean players online of one site over a period.
type SiteAverage struct {
	SiteName   string
	AvgPlayers float64
	Samples    int
}
