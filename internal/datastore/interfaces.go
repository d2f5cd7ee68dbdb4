// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/logger"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// interface for database operations.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error

	// sites
	UpsertSites(sites []Site) error
	GetSites() ([]Site, error)

	// time series
	UpsertSnapshots(snapshots []Snapshot) error
	SaveCollection(snapshots []Snapshot, stats *CollectionStats) error
	QuerySnapshots(site, from, to string) ([]Snapshot, error)
	LatestDistinctDates(site string, n int) ([]Snapshot, error)
	LatestDistinctDatesBefore(site, date string, n int) ([]Snapshot, error)
	RepresentativeSnapshot(site, date string) (*Snapshot, error)
	SitesWithSnapshotsOn(date string) ([]string, error)
	SiteAverages(from, to string) ([]SiteAverage, error)
	LatestCollectionStats(limit int) ([]CollectionStats, error)

	// change events
	ReplaceChangeEvents(date string, events []ChangeEvent) ([]ChangeEvent, error)
	GetChangeEvents(date string) ([]ChangeEvent, error)
	GetChangeEventsBetween(from, to string) ([]ChangeEvent, error)

	// correlations
	ReplaceCorrelations(eventIDs []uint, records []CorrelationRecord) error
	GetCorrelations(date string) ([]CorrelationRecord, error)

	// news
	UpsertNewsItems(items []NewsItem) error
	GetNewsItemsBetween(from, to string) ([]NewsItem, error)

	// cycle bookkeeping
	SaveCycleRun(run *CycleRun) error
	RecentCycleRuns(limit int) ([]CycleRun, error)
	LastSuccessfulCycle() (*CycleRun, error)
	ConsecutiveFailures() (int, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// GetLogger returns the datastore module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// New creates a new store for the backend enabled in settings. It returns
// nil when no backend is enabled.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	case settings.Output.Postgres.Enabled:
		return &PostgresStore{Settings: settings}
	default:
		return nil
	}
}

// Ping checks that the database answers.
func (ds *DataStore) Ping(ctx context.Context) error {
	if ds.DB == nil {
		return stateError(errNotOpen, "ping", "connection")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping", "")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping", "")
	}
	return nil
}

// closeDB closes the underlying sql.DB.
func (ds *DataStore) closeDB(dbType string) error {
	if ds.DB == nil {
		return stateError(errNotOpen, "close", "connection")
	}

	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "", "db_type", dbType)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "", "db_type", dbType)
	}

	GetLogger().Debug("database connection closed", logger.String("db_type", dbType))
	return nil
}
