package datastore

import (
	"time"

	"github.com/tphakala/pokerwatch/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// snapshotConflict overwrites the metric columns of an existing
// (site, date, time) row.
var snapshotConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "site_name"}, {Name: "collection_date"}, {Name: "collection_time"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"players_online",
		"cash_players",
		"peak_24h",
		"seven_day_avg",
		"collected_at",
	}),
}

// UpsertSnapshots persists a batch in one transaction.
func (ds *DataStore) UpsertSnapshots(snapshots []Snapshot) error {
	return ds.SaveCollection(snapshots, nil)
}

// SaveCollection upserts snapshots and, when stats is not nil, the matching
// collection statistics row, all in one transaction. Any failure rolls back
// the whole batch and returns a store-write error.
func (ds *DataStore) SaveCollection(snapshots []Snapshot, stats *CollectionStats) error {
	if ds.DB == nil {
		return stateError(errNotOpen, "save_collection", "connection")
	}
	for i := range snapshots {
		if snapshots[i].SiteName == "" || snapshots[i].Date == "" || snapshots[i].Time == "" {
			return validationError("snapshot requires site, date and time", "index", i)
		}
	}
	if len(snapshots) == 0 && stats == nil {
		return nil
	}
	snapshots = dedupeSnapshots(snapshots)

	start := time.Now()
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if len(snapshots) > 0 {
			if err := tx.Omit(clause.Associations).Clauses(snapshotConflict).Create(&snapshots).Error; err != nil {
				return err
			}
		}
		if stats != nil {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "collection_date"}, {Name: "collection_time"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"sites_collected", "own_network_sites", "total_players", "total_cash_players",
				}),
			}).Create(stats).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return writeError(err, "save_collection",
			"batch_size", len(snapshots),
			"duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}

// dedupeSnapshots keeps the last occurrence of each (site, date, time) key.
// PostgreSQL refuses to update the same row twice in one statement.
func dedupeSnapshots(snapshots []Snapshot) []Snapshot {
	type key struct{ site, date, time string }
	index := make(map[key]int, len(snapshots))
	out := make([]Snapshot, 0, len(snapshots))
	for i := range snapshots {
		k := key{snapshots[i].SiteName, snapshots[i].Date, snapshots[i].Time}
		if pos, seen := index[k]; seen {
			out[pos] = snapshots[i]
			continue
		}
		index[k] = len(out)
		out = append(out, snapshots[i])
	}
	return out
}

// QuerySnapshots returns snapshots between from and to inclusive, ordered by
// date then time ascending. An empty site matches every site; an empty bound
// is open.
func (ds *DataStore) QuerySnapshots(site, from, to string) ([]Snapshot, error) {
	query := ds.DB.Model(&Snapshot{})
	if site != "" {
		query = query.Where("site_name = ?", site)
	}
	if from != "" {
		query = query.Where("collection_date >= ?", from)
	}
	if to != "" {
		query = query.Where("collection_date <= ?", to)
	}

	var snapshots []Snapshot
	if err := query.Order("collection_date ASC, collection_time ASC, site_name ASC").Find(&snapshots).Error; err != nil {
		return nil, dbError(err, "query_snapshots", "", "site", site, "from", from, "to", to)
	}
	return snapshots, nil
}

// LatestDistinctDates returns up to n snapshots of site, one per distinct
// date, newest date first. Each is the sample with the greatest time of day
// on its date.
func (ds *DataStore) LatestDistinctDates(site string, n int) ([]Snapshot, error) {
	return ds.latestDistinct(site, n, nil)
}

// LatestDistinctDatesBefore is LatestDistinctDates restricted to dates
// strictly before date.
func (ds *DataStore) LatestDistinctDatesBefore(site, date string, n int) ([]Snapshot, error) {
	return ds.latestDistinct(site, n, func(q *gorm.DB) *gorm.DB {
		return q.Where("collection_date < ?", date)
	})
}

// RepresentativeSnapshot returns the latest sample of site on date, or a
// not-found error.
func (ds *DataStore) RepresentativeSnapshot(site, date string) (*Snapshot, error) {
	rows, err := ds.latestDistinct(site, 1, func(q *gorm.DB) *gorm.DB {
		return q.Where("collection_date = ?", date)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Newf("no snapshot for %s on %s", site, date).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return &rows[0], nil
}

func (ds *DataStore) latestDistinct(site string, n int, filter func(*gorm.DB) *gorm.DB) ([]Snapshot, error) {
	if n <= 0 {
		return nil, validationError("n must be positive", "n", n)
	}

	latest := ds.DB.Model(&Snapshot{}).
		Select("collection_date, MAX(collection_time) AS max_time").
		Where("site_name = ?", site)
	if filter != nil {
		latest = filter(latest)
	}
	latest = latest.Group("collection_date").Order("collection_date DESC").Limit(n)

	var snapshots []Snapshot
	err := ds.DB.Model(&Snapshot{}).
		Select("snapshots.*").
		Joins("JOIN (?) AS latest ON latest.collection_date = snapshots.collection_date AND latest.max_time = snapshots.collection_time", latest).
		Where("snapshots.site_name = ?", site).
		Order("snapshots.collection_date DESC").
		Find(&snapshots).Error
	if err != nil {
		return nil, dbError(err, "latest_distinct_dates", "", "site", site, "n", n)
	}
	return snapshots, nil
}

// SitesWithSnapshotsOn lists the sites that have at least one sample on date.
func (ds *DataStore) SitesWithSnapshotsOn(date string) ([]string, error) {
	var names []string
	err := ds.DB.Model(&Snapshot{}).
		Distinct().
		Where("collection_date = ?", date).
		Order("site_name").
		Pluck("site_name", &names).Error
	if err != nil {
		return nil, dbError(err, "sites_with_snapshots", "", "date", date)
	}
	return names, nil
}

// SiteAverages returns the mean players online per site between from and to
// inclusive.
func (ds *DataStore) SiteAverages(from, to string) ([]SiteAverage, error) {
	var rows []SiteAverage
	err := ds.DB.Model(&Snapshot{}).
		Select("site_name, AVG(players_online) AS avg_players, COUNT(*) AS samples").
		Where("collection_date >= ? AND collection_date <= ?", from, to).
		Group("site_name").
		Order("site_name").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(err, "site_averages", "", "from", from, "to", to)
	}
	return rows, nil
}

// LatestCollectionStats returns the most recent collection statistics.
func (ds *DataStore) LatestCollectionStats(limit int) ([]CollectionStats, error) {
	var stats []CollectionStats
	err := ds.DB.Order("collection_date DESC, collection_time DESC").Limit(limit).Find(&stats).Error
	if err != nil {
		return nil, dbError(err, "latest_collection_stats", "", "limit", limit)
	}
	return stats, nil
}
