package datastore

import (
	"github.com/tphakala/pokerwatch/internal/errors"
	"gorm.io/gorm"
)

// SaveCycleRun inserts or updates run by ID.
func (ds *DataStore) SaveCycleRun(run *CycleRun) error {
	if run.ID == "" {
		return validationError("cycle run requires an id", "id", run.ID)
	}
	if err := ds.DB.Save(run).Error; err != nil {
		return dbError(err, "save_cycle_run", "", "cycle_id", run.ID, "status", run.Status)
	}
	return nil
}

// RecentCycleRuns returns the latest runs, newest first.
func (ds *DataStore) RecentCycleRuns(limit int) ([]CycleRun, error) {
	var runs []CycleRun
	if err := ds.DB.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, dbError(err, "recent_cycle_runs", "", "limit", limit)
	}
	return runs, nil
}

// LastSuccessfulCycle returns the newest successful run, or nil when there
// has been none.
func (ds *DataStore) LastSuccessfulCycle() (*CycleRun, error) {
	var run CycleRun
	err := ds.DB.Where("status = ?", CycleStatusSuccess).Order("started_at DESC").Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err, "last_successful_cycle", "")
	}
	return &run, nil
}

// ConsecutiveFailures counts failed or abandoned runs since the last
// successful one.
func (ds *DataStore) ConsecutiveFailures() (int, error) {
	last, err := ds.LastSuccessfulCycle()
	if err != nil {
		return 0, err
	}

	query := ds.DB.Model(&CycleRun{}).Where("status IN ?", []string{CycleStatusFailed, CycleStatusAbandoned})
	if last != nil {
		query = query.Where("started_at > ?", last.StartedAt)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, dbError(err, "consecutive_failures", "")
	}
	return int(count), nil
}
