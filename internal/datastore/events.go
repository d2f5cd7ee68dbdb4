package datastore

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReplaceChangeEvents replaces every change event of date, and their
// correlation records, with events. Running detection twice over the same
// data therefore yields the same rows. The stored events are returned with
// their IDs.
func (ds *DataStore) ReplaceChangeEvents(date string, events []ChangeEvent) ([]ChangeEvent, error) {
	if ds.DB == nil {
		return nil, stateError(errNotOpen, "replace_change_events", "connection")
	}
	for i := range events {
		if events[i].Date != date {
			return nil, validationError("change event date does not match replaced date", "date", events[i].Date)
		}
	}

	start := time.Now()
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var oldIDs []uint
		if err := tx.Model(&ChangeEvent{}).Where("detection_date = ?", date).Pluck("id", &oldIDs).Error; err != nil {
			return err
		}
		if len(oldIDs) > 0 {
			if err := tx.Where("change_event_id IN ?", oldIDs).Delete(&CorrelationRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", oldIDs).Delete(&ChangeEvent{}).Error; err != nil {
				return err
			}
		}
		if len(events) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&events).Error
	})
	if err != nil {
		return nil, writeError(err, "replace_change_events",
			"date", date,
			"events", len(events),
			"duration_ms", time.Since(start).Milliseconds())
	}
	return events, nil
}

// GetChangeEvents returns the events detected on date.
func (ds *DataStore) GetChangeEvents(date string) ([]ChangeEvent, error) {
	var events []ChangeEvent
	err := ds.DB.Where("detection_date = ?", date).
		Order("site_name ASC, metric ASC").
		Find(&events).Error
	if err != nil {
		return nil, dbError(err, "get_change_events", "", "date", date)
	}
	return events, nil
}

// GetChangeEventsBetween returns events detected between from and to
// inclusive, oldest first.
func (ds *DataStore) GetChangeEventsBetween(from, to string) ([]ChangeEvent, error) {
	var events []ChangeEvent
	err := ds.DB.Where("detection_date >= ? AND detection_date <= ?", from, to).
		Order("detection_date ASC, site_name ASC, metric ASC").
		Find(&events).Error
	if err != nil {
		return nil, dbError(err, "get_change_events_between", "", "from", from, "to", to)
	}
	return events, nil
}
