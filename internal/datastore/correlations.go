package datastore

import (
	"gorm.io/gorm"
)

// ReplaceCorrelations deletes the correlation records of eventIDs and stores
// records in their place.
func (ds *DataStore) ReplaceCorrelations(eventIDs []uint, records []CorrelationRecord) error {
	if ds.DB == nil {
		return stateError(errNotOpen, "replace_correlations", "connection")
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if len(eventIDs) > 0 {
			if err := tx.Where("change_event_id IN ?", eventIDs).Delete(&CorrelationRecord{}).Error; err != nil {
				return err
			}
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return writeError(err, "replace_correlations", "events", len(eventIDs), "records", len(records))
	}
	return nil
}

// GetCorrelations returns the correlation records of events detected on
// date, grouped by event and ordered by descending confidence.
func (ds *DataStore) GetCorrelations(date string) ([]CorrelationRecord, error) {
	var records []CorrelationRecord
	err := ds.DB.Model(&CorrelationRecord{}).
		Select("correlation_records.*").
		Joins("JOIN change_events ON change_events.id = correlation_records.change_event_id").
		Where("change_events.detection_date = ?", date).
		Order("correlation_records.change_event_id ASC, correlation_records.confidence DESC, correlation_records.id ASC").
		Find(&records).Error
	if err != nil {
		return nil, dbError(err, "get_correlations", "", "date", date)
	}
	return records, nil
}
