package datastore

import (
	"gorm.io/gorm/clause"
)

// UpsertSites registers sites, updating the metadata of known names.
func (ds *DataStore) UpsertSites(sites []Site) error {
	if len(sites) == 0 {
		return nil
	}
	for i := range sites {
		if sites[i].Name == "" {
			return validationError("site requires a name", "index", i)
		}
	}

	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "priority", "expected_players", "updated_at"}),
	}).Create(&sites).Error
	if err != nil {
		return writeError(err, "upsert_sites", "sites", len(sites))
	}
	return nil
}

// GetSites returns the registered sites ordered by priority.
func (ds *DataStore) GetSites() ([]Site, error) {
	var sites []Site
	if err := ds.DB.Order("priority ASC, name ASC").Find(&sites).Error; err != nil {
		return nil, dbError(err, "get_sites", "")
	}
	return sites, nil
}
