package datastore

import (
	"time"

	"gorm.io/gorm/clause"
)

// UpsertNewsItems stores items keyed by URL; a known URL has its content
// refreshed.
func (ds *DataStore) UpsertNewsItems(items []NewsItem) error {
	if len(items) == 0 {
		return nil
	}

	byURL := make(map[string]int, len(items))
	unique := make([]NewsItem, 0, len(items))
	now := time.Now()
	for i := range items {
		if items[i].URL == "" {
			return validationError("news item requires a url", "title", items[i].Title)
		}
		if items[i].FetchedAt.IsZero() {
			items[i].FetchedAt = now
		}
		if pos, seen := byURL[items[i].URL]; seen {
			unique[pos] = items[i]
			continue
		}
		byURL[items[i].URL] = len(unique)
		unique = append(unique, items[i])
	}

	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "body", "source", "published_date", "published_at", "fetched_at"}),
	}).Create(&unique).Error
	if err != nil {
		return dbError(err, "upsert_news_items", "", "items", len(unique))
	}
	return nil
}

// GetNewsItemsBetween returns items published between from and to inclusive.
func (ds *DataStore) GetNewsItemsBetween(from, to string) ([]NewsItem, error) {
	var items []NewsItem
	err := ds.DB.Where("published_date >= ? AND published_date <= ?", from, to).
		Order("published_date ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, dbError(err, "get_news_items", "", "from", from, "to", to)
	}
	return items, nil
}
