// Package news fetches recent external news items used to explain change
// events.
package news

import (
	"context"
	"time"

	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/logger"
)

// Item is one external text item.
type Item struct {
	Title     string
	Body      string // plain text
	URL       string
	Source    string
	Published time.Time
}

// PublishedDate returns the publication date in loc as YYYY-MM-DD.
func (i *Item) PublishedDate(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return i.Published.In(loc).Format(datastore.DateLayout)
}

// Provider returns the items published at or after since.
type Provider interface {
	FetchRecentItems(ctx context.Context, since time.Time) ([]Item, error)
}

// GetLogger returns the news module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("news")
}

// ToStoreItems converts fetched items into store rows, dating them in loc.
// Items without a URL cannot be deduplicated and are skipped.
func ToStoreItems(items []Item, loc *time.Location, fetchedAt time.Time) []datastore.NewsItem {
	out := make([]datastore.NewsItem, 0, len(items))
	for i := range items {
		if items[i].URL == "" {
			continue
		}
		out = append(out, datastore.NewsItem{
			URL:           items[i].URL,
			Title:         items[i].Title,
			Body:          items[i].Body,
			Source:        items[i].Source,
			PublishedDate: items[i].PublishedDate(loc),
			PublishedAt:   items[i].Published,
			FetchedAt:     fetchedAt,
		})
	}
	return out
}
