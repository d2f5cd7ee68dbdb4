package news

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
)

const feedURL = "https://news.example.com/poker.json"

const feedBody = `{"articles": [
	{"title": "GGPoker announces WSOP satellites", "content": "<p>Daily <b>satellites</b> &amp; freerolls</p>", "link": "https://news.example.com/a", "published_at": "2026-03-10T08:00:00Z", "source": "PokerNews"},
	{"headline": "Old story", "url": "https://news.example.com/b", "date": "2026-02-01"},
	{"title": "No date", "url": "https://news.example.com/c"},
	{"url": "https://news.example.com/d", "date": "2026-03-09"}
]}`

func newMockedClient(t *testing.T) (*FeedClient, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := &http.Client{Transport: transport, Timeout: time.Second}
	fc, err := NewFeedClient(&conf.NewsSettings{Enabled: true, FeedURL: feedURL, CacheTTL: time.Minute}, client)
	require.NoError(t, err)
	return fc, transport
}

func TestFeedClient_FetchRecentItems(t *testing.T) {
	t.Parallel()

	fc, transport := newMockedClient(t)
	transport.RegisterResponder("GET", feedURL, httpmock.NewStringResponder(http.StatusOK, feedBody))

	since := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	items, err := fc.FetchRecentItems(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "GGPoker announces WSOP satellites", item.Title)
	assert.Equal(t, "https://news.example.com/a", item.URL)
	assert.Equal(t, "PokerNews", item.Source)
	assert.Contains(t, item.Body, "satellites")
	assert.Contains(t, item.Body, "& freerolls")
	assert.NotContains(t, item.Body, "<b>")

	// older items are still in the cached feed
	items, err = fc.FetchRecentItems(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, transport.GetTotalCallCount(), "second call must be served from cache")
}

func TestFeedClient_TopLevelArray(t *testing.T) {
	t.Parallel()

	fc, transport := newMockedClient(t)
	transport.RegisterResponder("GET", feedURL, httpmock.NewStringResponder(http.StatusOK,
		`[{"title": "EPT Paris recap", "url": "https://x/1", "published": "Tue, 10 Mar 2026 09:00:00 +0000"}]`))

	items, err := fc.FetchRecentItems(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2026, items[0].Published.Year())
}

func TestFeedClient_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"server error", httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway")},
		{"malformed json", httpmock.NewStringResponder(http.StatusOK, "{not json")},
		{"no item array", httpmock.NewStringResponder(http.StatusOK, `{"status": "ok"}`)},
		{"array of scalars", httpmock.NewStringResponder(http.StatusOK, `["EPT Paris", "WSOP"]`)},
		{"transport error", httpmock.NewErrorResponder(context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fc, transport := newMockedClient(t)
			transport.RegisterResponder("GET", feedURL, tt.responder)

			_, err := fc.FetchRecentItems(context.Background(), time.Time{})
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryNewsFetch))
		})
	}
}

func TestFeedClient_Flush(t *testing.T) {
	t.Parallel()

	fc, transport := newMockedClient(t)
	transport.RegisterResponder("GET", feedURL, httpmock.NewStringResponder(http.StatusOK, feedBody))

	ctx := context.Background()
	_, err := fc.FetchRecentItems(ctx, time.Time{})
	require.NoError(t, err)
	fc.Flush()
	_, err = fc.FetchRecentItems(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestNewFeedClient_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewFeedClient(&conf.NewsSettings{Enabled: true}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestToStoreItems(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	fetched := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []Item{
		{Title: "Late night news", URL: "https://x/1", Published: time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)},
		{Title: "No url"},
	}

	rows := ToStoreItems(items, loc, fetched)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-03-09", rows[0].PublishedDate, "date follows the configured timezone")
	assert.Equal(t, fetched, rows[0].FetchedAt)
}
