package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"
	"github.com/patrickmn/go-cache"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"golang.org/x/time/rate"
)

const (
	userAgent    = "pokerwatch/1.0 (news)"
	feedCacheKey = "feed"
)

// Accepted spellings of each item field, in order of preference.
var (
	titleKeys     = []string{"title", "headline"}
	bodyKeys      = []string{"body", "content", "summary", "description"}
	urlKeys       = []string{"url", "link"}
	sourceKeys    = []string{"source", "site"}
	publishedKeys = []string{"published_at", "published", "date", "pubDate"}
	itemListKeys  = []string{"items", "articles", "news"}
)

// FeedClient reads a JSON news feed. The parsed feed is cached for the
// configured TTL, so several cycles within the TTL issue one request.
type FeedClient struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache
	log     logger.Logger
}

// NewFeedClient creates a feed client. A nil client gets one with the
// configured timeout.
func NewFeedClient(settings *conf.NewsSettings, client *http.Client) (*FeedClient, error) {
	if settings.FeedURL == "" {
		return nil, errors.Newf("news feed url is not configured").
			Component("news").
			Category(errors.CategoryConfiguration).
			Build()
	}

	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = conf.DefaultSourceTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	ttl := settings.CacheTTL
	if ttl <= 0 {
		ttl = conf.DefaultNewsCacheDuration
	}

	return &FeedClient{
		url:     settings.FeedURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cache:   cache.New(ttl, ttl*2),
		log:     GetLogger(),
	}, nil
}

// FetchRecentItems implements Provider.
func (c *FeedClient) FetchRecentItems(ctx context.Context, since time.Time) ([]Item, error) {
	all, err := c.feed(ctx)
	if err != nil {
		return nil, err
	}

	recent := make([]Item, 0, len(all))
	for i := range all {
		if !all[i].Published.Before(since) {
			recent = append(recent, all[i])
		}
	}
	return recent, nil
}

// Flush drops the cached feed.
func (c *FeedClient) Flush() {
	c.cache.Flush()
}

func (c *FeedClient) feed(ctx context.Context) ([]Item, error) {
	if cached, found := c.cache.Get(feedCacheKey); found {
		if items, ok := cached.([]Item); ok {
			c.log.Debug("news feed cache hit", logger.Int("items", len(items)))
			return items, nil
		}
	}

	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(err, "rate_limit_wait", start)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, c.fail(err, "create_request", start)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.fail(err, "http_request", start)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Debug("failed to close response body", logger.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(fmt.Errorf("unexpected status %d", resp.StatusCode), "http_status", start)
	}

	items, skipped, err := parseFeed(resp.Body)
	if err != nil {
		return nil, c.fail(err, "decode_feed", start)
	}
	if skipped > 0 {
		c.log.Debug("skipped malformed news items", logger.Int("skipped", skipped))
	}

	c.cache.Set(feedCacheKey, items, cache.DefaultExpiration)
	c.log.Info("news feed fetched",
		logger.Int("items", len(items)),
		logger.Duration("duration", time.Since(start)))
	return items, nil
}

func (c *FeedClient) fail(err error, operation string, start time.Time) error {
	return errors.New(err).
		Component("news").
		Category(errors.CategoryNewsFetch).
		Context("operation", operation).
		Context("url", c.url).
		Timing("news_fetch", time.Since(start)).
		Build()
}

// parseFeed accepts a top-level array of items or an object holding one
// under "items", "articles" or "news". Items lacking a title or a parsable
// publication time are skipped and counted.
func parseFeed(r io.Reader) (items []Item, skipped int, err error) {
	value, err := jason.NewValueFromReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decode news feed: %w", err)
	}

	objects, err := objectArray(value)
	if err != nil {
		obj, objErr := value.Object()
		if objErr != nil {
			return nil, 0, fmt.Errorf("news feed is neither an array nor an object")
		}
		for _, key := range itemListKeys {
			if objects, err = obj.GetObjectArray(key); err == nil {
				break
			}
		}
		if err != nil {
			return nil, 0, fmt.Errorf("news feed has no item array")
		}
	}

	items = make([]Item, 0, len(objects))
	for _, obj := range objects {
		item, ok := itemFromObject(obj)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

// objectArray returns the object elements of a top-level JSON array.
func objectArray(value *jason.Value) ([]*jason.Object, error) {
	elems, err := value.Array()
	if err != nil {
		return nil, err
	}
	out := make([]*jason.Object, 0, len(elems))
	for i, elem := range elems {
		obj, err := elem.Object()
		if err != nil {
			return nil, fmt.Errorf("feed element %d is not an object: %w", i, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

func itemFromObject(obj *jason.Object) (Item, bool) {
	title := cleanText(firstString(obj, titleKeys))
	if title == "" {
		return Item{}, false
	}
	published, ok := parseTime(firstString(obj, publishedKeys))
	if !ok {
		return Item{}, false
	}
	return Item{
		Title:     title,
		Body:      cleanText(firstString(obj, bodyKeys)),
		URL:       strings.TrimSpace(firstString(obj, urlKeys)),
		Source:    strings.TrimSpace(firstString(obj, sourceKeys)),
		Published: published,
	}, true
}

func firstString(obj *jason.Object, keys []string) string {
	for _, key := range keys {
		if s, err := obj.GetString(key); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// cleanText converts HTML fragments to plain text and collapses whitespace.
func cleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		s = html2text.HTML2Text(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	datastore.DateLayout,
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
