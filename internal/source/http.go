package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"golang.org/x/time/rate"
)

// HTTPSource fetches records from a JSON endpoint.
type HTTPSource struct {
	url       string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewHTTPSource creates an HTTP source. A nil client gets one with the
// configured timeout.
func NewHTTPSource(settings *conf.SourceSettings, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: settings.Timeout}
	}
	limit := rate.Inf
	if settings.RateLimit > 0 {
		limit = rate.Limit(settings.RateLimit)
	}
	return &HTTPSource{
		url:       settings.URL,
		userAgent: settings.UserAgent,
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Name implements Source.
func (s *HTTPSource) Name() string { return "http" }

// Fetch implements Source. Any transport, status or decode failure is a
// source-unavailable error.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Record, error) {
	start := time.Now()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, s.fail(err, "rate_limit_wait", start)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, s.fail(err, "create_request", start)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.fail(err, "http_request", start)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			GetLogger().Debug("failed to close response body", logger.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, s.fail(fmt.Errorf("unexpected status %d", resp.StatusCode), "http_status", start)
	}

	records, err := parseRecords(resp.Body)
	if err != nil {
		return nil, s.fail(err, "decode_payload", start)
	}

	GetLogger().Debug("fetched snapshot records",
		logger.Int("records", len(records)),
		logger.Duration("duration", time.Since(start)))
	return records, nil
}

func (s *HTTPSource) fail(err error, operation string, start time.Time) error {
	return errors.New(err).
		Component("source").
		Category(errors.CategorySourceUnavailable).
		Timing(operation, time.Since(start)).
		Context("url", s.url).
		Build()
}
