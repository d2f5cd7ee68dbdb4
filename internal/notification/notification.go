// Package notification delivers operator alerts (abandoned cycles, failed
// health checks, weekly summaries) through shoutrrr service URLs.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
)

// Notifier sends a titled message to the operator.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Nop is a Notifier that only logs at debug level.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(_ context.Context, title, _ string) error {
	GetLogger().Debug("notification suppressed, no service configured", logger.String("title", title))
	return nil
}

// GetLogger returns the notification module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}

// Service sends every message to all configured shoutrrr URLs.
type Service struct {
	urls   []string
	sender *router.ServiceRouter
	log    logger.Logger
}

// New returns a Nop notifier when notifications are disabled and a
// shoutrrr-backed Service otherwise.
func New(settings *conf.NotificationSettings) (Notifier, error) {
	if settings == nil || !settings.Enabled {
		return Nop{}, nil
	}
	return NewService(settings.URLs, settings.Timeout)
}

// NewService builds a sender for urls. Invalid URLs are a configuration
// error with credentials scrubbed from the message.
func NewService(urls []string, timeout time.Duration) (*Service, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification url is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.Newf("invalid notification url: %s", errors.ScrubMessage(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout <= 0 {
		timeout = conf.DefaultNotifyTimeout
	}
	sender.Timeout = timeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &Service{urls: slices.Clone(urls), sender: sender, log: GetLogger()}, nil
}

// Notify implements Notifier. The router applies its own timeout; ctx is
// only checked before sending.
func (s *Service) Notify(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	var failed []error
	for _, err := range s.sender.Send(message, &params) {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return errors.Newf("%d of %d notification services failed: %s",
			len(failed), len(s.urls), errors.ScrubMessage(failed[0].Error())).
			Component("notification").
			Category(errors.CategoryNotification).
			Timing("notify", time.Since(start)).
			Build()
	}

	s.log.Info("notification sent",
		logger.String("title", title),
		logger.Int("services", len(s.urls)),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// String describes the service without exposing its URLs.
func (s *Service) String() string {
	return fmt.Sprintf("shoutrrr(%d services)", len(s.urls))
}
