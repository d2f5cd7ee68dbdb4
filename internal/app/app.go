// Package app wires the pokerwatch components from settings. Every command
// that runs the pipeline builds one App and closes it on exit.
package app

import (
	"context"
	"fmt"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/mqtt"
	"github.com/tphakala/pokerwatch/internal/news"
	"github.com/tphakala/pokerwatch/internal/notification"
	"github.com/tphakala/pokerwatch/internal/observability"
	"github.com/tphakala/pokerwatch/internal/orchestrator"
	"github.com/tphakala/pokerwatch/internal/sites"
	"github.com/tphakala/pokerwatch/internal/source"
)

// App holds the wired components of one process.
type App struct {
	Settings     *conf.Settings
	Store        datastore.Interface
	Metrics      *observability.Metrics
	Registry     *sites.Registry
	Orchestrator *orchestrator.Orchestrator

	publisher *mqtt.Publisher
	log       logger.Logger
}

// GetLogger returns the app module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// OpenStore opens the configured backend.
func OpenStore(settings *conf.Settings) (datastore.Interface, error) {
	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// LoadRegistry returns the roster named by settings, or the built-in one,
// with configured baselines applied.
func LoadRegistry(settings *conf.Settings, rosterFile string) (*sites.Registry, error) {
	if rosterFile == "" {
		rosterFile = settings.Main.Roster
	}

	registry := sites.DefaultRegistry()
	if rosterFile != "" {
		roster, err := sites.LoadRoster(rosterFile)
		if err != nil {
			return nil, err
		}
		if registry, err = sites.NewRegistry(roster); err != nil {
			return nil, err
		}
	}
	return registry.WithBaselines(settings.Validation.Baselines), nil
}

// New opens the store and builds the orchestrator with every optional
// collaborator enabled in settings. Advisory collaborators that fail to
// connect are logged and left out.
func New(ctx context.Context, settings *conf.Settings) (*App, error) {
	a := &App{Settings: settings, log: GetLogger()}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("error initializing metrics: %w", err)
	}
	a.Metrics = m

	if a.Registry, err = LoadRegistry(settings, ""); err != nil {
		return nil, err
	}

	src, err := source.New(&settings.Source)
	if err != nil {
		return nil, err
	}

	notifier, err := notification.New(&settings.Notification)
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithMetrics(m.Pipeline),
		orchestrator.WithRegistry(a.Registry),
		orchestrator.WithNotifier(notifier),
	}

	if settings.News.Enabled {
		feed, err := news.NewFeedClient(&settings.News, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithNewsProvider(feed))
	}

	if settings.MQTT.Enabled {
		if p := a.connectMQTT(ctx); p != nil {
			opts = append(opts, orchestrator.WithPublisher(p))
		}
	}

	if a.Store, err = OpenStore(settings); err != nil {
		a.Close()
		return nil, err
	}

	a.Orchestrator = orchestrator.New(settings, a.Store, src, opts...)
	a.log.Info("pipeline initialized",
		logger.String("source", src.Name()),
		logger.Bool("news", settings.News.Enabled),
		logger.Bool("mqtt", a.publisher != nil),
		logger.Bool("notifications", settings.Notification.Enabled))
	return a, nil
}

func (a *App) connectMQTT(ctx context.Context) *mqtt.Publisher {
	client, err := mqtt.NewClient(a.Settings, a.Metrics.MQTT)
	if err != nil {
		a.log.Warn("mqtt disabled, invalid configuration", logger.Error(err))
		return nil
	}
	if err := client.Connect(ctx); err != nil {
		a.log.Warn("mqtt broker unreachable, change events will not be published", logger.Error(err))
		return nil
	}
	a.publisher = mqtt.NewPublisher(client, a.Settings.MQTT.Topic)
	return a.publisher
}

// Close disconnects collaborators and closes the store.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Warn("failed to close database", logger.Error(err))
		}
	}
}
