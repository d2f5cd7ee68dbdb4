// Package detector finds significant day-over-day changes in the stored
// time series.
package detector

import (
	"context"
	"time"

	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
)

// Store is the part of the datastore the detector needs.
type Store interface {
	SitesWithSnapshotsOn(date string) ([]string, error)
	RepresentativeSnapshot(site, date string) (*datastore.Snapshot, error)
	LatestDistinctDatesBefore(site, date string, n int) ([]datastore.Snapshot, error)
	ReplaceChangeEvents(date string, events []datastore.ChangeEvent) ([]datastore.ChangeEvent, error)
}

// Detector compares each site's snapshot on a date with the snapshot of the
// most recent prior distinct date.
type Detector struct {
	store      Store
	thresholds Thresholds
	log        logger.Logger
}

// GetLogger returns the detector module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("detector")
}

// New creates a detector.
func New(store Store, thresholds Thresholds) *Detector {
	return &Detector{store: store, thresholds: thresholds, log: GetLogger()}
}

// Detect computes the change events of date and stores them as a full
// replacement of that date's events, so repeated runs over unchanged data
// produce the same rows. Sites without a prior date are skipped.
func (d *Detector) Detect(ctx context.Context, date string) ([]datastore.ChangeEvent, error) {
	start := time.Now()

	siteNames, err := d.store.SitesWithSnapshotsOn(date)
	if err != nil {
		return nil, err
	}

	var events []datastore.ChangeEvent
	for _, site := range siteNames {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(err).
				Component("detector").
				Category(errors.CategoryCancellation).
				Context("date", date).
				Build()
		}

		current, err := d.store.RepresentativeSnapshot(site, date)
		if err != nil {
			return nil, err
		}

		prior, err := d.store.LatestDistinctDatesBefore(site, date, 1)
		if err != nil {
			return nil, err
		}
		if len(prior) == 0 {
			d.log.Debug("no baseline for site, skipping",
				logger.String("site", site),
				logger.String("date", date))
			continue
		}

		events = append(events, d.Compare(&prior[0], current)...)
	}

	saved, err := d.store.ReplaceChangeEvents(date, events)
	if err != nil {
		return nil, err
	}

	d.log.Info("change detection completed",
		logger.String("date", date),
		logger.Int("sites", len(siteNames)),
		logger.Int("events", len(saved)),
		logger.Duration("duration", time.Since(start)))
	return saved, nil
}

// Compare returns the events of current against previous, one per metric
// whose change reaches the significant tier.
func (d *Detector) Compare(previous, current *datastore.Snapshot) []datastore.ChangeEvent {
	var events []datastore.ChangeEvent
	for _, metric := range datastore.Metrics {
		prev, cur := previous.Value(metric), current.Value(metric)
		pct, ok := PercentChange(prev, cur)
		if !ok {
			continue
		}
		magnitude := d.thresholds.Classify(pct)
		if magnitude == datastore.MagnitudeNone {
			continue
		}
		events = append(events, datastore.ChangeEvent{
			SiteName:     current.SiteName,
			Date:         current.Date,
			Metric:       metric,
			PreviousDate: previous.Date,
			Previous:     prev,
			Current:      cur,
			PctChange:    round2(pct),
			Direction:    direction(pct),
			Magnitude:    magnitude,
		})
	}
	return events
}
