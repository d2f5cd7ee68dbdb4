package orchestrator

import (
	"time"

	"github.com/tphakala/pokerwatch/internal/datastore"
)

// DefaultStatusLimit is the number of cycles reported when no limit is
// given.
const DefaultStatusLimit = 10

// StatusReport describes recent pipeline activity.
type StatusReport struct {
	State               State                       `json:"state"`
	Running             bool                        `json:"running"`
	LastSuccess         *time.Time                  `json:"last_success,omitempty"`
	ConsecutiveFailures int                         `json:"consecutive_failures"`
	Cycles              []datastore.CycleRun        `json:"cycles"`
	Collections         []datastore.CollectionStats `json:"collections"`
}

// Status reports the last limit cycles and collections, the last success
// and the current failure streak.
func (o *Orchestrator) Status(limit int) (*StatusReport, error) {
	return BuildStatus(o.store, limit, o.State(), o.Running())
}

// BuildStatus reads a status report from store. It is used by commands
// that have no running orchestrator.
func BuildStatus(store datastore.Interface, limit int, state State, running bool) (*StatusReport, error) {
	if limit <= 0 {
		limit = DefaultStatusLimit
	}

	cycles, err := store.RecentCycleRuns(limit)
	if err != nil {
		return nil, err
	}
	collections, err := store.LatestCollectionStats(limit)
	if err != nil {
		return nil, err
	}
	failures, err := store.ConsecutiveFailures()
	if err != nil {
		return nil, err
	}
	last, err := store.LastSuccessfulCycle()
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		State:               state,
		Running:             running,
		ConsecutiveFailures: failures,
		Cycles:              cycles,
		Collections:         collections,
	}
	if last != nil {
		ts := last.StartedAt
		if last.FinishedAt != nil {
			ts = *last.FinishedAt
		}
		report.LastSuccess = &ts
	}
	return report, nil
}
