package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/monitor"
	"github.com/tphakala/pokerwatch/internal/observability/metrics"
)

// HealthReport is the result of one health check.
type HealthReport struct {
	CheckedAt   time.Time           `json:"checked_at"`
	Healthy     bool                `json:"healthy"`
	LastSuccess *time.Time          `json:"last_success,omitempty"`
	Stale       bool                `json:"stale"`
	DatabaseOK  bool                `json:"database_ok"`
	Disk        *monitor.DiskStatus `json:"disk,omitempty"`
	LowDisk     bool                `json:"low_disk"`
	Problems    []string            `json:"problems,omitempty"`
}

// CheckHealth runs Health, logs every problem as a warning and notifies the
// operator when the pipeline is unhealthy. The check itself never fails.
func (o *Orchestrator) CheckHealth(ctx context.Context) HealthReport {
	start := time.Now()
	report := o.Health(ctx)

	o.observe(func(m *metrics.PipelineMetrics) {
		m.RecordDuration(metrics.OpHealthCheck, time.Since(start).Seconds())
		if report.Healthy {
			m.RecordOperation(metrics.OpHealthCheck, metrics.StatusSuccess)
		} else {
			m.RecordOperation(metrics.OpHealthCheck, metrics.StatusError)
		}
	})

	if report.Healthy {
		o.log.Info("health check passed")
		return report
	}

	for _, p := range report.Problems {
		o.log.Warn("health check problem", logger.String("problem", p))
	}
	o.notify(ctx, "pokerwatch: health check warning", strings.Join(report.Problems, "\n"))
	return report
}

// Health verifies the database answers, the last successful cycle is recent
// enough and the storage filesystem has room.
func (o *Orchestrator) Health(ctx context.Context) HealthReport {
	report := HealthReport{CheckedAt: o.now(), DatabaseOK: true}

	if err := o.store.Ping(ctx); err != nil {
		report.DatabaseOK = false
		report.Problems = append(report.Problems, fmt.Sprintf("database unreachable: %v", err))
	}

	staleAfter := o.settings.Health.StaleAfter
	if staleAfter <= 0 {
		staleAfter = conf.DefaultStaleAfter
	}
	if report.DatabaseOK {
		last, err := o.store.LastSuccessfulCycle()
		switch {
		case err != nil:
			report.Problems = append(report.Problems, fmt.Sprintf("reading cycle history: %v", err))
		case last == nil:
			report.Stale = true
			report.Problems = append(report.Problems, "no successful collection recorded")
		default:
			finished := last.StartedAt
			if last.FinishedAt != nil {
				finished = *last.FinishedAt
			}
			report.LastSuccess = &finished
			if age := report.CheckedAt.Sub(finished); age > staleAfter {
				report.Stale = true
				report.Problems = append(report.Problems,
					fmt.Sprintf("last successful collection %s ago exceeds %s", age.Round(time.Minute), staleAfter))
			}
		}
	}

	minFree := o.settings.Health.MinFreeBytes
	if minFree == 0 {
		minFree = conf.DefaultMinFreeBytes
	}
	status, err := o.disk.Check(monitor.StoragePath(o.settings))
	if err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("disk check failed: %v", err))
	} else {
		report.Disk = &status
		if status.Free < minFree {
			report.LowDisk = true
			report.Problems = append(report.Problems,
				fmt.Sprintf("low storage on %s: %.2f GiB free", status.Path, status.FreeGB()))
		}
	}

	report.Healthy = len(report.Problems) == 0
	return report
}
