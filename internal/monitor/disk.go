// Package monitor checks the storage capacity available to the time series.
package monitor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
)

const bytesPerGB = 1024 * 1024 * 1024

// GetLogger returns the monitor module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("monitor")
}

// DiskStatus is the capacity of the filesystem holding a path.
type DiskStatus struct {
	Path        string  `json:"path"`
	MountPoint  string  `json:"mount_point,omitempty"`
	Device      string  `json:"device,omitempty"`
	Fstype      string  `json:"fstype,omitempty"`
	Total       uint64  `json:"total_bytes"`
	Free        uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// FreeGB returns the free space in GiB.
func (s DiskStatus) FreeGB() float64 {
	return float64(s.Free) / bytesPerGB
}

// DiskChecker reports filesystem capacity.
type DiskChecker interface {
	Check(path string) (DiskStatus, error)
}

// Checker is a DiskChecker backed by gopsutil.
type Checker struct {
	usage      func(path string) (*disk.UsageStat, error)
	partitions func(all bool) ([]disk.PartitionStat, error)
}

// NewChecker returns a checker reading the host filesystems.
func NewChecker() *Checker {
	return &Checker{usage: disk.Usage, partitions: disk.Partitions}
}

// Check implements DiskChecker. Mount information is best effort; a failure
// to read the usage itself is an error.
func (c *Checker) Check(path string) (DiskStatus, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return DiskStatus{}, errors.New(fmt.Errorf("path does not exist: %s: %w", path, statErr)).
				Component("monitor").
				Category(errors.CategoryDiskUsage).
				Context("path", path).
				Build()
		}
		resolved = path
	}

	usage, err := c.usage(resolved)
	if err != nil {
		return DiskStatus{}, errors.New(err).
			Component("monitor").
			Category(errors.CategoryDiskUsage).
			Context("path", resolved).
			Build()
	}

	status := DiskStatus{
		Path:        resolved,
		Total:       usage.Total,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
		Fstype:      usage.Fstype,
	}

	if c.partitions != nil {
		if partitions, err := c.partitions(false); err == nil {
			if p, ok := matchMount(resolved, partitions); ok {
				status.MountPoint = p.Mountpoint
				status.Device = p.Device
				status.Fstype = p.Fstype
			}
		} else {
			GetLogger().Debug("failed to list partitions", logger.Error(err))
		}
	}

	GetLogger().Debug("disk usage check completed",
		logger.String("path", resolved),
		logger.String("mount_point", status.MountPoint),
		logger.String("free_gb", fmt.Sprintf("%.2f", status.FreeGB())),
		logger.String("used_percent", fmt.Sprintf("%.2f%%", status.UsedPercent)))
	return status, nil
}
