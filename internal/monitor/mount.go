package monitor

import (
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// matchMount returns the partition whose mount point is the longest prefix
// of path.
func matchMount(path string, partitions []disk.PartitionStat) (disk.PartitionStat, bool) {
	var best disk.PartitionStat
	bestLen := 0
	for _, p := range partitions {
		mp := p.Mountpoint
		if !strings.HasPrefix(path, mp) {
			continue
		}
		if path != mp && len(mp) != 1 && !strings.HasPrefix(path, mp+"/") {
			continue
		}
		if len(mp) > bestLen {
			best = p
			bestLen = len(mp)
		}
	}
	return best, bestLen > 0
}
