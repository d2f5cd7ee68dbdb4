package monitor

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/pokerwatch/internal/conf"
	pwerrors "github.com/tphakala/pokerwatch/internal/errors"
)

func mockPartitions() []disk.PartitionStat {
	return []disk.PartitionStat{
		{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4"},
		{Device: "/dev/sda2", Mountpoint: "/home", Fstype: "ext4"},
		{Device: "/dev/sdb1", Mountpoint: "/mnt/data", Fstype: "xfs"},
	}
}

func TestMatchMount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		expected string
	}{
		{"/", "/"},
		{"/home/user", "/home"},
		{"/homework", "/"},
		{"/mnt/data/pokerwatch", "/mnt/data"},
		{"/mnt", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			p, ok := matchMount(tt.path, mockPartitions())
			require.True(t, ok)
			assert.Equal(t, tt.expected, p.Mountpoint)
		})
	}

	_, ok := matchMount("/data", nil)
	assert.False(t, ok)
}

func TestChecker_Check(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := &Checker{
		usage: func(path string) (*disk.UsageStat, error) {
			return &disk.UsageStat{Path: path, Total: 10 * bytesPerGB, Free: 2 * bytesPerGB, UsedPercent: 80, Fstype: "tmpfs"}, nil
		},
		partitions: func(bool) ([]disk.PartitionStat, error) {
			return []disk.PartitionStat{{Device: "rootfs", Mountpoint: "/", Fstype: "overlay"}}, nil
		},
	}

	status, err := c.Check(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*bytesPerGB), status.Free)
	assert.InDelta(t, 2.0, status.FreeGB(), 1e-9)
	assert.Equal(t, "/", status.MountPoint)
	assert.Equal(t, "overlay", status.Fstype)
}

func TestChecker_Errors(t *testing.T) {
	t.Parallel()

	c := &Checker{usage: func(string) (*disk.UsageStat, error) { return nil, errors.New("statfs failed") }}

	_, err := c.Check(t.TempDir())
	require.Error(t, err)
	assert.True(t, pwerrors.IsCategory(err, pwerrors.CategoryDiskUsage))

	_, err = c.Check(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, pwerrors.IsCategory(err, pwerrors.CategoryDiskUsage))
}

func TestNewChecker_RealFilesystem(t *testing.T) {
	t.Parallel()

	status, err := NewChecker().Check(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, status.Total)
}

func TestStoragePath(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{}
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "/var/lib/pokerwatch/pokerwatch.db"
	assert.Equal(t, "/var/lib/pokerwatch", StoragePath(s))

	s.Health.Path = "/srv/data"
	assert.Equal(t, "/srv/data", StoragePath(s))

	s = &conf.Settings{}
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = ":memory:"
	assert.True(t, filepath.IsAbs(StoragePath(s)))
}
