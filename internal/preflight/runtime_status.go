package preflight

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// DiskSpace reports free and total megabytes for the filesystem holding path.
func DiskSpace(path string) (freeMB, totalMB uint64, err error) {
	var stat unix.Statfs_t
	if err := statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	bsize := uint64(stat.Bsize)
	return uint64(stat.Bavail) * bsize >> 20, uint64(stat.Blocks) * bsize >> 20, nil
}

// MemoryUsageMB reports the process's current heap allocation in megabytes.
func MemoryUsageMB() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.Alloc) / (1 << 20)
}
