package store

import (
	"os"
)

// DiskUsageBytes returns the total size in bytes of the given files. A store may keep sidecar
// files next to its main path (SQLite -wal and -shm); pass those too. Missing files count as 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}

// StoreDiskUsage returns the bytes used by s including known sidecar files.
func StoreDiskUsage(s Store) (int64, error) {
	p := s.Path()
	return DiskUsageBytes(p, p+"-wal", p+"-shm")
}
