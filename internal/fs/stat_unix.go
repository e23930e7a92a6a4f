//go:build unix

package fs

import (
	"io/fs"
	"syscall"
	"time"
)

// creationTime returns the best available creation time for a file.
// Birth time is not available on most Unix filesystems, so the inode change
// time is used; callers fall back to mtime when stat data is unavailable.
func creationTime(info fs.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
	}
	return info.ModTime()
}
