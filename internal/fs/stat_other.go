//go:build !unix

package fs

import (
	"io/fs"
	"time"
)

// creationTime falls back to mtime on platforms without Unix stat data.
func creationTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
