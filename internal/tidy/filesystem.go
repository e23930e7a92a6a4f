package tidy

import "io/fs"

// FilesystemManager provides the filesystem operations the apply engine and
// vault workflows need. It abstracts file access so engine behavior can be
// exercised against temporary directories in tests without special casing.
type FilesystemManager interface {
	// Resolve validates a raw path: absolute form, must exist, and must be a
	// regular file or directory (not a symlink, device, pipe or socket).
	Resolve(rawPath string) (*Path, error)

	// Exists reports whether anything is present at path.
	Exists(path string) bool

	// CreateDir creates a directory, including missing parents. Creating an
	// existing directory is a no-op.
	CreateDir(path string) error

	// Move renames src to dst, falling back to copy+remove across devices.
	// It fails if dst already exists.
	Move(src, dst string) error

	// Remove permanently deletes a file.
	Remove(path string) error

	// RemoveDirIfEmpty removes a directory only when it contains no entries.
	// It reports whether the directory was removed.
	RemoveDirIfEmpty(path string) (bool, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)
}
