package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"tidy-go/internal/tidy"
)

// OSFilesystemManager is the real filesystem implementation of
// tidy.FilesystemManager. It performs actual filesystem operations using the
// os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a filesystem manager that operates on the
// real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*tidy.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return tidy.NewPath(absPath, info.IsDir(), info), nil
}

// Exists reports whether anything is present at path.
func (m *OSFilesystemManager) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// CreateDir creates a directory, including missing parents.
func (m *OSFilesystemManager) CreateDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// Move renames src to dst, falling back to copy+remove when rename fails
// (e.g. across devices). It fails if dst already exists.
func (m *OSFilesystemManager) Move(src, dst string) error {
	if m.Exists(dst) {
		return fmt.Errorf("destination already exists: %s", dst)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyAndRemove(src, dst)
}

// copyAndRemove copies src to dst preserving mode, then removes src.
// The copy goes through a temp file in dst's directory so a partial copy
// never occupies the destination path.
func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tidy-move-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, info.Mode()); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	success = true

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}

// Remove permanently deletes a file.
func (m *OSFilesystemManager) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// RemoveDirIfEmpty removes a directory only when it contains no entries.
func (m *OSFilesystemManager) RemoveDirIfEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, fmt.Errorf("reading directory: %w", err)
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("removing directory: %w", err)
	}
	return true, nil
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Compile-time check that OSFilesystemManager implements tidy.FilesystemManager
var _ tidy.FilesystemManager = (*OSFilesystemManager)(nil)
