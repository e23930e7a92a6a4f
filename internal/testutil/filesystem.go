package testutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tidy-go/internal/tidy"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing the apply
// engine without touching disk. Paths are plain map keys; CreateDir records
// every missing parent so existence checks behave like a real tree.
type MockFilesystemManager struct {
	files map[string]*MockFile

	// FailMove maps source paths whose moves should fail with an error.
	FailMove map[string]bool
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:    make(map[string]*MockFile),
		FailMove: make(map[string]bool),
	}
}

// AddFile adds a file (and its parent directories) to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     time.Now(),
	}
	m.AddDirectory(filepath.Dir(path))
}

// AddDirectory adds a directory and its parents to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	for d := path; d != "/" && d != "."; d = filepath.Dir(d) {
		if f, ok := m.files[d]; ok && f.IsDirectory {
			break
		}
		m.files[d] = &MockFile{Permissions: 0755, ModTime: time.Now(), IsDirectory: true}
	}
}

// Content returns a file's content, or nil if absent.
func (m *MockFilesystemManager) Content(path string) []byte {
	if f, ok := m.files[path]; ok && !f.IsDirectory {
		return f.Content
	}
	return nil
}

// Paths returns every known path, sorted. For test assertions.
func (m *MockFilesystemManager) Paths() []string {
	var out []string
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*tidy.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}

	info := &mockFileInfo{
		name:    filepath.Base(absPath),
		size:    int64(len(file.Content)),
		mode:    file.Permissions,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
	return tidy.NewPath(absPath, file.IsDirectory, info), nil
}

func (m *MockFilesystemManager) Exists(path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *MockFilesystemManager) CreateDir(path string) error {
	if f, ok := m.files[path]; ok && !f.IsDirectory {
		return fmt.Errorf("not a directory: %s", path)
	}
	m.AddDirectory(path)
	return nil
}

func (m *MockFilesystemManager) Move(src, dst string) error {
	if m.FailMove[src] {
		return fmt.Errorf("injected move failure: %s", src)
	}
	file, ok := m.files[src]
	if !ok {
		return fmt.Errorf("file not found: %s", src)
	}
	if _, ok := m.files[dst]; ok {
		return fmt.Errorf("destination already exists: %s", dst)
	}
	if parent, ok := m.files[filepath.Dir(dst)]; !ok || !parent.IsDirectory {
		return fmt.Errorf("destination directory does not exist: %s", filepath.Dir(dst))
	}
	m.files[dst] = file
	delete(m.files, src)
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	f, ok := m.files[path]
	if !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	if f.IsDirectory {
		return fmt.Errorf("is a directory: %s", path)
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystemManager) RemoveDirIfEmpty(path string) (bool, error) {
	f, ok := m.files[path]
	if !ok {
		return false, fmt.Errorf("directory not found: %s", path)
	}
	if !f.IsDirectory {
		return false, fmt.Errorf("not a directory: %s", path)
	}
	prefix := path + string(filepath.Separator)
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return false, nil
		}
	}
	delete(m.files, path)
	return true, nil
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.Content)),
		mode:    file.Permissions,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ tidy.FilesystemManager = (*MockFilesystemManager)(nil)
