package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tidy-go/internal/tidy"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// Quarantining reads the source file into memory and removes it from disk,
// preserving the vault's move semantics while keeping the quarantined bytes
// out of the filesystem. Useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	files map[string]memoryFile // quarantine path -> content
	mu    sync.RWMutex
}

type memoryFile struct {
	data []byte
	mode os.FileMode
}

// NewMemoryVault creates a new in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{files: make(map[string]memoryFile)}
}

// Quarantine reads the file at srcPath into memory and removes it from disk.
func (m *MemoryVault) Quarantine(srcPath string, key string) (string, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return "", fmt.Errorf("quarantine source not accessible: %w", err)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("reading quarantine source: %w", err)
	}

	m.mu.Lock()
	quarantinePath := "memory://" + key
	for i := 1; ; i++ {
		if _, taken := m.files[quarantinePath]; !taken {
			break
		}
		quarantinePath = fmt.Sprintf("memory://%s.%d", key, i)
	}
	m.files[quarantinePath] = memoryFile{data: data, mode: info.Mode()}
	m.mu.Unlock()

	if err := os.Remove(srcPath); err != nil {
		return "", fmt.Errorf("removing quarantine source: %w", err)
	}
	return quarantinePath, nil
}

// Restore writes a quarantined file back to originalPath.
// The decrypt context is ignored; this vault stores plaintext.
func (m *MemoryVault) Restore(quarantinePath string, originalPath string, decrypt tidy.DecryptionContext) error {
	m.mu.RLock()
	f, ok := m.files[quarantinePath]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("quarantined file not found: %s", quarantinePath)
	}

	if _, err := os.Lstat(originalPath); err == nil {
		return &tidy.RestoreConflictError{Path: originalPath}
	}

	if err := os.MkdirAll(filepath.Dir(originalPath), 0755); err != nil {
		return fmt.Errorf("creating restore directory: %w", err)
	}

	if err := os.WriteFile(originalPath, f.data, f.mode); err != nil {
		return fmt.Errorf("writing restored file: %w", err)
	}

	m.mu.Lock()
	delete(m.files, quarantinePath)
	m.mu.Unlock()
	return nil
}

// Purge permanently deletes the quarantined copy.
func (m *MemoryVault) Purge(quarantinePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[quarantinePath]; !ok {
		return fmt.Errorf("quarantined file not found: %s", quarantinePath)
	}
	delete(m.files, quarantinePath)
	return nil
}

// Encrypted reports that this vault stores plaintext.
func (m *MemoryVault) Encrypted() bool { return false }

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Len returns the number of quarantined files. For tests.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Compile-time check that MemoryVault implements tidy.Vault interface
var _ tidy.Vault = (*MemoryVault)(nil)
