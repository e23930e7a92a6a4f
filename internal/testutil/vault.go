package testutil

import (
	"fmt"

	"tidy-go/internal/tidy"
)

// MockVault is a vault backed by a MockFilesystemManager: quarantining moves
// the file's bytes out of the mock filesystem and into the vault map, so
// tests can assert both sides of the move.
type MockVault struct {
	fsmgr *MockFilesystemManager
	files map[string][]byte

	// FailQuarantine maps source paths whose quarantine should fail.
	FailQuarantine map[string]bool
}

// NewMockVault creates a vault over the given mock filesystem.
func NewMockVault(fsmgr *MockFilesystemManager) *MockVault {
	return &MockVault{
		fsmgr:          fsmgr,
		files:          make(map[string][]byte),
		FailQuarantine: make(map[string]bool),
	}
}

// Len returns the number of quarantined files.
func (v *MockVault) Len() int { return len(v.files) }

// Has reports whether a quarantine path is occupied.
func (v *MockVault) Has(quarantinePath string) bool {
	_, ok := v.files[quarantinePath]
	return ok
}

func (v *MockVault) Quarantine(srcPath string, key string) (string, error) {
	if v.FailQuarantine[srcPath] {
		return "", fmt.Errorf("injected quarantine failure: %s", srcPath)
	}
	content := v.fsmgr.Content(srcPath)
	if !v.fsmgr.Exists(srcPath) {
		return "", fmt.Errorf("file not found: %s", srcPath)
	}
	quarantinePath := "vault://" + key
	for i := 1; ; i++ {
		if _, taken := v.files[quarantinePath]; !taken {
			break
		}
		quarantinePath = fmt.Sprintf("vault://%s.%d", key, i)
	}
	v.files[quarantinePath] = content
	if err := v.fsmgr.Remove(srcPath); err != nil {
		return "", err
	}
	return quarantinePath, nil
}

func (v *MockVault) Restore(quarantinePath string, originalPath string, decrypt tidy.DecryptionContext) error {
	content, ok := v.files[quarantinePath]
	if !ok {
		return fmt.Errorf("quarantined file not found: %s", quarantinePath)
	}
	if v.fsmgr.Exists(originalPath) {
		return &tidy.RestoreConflictError{Path: originalPath}
	}
	v.fsmgr.AddFile(originalPath, content)
	delete(v.files, quarantinePath)
	return nil
}

func (v *MockVault) Purge(quarantinePath string) error {
	if _, ok := v.files[quarantinePath]; !ok {
		return fmt.Errorf("quarantined file not found: %s", quarantinePath)
	}
	delete(v.files, quarantinePath)
	return nil
}

func (v *MockVault) Encrypted() bool { return false }

func (v *MockVault) ValidateSetup() error { return nil }

// Compile-time check
var _ tidy.Vault = (*MockVault)(nil)
