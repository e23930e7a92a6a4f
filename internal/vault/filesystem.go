package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tidy-go/internal/tidy"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// Quarantined files are moved (not copied) into a flat directory:
//
//	<root>/
//	  files/
//	    <key>          (quarantined content, named by hash-derived key)
//
// The vault keeps no metadata of its own; the history ledger records which
// quarantine path belongs to which original file.
type FileSystemVault struct {
	root     string
	filesDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(root string) (*FileSystemVault, error) {
	filesDir := filepath.Join(root, "files")

	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	return &FileSystemVault{root: root, filesDir: filesDir}, nil
}

// Quarantine moves the file at srcPath into the vault under key.
// If the key is already occupied, a numeric suffix disambiguates so an
// existing quarantined file is never overwritten.
func (v *FileSystemVault) Quarantine(srcPath string, key string) (string, error) {
	if _, err := os.Lstat(srcPath); err != nil {
		return "", fmt.Errorf("quarantine source not accessible: %w", err)
	}

	destPath, err := v.claimPath(key)
	if err != nil {
		return "", err
	}

	if err := moveFile(srcPath, destPath); err != nil {
		return "", fmt.Errorf("moving file into vault: %w", err)
	}
	return destPath, nil
}

// claimPath finds an unoccupied vault path for key.
func (v *FileSystemVault) claimPath(key string) (string, error) {
	destPath := filepath.Join(v.filesDir, key)
	for i := 1; ; i++ {
		if _, err := os.Lstat(destPath); os.IsNotExist(err) {
			return destPath, nil
		} else if err != nil {
			return "", fmt.Errorf("checking vault path: %w", err)
		}
		destPath = filepath.Join(v.filesDir, fmt.Sprintf("%s.%d", key, i))
	}
}

// Restore moves a quarantined file back to originalPath.
// The decrypt context is ignored; this vault stores plaintext.
func (v *FileSystemVault) Restore(quarantinePath string, originalPath string, decrypt tidy.DecryptionContext) error {
	if _, err := os.Lstat(quarantinePath); err != nil {
		return fmt.Errorf("quarantined file not accessible: %w", err)
	}

	if _, err := os.Lstat(originalPath); err == nil {
		return &tidy.RestoreConflictError{Path: originalPath}
	}

	if err := os.MkdirAll(filepath.Dir(originalPath), 0755); err != nil {
		return fmt.Errorf("creating restore directory: %w", err)
	}

	if err := moveFile(quarantinePath, originalPath); err != nil {
		return fmt.Errorf("moving file out of vault: %w", err)
	}
	return nil
}

// Purge permanently deletes the quarantined copy.
func (v *FileSystemVault) Purge(quarantinePath string) error {
	if err := os.Remove(quarantinePath); err != nil {
		return fmt.Errorf("purging quarantined file: %w", err)
	}
	return nil
}

// Encrypted reports that this vault stores plaintext.
func (v *FileSystemVault) Encrypted() bool { return false }

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.filesDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// rename crosses filesystem boundaries.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if err := copyFile(src, dst, info.Mode()); err != nil {
		return err
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source after copy: %w", err)
	}
	return nil
}

// copyFile copies src to dst atomically (temp file + rename).
func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer srcFile.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements tidy.Vault interface
var _ tidy.Vault = (*FileSystemVault)(nil)
