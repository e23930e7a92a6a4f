package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"tidy-go/internal/tidy"
)

// EncryptedVault is a filesystem vault that encrypts quarantined files at
// rest. Quarantining encrypts the source into the vault and then removes the
// plaintext original; restoring requires an unlocked DecryptionContext.
//
// Unlike the plain filesystem vault this necessarily copies rather than
// renames, since the bytes change on the way in.
type EncryptedVault struct {
	root      string
	filesDir  string
	encryptor tidy.Encryptor
}

// NewEncryptedVault creates an encrypting vault rooted at the given path.
func NewEncryptedVault(root string, encryptor tidy.Encryptor) (*EncryptedVault, error) {
	filesDir := filepath.Join(root, "files")

	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	return &EncryptedVault{root: root, filesDir: filesDir, encryptor: encryptor}, nil
}

// Quarantine encrypts the file at srcPath into the vault under key and
// removes the plaintext original.
func (v *EncryptedVault) Quarantine(srcPath string, key string) (string, error) {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("quarantine source not accessible: %w", err)
	}
	defer srcFile.Close()

	destPath, err := v.claimPath(key)
	if err != nil {
		return "", err
	}

	tmpFile, err := os.CreateTemp(v.filesDir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := v.encryptor.Encrypt(srcFile, tmpFile); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("encrypting quarantined file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true

	if err := os.Remove(srcPath); err != nil {
		return "", fmt.Errorf("removing plaintext original: %w", err)
	}
	return destPath, nil
}

func (v *EncryptedVault) claimPath(key string) (string, error) {
	destPath := filepath.Join(v.filesDir, key+".age")
	for i := 1; ; i++ {
		if _, err := os.Lstat(destPath); os.IsNotExist(err) {
			return destPath, nil
		} else if err != nil {
			return "", fmt.Errorf("checking vault path: %w", err)
		}
		destPath = filepath.Join(v.filesDir, fmt.Sprintf("%s.%d.age", key, i))
	}
}

// Restore decrypts a quarantined file back to originalPath.
func (v *EncryptedVault) Restore(quarantinePath string, originalPath string, decrypt tidy.DecryptionContext) error {
	if decrypt == nil {
		return fmt.Errorf("vault is encrypted: restore requires an unlocked decryption context")
	}

	src, err := os.Open(quarantinePath)
	if err != nil {
		return fmt.Errorf("quarantined file not accessible: %w", err)
	}
	defer src.Close()

	if _, err := os.Lstat(originalPath); err == nil {
		return &tidy.RestoreConflictError{Path: originalPath}
	}

	destDir := filepath.Dir(originalPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating restore directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(destDir, ".tmp-*")
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

	if err := decrypt.Decrypt(src, tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("decrypting quarantined file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, originalPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true

	if err := os.Remove(quarantinePath); err != nil {
		return fmt.Errorf("removing vault copy after restore: %w", err)
	}
	return nil
}

// Purge permanently deletes the quarantined copy.
func (v *EncryptedVault) Purge(quarantinePath string) error {
	if err := os.Remove(quarantinePath); err != nil {
		return fmt.Errorf("purging quarantined file: %w", err)
	}
	return nil
}

// Encrypted reports that restores require an unlocked decryption context.
func (v *EncryptedVault) Encrypted() bool { return true }

// ValidateSetup verifies that the vault directories are accessible and key
// material exists.
func (v *EncryptedVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.filesDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	if !v.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys not configured: run setup first")
	}
	return nil
}

// Compile-time check that EncryptedVault implements tidy.Vault interface
var _ tidy.Vault = (*EncryptedVault)(nil)
