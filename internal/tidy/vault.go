package tidy

// Vault is the quarantine store for safely-deleted files. Files are moved
// (not copied) into the vault under a key derived from their content hash,
// and can later be restored byte- and path-identical or explicitly purged.
//
// Purge is the only irreversible operation in the system: it must never be
// called as an implicit side effect of apply or undo.
type Vault interface {
	// Quarantine moves the file at srcPath into the vault under key and
	// returns the quarantine path recorded for later restore or purge.
	Quarantine(srcPath string, key string) (string, error)

	// Restore moves a quarantined file back to originalPath. It fails with a
	// *RestoreConflictError if something now occupies that path.
	// decrypt is required by encrypting vaults and ignored by the others;
	// pass nil for unencrypted vaults.
	Restore(quarantinePath string, originalPath string, decrypt DecryptionContext) error

	// Purge permanently deletes the quarantined copy without restoring it.
	Purge(quarantinePath string) error

	// Encrypted reports whether restores require an unlocked DecryptionContext.
	Encrypted() bool

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
