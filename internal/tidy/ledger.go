package tidy

// Ledger is the append-only record of applied operations. It is the single
// source of truth for undo/redo eligibility and also owns the metadata for
// quarantined files, so duplicate deletions are undoable through the same
// mechanism as plan applies.
//
// Entries are immutable once appended except for the undone flag. Redo clears
// the flag rather than creating a new entry, preserving a 1:1 relationship
// between an apply action and its ledger record. Implementations must be safe
// for concurrent reads while mutating calls are serialized by the caller.
type Ledger interface {
	// Append records a completed apply or cleanup, including its operations
	// and any restorable items it produced, as one atomic write.
	Append(entry *HistoryEntry) error

	// Entries returns the most recent entries, newest first.
	// limit <= 0 means no limit.
	Entries(limit int) ([]*HistoryEntry, error)

	// Latest returns the newest entry, or nil if the ledger is empty.
	Latest() (*HistoryEntry, error)

	// MarkUndone sets the undone flag on an entry.
	MarkUndone(entryID string) error

	// MarkRedone clears the undone flag on an entry.
	MarkRedone(entryID string) error

	// ListRestorables returns quarantined items, newest first.
	// When includeResolved is true, restored and purged items are included.
	ListRestorables(includeResolved bool) ([]*RestorableItem, error)

	// FindRestorable returns the item with the given ID, or nil if unknown.
	FindRestorable(itemID string) (*RestorableItem, error)

	// MarkRestored records that an item was moved back to its original path.
	MarkRestored(itemID string) error

	// MarkQuarantined records that a previously restored item was
	// re-quarantined (redo of a cleanup).
	MarkQuarantined(itemID string) error

	// UpdateQuarantinePath repoints an item at a new quarantine location,
	// used when a redo re-quarantines under a different name.
	UpdateQuarantinePath(itemID, quarantinePath string) error

	// MarkPurged records that an item's quarantined copy was permanently deleted.
	MarkPurged(itemID string) error

	Close() error
}
