package tidy

import (
	"fmt"
	"sync"
)

// TidyService owns the workflows that cross the apply engine, the ledger and
// the vault: applying plans, duplicate cleanup, undo/redo and vault
// restore/purge. The ledger and vault are process-wide stores, so every
// mutating call is serialized through the service's mutex (single-writer
// discipline); reads go straight to the ledger, which is safe for concurrent
// reads.
type TidyService struct {
	mu sync.Mutex

	ledger Ledger
	vault  Vault
	engine *ApplyEngine
	fsmgr  FilesystemManager
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewTidyService creates a TidyService with the provided dependencies.
func NewTidyService(ledger Ledger, vault Vault, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator) *TidyService {
	return &TidyService{
		ledger: ledger,
		vault:  vault,
		engine: NewApplyEngine(fsmgr, vault, logger, clock, idgen),
		fsmgr:  fsmgr,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Engine exposes the apply engine for the state machine.
func (s *TidyService) Engine() *ApplyEngine { return s.engine }

// ApplyPlan executes the plan against baseDir and appends the resulting entry
// to the ledger. Dry runs return the entry without recording it.
// Per-operation filesystem failures never surface as an error here; inspect
// the entry's operations.
func (s *TidyService) ApplyPlan(plan *OrganizationPlan, baseDir string, opts ApplyOptions) (*HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.engine.Apply(plan, baseDir, opts)
	if opts.DryRun {
		return entry, nil
	}
	if err := s.ledger.Append(entry); err != nil {
		return entry, fmt.Errorf("recording apply in ledger: %w", err)
	}
	return entry, nil
}

// CleanDuplicates deletes every member of each group except the first (the
// presumed original). With safeMode the deletions route through the vault and
// are undoable; otherwise they are permanent. The resulting cleanup entry is
// appended to the ledger. Returns nil if there was nothing to delete.
func (s *TidyService) CleanDuplicates(groups []DuplicateGroup, safeMode bool) (*HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &HistoryEntry{
		ID:        s.idgen.New(),
		Operation: EntryOpCleanup,
		Success:   true,
		CreatedAt: s.clock.Now(),
	}

	for _, group := range groups {
		if len(group.Files) < 2 {
			continue
		}
		for _, dup := range group.Files[1:] {
			if safeMode {
				s.deleteSafely(entry, dup)
			} else {
				s.deletePermanently(entry, dup)
			}
		}
	}

	if len(entry.Operations) == 0 {
		return nil, nil
	}

	if err := s.ledger.Append(entry); err != nil {
		return entry, fmt.Errorf("recording cleanup in ledger: %w", err)
	}
	s.logger.Info("duplicate cleanup finished",
		"entry", entry.ID,
		"deleted", len(entry.Operations),
		"safe_mode", safeMode,
	)
	return entry, nil
}

// deleteSafely quarantines one file and records the operation plus its
// restorable item on the entry.
func (s *TidyService) deleteSafely(entry *HistoryEntry, rec FileRecord) {
	key := quarantineKey(rec.Hash, s.idgen.New())
	op := MutationOperation{
		ID:     s.idgen.New(),
		Kind:   OpDeleteFileSafe,
		Source: rec.Path,
	}

	quarantinePath, err := s.vault.Quarantine(rec.Path, key)
	if err != nil {
		op.Succeeded = false
		op.Error = err.Error()
		entry.Success = false
		s.logger.Warn("safe delete failed", "path", rec.Path, "error", err)
	} else {
		op.Succeeded = true
		op.Destination = quarantinePath
		entry.Restorables = append(entry.Restorables, RestorableItem{
			ID:             s.idgen.New(),
			EntryID:        entry.ID,
			QuarantinePath: quarantinePath,
			OriginalPath:   rec.Path,
			Hash:           rec.Hash,
			Size:           rec.Size,
			DeletedAt:      s.clock.Now(),
			State:          RestorableQuarantined,
		})
	}

	entry.Operations = append(entry.Operations, op)
}

// deletePermanently removes one file outright and records the operation.
func (s *TidyService) deletePermanently(entry *HistoryEntry, rec FileRecord) {
	op := MutationOperation{
		ID:        s.idgen.New(),
		Kind:      OpDeleteFilePermanent,
		Source:    rec.Path,
		Succeeded: true,
	}
	if err := s.fsmgr.Remove(rec.Path); err != nil {
		op.Succeeded = false
		op.Error = err.Error()
		entry.Success = false
		s.logger.Warn("permanent delete failed", "path", rec.Path, "error", err)
	}
	entry.Operations = append(entry.Operations, op)
}

// quarantineKey derives the vault name for a deleted file from its content
// hash plus a disambiguating suffix.
func quarantineKey(hash, suffix string) string {
	if len(hash) > 16 {
		hash = hash[:16]
	}
	if hash == "" {
		hash = "nohash"
	}
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return hash + "-" + suffix
}

// CanUndo reports whether the newest ledger entry can be undone: it exists,
// is not already undone, and has at least one successful operation (entries
// recording a partial failure stay undoable for their succeeded operations).
func (s *TidyService) CanUndo() (bool, error) {
	latest, err := s.ledger.Latest()
	if err != nil {
		return false, err
	}
	if latest == nil || latest.Undone {
		return false, nil
	}
	for _, op := range latest.Operations {
		if op.Succeeded {
			return true, nil
		}
	}
	return false, nil
}

// CanRedo reports whether the newest ledger entry is undone and can be
// reapplied.
func (s *TidyService) CanRedo() (bool, error) {
	latest, err := s.ledger.Latest()
	if err != nil {
		return false, err
	}
	return latest != nil && latest.Undone, nil
}

// Undo inverts the newest eligible ledger entry (stack discipline: last
// applied is first undone) and marks it undone. A conflict leaves both the
// filesystem and the ledger unchanged and reports the blocking path.
// decrypt is required when the vault encrypts at rest.
func (s *TidyService) Undo(decrypt DecryptionContext) (*HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.ledger.Latest()
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("nothing to undo")
	}
	if latest.Undone {
		return nil, fmt.Errorf("entry already undone: %s", latest.ID)
	}

	inverse, err := s.engine.Invert(latest, decrypt)
	if err != nil {
		return inverse, err
	}

	if err := s.ledger.MarkUndone(latest.ID); err != nil {
		return inverse, fmt.Errorf("marking entry undone: %w", err)
	}
	for _, item := range latest.Restorables {
		if item.State != RestorableQuarantined {
			continue
		}
		if err := s.ledger.MarkRestored(item.ID); err != nil {
			return inverse, fmt.Errorf("marking item restored: %w", err)
		}
	}

	s.logger.Info("undo finished", "entry", latest.ID)
	return inverse, nil
}

// Redo reapplies the newest undone entry and clears its undone flag rather
// than appending a new entry, preserving the 1:1 relationship between an
// apply action and its ledger record.
func (s *TidyService) Redo() (*HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.ledger.Latest()
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	if latest == nil || !latest.Undone {
		return nil, fmt.Errorf("nothing to redo")
	}

	redone, err := s.engine.Reapply(latest)
	if err != nil {
		return redone, err
	}

	if err := s.ledger.MarkRedone(latest.ID); err != nil {
		return redone, fmt.Errorf("marking entry redone: %w", err)
	}
	for _, item := range latest.Restorables {
		// The vault may have assigned a new name on requarantine (the old
		// one was taken); repoint the item so restore and purge still find it.
		if qp, ok := requarantinedAt(redone, item.OriginalPath); ok && qp != item.QuarantinePath {
			if err := s.ledger.UpdateQuarantinePath(item.ID, qp); err != nil {
				return redone, fmt.Errorf("updating quarantine path: %w", err)
			}
		}
		if err := s.ledger.MarkQuarantined(item.ID); err != nil {
			return redone, fmt.Errorf("marking item quarantined: %w", err)
		}
	}

	s.logger.Info("redo finished", "entry", latest.ID)
	return redone, nil
}

// requarantinedAt returns the quarantine path the redo entry recorded for the
// given original path, if it re-quarantined that file.
func requarantinedAt(redo *HistoryEntry, originalPath string) (string, bool) {
	for _, op := range redo.Operations {
		if op.Kind == OpDeleteFileSafe && op.Source == originalPath && op.Succeeded {
			return op.Destination, true
		}
	}
	return "", false
}

// History returns the most recent ledger entries, newest first.
func (s *TidyService) History(limit int) ([]*HistoryEntry, error) {
	return s.ledger.Entries(limit)
}

// Restorables lists quarantined items, newest first.
func (s *TidyService) Restorables(includeResolved bool) ([]*RestorableItem, error) {
	return s.ledger.ListRestorables(includeResolved)
}

// RestoreItem moves a single quarantined item back to its original path.
func (s *TidyService) RestoreItem(itemID string, decrypt DecryptionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.ledger.FindRestorable(itemID)
	if err != nil {
		return fmt.Errorf("finding restorable item: %w", err)
	}
	if item == nil {
		return fmt.Errorf("unknown restorable item: %s", itemID)
	}
	if item.State != RestorableQuarantined {
		return fmt.Errorf("item is not quarantined (state %s): %s", item.State, itemID)
	}

	if err := s.vault.Restore(item.QuarantinePath, item.OriginalPath, decrypt); err != nil {
		return err
	}
	if err := s.ledger.MarkRestored(item.ID); err != nil {
		return fmt.Errorf("marking item restored: %w", err)
	}

	s.logger.Info("item restored", "item", item.ID, "path", item.OriginalPath)
	return nil
}

// PurgeItem permanently deletes a quarantined item's content, freeing its
// disk usage. This is the only truly irreversible operation in the system and
// is never invoked implicitly by apply or undo.
func (s *TidyService) PurgeItem(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.ledger.FindRestorable(itemID)
	if err != nil {
		return fmt.Errorf("finding restorable item: %w", err)
	}
	if item == nil {
		return fmt.Errorf("unknown restorable item: %s", itemID)
	}
	if item.State != RestorableQuarantined {
		return fmt.Errorf("item is not quarantined (state %s): %s", item.State, itemID)
	}

	if err := s.vault.Purge(item.QuarantinePath); err != nil {
		return &PurgeError{QuarantinePath: item.QuarantinePath, Err: err}
	}
	if err := s.ledger.MarkPurged(item.ID); err != nil {
		return fmt.Errorf("marking item purged: %w", err)
	}

	s.logger.Info("item purged", "item", item.ID)
	return nil
}
