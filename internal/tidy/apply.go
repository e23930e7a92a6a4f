package tidy

import (
	"fmt"
	"path/filepath"
)

// ApplyOptions control how a plan is executed against the filesystem.
type ApplyOptions struct {
	// DryRun records the operations that would run, with simulated outcomes,
	// without mutating the filesystem.
	DryRun bool

	// PruneEmptyDirs removes source directories left empty by the apply.
	// Off by default: the safer policy keeps them in place.
	PruneEmptyDirs bool
}

// ApplyEngine executes an OrganizationPlan against the real filesystem and
// produces the HistoryEntry that makes the execution reversible. It also
// inverts and reapplies recorded entries for undo/redo.
//
// Filesystem errors during Apply are captured per operation and never
// returned; the caller inspects the entry. Undo and redo surface errors
// because they must never silently drop data.
type ApplyEngine struct {
	fsmgr  FilesystemManager
	vault  Vault
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewApplyEngine creates an ApplyEngine with the provided dependencies.
func NewApplyEngine(fsmgr FilesystemManager, vault Vault, logger Logger, clock Clock, idgen IDGenerator) *ApplyEngine {
	return &ApplyEngine{
		fsmgr:  fsmgr,
		vault:  vault,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Apply walks the plan depth-first, creating each destination folder and then
// moving its files into it. Every operation executes immediately and is
// recorded with its actual outcome. A failed operation does not abort the
// apply; the entry's Success flag is false if any operation failed.
func (e *ApplyEngine) Apply(plan *OrganizationPlan, baseDir string, opts ApplyOptions) *HistoryEntry {
	entry := &HistoryEntry{
		ID:        e.idgen.New(),
		Operation: EntryOpApply,
		BaseDir:   baseDir,
		Success:   true,
		CreatedAt: e.clock.Now(),
	}

	var sourceDirs []string

	var applyFolder func(f *FolderSuggestion, parentDir string)
	applyFolder = func(f *FolderSuggestion, parentDir string) {
		dir := filepath.Join(parentDir, f.Name)
		if !e.createFolder(entry, dir, opts) {
			// Folder creation failed: its moves would all fail with a missing
			// destination parent, so skip them rather than spam the entry.
			return
		}

		for _, rec := range f.Files {
			name := filepath.Base(rec.Path)
			if f.Renames != nil && f.Renames[rec.Path] != "" {
				name = f.Renames[rec.Path]
			}
			if e.moveFile(entry, rec.Path, filepath.Join(dir, name), opts) {
				sourceDirs = append(sourceDirs, filepath.Dir(rec.Path))
			}
		}

		for _, sub := range f.Subfolders {
			applyFolder(sub, dir)
		}
	}

	for _, f := range plan.Folders {
		applyFolder(f, baseDir)
	}

	if opts.PruneEmptyDirs && !opts.DryRun {
		e.pruneDirs(sourceDirs, baseDir)
	}

	e.logger.Info("apply finished",
		"entry", entry.ID,
		"operations", len(entry.Operations),
		"success", entry.Success,
		"dry_run", opts.DryRun,
	)
	return entry
}

// createFolder records and executes one idempotent create-folder operation.
// It reports whether the destination directory is usable for moves.
func (e *ApplyEngine) createFolder(entry *HistoryEntry, dir string, opts ApplyOptions) bool {
	op := MutationOperation{
		ID:                 e.idgen.New(),
		Kind:               OpCreateFolder,
		Destination:        dir,
		DestinationExisted: e.fsmgr.Exists(dir),
		Succeeded:          true,
	}

	if !opts.DryRun && !op.DestinationExisted {
		if err := e.fsmgr.CreateDir(dir); err != nil {
			op.Succeeded = false
			op.Error = err.Error()
			entry.Success = false
			e.logger.Warn("create folder failed", "dir", dir, "error", err)
		}
	}

	entry.Operations = append(entry.Operations, op)
	return op.Succeeded
}

// moveFile records and executes one move-file operation. It reports whether
// the move succeeded.
func (e *ApplyEngine) moveFile(entry *HistoryEntry, src, dst string, opts ApplyOptions) bool {
	op := MutationOperation{
		ID:                 e.idgen.New(),
		Kind:               OpMoveFile,
		Source:             src,
		Destination:        dst,
		DestinationExisted: e.fsmgr.Exists(dst),
		Succeeded:          true,
	}

	switch {
	case src == dst:
		// Already in place; nothing to do.
	case !e.fsmgr.Exists(src):
		op.Succeeded = false
		op.Error = fmt.Sprintf("source no longer exists: %s", src)
	case op.DestinationExisted:
		op.Succeeded = false
		op.Error = fmt.Sprintf("destination already exists: %s", dst)
	case !opts.DryRun:
		if err := e.fsmgr.Move(src, dst); err != nil {
			op.Succeeded = false
			op.Error = err.Error()
		}
	}

	if !op.Succeeded {
		entry.Success = false
		e.logger.Warn("move failed", "source", src, "destination", dst, "error", op.Error)
	}

	entry.Operations = append(entry.Operations, op)
	return op.Succeeded
}

// pruneDirs removes source directories that the apply emptied. Directories
// are attempted deepest-first and never removed past the base directory.
func (e *ApplyEngine) pruneDirs(dirs []string, baseDir string) {
	seen := make(map[string]bool)
	for _, dir := range dirs {
		for d := dir; d != baseDir && len(d) > len(baseDir); d = filepath.Dir(d) {
			if seen[d] {
				break
			}
			seen[d] = true
			removed, err := e.fsmgr.RemoveDirIfEmpty(d)
			if err != nil || !removed {
				break
			}
			e.logger.Debug("pruned empty directory", "dir", d)
		}
	}
}

// Invert walks the entry's recorded operations in reverse order and executes
// the inverse of each successful one: moved files return to their original
// paths, safely-deleted files are restored from the vault, and folders the
// entry created are removed when empty. Permanently-deleted files are
// non-invertible and skipped.
//
// All inverse moves are validated before anything executes; a conflict
// returns a *UndoConflictError and leaves the filesystem untouched.
// decrypt is required when the vault encrypts at rest, nil otherwise.
func (e *ApplyEngine) Invert(entry *HistoryEntry, decrypt DecryptionContext) (*HistoryEntry, error) {
	// Pre-flight: every path we will move something back to must be free,
	// and everything we will move must still be where the entry put it.
	for i := len(entry.Operations) - 1; i >= 0; i-- {
		op := entry.Operations[i]
		if !op.Succeeded {
			continue
		}
		switch op.Kind {
		case OpMoveFile:
			if op.Source == op.Destination {
				continue
			}
			if !e.fsmgr.Exists(op.Destination) {
				return nil, fmt.Errorf("cannot undo: moved file is gone: %s", op.Destination)
			}
			if e.fsmgr.Exists(op.Source) {
				return nil, &UndoConflictError{BlockingPath: op.Source}
			}
		case OpDeleteFileSafe:
			if e.fsmgr.Exists(op.Source) {
				return nil, &UndoConflictError{BlockingPath: op.Source}
			}
		}
	}

	inverse := &HistoryEntry{
		ID:        e.idgen.New(),
		Operation: "undo-" + entry.Operation,
		BaseDir:   entry.BaseDir,
		Success:   true,
		CreatedAt: e.clock.Now(),
	}

	var firstErr error
	record := func(op MutationOperation, err error) {
		if err != nil {
			op.Succeeded = false
			op.Error = err.Error()
			inverse.Success = false
			if firstErr == nil {
				firstErr = err
			}
		} else {
			op.Succeeded = true
		}
		inverse.Operations = append(inverse.Operations, op)
	}

	for i := len(entry.Operations) - 1; i >= 0; i-- {
		op := entry.Operations[i]
		if !op.Succeeded {
			continue
		}
		switch op.Kind {
		case OpMoveFile:
			if op.Source == op.Destination {
				continue
			}
			var err error
			if parent := filepath.Dir(op.Source); !e.fsmgr.Exists(parent) {
				err = e.fsmgr.CreateDir(parent)
			}
			if err == nil {
				err = e.fsmgr.Move(op.Destination, op.Source)
			}
			record(MutationOperation{
				ID:          e.idgen.New(),
				Kind:        OpMoveFile,
				Source:      op.Destination,
				Destination: op.Source,
			}, err)

		case OpDeleteFileSafe:
			err := e.vault.Restore(op.Destination, op.Source, decrypt)
			record(MutationOperation{
				ID:          e.idgen.New(),
				Kind:        OpMoveFile,
				Source:      op.Destination,
				Destination: op.Source,
			}, err)

		case OpCreateFolder:
			if op.DestinationExisted {
				continue
			}
			// Only remove folders this entry created, and only when empty:
			// the user may have put new files there since.
			removed, err := e.fsmgr.RemoveDirIfEmpty(op.Destination)
			if err == nil && !removed {
				e.logger.Debug("folder kept on undo: not empty", "dir", op.Destination)
				continue
			}
			record(MutationOperation{
				ID:     e.idgen.New(),
				Kind:   OpCreateFolder,
				Source: op.Destination,
			}, err)

		case OpDeleteFilePermanent:
			e.logger.Warn("permanent deletion is not invertible", "path", op.Source)
		}
	}

	if firstErr != nil {
		return inverse, fmt.Errorf("undo incomplete: %w", firstErr)
	}

	e.logger.Info("entry inverted", "entry", entry.ID, "operations", len(inverse.Operations))
	return inverse, nil
}

// Reapply re-executes the entry's original operations in order, skipping
// operations whose source no longer exists (treated as already applied).
// Safe deletions are re-quarantined under their previously recorded names;
// when the vault assigns a different name the returned entry's operation
// carries the actual path so the caller can repoint the ledger.
func (e *ApplyEngine) Reapply(entry *HistoryEntry) (*HistoryEntry, error) {
	redo := &HistoryEntry{
		ID:        e.idgen.New(),
		Operation: "redo-" + entry.Operation,
		BaseDir:   entry.BaseDir,
		Success:   true,
		CreatedAt: e.clock.Now(),
	}

	var firstErr error
	for _, op := range entry.Operations {
		if !op.Succeeded {
			continue
		}
		switch op.Kind {
		case OpCreateFolder:
			if !e.fsmgr.Exists(op.Destination) {
				if err := e.fsmgr.CreateDir(op.Destination); err != nil {
					redo.Success = false
					if firstErr == nil {
						firstErr = err
					}
				}
			}

		case OpMoveFile:
			if op.Source == op.Destination || !e.fsmgr.Exists(op.Source) {
				continue // already applied
			}
			if e.fsmgr.Exists(op.Destination) {
				redo.Success = false
				if firstErr == nil {
					firstErr = &UndoConflictError{BlockingPath: op.Destination}
				}
				continue
			}
			if err := e.fsmgr.Move(op.Source, op.Destination); err != nil {
				redo.Success = false
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			redo.Operations = append(redo.Operations, MutationOperation{
				ID:          e.idgen.New(),
				Kind:        OpMoveFile,
				Source:      op.Source,
				Destination: op.Destination,
				Succeeded:   true,
			})

		case OpDeleteFileSafe:
			if !e.fsmgr.Exists(op.Source) {
				continue // already applied
			}
			qp, err := e.vault.Quarantine(op.Source, filepath.Base(op.Destination))
			if err != nil {
				redo.Success = false
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if qp != op.Destination {
				e.logger.Debug("requarantined under a different name",
					"recorded", op.Destination, "actual", qp)
			}
			redo.Operations = append(redo.Operations, MutationOperation{
				ID:          e.idgen.New(),
				Kind:        OpDeleteFileSafe,
				Source:      op.Source,
				Destination: qp,
				Succeeded:   true,
			})

		case OpDeleteFilePermanent:
			if !e.fsmgr.Exists(op.Source) {
				continue
			}
			if err := e.fsmgr.Remove(op.Source); err != nil {
				redo.Success = false
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			redo.Operations = append(redo.Operations, MutationOperation{
				ID:        e.idgen.New(),
				Kind:      OpDeleteFilePermanent,
				Source:    op.Source,
				Succeeded: true,
			})
		}
	}

	if firstErr != nil {
		return redo, fmt.Errorf("redo incomplete: %w", firstErr)
	}

	e.logger.Info("entry reapplied", "entry", entry.ID, "operations", len(redo.Operations))
	return redo, nil
}
