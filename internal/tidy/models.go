package tidy

import "time"

// FileRecord describes one file on disk at scan time.
// Hash is the SHA-256 hex digest of the file content; it is computed lazily
// and may be empty when the scan skipped hashing.
type FileRecord struct {
	Path       string    // absolute path at scan time
	Size       int64     // size in bytes
	Hash       string    // SHA-256 hex digest, "" if not computed
	CreatedAt  time.Time // best-effort creation time (ctime on most Unix filesystems)
	ModifiedAt time.Time
}

// FolderSuggestion is a proposed destination folder within a plan.
type FolderSuggestion struct {
	Name       string
	Reasoning  string
	Files      []FileRecord
	Subfolders []*FolderSuggestion
	// Renames maps a file's current path to the name it should take in the
	// destination folder. Files not present keep their basename.
	Renames map[string]string
}

// GenerationStats captures metadata about a plan generation run.
type GenerationStats struct {
	Model      string
	Duration   time.Duration
	FileCount  int
	InsightLog int // number of insight events emitted
}

// OrganizationPlan is the root of a proposed reorganization.
// Version increments on every regeneration of the same scan.
type OrganizationPlan struct {
	Folders     []*FolderSuggestion
	Unorganized []FileRecord
	// UnorganizedReasons aligns index-for-index with Unorganized and says why
	// each file was left out. Entries may be empty.
	UnorganizedReasons []string
	Version            int
	Stats              *GenerationStats
}

// TotalFileCount returns the number of files across the whole plan tree,
// including the unorganized set.
func (p *OrganizationPlan) TotalFileCount() int {
	count := len(p.Unorganized)
	var walk func(folders []*FolderSuggestion)
	walk = func(folders []*FolderSuggestion) {
		for _, f := range folders {
			count += len(f.Files)
			walk(f.Subfolders)
		}
	}
	walk(p.Folders)
	return count
}

// OperationKind identifies one atomic filesystem action taken during apply.
type OperationKind string

const (
	OpCreateFolder        OperationKind = "create-folder"
	OpMoveFile            OperationKind = "move-file"
	OpDeleteFileSafe      OperationKind = "delete-file-safe"
	OpDeleteFilePermanent OperationKind = "delete-file-permanent"
)

// MutationOperation records one atomic filesystem action and its actual
// outcome, not just the intent.
type MutationOperation struct {
	ID          string
	Kind        OperationKind
	Source      string
	Destination string // quarantine path for safe deletes, "" for permanent deletes
	// DestinationExisted is the pre-operation existence check result for the
	// destination (for create-folder: whether the folder already existed).
	DestinationExisted bool
	Succeeded          bool
	Error              string // empty when Succeeded
}

// Entry operations recorded in the ledger.
const (
	EntryOpApply   = "apply"
	EntryOpCleanup = "cleanup"
)

// HistoryEntry is the ledger record of one completed apply or cleanup.
// Entries are immutable once appended except for the Undone flag.
type HistoryEntry struct {
	ID         string
	Operation  string // EntryOpApply or EntryOpCleanup
	BaseDir    string
	Operations []MutationOperation // in execution order
	Success    bool                // false if any operation failed
	Undone     bool
	Restorables []RestorableItem
	CreatedAt  time.Time
}

// FailedOperations returns the operations that did not succeed, so callers
// can explain partial failures per file rather than as an aggregate.
func (e *HistoryEntry) FailedOperations() []MutationOperation {
	var failed []MutationOperation
	for _, op := range e.Operations {
		if !op.Succeeded {
			failed = append(failed, op)
		}
	}
	return failed
}

// RestorableItem states.
const (
	RestorableQuarantined = "quarantined"
	RestorableRestored    = "restored"
	RestorablePurged      = "purged"
)

// RestorableItem is a quarantined file produced by safe deletion.
// The original path is retained verbatim so restoration is path-identical.
type RestorableItem struct {
	ID             string
	EntryID        string
	QuarantinePath string
	OriginalPath   string
	Hash           string
	Size           int64
	DeletedAt      time.Time
	State          string // RestorableQuarantined, RestorableRestored or RestorablePurged
}

// DuplicateGroup holds files sharing identical content hash and size.
// The first member is the presumed original for default keep policies.
type DuplicateGroup struct {
	Hash  string
	Size  int64
	Files []FileRecord
}

// Insight is one intermediate event streamed by the plan generator while it
// works, surfaced to the user during the organizing phase.
type Insight struct {
	Message   string
	EmittedAt time.Time
}
