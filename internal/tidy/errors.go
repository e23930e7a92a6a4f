package tidy

import "fmt"

// ScanError wraps an I/O or permission failure during directory scanning.
type ScanError struct {
	Dir string
	Err error
}

func (e *ScanError) Error() string { return fmt.Sprintf("scanning %s: %v", e.Dir, e.Err) }
func (e *ScanError) Unwrap() error { return e.Err }

// GenerationError wraps a provider, network or malformed-response failure
// from the plan generator.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generating plan: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// UndoConflictError reports an undo blocked because a path the inverse
// operations need is now occupied. The filesystem and ledger are left
// unchanged when this is returned.
type UndoConflictError struct {
	BlockingPath string
}

func (e *UndoConflictError) Error() string {
	return fmt.Sprintf("undo blocked: path is occupied: %s", e.BlockingPath)
}

// RestoreConflictError reports a vault restore blocked because something now
// occupies the item's original path.
type RestoreConflictError struct {
	Path string
}

func (e *RestoreConflictError) Error() string {
	return fmt.Sprintf("restore blocked: path is occupied: %s", e.Path)
}

// PurgeError wraps a failure to permanently delete a quarantined item.
// Purge is the only irreversible operation, so its failures are surfaced
// distinctly from other vault errors.
type PurgeError struct {
	QuarantinePath string
	Err            error
}

func (e *PurgeError) Error() string {
	return fmt.Sprintf("purging %s: %v", e.QuarantinePath, e.Err)
}
func (e *PurgeError) Unwrap() error { return e.Err }
