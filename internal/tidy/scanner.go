package tidy

import "context"

// Scanner discovers the files under a directory. Implementations honor
// context cancellation between files so an in-flight scan can be abandoned
// when the state machine is reset.
type Scanner interface {
	// Scan returns a record for every regular file under dir.
	// When computeHashes is true, each record carries the SHA-256 digest of
	// its content; otherwise Hash is left empty for lazy computation.
	Scan(ctx context.Context, dir string, computeHashes bool) ([]FileRecord, error)
}
