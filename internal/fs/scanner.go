package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"tidy-go/internal/tidy"
)

// DirectoryScanner is the real implementation of tidy.Scanner. It walks a
// directory tree collecting a record per regular file, optionally hashing
// content with SHA-256, honoring ignore patterns from config and from a
// .tidyignore file at the scan root.
type DirectoryScanner struct {
	ignore []string
	logger tidy.Logger
}

// NewDirectoryScanner creates a scanner with the given configured ignore
// patterns.
func NewDirectoryScanner(ignore []string, logger tidy.Logger) *DirectoryScanner {
	return &DirectoryScanner{ignore: ignore, logger: logger}
}

// Scan returns a record for every regular file under dir, in walk order.
// Symlinks, devices and other special files are skipped. The context is
// checked between files so a reset can abandon an in-flight scan.
func (s *DirectoryScanner) Scan(ctx context.Context, dir string, computeHashes bool) ([]tidy.FileRecord, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(root, ".tidyignore"))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string(nil), s.ignore...), filePatterns...))

	var records []tidy.FileRecord
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if p != root && matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matcher.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		rec := tidy.FileRecord{
			Path:       p,
			Size:       info.Size(),
			CreatedAt:  creationTime(info),
			ModifiedAt: info.ModTime(),
		}
		if computeHashes {
			hash, err := HashFile(p)
			if err != nil {
				return fmt.Errorf("hashing %s: %w", p, err)
			}
			rec.Hash = hash
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("scan finished", "dir", root, "files", len(records))
	return records, nil
}

// HashFile returns the SHA-256 hex digest of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Compile-time check that DirectoryScanner implements tidy.Scanner
var _ tidy.Scanner = (*DirectoryScanner)(nil)
