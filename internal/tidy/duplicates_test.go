package tidy_test

import (
	"testing"
	"time"

	"tidy-go/internal/tidy"
)

func rec(path, hash string, size int64, created time.Time) tidy.FileRecord {
	return tidy.FileRecord{Path: path, Hash: hash, Size: size, CreatedAt: created}
}

func TestDetectDuplicates(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("groups identical hash and size", func(t *testing.T) {
		files := []tidy.FileRecord{
			rec("/a", "h1", 10, t0),
			rec("/b", "h1", 10, t0.Add(time.Hour)),
			rec("/c", "h2", 10, t0),
		}

		groups := tidy.DetectDuplicates(files, false)
		if len(groups) != 1 {
			t.Fatalf("len(groups) = %d, want 1", len(groups))
		}
		if groups[0].Hash != "h1" || len(groups[0].Files) != 2 {
			t.Errorf("group = %+v, want hash h1 with 2 files", groups[0])
		}
	})

	t.Run("same hash different size does not group", func(t *testing.T) {
		files := []tidy.FileRecord{
			rec("/a", "h1", 10, t0),
			rec("/b", "h1", 20, t0),
		}

		if groups := tidy.DetectDuplicates(files, false); len(groups) != 0 {
			t.Errorf("len(groups) = %d, want 0", len(groups))
		}
	})

	t.Run("files without hashes never group", func(t *testing.T) {
		files := []tidy.FileRecord{
			rec("/a", "", 10, t0),
			rec("/b", "", 10, t0),
		}

		if groups := tidy.DetectDuplicates(files, false); len(groups) != 0 {
			t.Errorf("len(groups) = %d, want 0", len(groups))
		}
	})

	t.Run("oldest first by default", func(t *testing.T) {
		files := []tidy.FileRecord{
			rec("/newer", "h1", 10, t0.Add(time.Hour)),
			rec("/older", "h1", 10, t0),
		}

		groups := tidy.DetectDuplicates(files, false)
		if groups[0].Files[0].Path != "/older" {
			t.Errorf("first member = %q, want /older", groups[0].Files[0].Path)
		}
	})

	t.Run("newest first when requested", func(t *testing.T) {
		files := []tidy.FileRecord{
			rec("/older", "h1", 10, t0),
			rec("/newer", "h1", 10, t0.Add(time.Hour)),
		}

		groups := tidy.DetectDuplicates(files, true)
		if groups[0].Files[0].Path != "/newer" {
			t.Errorf("first member = %q, want /newer", groups[0].Files[0].Path)
		}
	})

	t.Run("group order follows first appearance", func(t *testing.T) {
		files := []tidy.FileRecord{
			rec("/b1", "hb", 1, t0),
			rec("/a1", "ha", 2, t0),
			rec("/a2", "ha", 2, t0),
			rec("/b2", "hb", 1, t0),
		}

		groups := tidy.DetectDuplicates(files, false)
		if len(groups) != 2 {
			t.Fatalf("len(groups) = %d, want 2", len(groups))
		}
		if groups[0].Hash != "hb" || groups[1].Hash != "ha" {
			t.Errorf("group order = [%s %s], want [hb ha]", groups[0].Hash, groups[1].Hash)
		}
	})

	t.Run("three or more copies form one group", func(t *testing.T) {
		files := []tidy.FileRecord{
			rec("/a", "h1", 10, t0),
			rec("/b", "h1", 10, t0.Add(time.Minute)),
			rec("/c", "h1", 10, t0.Add(2*time.Minute)),
		}

		groups := tidy.DetectDuplicates(files, false)
		if len(groups) != 1 || len(groups[0].Files) != 3 {
			t.Fatalf("groups = %+v, want one group of 3", groups)
		}
	})
}
