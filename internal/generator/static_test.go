package generator_test

import (
	"context"
	"testing"

	"tidy-go/internal/generator"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

func TestStaticGenerator_Generate(t *testing.T) {
	gen := generator.NewStaticGenerator(testutil.FixedClock())

	t.Run("groups by extension category", func(t *testing.T) {
		files := []tidy.FileRecord{
			{Path: "/d/photo.JPG", Size: 1},
			{Path: "/d/scan.png", Size: 2},
			{Path: "/d/notes.txt", Size: 3},
			{Path: "/d/song.mp3", Size: 4},
		}

		plan, err := gen.Generate(context.Background(), files, "", nil)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}

		byName := map[string]*tidy.FolderSuggestion{}
		for _, f := range plan.Folders {
			byName[f.Name] = f
		}
		if len(byName["Images"].Files) != 2 {
			t.Errorf("Images has %d files, want 2", len(byName["Images"].Files))
		}
		if len(byName["Documents"].Files) != 1 {
			t.Errorf("Documents has %d files, want 1", len(byName["Documents"].Files))
		}
		if len(byName["Audio"].Files) != 1 {
			t.Errorf("Audio has %d files, want 1", len(byName["Audio"].Files))
		}
		if len(plan.Unorganized) != 0 {
			t.Errorf("Unorganized = %+v, want empty", plan.Unorganized)
		}
	})

	t.Run("folders come out in a deterministic order", func(t *testing.T) {
		files := []tidy.FileRecord{
			{Path: "/d/movie.mp4"},
			{Path: "/d/photo.jpg"},
			{Path: "/d/main.go"},
		}

		plan, err := gen.Generate(context.Background(), files, "", nil)
		if err != nil {
			t.Fatal(err)
		}

		want := []string{"Code", "Images", "Video"}
		if len(plan.Folders) != len(want) {
			t.Fatalf("len(Folders) = %d, want %d", len(plan.Folders), len(want))
		}
		for i, name := range want {
			if plan.Folders[i].Name != name {
				t.Errorf("Folders[%d].Name = %s, want %s", i, plan.Folders[i].Name, name)
			}
		}
	})

	t.Run("unmatched files stay unorganized with reasons", func(t *testing.T) {
		files := []tidy.FileRecord{
			{Path: "/d/weird.xyz"},
			{Path: "/d/Makefile"},
			{Path: "/d/notes.txt"},
		}

		plan, err := gen.Generate(context.Background(), files, "", nil)
		if err != nil {
			t.Fatal(err)
		}

		if len(plan.Unorganized) != 2 {
			t.Fatalf("len(Unorganized) = %d, want 2", len(plan.Unorganized))
		}
		if plan.UnorganizedReasons[0] != "no rule for .xyz files" {
			t.Errorf("reason = %q, want no-rule reason", plan.UnorganizedReasons[0])
		}
		if plan.UnorganizedReasons[1] != "file has no extension" {
			t.Errorf("reason = %q, want no-extension reason", plan.UnorganizedReasons[1])
		}
	})

	t.Run("emits insights and stats", func(t *testing.T) {
		files := []tidy.FileRecord{
			{Path: "/d/a.txt"},
			{Path: "/d/weird.xyz"},
		}

		var insights []string
		plan, err := gen.Generate(context.Background(), files, "", func(ins tidy.Insight) {
			insights = append(insights, ins.Message)
		})
		if err != nil {
			t.Fatal(err)
		}

		want := []string{
			"Sorting 2 files by type",
			"Grouping 1 files into Documents",
			"Leaving 1 files unorganized",
		}
		if len(insights) != len(want) {
			t.Fatalf("insights = %q, want %q", insights, want)
		}
		for i := range want {
			if insights[i] != want[i] {
				t.Errorf("insights[%d] = %q, want %q", i, insights[i], want[i])
			}
		}

		if plan.Stats == nil || plan.Stats.Model != "static" {
			t.Fatalf("Stats = %+v, want static model stats", plan.Stats)
		}
		if plan.Stats.FileCount != 2 || plan.Stats.InsightLog != 3 {
			t.Errorf("Stats = %+v, want FileCount 2 and InsightLog 3", plan.Stats)
		}
	})

	t.Run("no files errors", func(t *testing.T) {
		if _, err := gen.Generate(context.Background(), nil, "", nil); err == nil {
			t.Error("Generate() with no files did not error")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := gen.Generate(ctx, []tidy.FileRecord{{Path: "/d/a.txt"}}, "", nil)
		if err == nil {
			t.Error("Generate() with cancelled context did not error")
		}
	})
}
