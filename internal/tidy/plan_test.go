package tidy_test

import (
	"reflect"
	"testing"

	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

func samplePlan() *tidy.OrganizationPlan {
	return &tidy.OrganizationPlan{
		Version: 1,
		Folders: []*tidy.FolderSuggestion{
			{
				Name:      "Documents",
				Reasoning: "text files",
				Files: []tidy.FileRecord{
					{Path: "/base/a.txt", Size: 1},
					{Path: "/base/b.txt", Size: 2},
				},
				Renames: map[string]string{"/base/b.txt": "notes.txt"},
			},
			{
				Name:  "Images",
				Files: []tidy.FileRecord{{Path: "/base/c.png", Size: 3}},
				Subfolders: []*tidy.FolderSuggestion{
					{Name: "Vacation", Files: []tidy.FileRecord{{Path: "/base/d.png", Size: 4}}},
				},
			},
		},
		Unorganized:        []tidy.FileRecord{{Path: "/base/e.bin", Size: 5}},
		UnorganizedReasons: []string{"unknown type"},
	}
}

func TestPlanTree_RebuildRoundTrip(t *testing.T) {
	plan := samplePlan()
	tree := tidy.NewPlanTree(plan, testutil.NewStubIDGenerator())

	got := tree.Rebuild()
	if !reflect.DeepEqual(got, plan) {
		t.Errorf("Rebuild() = %+v, want %+v", got, plan)
	}

	// Rebuilding again without edits yields identical output.
	again := tree.Rebuild()
	if !reflect.DeepEqual(again, got) {
		t.Error("second Rebuild() differs from first")
	}
}

func TestPlanTree_AddFile(t *testing.T) {
	t.Run("moves unorganized file into a folder", func(t *testing.T) {
		tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())

		fileID, ok := tree.FindFile("/base/e.bin")
		if !ok {
			t.Fatal("FindFile() did not find /base/e.bin")
		}
		folderID, ok := tree.FindFolder("Documents")
		if !ok {
			t.Fatal("FindFolder() did not find Documents")
		}

		tree.AddFile(fileID, folderID)

		plan := tree.Rebuild()
		if len(plan.Unorganized) != 0 {
			t.Errorf("len(Unorganized) = %d, want 0", len(plan.Unorganized))
		}
		if n := len(plan.Folders[0].Files); n != 3 {
			t.Errorf("len(Documents.Files) = %d, want 3", n)
		}
		if plan.TotalFileCount() != 5 {
			t.Errorf("TotalFileCount() = %d, want 5", plan.TotalFileCount())
		}
	})

	t.Run("detaches from previous folder first", func(t *testing.T) {
		tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())

		fileID, _ := tree.FindFile("/base/a.txt")
		imagesID, _ := tree.FindFolder("Images")

		tree.AddFile(fileID, imagesID)

		plan := tree.Rebuild()
		if n := len(plan.Folders[0].Files); n != 1 {
			t.Errorf("len(Documents.Files) = %d, want 1", n)
		}
		if n := len(plan.Folders[1].Files); n != 2 {
			t.Errorf("len(Images.Files) = %d, want 2", n)
		}
		if plan.TotalFileCount() != 5 {
			t.Errorf("TotalFileCount() = %d, want 5: file duplicated across folders", plan.TotalFileCount())
		}
	})

	t.Run("unknown ids are a silent no-op", func(t *testing.T) {
		tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())
		before := tree.Rebuild()

		folderID, _ := tree.FindFolder("Documents")
		fileID, _ := tree.FindFile("/base/a.txt")
		tree.AddFile("missing", folderID)
		tree.AddFile(fileID, "missing")

		if !reflect.DeepEqual(tree.Rebuild(), before) {
			t.Error("tree changed after no-op edits")
		}
	})
}

func TestPlanTree_RemoveFile(t *testing.T) {
	tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())

	fileID, _ := tree.FindFile("/base/a.txt")
	tree.RemoveFile(fileID)

	plan := tree.Rebuild()
	if n := len(plan.Folders[0].Files); n != 1 {
		t.Errorf("len(Documents.Files) = %d, want 1", n)
	}
	if n := len(plan.Unorganized); n != 2 {
		t.Errorf("len(Unorganized) = %d, want 2", n)
	}
	if got := plan.Unorganized[1].Path; got != "/base/a.txt" {
		t.Errorf("Unorganized[1].Path = %q, want %q", got, "/base/a.txt")
	}

	// Removing an unknown id changes nothing.
	before := tree.Rebuild()
	tree.RemoveFile("missing")
	if !reflect.DeepEqual(tree.Rebuild(), before) {
		t.Error("tree changed after removing unknown id")
	}
}

func TestPlanTree_MoveFile(t *testing.T) {
	t.Run("moves between folders", func(t *testing.T) {
		tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())

		fileID, _ := tree.FindFile("/base/a.txt")
		docsID, _ := tree.FindFolder("Documents")
		imagesID, _ := tree.FindFolder("Images")

		tree.MoveFile(fileID, docsID, imagesID)

		plan := tree.Rebuild()
		if n := len(plan.Folders[1].Files); n != 2 {
			t.Errorf("len(Images.Files) = %d, want 2", n)
		}
	})

	t.Run("no-op when file is not in the from folder", func(t *testing.T) {
		tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())
		before := tree.Rebuild()

		fileID, _ := tree.FindFile("/base/c.png") // lives in Images
		docsID, _ := tree.FindFolder("Documents")
		imagesID, _ := tree.FindFolder("Images")

		tree.MoveFile(fileID, docsID, imagesID)

		if !reflect.DeepEqual(tree.Rebuild(), before) {
			t.Error("tree changed when from-folder did not match")
		}
	})

	t.Run("moves into a subfolder", func(t *testing.T) {
		tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())

		fileID, _ := tree.FindFile("/base/c.png")
		imagesID, _ := tree.FindFolder("Images")
		vacationID, _ := tree.FindFolder("Vacation")

		tree.MoveFile(fileID, imagesID, vacationID)

		plan := tree.Rebuild()
		if n := len(plan.Folders[1].Files); n != 0 {
			t.Errorf("len(Images.Files) = %d, want 0", n)
		}
		if n := len(plan.Folders[1].Subfolders[0].Files); n != 2 {
			t.Errorf("len(Vacation.Files) = %d, want 2", n)
		}
	})
}

func TestPlanTree_ReasonsFollowFiles(t *testing.T) {
	t.Run("reasons stay with their files when one is organized", func(t *testing.T) {
		plan := &tidy.OrganizationPlan{
			Version: 1,
			Folders: []*tidy.FolderSuggestion{{Name: "Archives"}},
			Unorganized: []tidy.FileRecord{
				{Path: "/base/one.bin", Size: 1},
				{Path: "/base/two.bin", Size: 2},
			},
			UnorganizedReasons: []string{"reason for one", "reason for two"},
		}
		tree := tidy.NewPlanTree(plan, testutil.NewStubIDGenerator())

		fileID, _ := tree.FindFile("/base/one.bin")
		folderID, _ := tree.FindFolder("Archives")
		tree.AddFile(fileID, folderID)

		got := tree.Rebuild()
		if len(got.Unorganized) != 1 || got.Unorganized[0].Path != "/base/two.bin" {
			t.Fatalf("Unorganized = %+v, want only /base/two.bin", got.Unorganized)
		}
		want := []string{"reason for two"}
		if !reflect.DeepEqual(got.UnorganizedReasons, want) {
			t.Errorf("UnorganizedReasons = %v, want %v", got.UnorganizedReasons, want)
		}
	})

	t.Run("user-removed files carry no reason", func(t *testing.T) {
		tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())

		fileID, _ := tree.FindFile("/base/a.txt")
		tree.RemoveFile(fileID)

		plan := tree.Rebuild()
		want := []string{"unknown type", ""}
		if !reflect.DeepEqual(plan.UnorganizedReasons, want) {
			t.Errorf("UnorganizedReasons = %v, want %v", plan.UnorganizedReasons, want)
		}
	})
}

func TestPlanTree_RenamesSurviveEdits(t *testing.T) {
	tree := tidy.NewPlanTree(samplePlan(), testutil.NewStubIDGenerator())

	fileID, _ := tree.FindFile("/base/b.txt")
	imagesID, _ := tree.FindFolder("Images")
	tree.AddFile(fileID, imagesID)

	plan := tree.Rebuild()
	if got := plan.Folders[1].Renames["/base/b.txt"]; got != "notes.txt" {
		t.Errorf("rename after move = %q, want %q", got, "notes.txt")
	}
	if len(plan.Folders[0].Renames) != 0 {
		t.Errorf("Documents kept a rename for a file it no longer holds")
	}
}
