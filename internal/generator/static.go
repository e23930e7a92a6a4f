package generator

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"tidy-go/internal/tidy"
)

// categoryRules maps file extensions to destination folder names.
// Used by StaticGenerator when no model is available.
var categoryRules = map[string]string{
	".jpg": "Images", ".jpeg": "Images", ".png": "Images", ".gif": "Images",
	".webp": "Images", ".heic": "Images", ".svg": "Images", ".bmp": "Images",
	".tif": "Images", ".tiff": "Images", ".raw": "Images",

	".pdf": "Documents", ".doc": "Documents", ".docx": "Documents",
	".odt": "Documents", ".rtf": "Documents", ".txt": "Documents",
	".md": "Documents", ".xls": "Documents", ".xlsx": "Documents",
	".ods": "Documents", ".csv": "Documents", ".ppt": "Documents",
	".pptx": "Documents", ".odp": "Documents", ".epub": "Documents",

	".mp3": "Audio", ".flac": "Audio", ".wav": "Audio", ".ogg": "Audio",
	".m4a": "Audio", ".aac": "Audio",

	".mp4": "Video", ".mkv": "Video", ".mov": "Video", ".avi": "Video",
	".webm": "Video", ".m4v": "Video",

	".zip": "Archives", ".tar": "Archives", ".gz": "Archives",
	".bz2": "Archives", ".xz": "Archives", ".7z": "Archives",
	".rar": "Archives", ".dmg": "Archives", ".iso": "Archives",

	".go": "Code", ".py": "Code", ".js": "Code", ".ts": "Code",
	".rb": "Code", ".rs": "Code", ".c": "Code", ".h": "Code",
	".cpp": "Code", ".java": "Code", ".sh": "Code", ".sql": "Code",
	".json": "Code", ".yaml": "Code", ".yml": "Code", ".toml": "Code",
}

// StaticGenerator produces plans from fixed extension rules. It needs no
// network or model, making it the deterministic fallback and the generator
// used in tests. Files with no matching rule stay unorganized.
type StaticGenerator struct {
	clock tidy.Clock
}

// NewStaticGenerator creates a rule-based generator.
func NewStaticGenerator(clock tidy.Clock) *StaticGenerator {
	if clock == nil {
		clock = tidy.RealClock{}
	}
	return &StaticGenerator{clock: clock}
}

// Generate groups files by extension category. Instructions are ignored;
// this generator has no way to interpret them.
func (g *StaticGenerator) Generate(ctx context.Context, files []tidy.FileRecord, instructions string, onInsight func(tidy.Insight)) (*tidy.OrganizationPlan, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to organize")
	}

	started := g.clock.Now()
	insightCount := 0
	emit := func(msg string) {
		insightCount++
		if onInsight != nil {
			onInsight(tidy.Insight{Message: msg, EmittedAt: g.clock.Now()})
		}
	}

	emit(fmt.Sprintf("Sorting %d files by type", len(files)))

	groups := make(map[string][]tidy.FileRecord)
	var unorganized []tidy.FileRecord
	var reasons []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext := strings.ToLower(filepath.Ext(f.Path))
		category, ok := categoryRules[ext]
		if !ok {
			unorganized = append(unorganized, f)
			if ext == "" {
				reasons = append(reasons, "file has no extension")
			} else {
				reasons = append(reasons, fmt.Sprintf("no rule for %s files", ext))
			}
			continue
		}
		groups[category] = append(groups[category], f)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	plan := &tidy.OrganizationPlan{
		Unorganized:        unorganized,
		UnorganizedReasons: reasons,
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := groups[name]
		emit(fmt.Sprintf("Grouping %d files into %s", len(members), name))
		plan.Folders = append(plan.Folders, &tidy.FolderSuggestion{
			Name:      name,
			Reasoning: fmt.Sprintf("%d files grouped by file type", len(members)),
			Files:     members,
		})
	}
	if len(unorganized) > 0 {
		emit(fmt.Sprintf("Leaving %d files unorganized", len(unorganized)))
	}

	plan.Stats = &tidy.GenerationStats{
		Model:      "static",
		Duration:   g.clock.Now().Sub(started),
		FileCount:  len(files),
		InsightLog: insightCount,
	}
	return plan, nil
}

// Compile-time check that StaticGenerator implements tidy.PlanGenerator
var _ tidy.PlanGenerator = (*StaticGenerator)(nil)
