package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ollama/ollama/api"

	"tidy-go/internal/tidy"
)

// DefaultModel is the model used when the config does not name one.
const DefaultModel = "llama3.2"

// OllamaGenerator produces organization plans by prompting a local Ollama
// model. The model streams newline-delimited JSON: zero or more insight
// events followed by a single plan object. Whatever the model proposes is
// validated against the scanned file set before it becomes a plan, so a
// hallucinated path can never reach the apply engine.
type OllamaGenerator struct {
	client *api.Client
	model  string
	logger tidy.Logger
	clock  tidy.Clock
}

// NewOllamaGenerator creates a generator talking to the Ollama instance
// configured in the environment (OLLAMA_HOST, default localhost:11434).
func NewOllamaGenerator(model string, logger tidy.Logger, clock tidy.Clock) (*OllamaGenerator, error) {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = tidy.NewNopLogger()
	}
	if clock == nil {
		clock = tidy.RealClock{}
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &OllamaGenerator{client: client, model: model, logger: logger, clock: clock}, nil
}

// CheckModel verifies the configured model is available locally.
func (g *OllamaGenerator) CheckModel(ctx context.Context) error {
	listResp, err := g.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, model := range listResp.Models {
		if model.Name == g.model || strings.TrimSuffix(model.Name, ":latest") == g.model {
			return nil
		}
	}
	return fmt.Errorf("model '%s' not found - run: ollama pull %s", g.model, g.model)
}

// streamEvent is one newline-delimited JSON line emitted by the model.
// Exactly one of Insight or Plan is set.
type streamEvent struct {
	Insight string    `json:"insight,omitempty"`
	Plan    *wirePlan `json:"plan,omitempty"`
}

// wirePlan is the plan shape the model is asked to produce. Files are
// referenced by path only; the validator joins them back to FileRecords.
type wirePlan struct {
	Folders     []*wireFolder `json:"folders"`
	Unorganized []wireLeftout `json:"unorganized,omitempty"`
}

type wireFolder struct {
	Name       string            `json:"name"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Files      []string          `json:"files,omitempty"`
	Renames    map[string]string `json:"renames,omitempty"`
	Subfolders []*wireFolder     `json:"subfolders,omitempty"`
}

type wireLeftout struct {
	Path   string `json:"path"`
	Reason string `json:"reason,omitempty"`
}

// Generate prompts the model with the scanned files and optional user
// instructions, streaming insights as they arrive.
func (g *OllamaGenerator) Generate(ctx context.Context, files []tidy.FileRecord, instructions string, onInsight func(tidy.Insight)) (*tidy.OrganizationPlan, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to organize")
	}

	started := g.clock.Now()
	prompt := g.buildPrompt(files, instructions)

	stream := true
	req := &api.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var (
		buf          strings.Builder
		plan         *wirePlan
		insightCount int
	)

	consumeLine := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			// Models interleave prose despite instructions; skip anything
			// that is not one of our events.
			g.logger.Debug("skipping unparseable generator line", "line", line)
			return
		}
		switch {
		case ev.Plan != nil:
			plan = ev.Plan
		case ev.Insight != "":
			insightCount++
			if onInsight != nil {
				onInsight(tidy.Insight{Message: ev.Insight, EmittedAt: g.clock.Now()})
			}
		}
	}

	err := g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf.WriteString(resp.Response)
		for {
			text := buf.String()
			idx := strings.IndexByte(text, '\n')
			if idx < 0 {
				break
			}
			consumeLine(text[:idx])
			buf.Reset()
			buf.WriteString(text[idx+1:])
		}
		return nil
	})
	if err != nil {
		return nil, &tidy.GenerationError{Err: err}
	}
	consumeLine(buf.String())

	if plan == nil {
		return nil, &tidy.GenerationError{Err: fmt.Errorf("model produced no plan")}
	}

	result := validatePlan(plan, files)
	result.Stats = &tidy.GenerationStats{
		Model:      g.model,
		Duration:   g.clock.Now().Sub(started),
		FileCount:  len(files),
		InsightLog: insightCount,
	}
	return result, nil
}

// buildPrompt renders the file inventory and protocol contract for the model.
func (g *OllamaGenerator) buildPrompt(files []tidy.FileRecord, instructions string) string {
	var b strings.Builder
	b.WriteString("You are organizing a directory of files into a tidy folder structure.\n")
	b.WriteString("Respond ONLY with newline-delimited JSON objects, one per line.\n")
	b.WriteString(`While thinking, emit progress lines like {"insight": "..."}.` + "\n")
	b.WriteString(`Finish with exactly one line of the form {"plan": {"folders": [{"name": "...", "reasoning": "...", "files": ["<path>"], "renames": {"<path>": "<new name>"}, "subfolders": []}], "unorganized": [{"path": "...", "reason": "..."}]}}` + "\n")
	b.WriteString("Reference files by the exact paths listed below. Every file must appear exactly once.\n")

	if instructions != "" {
		b.WriteString("\nUser instructions (these take priority):\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}

	b.WriteString("\nFiles:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "%s (%d bytes, modified %s)\n", f.Path, f.Size, f.ModifiedAt.Format("2006-01-02"))
	}
	return b.String()
}

// validatePlan reconciles the model's proposal with the scanned file set.
// Unknown paths are dropped, duplicate mentions keep their first placement,
// and files the model never mentioned land in Unorganized.
func validatePlan(wp *wirePlan, files []tidy.FileRecord) *tidy.OrganizationPlan {
	byPath := make(map[string]tidy.FileRecord, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	seen := make(map[string]bool, len(files))

	var convert func(wf *wireFolder) *tidy.FolderSuggestion
	convert = func(wf *wireFolder) *tidy.FolderSuggestion {
		fs := &tidy.FolderSuggestion{
			Name:      sanitizeFolderName(wf.Name),
			Reasoning: wf.Reasoning,
		}
		for _, p := range wf.Files {
			rec, known := byPath[p]
			if !known || seen[p] {
				continue
			}
			seen[p] = true
			fs.Files = append(fs.Files, rec)
			if newName, ok := wf.Renames[p]; ok && newName != "" {
				if fs.Renames == nil {
					fs.Renames = make(map[string]string)
				}
				fs.Renames[p] = sanitizeFolderName(newName)
			}
		}
		for _, sub := range wf.Subfolders {
			if converted := convert(sub); converted != nil {
				fs.Subfolders = append(fs.Subfolders, converted)
			}
		}
		if fs.Name == "" || (len(fs.Files) == 0 && len(fs.Subfolders) == 0) {
			return nil
		}
		return fs
	}

	plan := &tidy.OrganizationPlan{}
	for _, wf := range wp.Folders {
		if converted := convert(wf); converted != nil {
			plan.Folders = append(plan.Folders, converted)
		}
	}

	for _, left := range wp.Unorganized {
		rec, known := byPath[left.Path]
		if !known || seen[left.Path] {
			continue
		}
		seen[left.Path] = true
		plan.Unorganized = append(plan.Unorganized, rec)
		plan.UnorganizedReasons = append(plan.UnorganizedReasons, left.Reason)
	}

	for _, f := range files {
		if !seen[f.Path] {
			plan.Unorganized = append(plan.Unorganized, f)
			plan.UnorganizedReasons = append(plan.UnorganizedReasons, "not placed by the model")
		}
	}
	return plan
}

// sanitizeFolderName strips path separators and traversal components so a
// suggested name can only ever create a child of its parent.
func sanitizeFolderName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, string(filepath.Separator), "-")
	name = strings.ReplaceAll(name, "/", "-")
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// Compile-time check that OllamaGenerator implements tidy.PlanGenerator
var _ tidy.PlanGenerator = (*OllamaGenerator)(nil)
