package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tidy-go/internal/tidy"
)

// SavedPlan is the on-disk form of a generated plan, kept so a plan produced
// by one invocation can be reviewed and applied by a later one.
type SavedPlan struct {
	Dir     string                 `json:"dir"`
	SavedAt time.Time              `json:"saved_at"`
	Plan    *tidy.OrganizationPlan `json:"plan"`
}

// planPath is where the current plan lives under the data dir.
func (a *TidyApp) planPath() string {
	return filepath.Join(a.cfg.BaseDir, "plans", "current.json")
}

// SavePlan persists the plan for dir as the current plan, replacing any
// previous one. The write is atomic (temp file + rename).
func (a *TidyApp) SavePlan(dir string, plan *tidy.OrganizationPlan) error {
	path := a.planPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating plans directory: %w", err)
	}

	data, err := json.MarshalIndent(&SavedPlan{Dir: dir, SavedAt: time.Now(), Plan: plan}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing plan: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

// LoadPlan reads the current saved plan. Returns nil without error when no
// plan has been saved yet.
func (a *TidyApp) LoadPlan() (*SavedPlan, error) {
	data, err := os.ReadFile(a.planPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading saved plan: %w", err)
	}

	var saved SavedPlan
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decoding saved plan: %w", err)
	}
	return &saved, nil
}

// DiscardPlan removes the current saved plan, if any.
func (a *TidyApp) DiscardPlan() error {
	if err := os.Remove(a.planPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing saved plan: %w", err)
	}
	return nil
}
