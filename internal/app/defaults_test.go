package app_test

import (
	"path/filepath"
	"testing"

	"tidy-go/internal/app"
)

func TestGetDefaults(t *testing.T) {
	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("TIDY_CONFIG_PATH", "/custom/tidy.toml")
		t.Setenv("TIDY_HOME", "/custom/home")

		defaults, err := app.GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if defaults["config_path"] != "/custom/tidy.toml" {
			t.Errorf("config_path = %q, want /custom/tidy.toml", defaults["config_path"])
		}
		if defaults["base_dir"] != "/custom/home" {
			t.Errorf("base_dir = %q, want /custom/home", defaults["base_dir"])
		}
		if defaults["log_dir"] != filepath.Join("/custom/home", "log") {
			t.Errorf("log_dir = %q, want log under base dir", defaults["log_dir"])
		}
	})

	t.Run("falls back to home-relative paths", func(t *testing.T) {
		t.Setenv("TIDY_CONFIG_PATH", "")
		t.Setenv("TIDY_HOME", "")
		t.Setenv("HOME", "/home/someone")

		defaults, err := app.GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if defaults["config_path"] != "/home/someone/.config/tidy.toml" {
			t.Errorf("config_path = %q", defaults["config_path"])
		}
		if defaults["base_dir"] != "/home/someone/.local/share/tidy" {
			t.Errorf("base_dir = %q", defaults["base_dir"])
		}
	})
}
