package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/tidy",
		LogDir:  "/home/user/.local/share/tidy/log",
		Scan: ScanConfig{
			Ignore:        []string{"*.log", ".git"},
			ComputeHashes: true,
		},
		Database:  DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/tidy/db"},
		Vault:     VaultConfig{Type: "filesystem", Root: "/home/user/.local/share/tidy/vault", Encrypt: true},
		Generator: GeneratorConfig{Type: "ollama", Model: "llama3.2"},
		Apply:     ApplyConfig{SafeDelete: true, PruneEmptyDirs: true},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/home/user/.local/share/tidy/keys/tidy.pub",
			PrivateKeyPath: "/home/user/.local/share/tidy/keys/tidy.key",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if len(got.Scan.Ignore) != 2 {
		t.Fatalf("len(Scan.Ignore) = %d, want 2", len(got.Scan.Ignore))
	}
	if !got.Scan.ComputeHashes {
		t.Error("Scan.ComputeHashes = false, want true")
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Vault.Type != "filesystem" {
		t.Errorf("Vault.Type = %q, want %q", got.Vault.Type, "filesystem")
	}
	if got.Vault.Root != original.Vault.Root {
		t.Errorf("Vault.Root = %q, want %q", got.Vault.Root, original.Vault.Root)
	}
	if !got.Vault.Encrypt {
		t.Error("Vault.Encrypt = false, want true")
	}
	if got.Generator.Model != "llama3.2" {
		t.Errorf("Generator.Model = %q, want %q", got.Generator.Model, "llama3.2")
	}
	if !got.Apply.PruneEmptyDirs {
		t.Error("Apply.PruneEmptyDirs = false, want true")
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/tidy")

	if cfg.BaseDir != "/data/tidy" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/tidy")
	}
	if cfg.LogDir != "/data/tidy/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/tidy/log")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.Database.DataDir != "/data/tidy/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/tidy/db")
	}
	if cfg.Vault.Type != "filesystem" {
		t.Errorf("Vault.Type = %q, want %q", cfg.Vault.Type, "filesystem")
	}
	if cfg.Vault.Root != "/data/tidy/vault" {
		t.Errorf("Vault.Root = %q, want %q", cfg.Vault.Root, "/data/tidy/vault")
	}
	if !cfg.Apply.SafeDelete {
		t.Error("Apply.SafeDelete = false, want true")
	}
	if cfg.Encryption.PublicKeyPath != "/data/tidy/keys/tidy.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/tidy/keys/tidy.pub")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/tidy.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
