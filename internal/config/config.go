package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for tidy.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Scan       ScanConfig       `toml:"scan"`
	Database   DatabaseConfig   `toml:"database"`
	Vault      VaultConfig      `toml:"vault"`
	Generator  GeneratorConfig  `toml:"generator"`
	Apply      ApplyConfig      `toml:"apply"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// ScanConfig holds directory-scan settings.
type ScanConfig struct {
	Ignore        []string `toml:"ignore"`
	ComputeHashes bool     `toml:"compute_hashes"`
}

// DatabaseConfig represents configuration for the history ledger store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig represents configuration for the safe-deletion vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "filesystem", "s3", or "memory"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root    string `toml:"root,omitempty"`
	Encrypt bool   `toml:"encrypt,omitempty"` // encrypt quarantined files at rest

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Static credentials for the vault bucket. When empty the default AWS
	// credential chain is used instead.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// GeneratorConfig represents configuration for the organization-plan generator.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type GeneratorConfig struct {
	Type  string `toml:"type"`            // "ollama" or "static"
	Model string `toml:"model,omitempty"` // only used for type=ollama
}

// ApplyConfig holds defaults for plan application and duplicate cleanup.
type ApplyConfig struct {
	SafeDelete     bool `toml:"safe_delete"`
	PruneEmptyDirs bool `toml:"prune_empty_dirs"`
}

// EncryptionConfig holds paths to the age key pair used by the encrypted vault.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config with the provided base dir and sensible defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Scan:     ScanConfig{ComputeHashes: true},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Vault: VaultConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "vault"),
		},
		Generator: GeneratorConfig{Type: "ollama"},
		Apply:     ApplyConfig{SafeDelete: true},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "tidy.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "tidy.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
