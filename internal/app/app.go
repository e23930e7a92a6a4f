package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"tidy-go/internal/config"
	"tidy-go/internal/database"
	"tidy-go/internal/encryption"
	"tidy-go/internal/fs"
	"tidy-go/internal/generator"
	"tidy-go/internal/tidy"
	"tidy-go/internal/vault"
)

// TidyApp is the application layer between the CLI and the service. It
// constructs all dependencies from config, exposes high-level operations that
// accept raw string paths, and manages the ledger lifecycle on Close.
type TidyApp struct {
	cfg       *config.Config
	ledger    tidy.Ledger
	vault     tidy.Vault
	fsmgr     tidy.FilesystemManager
	encryptor tidy.Encryptor
	scanner   tidy.Scanner
	generator tidy.PlanGenerator
	service   *tidy.TidyService
	machine   *tidy.OrganizationStateMachine
	logFile   *os.File
}

// NewTidyApp creates a fully wired TidyApp from the given config.
// operation identifies the CLI command being run (e.g. "organize", "undo").
// The caller must call Close when done.
func NewTidyApp(cfg *config.Config, operation string) (*TidyApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	v, err := vault.NewVaultFromConfig(cfg.Vault, enc)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	ledger, err := database.NewLedgerFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	gen, err := generator.NewGeneratorFromConfig(cfg.Generator, logger, tidy.RealClock{})
	if err != nil {
		ledger.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager()
	scanner := fs.NewDirectoryScanner(cfg.Scan.Ignore, logger)
	svc := tidy.NewTidyService(ledger, v, fsmgr, logger, tidy.RealClock{}, tidy.UUIDGenerator{})
	machine := tidy.NewOrganizationStateMachine(scanner, gen, svc, logger, tidy.RealClock{}, tidy.UUIDGenerator{}, cfg.Scan.ComputeHashes)

	return &TidyApp{
		cfg:       cfg,
		ledger:    ledger,
		vault:     v,
		fsmgr:     fsmgr,
		encryptor: enc,
		scanner:   scanner,
		generator: gen,
		service:   svc,
		machine:   machine,
		logFile:   logFile,
	}, nil
}

// Service exposes the underlying service for direct workflows.
func (a *TidyApp) Service() *tidy.TidyService { return a.service }

// Machine exposes the organization state machine.
func (a *TidyApp) Machine() *tidy.OrganizationStateMachine { return a.machine }

// Config exposes the loaded configuration, letting the CLI seed flag defaults
// from it.
func (a *TidyApp) Config() *config.Config { return a.cfg }

// Scan resolves the given path and returns records for every file under it.
func (a *TidyApp) Scan(ctx context.Context, rawDir string, computeHashes bool) ([]tidy.FileRecord, error) {
	p, err := a.fsmgr.Resolve(rawDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", p)
	}
	return a.scanner.Scan(ctx, p.String(), computeHashes)
}

// Organize scans rawDir, generates a plan (optionally guided by custom
// instructions), and saves it as the current plan for later review and apply.
func (a *TidyApp) Organize(ctx context.Context, rawDir string, instructions string) (*tidy.OrganizationPlan, error) {
	p, err := a.fsmgr.Resolve(rawDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", p)
	}

	a.machine.AddInstructions(instructions)
	if err := a.machine.Organize(ctx, p.String()); err != nil {
		return nil, err
	}

	plan := a.machine.Plan()
	if err := a.SavePlan(p.String(), plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Apply executes the current saved plan. When rawTarget is non-empty the plan
// is applied under that directory instead of the scanned one. The saved plan
// is discarded after a non-dry-run apply.
func (a *TidyApp) Apply(rawTarget string, opts tidy.ApplyOptions) (*tidy.HistoryEntry, error) {
	saved, err := a.LoadPlan()
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("no saved plan: run organize first")
	}

	baseDir := saved.Dir
	if rawTarget != "" {
		p, err := a.fsmgr.Resolve(rawTarget)
		if err != nil {
			return nil, fmt.Errorf("resolving target: %w", err)
		}
		if !p.IsDir() {
			return nil, fmt.Errorf("target is not a directory: %s", p)
		}
		baseDir = p.String()
	}

	entry, err := a.service.ApplyPlan(saved.Plan, baseDir, opts)
	if err != nil {
		return entry, err
	}
	if !opts.DryRun {
		if err := a.DiscardPlan(); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// FindDuplicates scans rawDir with hashing forced on and groups files with
// identical content.
func (a *TidyApp) FindDuplicates(ctx context.Context, rawDir string, newestFirst bool) ([]tidy.DuplicateGroup, error) {
	files, err := a.Scan(ctx, rawDir, true)
	if err != nil {
		return nil, err
	}
	return tidy.DetectDuplicates(files, newestFirst), nil
}

// NeedsDecryption reports whether undo and restore require an unlocked
// decryption context (encrypting vault).
func (a *TidyApp) NeedsDecryption() bool {
	return a.vault.Encrypted()
}

// Unlock derives a decryption context from the passphrase.
func (a *TidyApp) Unlock(passphrase string) (tidy.DecryptionContext, error) {
	return a.encryptor.Unlock(passphrase)
}

// SetupEncryption generates the key pair used by the encrypting vault.
func (a *TidyApp) SetupEncryption(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already configured")
	}
	return a.encryptor.Setup(passphrase)
}

// ValidateVault verifies the configured vault is accessible.
func (a *TidyApp) ValidateVault() error {
	return a.vault.ValidateSetup()
}

// Close closes all resources.
func (a *TidyApp) Close() error {
	var firstErr error
	if err := a.ledger.Close(); err != nil {
		firstErr = fmt.Errorf("closing ledger: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
