package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"tidy-go/internal/app"
	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a TidyApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "organize", "undo").
func newApp(operation string) (*app.TidyApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewTidyApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

// unlockIfNeeded prompts for the vault passphrase when the vault encrypts at
// rest, returning nil for plaintext vaults.
func unlockIfNeeded(a *app.TidyApp) (tidy.DecryptionContext, error) {
	if !a.NeedsDecryption() {
		return nil, nil
	}
	pass, err := readPassphrase("Vault passphrase: ")
	if err != nil {
		return nil, err
	}
	return a.Unlock(pass)
}

// boolSetting resolves a boolean CLI setting: an explicitly set flag wins
// over the config default.
func boolSetting(flags *pflag.FlagSet, name string, configDefault bool) bool {
	if flags.Changed(name) {
		v, _ := flags.GetBool(name)
		return v
	}
	return configDefault
}

// confirm asks the user to type "yes" before an irreversible action.
func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s Type 'yes' to continue: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}

var rootCmd = &cobra.Command{
	Use:   "tidy",
	Short: "AI-assisted directory organizer with reversible changes",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Vault:     %s\n", cfg.Vault.Type)
		fmt.Printf("Generator: %s %s\n", cfg.Generator.Type, cfg.Generator.Model)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan DIR",
	Short: "List files that would be organized",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, _ := cmd.Flags().GetBool("hash")

		a, err := newApp("scan")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.Scan(cmd.Context(), args[0], hash)
		if err != nil {
			return err
		}

		if len(files) == 0 {
			fmt.Println("No files found.")
			return nil
		}

		for _, f := range files {
			if f.Hash != "" {
				fmt.Printf("%s  %10d  %s\n", f.Hash[:12], f.Size, f.Path)
			} else {
				fmt.Printf("%10d  %s\n", f.Size, f.Path)
			}
		}
		fmt.Printf("\n%d file(s)\n", len(files))
		return nil
	},
}

// organize command
var organizeCmd = &cobra.Command{
	Use:   "organize DIR",
	Short: "Scan a directory and generate an organization plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instructions, _ := cmd.Flags().GetString("instructions")

		a, err := newApp("organize")
		if err != nil {
			return err
		}
		defer a.Close()

		// Surface insights as the generator streams them.
		quit := make(chan struct{})
		go func() {
			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()
			var lastSeen string
			for {
				select {
				case <-quit:
					return
				case <-ticker.C:
					if ins := a.Machine().CurrentInsight(); ins != nil && ins.Message != lastSeen {
						lastSeen = ins.Message
						fmt.Printf("  ... %s\n", ins.Message)
					}
				}
			}
		}()

		plan, err := a.Organize(cmd.Context(), args[0], instructions)
		close(quit)
		if err != nil {
			return err
		}

		fmt.Printf("\nPlan v%d (%d files):\n\n", plan.Version, plan.TotalFileCount())
		printPlan(plan)
		fmt.Println("\nReview with 'tidy plan', then run 'tidy apply'.")
		return nil
	},
}

// plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the current saved plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("plan")
		if err != nil {
			return err
		}
		defer a.Close()

		saved, err := a.LoadPlan()
		if err != nil {
			return err
		}
		if saved == nil {
			fmt.Println("No saved plan. Run 'tidy organize DIR' first.")
			return nil
		}

		fmt.Printf("Plan v%d for %s (saved %s):\n\n",
			saved.Plan.Version, saved.Dir, saved.SavedAt.Format("2006-01-02 15:04:05"))
		printPlan(saved.Plan)
		return nil
	},
}

// printPlan renders the folder tree and unorganized remainder.
func printPlan(plan *tidy.OrganizationPlan) {
	var walk func(folders []*tidy.FolderSuggestion, indent string)
	walk = func(folders []*tidy.FolderSuggestion, indent string) {
		for _, f := range folders {
			fmt.Printf("%s%s/", indent, f.Name)
			if f.Reasoning != "" {
				fmt.Printf("  (%s)", f.Reasoning)
			}
			fmt.Println()
			for _, file := range f.Files {
				name := file.Path
				if newName, ok := f.Renames[file.Path]; ok {
					fmt.Printf("%s  %s -> %s\n", indent, name, newName)
					continue
				}
				fmt.Printf("%s  %s\n", indent, name)
			}
			walk(f.Subfolders, indent+"  ")
		}
	}
	walk(plan.Folders, "")

	if len(plan.Unorganized) > 0 {
		fmt.Printf("\nUnorganized (%d):\n", len(plan.Unorganized))
		for i, f := range plan.Unorganized {
			reason := ""
			if i < len(plan.UnorganizedReasons) && plan.UnorganizedReasons[i] != "" {
				reason = "  (" + plan.UnorganizedReasons[i] + ")"
			}
			fmt.Printf("  %s%s\n", f.Path, reason)
		}
	}
}

// apply command
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Execute the current saved plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		target, _ := cmd.Flags().GetString("target")

		a, err := newApp("apply")
		if err != nil {
			return err
		}
		defer a.Close()

		prune := boolSetting(cmd.Flags(), "prune-empty", a.Config().Apply.PruneEmptyDirs)
		entry, err := a.Apply(target, tidy.ApplyOptions{DryRun: dryRun, PruneEmptyDirs: prune})
		if err != nil {
			return err
		}

		printEntry(entry, dryRun)
		return nil
	},
}

// printEntry summarizes an apply or cleanup outcome per operation.
func printEntry(entry *tidy.HistoryEntry, dryRun bool) {
	verb := "Applied"
	if dryRun {
		verb = "Would apply"
	}
	fmt.Printf("%s %d operation(s):\n", verb, len(entry.Operations))
	for _, op := range entry.Operations {
		status := "ok"
		if !op.Succeeded {
			status = "FAILED: " + op.Error
		}
		switch op.Kind {
		case tidy.OpCreateFolder:
			fmt.Printf("  mkdir  %s  [%s]\n", op.Destination, status)
		case tidy.OpMoveFile:
			fmt.Printf("  move   %s -> %s  [%s]\n", op.Source, op.Destination, status)
		case tidy.OpDeleteFileSafe:
			fmt.Printf("  vault  %s  [%s]\n", op.Source, status)
		case tidy.OpDeleteFilePermanent:
			fmt.Printf("  delete %s  [%s]\n", op.Source, status)
		}
	}
	if failed := entry.FailedOperations(); len(failed) > 0 {
		fmt.Printf("\n%d operation(s) failed; the rest were applied and are undoable.\n", len(failed))
	}
}

// undo command
var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Revert the most recent apply or cleanup",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("undo")
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.Service().CanUndo()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Nothing to undo.")
			return nil
		}

		decrypt, err := unlockIfNeeded(a)
		if err != nil {
			return err
		}

		inverse, err := a.Service().Undo(decrypt)
		if err != nil {
			return err
		}
		fmt.Printf("Undid %d operation(s).\n", len(inverse.Operations))
		return nil
	},
}

// redo command
var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Reapply the most recently undone change",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("redo")
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.Service().CanRedo()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Nothing to redo.")
			return nil
		}

		redone, err := a.Service().Redo()
		if err != nil {
			return err
		}
		fmt.Printf("Reapplied %d operation(s).\n", len(redone.Operations))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View the change ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Service().History(limit)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No changes recorded.")
			return nil
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Operation", "When", "Ops", "Status"})
		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = fmt.Sprintf("partial (%d failed)", len(e.FailedOperations()))
			}
			if e.Undone {
				status += ", undone"
			}
			tw.AppendRow(table.Row{
				shortID(e.ID),
				e.Operation,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				len(e.Operations),
				status,
			})
		}
		tw.Render()
		return nil
	},
}

// dupes command
var dupesCmd = &cobra.Command{
	Use:   "dupes DIR",
	Short: "Find files with identical content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newestFirst, _ := cmd.Flags().GetBool("newest-first")

		a, err := newApp("dupes")
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.FindDuplicates(cmd.Context(), args[0], newestFirst)
		if err != nil {
			return err
		}

		if len(groups) == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}

		printGroups(groups)
		fmt.Println("\nRun 'tidy dupes clean DIR' to remove the extra copies.")
		return nil
	},
}

func printGroups(groups []tidy.DuplicateGroup) {
	var wasted int64
	for i, g := range groups {
		fmt.Printf("Group %d (%d bytes each):\n", i+1, g.Size)
		for j, f := range g.Files {
			marker := "keep  "
			if j > 0 {
				marker = "delete"
				wasted += g.Size
			}
			fmt.Printf("  [%s] %s\n", marker, f.Path)
		}
	}
	fmt.Printf("\n%d group(s), %d bytes reclaimable\n", len(groups), wasted)
}

var dupesCleanCmd = &cobra.Command{
	Use:   "clean DIR",
	Short: "Delete duplicate copies, keeping one per group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newestFirst, _ := cmd.Flags().GetBool("newest-first")

		a, err := newApp("dupes-clean")
		if err != nil {
			return err
		}
		defer a.Close()

		permanent := boolSetting(cmd.Flags(), "permanent", !a.Config().Apply.SafeDelete)

		groups, err := a.FindDuplicates(cmd.Context(), args[0], newestFirst)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}

		printGroups(groups)

		if permanent && !confirm("\nPermanent deletion cannot be undone.") {
			fmt.Println("Aborted.")
			return nil
		}

		entry, err := a.Service().CleanDuplicates(groups, !permanent)
		if err != nil {
			return err
		}
		if entry == nil {
			fmt.Println("Nothing to delete.")
			return nil
		}

		printEntry(entry, false)
		if !permanent {
			fmt.Println("\nDeleted copies are in the vault; 'tidy undo' or 'tidy vault restore' brings them back.")
		}
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage safely-deleted files",
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantined files",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp("vault-list")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Service().Restorables(all)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("Vault is empty.")
			return nil
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Original Path", "Size", "Deleted", "State"})
		for _, item := range items {
			tw.AppendRow(table.Row{
				shortID(item.ID),
				item.OriginalPath,
				item.Size,
				item.DeletedAt.Format("2006-01-02 15:04:05"),
				item.State,
			})
		}
		tw.Render()
		return nil
	},
}

var vaultRestoreCmd = &cobra.Command{
	Use:   "restore ITEM_ID",
	Short: "Restore a quarantined file to its original location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("vault-restore")
		if err != nil {
			return err
		}
		defer a.Close()

		itemID, err := resolveItemID(a, args[0])
		if err != nil {
			return err
		}

		decrypt, err := unlockIfNeeded(a)
		if err != nil {
			return err
		}

		if err := a.Service().RestoreItem(itemID, decrypt); err != nil {
			return err
		}
		fmt.Println("Restored.")
		return nil
	},
}

var vaultPurgeCmd = &cobra.Command{
	Use:   "purge ITEM_ID",
	Short: "Permanently delete a quarantined file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp("vault-purge")
		if err != nil {
			return err
		}
		defer a.Close()

		itemID, err := resolveItemID(a, args[0])
		if err != nil {
			return err
		}

		if !yes && !confirm("Purging permanently deletes the file.") {
			fmt.Println("Aborted.")
			return nil
		}

		if err := a.Service().PurgeItem(itemID); err != nil {
			return err
		}
		fmt.Println("Purged.")
		return nil
	},
}

var vaultSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate encryption keys for the encrypting vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("vault-setup")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("New vault passphrase: ")
		if err != nil {
			return err
		}
		again, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != again {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupEncryption(pass); err != nil {
			return err
		}
		fmt.Println("Encryption keys generated.")
		return nil
	},
}

var vaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the vault is accessible",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("vault-check")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateVault(); err != nil {
			return err
		}
		fmt.Println("Vault OK.")
		return nil
	},
}

// resolveItemID accepts a full or shortened restorable item ID.
func resolveItemID(a *app.TidyApp, raw string) (string, error) {
	items, err := a.Service().Restorables(true)
	if err != nil {
		return "", err
	}
	var match string
	for _, item := range items {
		if item.ID == raw {
			return item.ID, nil
		}
		if strings.HasPrefix(item.ID, raw) {
			if match != "" {
				return "", fmt.Errorf("ambiguous item ID: %s", raw)
			}
			match = item.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("unknown item ID: %s", raw)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// dupes subcommands
	dupesCmd.AddCommand(dupesCleanCmd)
	dupesCmd.Flags().Bool("newest-first", false, "Keep the newest copy instead of the oldest")
	dupesCleanCmd.Flags().Bool("newest-first", false, "Keep the newest copy instead of the oldest")
	dupesCleanCmd.Flags().Bool("permanent", false, "Delete outright instead of quarantining (default from apply.safe_delete)")

	// vault subcommands
	vaultCmd.AddCommand(vaultListCmd)
	vaultListCmd.Flags().Bool("all", false, "Include restored and purged items")
	vaultCmd.AddCommand(vaultRestoreCmd)
	vaultCmd.AddCommand(vaultPurgeCmd)
	vaultPurgeCmd.Flags().BoolP("yes", "y", false, "Skip confirmation")
	vaultCmd.AddCommand(vaultSetupCmd)
	vaultCmd.AddCommand(vaultCheckCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("hash", false, "Compute content hashes")
	rootCmd.AddCommand(organizeCmd)
	organizeCmd.Flags().StringP("instructions", "i", "", "Custom instructions for the generator")
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().Bool("dry-run", false, "Show operations without touching the filesystem")
	applyCmd.Flags().Bool("prune-empty", false, "Remove source directories left empty by moves (default from apply.prune_empty_dirs)")
	applyCmd.Flags().String("target", "", "Apply under this directory instead of the scanned one")
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(redoCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(vaultCmd)
}
