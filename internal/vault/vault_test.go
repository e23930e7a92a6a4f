package vault_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tidy-go/internal/config"
	"tidy-go/internal/encryption"
	"tidy-go/internal/tidy"
	"tidy-go/internal/vault"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestFileSystemVault_Quarantine(t *testing.T) {
	t.Run("moves the file into the vault", func(t *testing.T) {
		dir := t.TempDir()
		v, err := vault.NewFileSystemVault(filepath.Join(dir, "vault"))
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}

		src := filepath.Join(dir, "doc.txt")
		writeFile(t, src, "content")

		qp, err := v.Quarantine(src, "abc-1")
		if err != nil {
			t.Fatalf("Quarantine() error = %v", err)
		}

		if _, err := os.Lstat(src); !os.IsNotExist(err) {
			t.Error("source file still exists after quarantine")
		}
		if got := readFile(t, qp); got != "content" {
			t.Errorf("quarantined content = %q, want %q", got, "content")
		}
		if filepath.Base(qp) != "abc-1" {
			t.Errorf("quarantine name = %q, want abc-1", filepath.Base(qp))
		}
	})

	t.Run("never overwrites an occupied key", func(t *testing.T) {
		dir := t.TempDir()
		v, err := vault.NewFileSystemVault(filepath.Join(dir, "vault"))
		if err != nil {
			t.Fatal(err)
		}

		writeFile(t, filepath.Join(dir, "one.txt"), "one")
		writeFile(t, filepath.Join(dir, "two.txt"), "two")

		qp1, err := v.Quarantine(filepath.Join(dir, "one.txt"), "same-key")
		if err != nil {
			t.Fatal(err)
		}
		qp2, err := v.Quarantine(filepath.Join(dir, "two.txt"), "same-key")
		if err != nil {
			t.Fatal(err)
		}

		if qp1 == qp2 {
			t.Fatalf("both quarantines landed on %s", qp1)
		}
		if readFile(t, qp1) != "one" || readFile(t, qp2) != "two" {
			t.Error("quarantined contents mixed up")
		}
	})

	t.Run("missing source errors", func(t *testing.T) {
		dir := t.TempDir()
		v, err := vault.NewFileSystemVault(filepath.Join(dir, "vault"))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := v.Quarantine(filepath.Join(dir, "nope.txt"), "k"); err == nil {
			t.Error("Quarantine() of missing file did not error")
		}
	})
}

func TestFileSystemVault_Restore(t *testing.T) {
	t.Run("moves the file back", func(t *testing.T) {
		dir := t.TempDir()
		v, err := vault.NewFileSystemVault(filepath.Join(dir, "vault"))
		if err != nil {
			t.Fatal(err)
		}

		src := filepath.Join(dir, "sub", "doc.txt")
		writeFile(t, src, "content")
		qp, err := v.Quarantine(src, "k")
		if err != nil {
			t.Fatal(err)
		}

		// The original directory vanished in the meantime.
		if err := os.RemoveAll(filepath.Join(dir, "sub")); err != nil {
			t.Fatal(err)
		}

		if err := v.Restore(qp, src, nil); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if got := readFile(t, src); got != "content" {
			t.Errorf("restored content = %q, want %q", got, "content")
		}
		if _, err := os.Lstat(qp); !os.IsNotExist(err) {
			t.Error("vault copy still exists after restore")
		}
	})

	t.Run("refuses to overwrite an existing file", func(t *testing.T) {
		dir := t.TempDir()
		v, err := vault.NewFileSystemVault(filepath.Join(dir, "vault"))
		if err != nil {
			t.Fatal(err)
		}

		src := filepath.Join(dir, "doc.txt")
		writeFile(t, src, "content")
		qp, err := v.Quarantine(src, "k")
		if err != nil {
			t.Fatal(err)
		}
		writeFile(t, src, "squatter")

		err = v.Restore(qp, src, nil)
		var conflict *tidy.RestoreConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("Restore() error = %v, want RestoreConflictError", err)
		}
		if conflict.Path != src {
			t.Errorf("conflict.Path = %q, want %q", conflict.Path, src)
		}
		if got := readFile(t, src); got != "squatter" {
			t.Error("existing file was overwritten")
		}
		if got := readFile(t, qp); got != "content" {
			t.Error("vault copy damaged by the failed restore")
		}
	})
}

func TestFileSystemVault_Purge(t *testing.T) {
	dir := t.TempDir()
	v, err := vault.NewFileSystemVault(filepath.Join(dir, "vault"))
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(dir, "doc.txt")
	writeFile(t, src, "content")
	qp, err := v.Quarantine(src, "k")
	if err != nil {
		t.Fatal(err)
	}

	if err := v.Purge(qp); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if _, err := os.Lstat(qp); !os.IsNotExist(err) {
		t.Error("vault copy still exists after purge")
	}

	if err := v.Purge(qp); err == nil {
		t.Error("second Purge() did not error")
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	dir := t.TempDir()
	v, err := vault.NewFileSystemVault(filepath.Join(dir, "vault"))
	if err != nil {
		t.Fatal(err)
	}
	if v.Encrypted() {
		t.Error("Encrypted() = true for plaintext vault")
	}
	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	if err := os.RemoveAll(filepath.Join(dir, "vault")); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() with missing directories did not error")
	}
}

func TestMemoryVault(t *testing.T) {
	t.Run("quarantine and restore round trip", func(t *testing.T) {
		dir := t.TempDir()
		v := vault.NewMemoryVault()

		src := filepath.Join(dir, "doc.txt")
		writeFile(t, src, "content")

		qp, err := v.Quarantine(src, "k")
		if err != nil {
			t.Fatalf("Quarantine() error = %v", err)
		}
		if !strings.HasPrefix(qp, "memory://") {
			t.Errorf("quarantine path = %q, want memory:// prefix", qp)
		}
		if _, err := os.Lstat(src); !os.IsNotExist(err) {
			t.Error("source still on disk after quarantine")
		}
		if v.Len() != 1 {
			t.Errorf("Len() = %d, want 1", v.Len())
		}

		if err := v.Restore(qp, src, nil); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if got := readFile(t, src); got != "content" {
			t.Errorf("restored content = %q, want %q", got, "content")
		}
		if v.Len() != 0 {
			t.Errorf("Len() = %d, want 0 after restore", v.Len())
		}
	})

	t.Run("restore conflict", func(t *testing.T) {
		dir := t.TempDir()
		v := vault.NewMemoryVault()

		src := filepath.Join(dir, "doc.txt")
		writeFile(t, src, "content")
		qp, err := v.Quarantine(src, "k")
		if err != nil {
			t.Fatal(err)
		}
		writeFile(t, src, "squatter")

		err = v.Restore(qp, src, nil)
		var conflict *tidy.RestoreConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("Restore() error = %v, want RestoreConflictError", err)
		}
	})

	t.Run("purge", func(t *testing.T) {
		dir := t.TempDir()
		v := vault.NewMemoryVault()

		src := filepath.Join(dir, "doc.txt")
		writeFile(t, src, "content")
		qp, err := v.Quarantine(src, "k")
		if err != nil {
			t.Fatal(err)
		}

		if err := v.Purge(qp); err != nil {
			t.Fatalf("Purge() error = %v", err)
		}
		if err := v.Purge(qp); err == nil {
			t.Error("second Purge() did not error")
		}
	})
}

func TestEncryptedVault(t *testing.T) {
	newVault := func(t *testing.T, dir string) *vault.EncryptedVault {
		t.Helper()
		v, err := vault.NewEncryptedVault(filepath.Join(dir, "vault"), encryption.NewTestEncryptor())
		if err != nil {
			t.Fatalf("NewEncryptedVault() error = %v", err)
		}
		return v
	}

	t.Run("quarantine encrypts and removes the plaintext", func(t *testing.T) {
		dir := t.TempDir()
		v := newVault(t, dir)

		src := filepath.Join(dir, "doc.txt")
		writeFile(t, src, "secret content")

		qp, err := v.Quarantine(src, "k")
		if err != nil {
			t.Fatalf("Quarantine() error = %v", err)
		}

		if _, err := os.Lstat(src); !os.IsNotExist(err) {
			t.Error("plaintext original still exists after quarantine")
		}
		if !strings.HasSuffix(qp, ".age") {
			t.Errorf("quarantine path = %q, want .age suffix", qp)
		}
		if got := readFile(t, qp); got == "secret content" {
			t.Error("vault copy is stored as plaintext")
		}
	})

	t.Run("restore requires a decryption context", func(t *testing.T) {
		dir := t.TempDir()
		v := newVault(t, dir)

		src := filepath.Join(dir, "doc.txt")
		writeFile(t, src, "secret content")
		qp, err := v.Quarantine(src, "k")
		if err != nil {
			t.Fatal(err)
		}

		if err := v.Restore(qp, src, nil); err == nil {
			t.Fatal("Restore() without decryption context did not error")
		}

		decrypt, err := encryption.NewTestEncryptor().Unlock("")
		if err != nil {
			t.Fatal(err)
		}
		if err := v.Restore(qp, src, decrypt); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if got := readFile(t, src); got != "secret content" {
			t.Errorf("restored content = %q, want %q", got, "secret content")
		}
		if _, err := os.Lstat(qp); !os.IsNotExist(err) {
			t.Error("vault copy still exists after restore")
		}
	})

	t.Run("reports encrypted", func(t *testing.T) {
		v := newVault(t, t.TempDir())
		if !v.Encrypted() {
			t.Error("Encrypted() = false")
		}
		if err := v.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		v := newVault(t, dir)

		src := filepath.Join(dir, "doc.txt")
		writeFile(t, src, "secret content")
		if _, err := v.Quarantine(src, "k"); err != nil {
			t.Fatal(err)
		}

		entries, err := os.ReadDir(filepath.Join(dir, "vault", "files"))
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".tmp-") {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})
}

func TestNewVaultFromConfig(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		v, err := vault.NewVaultFromConfig(config.VaultConfig{Type: "memory"}, nil)
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		if _, ok := v.(*vault.MemoryVault); !ok {
			t.Errorf("vault type = %T, want *MemoryVault", v)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		v, err := vault.NewVaultFromConfig(config.VaultConfig{Type: "filesystem", Root: t.TempDir()}, nil)
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		if v.Encrypted() {
			t.Error("plain filesystem vault reports encrypted")
		}
	})

	t.Run("filesystem without root", func(t *testing.T) {
		if _, err := vault.NewVaultFromConfig(config.VaultConfig{Type: "filesystem"}, nil); err == nil {
			t.Error("NewVaultFromConfig() without root did not error")
		}
	})

	t.Run("encrypting filesystem", func(t *testing.T) {
		v, err := vault.NewVaultFromConfig(
			config.VaultConfig{Type: "filesystem", Root: t.TempDir(), Encrypt: true},
			encryption.NewTestEncryptor(),
		)
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		if !v.Encrypted() {
			t.Error("encrypting vault reports plaintext")
		}
	})

	t.Run("encrypting filesystem without encryptor", func(t *testing.T) {
		cfg := config.VaultConfig{Type: "filesystem", Root: t.TempDir(), Encrypt: true}
		if _, err := vault.NewVaultFromConfig(cfg, nil); err == nil {
			t.Error("NewVaultFromConfig() without encryptor did not error")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := vault.NewVaultFromConfig(config.VaultConfig{Type: "tape"}, nil); err == nil {
			t.Error("NewVaultFromConfig() with unknown type did not error")
		}
	})
}
