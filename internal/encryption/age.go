package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// AgeEncryptor is the production tidy.Encryptor. The key pair is an age
// X25519 identity: the recipient (public half) sits on disk in plaintext so
// quarantining never needs a passphrase, while the identity (private half) is
// wrapped with the user's passphrase via age's scrypt recipient and only
// unwrapped in memory by Unlock.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ tidy.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an encryptor over the key files named in the config.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a fresh key pair and writes both halves to disk. The
// private half is passphrase-wrapped before it ever touches disk.
func (e *AgeEncryptor) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	wrapped, err := wrapIdentity(identity, passphrase)
	if err != nil {
		return err
	}

	if err := writeKeyFile(e.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	if err := writeKeyFile(e.privateKeyPath, wrapped, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

// Encrypt streams plaintext from r into w as an age ciphertext addressed to
// the stored recipient.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.recipient()
	if err != nil {
		return err
	}

	cw, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(cw, r); err != nil {
		return fmt.Errorf("encrypting: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("finishing encryption: %w", err)
	}
	return nil
}

// Unlock unwraps the private key with the passphrase. The returned context
// holds the identity in memory only.
func (e *AgeEncryptor) Unlock(passphrase string) (tidy.DecryptionContext, error) {
	wrapped, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	passID, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("deriving passphrase key: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(wrapped), passID)
	if err != nil {
		return nil, fmt.Errorf("unwrapping private key: %w", err)
	}

	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("private key file holds no identity")
	}
	return &AgeDecryptionContext{identity: identities[0]}, nil
}

// IsConfigured reports whether both key files are present on disk.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, path := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// recipient loads and parses the stored public key.
func (e *AgeEncryptor) recipient() (age.Recipient, error) {
	data, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("public key file holds no recipient")
	}
	return recipients[0], nil
}

// wrapIdentity encrypts the identity under a passphrase-derived scrypt key.
func wrapIdentity(identity *age.X25519Identity, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("deriving passphrase key: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("wrapping private key: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return nil, fmt.Errorf("wrapping private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("wrapping private key: %w", err)
	}
	return buf.Bytes(), nil
}

// writeKeyFile writes a key under its directory, creating it restrictively.
func writeKeyFile(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, mode)
}

// AgeDecryptionContext carries an unlocked identity across restore calls, so
// a multi-file restore asks for the passphrase once per command rather than
// once per file.
type AgeDecryptionContext struct {
	identity age.Identity
}

var _ tidy.DecryptionContext = (*AgeDecryptionContext)(nil)

// Decrypt streams ciphertext from r into w as plaintext.
func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	dr, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("opening ciphertext: %w", err)
	}
	if _, err := io.Copy(w, dr); err != nil {
		return fmt.Errorf("decrypting: %w", err)
	}
	return nil
}
