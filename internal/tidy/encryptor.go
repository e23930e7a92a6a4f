package tidy

import "io"

// Encryptor provides encrypt-at-rest for the encrypting vault backend.
// Encryption uses a public key and needs no passphrase; decryption requires
// unlocking the private key first.
type Encryptor interface {
	// Setup generates and stores a new key pair protected by the passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key with the passphrase and returns a
	// context that can decrypt quarantined content.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether key material exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key for decrypting content.
type DecryptionContext interface {
	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
