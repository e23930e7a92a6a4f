package vault

import (
	"context"
	"fmt"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
// encryptor is only used by the encrypting filesystem vault; pass nil when
// cfg.Encrypt is false.
func NewVaultFromConfig(cfg config.VaultConfig, encryptor tidy.Encryptor) (tidy.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(), nil
	case "s3":
		return NewS3Vault(context.Background(), S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem vault requires root to be set")
		}
		if cfg.Encrypt {
			if encryptor == nil {
				return nil, fmt.Errorf("encrypting vault requires an encryptor")
			}
			return NewEncryptedVault(cfg.Root, encryptor)
		}
		return NewFileSystemVault(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
