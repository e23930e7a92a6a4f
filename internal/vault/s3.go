package vault

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"tidy-go/internal/tidy"
)

// S3Vault is an S3-backed implementation of the Vault interface. Quarantined
// files are uploaded as objects under a key prefix and the local original is
// removed, so the quarantine survives loss of the local machine.
//
// Quarantine paths take the form "s3://<bucket>/<object key>".
type S3Vault struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// S3Options configures an S3 vault.
type S3Options struct {
	Bucket string
	Prefix string
	Region string

	// Static credentials. When empty the default AWS credential chain
	// (environment, shared config, instance role) is used.
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Vault creates an S3 vault for the given bucket.
func NewS3Vault(ctx context.Context, opt S3Options) (*S3Vault, error) {
	if opt.Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if opt.Region != "" {
		opts = append(opts, awsconfig.WithRegion(opt.Region))
	}
	if opt.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opt.AccessKeyID, opt.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Vault{
		bucket:   opt.Bucket,
		prefix:   strings.Trim(opt.Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// objectKey builds the object key for a vault key.
func (v *S3Vault) objectKey(key string) string {
	if v.prefix == "" {
		return key
	}
	return path.Join(v.prefix, key)
}

// objectURI builds the quarantine path recorded in the ledger.
func (v *S3Vault) objectURI(objKey string) string {
	return "s3://" + v.bucket + "/" + objKey
}

// parseURI extracts the object key from a quarantine path.
func (v *S3Vault) parseURI(quarantinePath string) (string, error) {
	want := "s3://" + v.bucket + "/"
	if !strings.HasPrefix(quarantinePath, want) {
		return "", fmt.Errorf("quarantine path %q does not belong to bucket %s", quarantinePath, v.bucket)
	}
	return strings.TrimPrefix(quarantinePath, want), nil
}

// Quarantine uploads the file at srcPath and removes the local original.
func (v *S3Vault) Quarantine(srcPath string, key string) (string, error) {
	ctx := context.Background()

	objKey, err := v.claimKey(ctx, key)
	if err != nil {
		return "", err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("quarantine source not accessible: %w", err)
	}

	_, err = v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
		Body:   f,
	})
	f.Close()
	if err != nil {
		return "", fmt.Errorf("uploading to vault bucket: %w", err)
	}

	if err := os.Remove(srcPath); err != nil {
		return "", fmt.Errorf("removing local original: %w", err)
	}
	return v.objectURI(objKey), nil
}

// claimKey finds an unoccupied object key for key.
func (v *S3Vault) claimKey(ctx context.Context, key string) (string, error) {
	objKey := v.objectKey(key)
	for i := 1; ; i++ {
		_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(objKey),
		})
		if err != nil {
			// HeadObject fails for missing objects; treat any failure as free
			// and let the upload surface real errors.
			return objKey, nil
		}
		objKey = v.objectKey(fmt.Sprintf("%s.%d", key, i))
	}
}

// Restore downloads a quarantined object back to originalPath and deletes it
// from the bucket.
// The decrypt context is ignored; this vault stores plaintext.
func (v *S3Vault) Restore(quarantinePath string, originalPath string, decrypt tidy.DecryptionContext) error {
	ctx := context.Background()

	objKey, err := v.parseURI(quarantinePath)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(originalPath); err == nil {
		return &tidy.RestoreConflictError{Path: originalPath}
	}

	destDir := filepath.Dir(originalPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating restore directory: %w", err)
	}

	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return fmt.Errorf("downloading from vault bucket: %w", err)
	}
	defer out.Body.Close()

	tmpFile, err := os.CreateTemp(destDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.ReadFrom(out.Body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing restored file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, originalPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true

	if err := v.deleteObject(ctx, objKey); err != nil {
		return fmt.Errorf("removing vault copy after restore: %w", err)
	}
	return nil
}

// Purge permanently deletes the quarantined object.
func (v *S3Vault) Purge(quarantinePath string) error {
	objKey, err := v.parseURI(quarantinePath)
	if err != nil {
		return err
	}
	if err := v.deleteObject(context.Background(), objKey); err != nil {
		return fmt.Errorf("purging quarantined object: %w", err)
	}
	return nil
}

func (v *S3Vault) deleteObject(ctx context.Context, objKey string) error {
	_, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	})
	return err
}

// Encrypted reports that this vault stores plaintext.
// Server-side encryption on the bucket is transparent to restores.
func (v *S3Vault) Encrypted() bool { return false }

// ValidateSetup verifies that the bucket exists and is reachable with the
// configured credentials.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("vault bucket not accessible: %w", err)
	}
	return nil
}

// Compile-time check that S3Vault implements tidy.Vault interface
var _ tidy.Vault = (*S3Vault)(nil)
