// Package backup writes encrypted snapshots of the grocer database to
// S3-compatible object storage and restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

// objectStore is the subset of the S3 client used here.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config holds the bucket and credentials. Endpoint is only needed for
// non-AWS providers.
type Config struct {
	Endpoint   string `yaml:"endpoint"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Prefix     string `yaml:"prefix"`
	Passphrase string `yaml:"passphrase"`
}

// ErrNotConfigured is returned by New when the bucket, credentials or
// passphrase are missing.
var ErrNotConfigured = errors.New("backup not configured")

func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

type Backup struct {
	db         *sql.DB
	client     objectStore
	bucket     string
	prefix     string
	passphrase string
	logger     *slog.Logger
	now        func() time.Time
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Backup, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return newBackup(db, newS3Client(cfg), cfg, logger), nil
}

func newBackup(db *sql.DB, client objectStore, cfg Config, logger *slog.Logger) *Backup {
	return &Backup{
		db:         db,
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		passphrase: cfg.Passphrase,
		logger:     logger,
		now:        time.Now,
	}
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Run snapshots the database with VACUUM INTO, seals it and uploads it. It
// returns the object key.
func (b *Backup) Run(ctx context.Context) (string, error) {
	dir, err := os.MkdirTemp("", "grocer-backup-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := b.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return "", fmt.Errorf("snapshot database: %w", err)
	}
	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := seal(plaintext, b.passphrase)
	if err != nil {
		return "", fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := path.Join(b.prefix, fmt.Sprintf("grocer-%s.db.enc", b.now().UTC().Format("2006-01-02T150405Z")))
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	b.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))
	return key, nil
}

// Restore downloads the snapshot under key, decrypts it and writes it to dst
// after an integrity check. dst must not be the live database.
func (b *Backup) Restore(ctx context.Context, key, dst string) error {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	plaintext, err := open(sealed, b.passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move restored db: %w", err)
	}

	b.logger.Info("backup restored", "key", key, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
