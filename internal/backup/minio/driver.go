// Package minio provides a MinIO / S3-compatible implementation of
// backup.Store, for deployments where reset snapshots must outlive the
// host running the data layer.
//
// Usage:
//
//	store, err := minio.New(ctx, &minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "tessera-backups",
//	    Key:       "snapshot.json",
//	})
package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tessera-db/tessera/internal/backup"
	"github.com/tessera-db/tessera/internal/errs"
)

// Config holds the connection and object location settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string

	// Bucket and Key locate the snapshot object. The bucket must already
	// exist; the object is overwritten on every Write.
	Bucket string
	Key    string
}

// Store is a MinIO implementation of backup.Store.
// It is safe for concurrent use by multiple goroutines, though concurrent
// Write/Read against the same key remains the caller's problem.
type Store struct {
	client *miniogo.Client
	bucket string
	key    string
}

// New connects to MinIO using cfg and verifies the bucket is reachable
// before returning.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "create minio client", err)
	}

	s := &Store{client: client, bucket: cfg.Bucket, key: cfg.Key}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, mapError(err, "check backup bucket")
	}
	if !exists {
		return nil, errs.Newf(errs.KindConnectionFailed,
			"backup bucket %q does not exist", cfg.Bucket)
	}
	return s, nil
}

// Write uploads the snapshot document, replacing any existing object.
// The written-at timestamp and format version travel as object metadata,
// keeping the JSON body identical to what the file store writes.
func (s *Store) Write(ctx context.Context, snap backup.Snapshot) error {
	data, err := backup.Encode(snap)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.key,
		bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{
			ContentType:  "application/json",
			UserMetadata: backup.ObjectMetadata(time.Now()),
		})
	if err != nil {
		return mapError(err, "upload snapshot")
	}
	return nil
}

// Read downloads and parses the snapshot document.
func (s *Store) Read(ctx context.Context) (backup.Snapshot, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "download snapshot")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, "read snapshot body")
	}
	return backup.Decode(data)
}

// mapError translates a MinIO SDK error into a *errs.Error. It mirrors the
// mapError pattern used by the postgres driver.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		// Snapshot object errors are backup-file errors regardless of the
		// precise S3 code; connectivity problems fall through below.
		return errs.Wrap(errs.KindSerialization, msg, err)
	}

	return errs.Wrap(errs.KindConnectionFailed, msg, err)
}
