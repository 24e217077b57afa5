// Package upload mirrors snapshot files into an S3-compatible object store.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aluiziolira/go-rank-watch/config"
)

const snapshotContentType = "text/csv"

// putter is the slice of the object-store API the uploader needs;
// *minio.Client satisfies it.
type putter interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader pushes freshly written snapshots to a bucket. Uploads are a
// convenience mirror: the local file stays the source of truth and callers
// treat upload failures as warnings.
type Uploader struct {
	cfg    config.UploadConfig
	client putter
}

// New builds an uploader from the S3 config block. The endpoint may carry a
// scheme; https forces TLS regardless of the UseSSL flag.
func New(cfg config.UploadConfig) (*Uploader, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return &Uploader{cfg: cfg, client: client}, nil
}

// UploadSnapshot stores the snapshot at filePath under its dated key and
// again under the stable alias downstream consumers watch. Re-putting the
// alias is how "update if exists" works on an object store.
func (u *Uploader) UploadSnapshot(ctx context.Context, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read snapshot for upload: %w", err)
	}

	base := filepath.Base(filePath)
	keys := []string{u.key(base)}
	if alias := u.cfg.LatestAlias; alias != "" && alias != base {
		keys = append(keys, u.key(alias))
	}

	for _, key := range keys {
		if err := u.put(ctx, key, data); err != nil {
			return err
		}
	}
	return nil
}

func (u *Uploader) put(ctx context.Context, key string, data []byte) error {
	_, err := u.client.PutObject(ctx, u.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: snapshotContentType})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.cfg.Bucket, key, err)
	}
	return nil
}

func (u *Uploader) key(name string) string {
	if u.cfg.Prefix == "" {
		return name
	}
	return path.Join(u.cfg.Prefix, name)
}
