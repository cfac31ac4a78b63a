package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"thesiscert/internal/config"
	"thesiscert/internal/errs"
)

// cidMetadataKey is the object metadata entry where S3-compatible IPFS gateways
// (Filebase and similar) report the CID assigned to an uploaded object.
const cidMetadataKey = "Cid"

// s3Store pins through an S3-compatible bucket backed by IPFS.
// It is safe for concurrent use by multiple goroutines.
type s3Store struct {
	client  *minio.Client
	bucket  string
	gateway string
	logger  *zap.Logger
}

// NewS3 creates an S3-compatible pinning client backed by minio-go.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewS3(cfg config.MinIOConfig, gateway string, logger *zap.Logger) (ContentStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure bucket exists.
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &s3Store{
		client:  cli,
		bucket:  cfg.Bucket,
		gateway: gateway,
		logger:  logger.With(zap.String("component", "store"), zap.String("provider", "s3")),
	}, nil
}

func (s *s3Store) Provider() string { return "s3" }

func (s *s3Store) GatewayURL(contentID string) string { return gatewayURL(s.gateway, contentID) }

// Upload puts the object and reads back the CID the gateway assigned to it.
func (s *s3Store) Upload(ctx context.Context, data []byte, filename, contentType string) (Pin, error) {
	key := filepath.ToSlash(filepath.Join("theses", uuid.NewString()+filepath.Ext(filename)))

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-filename": filename},
	})
	if err != nil {
		return Pin{}, classifyS3(ctx, "put object", err)
	}

	st, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return Pin{}, classifyS3(ctx, "stat object", err)
	}
	cid := contentIDFromMetadata(st.UserMetadata, st.Metadata)
	if cid == "" {
		// The object is useless without a CID; do not leave it behind.
		_ = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
		return Pin{}, errs.Transient("s3 gateway returned no content id", nil)
	}

	s.logger.Debug("pinned", zap.String("cid", cid), zap.String("key", key))
	return Pin{
		ContentID: cid,
		Key:       key,
		Size:      int64(len(data)),
		Provider:  s.Provider(),
		PinnedAt:  time.Now().UTC(),
	}, nil
}

// Fetch downloads an object content as a ReadCloser.
func (s *s3Store) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyS3(ctx, "get object", err)
	}
	// Stat forces the request so a missing object surfaces here rather than on Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, classifyS3(ctx, "get object", err)
	}
	return obj, nil
}

// Unpin removes the object, which releases the pin on the gateway side.
func (s *s3Store) Unpin(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classifyS3(ctx, "remove object", err)
	}
	return nil
}

func contentIDFromMetadata(user map[string]string, hdr http.Header) string {
	for _, k := range []string{cidMetadataKey, "cid", "X-Amz-Meta-Cid"} {
		if v := user[k]; v != "" {
			return v
		}
	}
	if hdr != nil {
		return hdr.Get("X-Amz-Meta-Cid")
	}
	return ""
}

func classifyS3(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return errs.Transient(op+" timed out", ctx.Err())
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return errs.Wrap(errs.KindNotFound, op, errs.ErrNotFound)
	case resp.StatusCode == 0 || resp.StatusCode >= 500:
		return errs.Transient(op+" failed", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
