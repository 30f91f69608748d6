// Package bucket uploads profile images to a MinIO (S3-compatible) bucket.
package bucket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxUploadSize caps profile images at 10 MiB.
const maxUploadSize = 10 << 20

// ErrNotAnImage rejects uploads whose sniffed content type is not an image.
var ErrNotAnImage = errors.New("bucket: uploaded file is not an image")

// ErrTooLarge rejects uploads over the size cap.
var ErrTooLarge = errors.New("bucket: uploaded file exceeds the size limit")

// Uploader wraps a MinIO client bound to a single bucket.
type Uploader struct {
	client   *minio.Client
	bucket   string
	endpoint string
	useSSL   bool
	log      *slog.Logger
}

// New connects to MinIO and makes sure the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, log *slog.Logger) (*Uploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("bucket: connect: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("bucket: check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("bucket: create: %w", err)
		}
		log.Info("created bucket", "bucket", bucketName)
	}

	return &Uploader{
		client:   client,
		bucket:   bucketName,
		endpoint: endpoint,
		useSSL:   useSSL,
		log:      log,
	}, nil
}

// Upload sniffs the content, rejects non-images, stores the object, and
// returns its public URL.
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	if size > maxUploadSize {
		return "", ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("bucket: read upload: %w", err)
	}
	if int64(len(data)) > maxUploadSize {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", ErrNotAnImage
	}

	objectName := sanitizeFilename(filename)
	_, err = u.client.PutObject(ctx, u.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mtype.String()})
	if err != nil {
		return "", fmt.Errorf("bucket: put: %w", err)
	}

	scheme := "http"
	if u.useSSL {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/%s/%s", scheme, u.endpoint, u.bucket, objectName)
	u.log.Info("uploaded image", "object", objectName, "size", len(data), "type", mtype.String())
	return url, nil
}

// sanitizeFilename strips any path components and characters that would need
// escaping in an object name or URL.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	switch out := b.String(); out {
	case "", ".", "..":
		return "upload"
	default:
		return out
	}
}
