// Package storage keeps proof-of-action documents attached to ledger entries.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/config"
)

// Store persists blobs and hands back a stable reference
type Store interface {
	Save(ctx context.Context, r io.Reader, ext string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

var allowedExtensions = mapset.NewThreadUnsafeSet("png", "jpg", "jpeg", "pdf", "doc", "docx")

// DefaultMaxBytes is the upload ceiling when none is configured
const DefaultMaxBytes int64 = 16 << 20

// Extension validates filename against the allow-list and returns its
// lower-cased extension without the dot.
func Extension(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || !allowedExtensions.Contains(ext) {
		return "", apperr.Invalid("file type %q is not allowed", ext)
	}
	return ext, nil
}

// AllowedExtensions lists the accepted extensions, sorted
func AllowedExtensions() []string {
	return mapset.Sorted(allowedExtensions)
}

func newName(ext string) string {
	return fmt.Sprintf("proof_%d_%s.%s", time.Now().Unix(), uuid.NewString()[:8], ext)
}

// readLimited reads r fully, failing when it exceeds max bytes
func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, apperr.Invalid("file exceeds the %d MB limit", max>>20)
	}
	return data, nil
}

// New builds the configured backend
func New(cfg config.StorageConfig) (Store, error) {
	max := cfg.MaxUploadMB << 20
	if max <= 0 {
		max = DefaultMaxBytes
	}
	switch cfg.Backend {
	case "s3":
		return NewS3(cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, max)
	case "", "local":
		return NewLocal(cfg.UploadDir, max)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
