package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xelth-com/assetledger/internal/apperr"
)

// Local stores documents as files in one directory
type Local struct {
	dir      string
	maxBytes int64
}

// NewLocal creates dir if needed
func NewLocal(dir string, maxBytes int64) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, maxBytes: maxBytes}, nil
}

func (l *Local) path(ref string) (string, error) {
	name := filepath.Base(ref)
	if name != ref || strings.HasPrefix(name, ".") {
		return "", apperr.Invalid("invalid document reference")
	}
	return filepath.Join(l.dir, name), nil
}

func (l *Local) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	if _, err := Extension("f." + ext); err != nil {
		return "", err
	}
	data, err := readLimited(r, l.maxBytes)
	if err != nil {
		return "", err
	}
	ref := newName(strings.ToLower(ext))
	if err := os.WriteFile(filepath.Join(l.dir, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return ref, nil
}

func (l *Local) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	p, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("document not found")
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	p, err := l.path(ref)
	if err != nil {
		return err
	}
	return os.Remove(p)
}
