// Package storage holds attachment bytes. Keys are opaque to callers and recorded as the
// attachment's stored path.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/secureboard/config"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("stored object not found")

// Object is an open stored file. Callers must close Body.
type Object struct {
	Body io.ReadCloser
	// Size is -1 when the backend does not report a length.
	Size int64
}

// Storage writes uploaded bytes and reads them back for download.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// NewKey builds a storage key "yyyy/mm/dd/<uuid><ext>" for an uploaded file name.
// The original name is kept only in the database, never in the key.
func NewKey(now time.Time, originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return path.Join(now.Format("2006"), now.Format("01"), now.Format("02"), uuid.NewString()+ext)
}

// New selects the configured backend.
func New(ctx context.Context, cfg config.AppConfig) (Storage, error) {
	switch strings.ToLower(cfg.StorageDriver) {
	case "", "local":
		return NewLocal(cfg.UploadDir)
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
