// Package blob provides object storage for state archives, with in-memory,
// filesystem, and S3-compatible backends behind one interface.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a blob backend driver.
type Driver string

// Supported blob drivers.
const (
	// DriverMemory is the in-memory test driver.
	DriverMemory Driver = "memory"
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem Driver = "filesystem"
	// DriverS3 is the S3-compatible driver (AWS S3 or MinIO).
	DriverS3 Driver = "s3"
)

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = errors.New("blob not found")

// PutOptions configures a blob write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes stored blob metadata.
type Info struct {
	Key         string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

// Store is the interface implemented by blob storage backends.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Delete(ctx context.Context, key string) error
}
