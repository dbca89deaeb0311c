package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotConfigured is returned when no bucket has been configured.
var ErrNotConfigured = errors.New("object storage is not configured")

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// PutOptions conveys upload destination metadata.
type PutOptions struct {
	Bucket      string
	Key         string
	ContentType string
}

// Service stores health record archives in remote object storage.
type Service interface {
	Put(ctx context.Context, body io.Reader, opts PutOptions) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, bucket, prefix string) error
	GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}
