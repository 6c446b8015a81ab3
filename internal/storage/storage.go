package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// Object is an open object body together with its metadata. Callers must
// Close it.
type Object struct {
	io.ReadCloser
	Info ObjectInfo
}

// ObjectStore holds schema documents and archived pipeline runs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Open(ctx context.Context, key string) (*Object, error)
}
