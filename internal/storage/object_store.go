package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo carries the remote metadata the service cares about.
type ObjectInfo struct {
	Size            int64
	ContentType     string
	ContentEncoding string
	LastModified    time.Time
}

// ObjectStore is the remote object-store capability set consumed by the
// bucket and file services. One container backs one logical bucket; objects
// are keyed by system-generated identifiers.
type ObjectStore interface {
	CreateContainer(ctx context.Context, containerID string) error
	DeleteContainer(ctx context.Context, containerID string) error
	PutObject(ctx context.Context, containerID, objectID string, r io.Reader, size int64, contentType, contentEncoding string) error
	GetObject(ctx context.Context, containerID, objectID string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, containerID, objectID string) error
	StatObject(ctx context.Context, containerID, objectID string) (ObjectInfo, error)
	SetPublic(ctx context.Context, containerID, objectID string, public bool) error
	PublicURL(containerID, objectID string) string
	PresignedGetURL(ctx context.Context, containerID, objectID string, ttl time.Duration) (string, error)
}
