package storage

import (
	"context"
)

// ObjectStorage defines minimal object storage operations required by the
// submission archive flow. It is intentionally small so we can swap
// MinIO/AWS-S3 implementations without touching business logic.
type ObjectStorage interface {
	// PutObject stores an object from the given reader.
	PutObject(ctx context.Context, bucket, objectKey string, reader ObjectReader, sizeBytes int64, contentType string) error

	// GetObject opens a reader for an object.
	// Caller must close the returned reader.
	GetObject(ctx context.Context, bucket, objectKey string) (ObjectReader, error)

	// StatObject returns size and ETag for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)

	// RemoveObjects deletes the given object keys.
	RemoveObjects(ctx context.Context, bucket string, keys []string) error
}

// ObjectReader is a streaming reader for object data.
type ObjectReader interface {
	Read(p []byte) (int, error)
	Close() error
}

// ObjectStat contains object metadata used for validation.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
