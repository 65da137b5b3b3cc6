// Package filestore reads schema documents from object storage.
//
// Providers (currently MinIO) implement Store; callers depend only on this
// package:
//
//	store, err := minio.New(ctx, filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin"))
//	if err != nil { ... }
//	defer store.Close()
//
//	loc, _ := filestore.ParseURL("minio://schemas/movies/")
//	reg, err := filestore.LoadRegistry(ctx, store, loc)
package filestore

import "context"

// Store is the read-only interface storage providers implement.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// ListObjects returns the objects in bucket that match opts.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller must Close it.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object at key without downloading it.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}
