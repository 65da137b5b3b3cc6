package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	// Key is the full object path within the bucket, e.g. "movies/schema.yaml".
	Key string

	// Size in bytes, -1 if unknown.
	Size int64

	ContentType  string
	ETag         string
	LastModified time.Time

	// IsDir marks a virtual directory (common prefix) rather than an object.
	IsDir bool
}

// Object is a streaming handle to an object's content.
type Object interface {
	io.ReadCloser

	Info() *ObjectInfo
}

// ListOptions controls which objects ListObjects returns.
type ListOptions struct {
	// Prefix restricts results to keys that start with it.
	Prefix string

	// Recursive lists everything under Prefix instead of grouping by
	// virtual directories.
	Recursive bool

	// Limit caps the number of results. 0 means no cap.
	Limit int
}
