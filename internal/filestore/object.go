package filestore

import (
	"io"
	"time"
)

// BucketInfo is one entry of ListBuckets.
type BucketInfo struct {
	Name string
	// CreatedAt is zero when the provider does not report it.
	CreatedAt time.Time
}

// ObjectInfo is the metadata of a stored object, or of a directory entry
// in a non-recursive listing.
type ObjectInfo struct {
	Key          string // full key, e.g. "rspec-tmp/happyfile"
	Size         int64
	ContentType  string
	ETag         string // without surrounding quotes
	LastModified time.Time

	// IsDir marks a common prefix ("rspec-tmp/") rather than an object.
	IsDir bool
}

// Object streams the content of one object. Close must be called.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// ListOptions selects the keys returned by ListObjects.
//
// Without Recursive, keys containing "/" past Prefix are folded into one
// IsDir entry per subdirectory, as S3 does with the "/" delimiter.
type ListOptions struct {
	Prefix    string
	Recursive bool
	Limit     int    // 0 means no limit
	Marker    string // exclusive start key
}

// PutOptions controls how PutObject and CopyObject store an object.
type PutOptions struct {
	// ContentType defaults to application/octet-stream on PutObject.
	// On CopyObject an empty value keeps the source's.
	ContentType string

	// PublicRead applies the public-read canned ACL.
	PublicRead bool
}
