package metrics

import (
	"context"
	"io"
	"time"

	"github.com/koustreak/s3helper/internal/filestore"
)

// Store decorates a filestore.Store with operation metrics.
type Store struct {
	next filestore.Store
}

var _ filestore.Store = (*Store)(nil)

// Instrument wraps next so that every call is counted and timed.
func Instrument(next filestore.Store) *Store {
	return &Store{next: next}
}

// Unwrap returns the decorated store.
func (s *Store) Unwrap() filestore.Store {
	return s.next
}

func observe(op string, start time.Time, err error) {
	RecordStorageOperation(op, time.Since(start), err == nil)
}

func (s *Store) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	observe("ping", start, err)
	return err
}

func (s *Store) Close() error {
	return s.next.Close()
}

func (s *Store) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	start := time.Now()
	out, err := s.next.ListBuckets(ctx)
	observe("list_buckets", start, err)
	return out, err
}

func (s *Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	start := time.Now()
	ok, err := s.next.BucketExists(ctx, bucket)
	observe("bucket_exists", start, err)
	return ok, err
}

func (s *Store) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	start := time.Now()
	out, err := s.next.ListObjects(ctx, bucket, opts)
	observe("list_objects", start, err)
	return out, err
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	start := time.Now()
	obj, err := s.next.GetObject(ctx, bucket, key)
	observe("get_object", start, err)
	if err != nil {
		return nil, err
	}
	return &countingObject{Object: obj}, nil
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	start := time.Now()
	info, err := s.next.StatObject(ctx, bucket, key)
	observe("stat_object", start, err)
	return info, err
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	start := time.Now()
	info, err := s.next.PutObject(ctx, bucket, key, r, size, opts)
	observe("put_object", start, err)
	if err == nil {
		RecordBytesWritten(info.Size)
	}
	return info, err
}

func (s *Store) CopyObject(ctx context.Context, bucket, srcKey, dstKey string, opts filestore.PutOptions) error {
	start := time.Now()
	err := s.next.CopyObject(ctx, bucket, srcKey, dstKey, opts)
	observe("copy_object", start, err)
	return err
}

func (s *Store) RemoveObject(ctx context.Context, bucket, key string) error {
	start := time.Now()
	err := s.next.RemoveObject(ctx, bucket, key)
	observe("remove_object", start, err)
	return err
}

func (s *Store) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	u, err := s.next.PresignGetURL(ctx, bucket, key, ttl)
	observe("presign_get", start, err)
	return u, err
}

// countingObject counts bytes as the caller reads them.
type countingObject struct {
	filestore.Object
}

func (o *countingObject) Read(p []byte) (int, error) {
	n, err := o.Object.Read(p)
	RecordBytesRead(int64(n))
	return n, err
}
