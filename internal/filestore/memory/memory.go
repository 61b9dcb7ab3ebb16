// Package memory provides an in-process implementation of filestore.Store.
//
// It follows S3 listing semantics (sorted keys, "/" as the delimiter for
// non-recursive listings) and is used by tests and by local runs that do
// not have a bucket at hand.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/filestore"
)

type entry struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
	public      bool
}

// Store is an in-memory filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	created time.Time
	objects map[string]*entry
}

var _ filestore.Store = (*Store)(nil)

// New returns a Store holding the given (empty) buckets.
func New(buckets ...string) *Store {
	s := &Store{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, b := range buckets {
		s.CreateBucket(b)
	}
	return s
}

// CreateBucket adds an empty bucket; an existing bucket is left untouched.
func (s *Store) CreateBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = &bucket{created: s.now(), objects: make(map[string]*entry)}
	}
}

// IsPublic reports whether key was stored with the public-read ACL.
func (s *Store) IsPublic(bucketName, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[bucketName]
	if !ok {
		return false
	}
	e, ok := b.objects[key]
	return ok && e.public
}

// --- filestore.Store implementation ---

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to list buckets", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]filestore.BucketInfo, 0, len(s.buckets))
	for name, b := range s.buckets {
		out = append(out, filestore.BucketInfo{Name: name, CreatedAt: b.created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) BucketExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.buckets[name]
	return ok, nil
}

func (s *Store) ListObjects(ctx context.Context, bucketName string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to list objects", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.findBucket(bucketName)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, opts.Prefix) && k > opts.Marker {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var results []filestore.ObjectInfo
	seenDirs := make(map[string]bool)
	for _, k := range keys {
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}

		if !opts.Recursive {
			rest := k[len(opts.Prefix):]
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				dir := opts.Prefix + rest[:i+1]
				if !seenDirs[dir] {
					seenDirs[dir] = true
					results = append(results, filestore.ObjectInfo{Key: dir, IsDir: true})
				}
				continue
			}
		}

		results = append(results, info(k, b.objects[k]))
	}
	return results, nil
}

func (s *Store) GetObject(ctx context.Context, bucketName, key string) (filestore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to get object", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(bucketName, key)
	if err != nil {
		return nil, err
	}

	return &object{
		Reader: bytes.NewReader(e.data),
		info:   info(key, e),
	}, nil
}

func (s *Store) StatObject(ctx context.Context, bucketName, key string) (*filestore.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to stat object", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(bucketName, key)
	if err != nil {
		return nil, err
	}
	oi := info(key, e)
	return &oi, nil
}

func (s *Store) PutObject(ctx context.Context, bucketName, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	var data []byte
	var err error
	if size >= 0 {
		data, err = io.ReadAll(io.LimitReader(r, size))
		if err == nil && int64(len(data)) != size {
			err = io.ErrUnexpectedEOF
		}
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindOperationFailed, "failed to read upload body", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to put object", err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.findBucket(bucketName)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(data)
	e := &entry{
		data:        data,
		contentType: contentType,
		etag:        hex.EncodeToString(sum[:]),
		modified:    s.now(),
		public:      opts.PublicRead,
	}
	b.objects[key] = e

	oi := info(key, e)
	return &oi, nil
}

func (s *Store) CopyObject(ctx context.Context, bucketName, srcKey, dstKey string, opts filestore.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "failed to copy object", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.lookup(bucketName, srcKey)
	if err != nil {
		return err
	}

	dst := *src
	dst.modified = s.now()
	dst.public = opts.PublicRead
	if opts.ContentType != "" {
		dst.contentType = opts.ContentType
	}
	s.buckets[bucketName].objects[dstKey] = &dst
	return nil
}

func (s *Store) RemoveObject(ctx context.Context, bucketName, key string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "failed to remove object", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.findBucket(bucketName)
	if err != nil {
		return err
	}
	delete(b.objects, key)
	return nil
}

// PresignGetURL returns a memory:// URL; the in-memory store has no HTTP
// endpoint to sign against.
func (s *Store) PresignGetURL(ctx context.Context, bucketName, key string, ttl time.Duration) (string, error) {
	if _, err := s.StatObject(ctx, bucketName, key); err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	return "memory://" + bucketName + "/" + key + "?expires=" + strconv.FormatInt(expires, 10), nil
}

// --- internal helpers (callers hold mu) ---

func (s *Store) findBucket(name string) (*bucket, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", name)
	}
	return b, nil
}

func (s *Store) lookup(bucketName, key string) (*entry, error) {
	b, err := s.findBucket(bucketName)
	if err != nil {
		return nil, err
	}
	e, ok := b.objects[key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "object %q does not exist", key)
	}
	return e, nil
}

func info(key string, e *entry) filestore.ObjectInfo {
	return filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(e.data)),
		ContentType:  e.contentType,
		ETag:         e.etag,
		LastModified: e.modified,
	}
}

// object serves a snapshot of the stored bytes.
type object struct {
	*bytes.Reader
	info filestore.ObjectInfo
}

func (o *object) Close() error { return nil }

func (o *object) Info() *filestore.ObjectInfo {
	return &o.info
}
