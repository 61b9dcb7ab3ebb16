package filestore

import (
	"context"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/logger"
)

// Filestore binds a Store to one bucket. All writes are stored with a
// public-read ACL so that URL(key) is directly downloadable.
//
// Filestore is safe for concurrent use. WriteNC and RenameNC are
// serialized by a single mutex so that two callers in the same process
// never pick the same free name.
type Filestore struct {
	store     Store
	bucket    string
	host      string
	publicURL string
	log       *logger.Logger

	// ncMu guards the check-then-write sequence of the no-clobber operations.
	ncMu sync.Mutex
}

// New binds store to cfg.Bucket. A nil log uses the global logger.
func New(store Store, cfg *Config, log *logger.Logger) *Filestore {
	if log == nil {
		log = logger.L()
	}
	return &Filestore{
		store:     store,
		bucket:    cfg.Bucket,
		host:      cfg.Host,
		publicURL: cfg.PublicURL,
		log:       log.With().Str("bucket", cfg.Bucket).Logger(),
	}
}

// Store returns the underlying provider.
func (f *Filestore) Store() Store {
	return f.store
}

// Bucket returns the name of the bound bucket.
func (f *Filestore) Bucket() string {
	return f.bucket
}

// BucketExists reports whether the bound bucket exists.
func (f *Filestore) BucketExists(ctx context.Context) (bool, error) {
	return f.store.BucketExists(ctx, f.bucket)
}

// Ls lists the simple files directly under dir; subdirectories are
// ignored. Names are relative to dir and filtered by the glob match
// ("" means "*"). dir "" is the bucket root; the trailing slash is optional.
func (f *Filestore) Ls(ctx context.Context, dir, match string) ([]string, error) {
	prefix := dirPrefix(dir)
	re, err := GlobToRegexp(match)
	if err != nil {
		return nil, err
	}

	entries, err := f.store.ListObjects(ctx, f.bucket, ListOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		name := strings.TrimPrefix(e.Key, prefix)
		// folder placeholder objects list as the prefix itself
		if name == "" {
			continue
		}
		if re.MatchString(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// LsDir lists the immediate subdirectories of dir, relative to dir and
// with their trailing slash (e.g. "subdir/").
func (f *Filestore) LsDir(ctx context.Context, dir string) ([]string, error) {
	prefix := dirPrefix(dir)

	entries, err := f.store.ListObjects(ctx, f.bucket, ListOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0)
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		dirs = append(dirs, strings.TrimPrefix(e.Key, prefix))
	}
	return dirs, nil
}

// Write stores r at key with a public-read ACL. size may be -1 when unknown.
func (f *Filestore) Write(ctx context.Context, key string, r io.Reader, size int64) (*ObjectInfo, error) {
	return f.write(ctx, key, r, size, contentTypeFor(key))
}

// WriteFile stores the local file filename at key.
func (f *Filestore) WriteFile(ctx context.Context, key, filename string) (*ObjectInfo, error) {
	file, size, err := openLocal(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return f.write(ctx, key, file, size, contentTypeFor(filename))
}

func (f *Filestore) write(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	info, err := f.store.PutObject(ctx, f.bucket, key, r, size, PutOptions{
		ContentType: contentType,
		PublicRead:  true,
	})
	if err != nil {
		f.log.ErrorWith("write failed", err, map[string]interface{}{"key": key})
		return nil, err
	}

	f.log.DebugWith("object written", map[string]interface{}{"key": key, "size": info.Size})
	return info, nil
}

// Read returns the whole content of the object at key.
func (f *Filestore) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := f.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindOperationFailed, "failed to read object", err)
	}
	return data, nil
}

// Open returns a streaming handle to the object at key.
// The caller MUST close it.
func (f *Filestore) Open(ctx context.Context, key string) (Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return f.store.GetObject(ctx, f.bucket, key)
}

// Stat returns the metadata of the object at key.
func (f *Filestore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return f.store.StatObject(ctx, f.bucket, key)
}

// Exists reports whether an object is stored at key.
func (f *Filestore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := f.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errs.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Delete removes the object at key. Deleting a missing key succeeds.
func (f *Filestore) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := f.store.RemoveObject(ctx, f.bucket, key); err != nil {
		f.log.ErrorWith("delete failed", err, map[string]interface{}{"key": key})
		return err
	}
	f.log.DebugWith("object deleted", map[string]interface{}{"key": key})
	return nil
}

// Rename moves from to to by a server-side copy followed by a delete.
// An existing object at to is overwritten.
func (f *Filestore) Rename(ctx context.Context, from, to string) error {
	from, err := cleanKey(from)
	if err != nil {
		return err
	}
	to, err = cleanKey(to)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}

	// empty ContentType keeps the source's
	opts := PutOptions{PublicRead: true}
	if err := f.store.CopyObject(ctx, f.bucket, from, to, opts); err != nil {
		f.log.ErrorWith("rename copy failed", err, map[string]interface{}{"from": from, "to": to})
		return err
	}
	if err := f.store.RemoveObject(ctx, f.bucket, from); err != nil {
		f.log.ErrorWith("rename cleanup failed", err, map[string]interface{}{"from": from, "to": to})
		return err
	}

	f.log.DebugWith("object renamed", map[string]interface{}{"from": from, "to": to})
	return nil
}

// FindAvailableName returns key when nothing is stored there, otherwise
// the first free "stem-N.ext" alternative. N starts at 1, or one past the
// counter key already carries ("a-3.txt" -> "a-4.txt").
//
// The answer is only stable while ncMu is held; see WriteNC and RenameNC.
func (f *Filestore) FindAvailableName(ctx context.Context, key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	taken, err := f.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !taken {
		return key, nil
	}

	dir, stem, n, ext := splitName(key)
	for i := n + 1; i <= n+maxNameAttempts; i++ {
		candidate := candidateName(dir, stem, i, ext)
		taken, err := f.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", errs.Newf(errs.ErrKindConflict, "no available name for %q", key)
}

// WriteNC writes r without clobbering: when key is taken the object is
// stored under the next available name. It returns the key used.
func (f *Filestore) WriteNC(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	return f.writeNC(ctx, key, r, size, contentTypeFor(key))
}

// WriteFileNC is WriteNC for a local file. Like WriteFile, the content
// type follows filename.
func (f *Filestore) WriteFileNC(ctx context.Context, key, filename string) (string, error) {
	file, size, err := openLocal(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return f.writeNC(ctx, key, file, size, contentTypeFor(filename))
}

func (f *Filestore) writeNC(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	f.ncMu.Lock()
	defer f.ncMu.Unlock()

	name, err := f.FindAvailableName(ctx, key)
	if err != nil {
		return "", err
	}
	if _, err := f.write(ctx, name, r, size, contentType); err != nil {
		return "", err
	}
	if name != key {
		f.log.InfoWith("write redirected to free name", map[string]interface{}{"key": key, "name": name})
	}
	return name, nil
}

// RenameNC renames from to to without clobbering: when to is taken the
// object lands under the next available name. It returns the key used.
func (f *Filestore) RenameNC(ctx context.Context, from, to string) (string, error) {
	f.ncMu.Lock()
	defer f.ncMu.Unlock()

	name, err := f.FindAvailableName(ctx, to)
	if err != nil {
		return "", err
	}
	if err := f.Rename(ctx, from, name); err != nil {
		return "", err
	}
	f.log.InfoWith("renamed without clobbering", map[string]interface{}{"from": from, "to": to, "name": name})
	return name, nil
}

// URIBase is the public base URL of the bucket; append a key to it.
func (f *Filestore) URIBase() string {
	if f.publicURL != "" {
		return strings.TrimSuffix(f.publicURL, "/") + "/"
	}
	return "http://" + f.bucket + "." + f.host + "/"
}

// URL returns the public address of key.
func (f *Filestore) URL(key string) string {
	key = strings.TrimPrefix(key, "/")
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return f.URIBase() + strings.Join(segments, "/")
}

// SignedURL returns a time-limited download URL for key, for buckets
// where public-read is blocked.
func (f *Filestore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errs.New(errs.ErrKindInvalidInput, "signed URL lifetime must be positive")
	}
	return f.store.PresignGetURL(ctx, f.bucket, key, ttl)
}

// --- helpers ---

// dirPrefix normalises a directory argument into a listing prefix:
// no leading slash, exactly one trailing slash, "" for the root.
func dirPrefix(dir string) string {
	dir = strings.TrimLeft(dir, "/")
	if dir == "" || strings.HasSuffix(dir, "/") {
		return dir
	}
	return dir + "/"
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "object key must not be empty")
	}
	if strings.HasSuffix(key, "/") {
		return "", errs.Newf(errs.ErrKindInvalidInput, "object key %q names a directory", key)
	}
	return key, nil
}

func contentTypeFor(name string) string {
	return mime.TypeByExtension(path.Ext(name))
}

func openLocal(filename string) (*os.File, int64, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errs.Wrap(errs.ErrKindNotFound, "local file not found", err)
		}
		return nil, 0, errs.Wrap(errs.ErrKindInvalidInput, "failed to open local file", err)
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, errs.Wrap(errs.ErrKindInvalidInput, "failed to stat local file", err)
	}
	return file, st.Size(), nil
}
