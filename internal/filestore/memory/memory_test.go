package memory

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/filestore"
)

func put(t *testing.T, s *Store, key, body string) {
	t.Helper()
	_, err := s.PutObject(context.Background(), "b", key, strings.NewReader(body), int64(len(body)), filestore.PutOptions{})
	require.NoError(t, err)
}

func keys(infos []filestore.ObjectInfo) []string {
	out := make([]string, len(infos))
	for i, o := range infos {
		out[i] = o.Key
	}
	return out
}

func TestStore_ListObjects(t *testing.T) {
	ctx := context.Background()
	s := New("b")
	put(t, s, "a.txt", "a")
	put(t, s, "dir/b.txt", "b")
	put(t, s, "dir/sub/c.txt", "c")
	put(t, s, "dir/sub/d.txt", "d")
	put(t, s, "z.txt", "z")

	root, err := s.ListObjects(ctx, "b", filestore.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "dir/", "z.txt"}, keys(root))
	assert.True(t, root[1].IsDir)

	dir, err := s.ListObjects(ctx, "b", filestore.ListOptions{Prefix: "dir/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/b.txt", "dir/sub/"}, keys(dir))

	all, err := s.ListObjects(ctx, "b", filestore.ListOptions{Recursive: true})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := s.ListObjects(ctx, "b", filestore.ListOptions{Recursive: true, Marker: "dir/b.txt", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/sub/c.txt", "dir/sub/d.txt"}, keys(page))
}

func TestStore_GetStatRemove(t *testing.T) {
	ctx := context.Background()
	s := New("b")
	put(t, s, "k", "hello")

	obj, err := s.GetObject(ctx, "b", "k")
	require.NoError(t, err)
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.NoError(t, obj.Close())
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), obj.Info().Size)
	assert.Equal(t, "application/octet-stream", obj.Info().ContentType)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", obj.Info().ETag)

	require.NoError(t, s.RemoveObject(ctx, "b", "k"))
	require.NoError(t, s.RemoveObject(ctx, "b", "k"), "removing a missing key succeeds")

	_, err = s.StatObject(ctx, "b", "k")
	assert.True(t, errs.IsNotFound(err))
}

func TestStore_PutShortBody(t *testing.T) {
	s := New("b")
	_, err := s.PutObject(context.Background(), "b", "k", strings.NewReader("abc"), 10, filestore.PutOptions{})
	assert.True(t, errs.IsOperationFailed(err))
}

func TestStore_CopyObject(t *testing.T) {
	ctx := context.Background()
	s := New("b")
	_, err := s.PutObject(ctx, "b", "src.txt", strings.NewReader("x"), 1, filestore.PutOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	require.NoError(t, s.CopyObject(ctx, "b", "src.txt", "dst.txt", filestore.PutOptions{PublicRead: true}))

	st, err := s.StatObject(ctx, "b", "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", st.ContentType)
	assert.True(t, s.IsPublic("b", "dst.txt"))
	assert.False(t, s.IsPublic("b", "src.txt"))

	err = s.CopyObject(ctx, "b", "missing", "x", filestore.PutOptions{})
	assert.True(t, errs.IsNotFound(err))
}

func TestStore_Buckets(t *testing.T) {
	ctx := context.Background()
	s := New("zeta", "alpha")

	buckets, err := s.ListBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "alpha", buckets[0].Name)

	ok, err := s.BucketExists(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.BucketExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.ListObjects(ctx, "nope", filestore.ListOptions{})
	assert.True(t, errs.IsNotFound(err))
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("b").StatObject(ctx, "b", "k")
	assert.True(t, errs.IsTimeout(err))
}

func TestStore_PresignGetURL(t *testing.T) {
	s := New("b")
	s.now = func() time.Time { return time.Unix(1000, 0) }
	put(t, s, "k", "v")

	u, err := s.PresignGetURL(context.Background(), "b", "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "memory://b/k?expires=1060", u)
}
