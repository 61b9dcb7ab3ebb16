package minio_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/s3helper/internal/filestore"
	"github.com/koustreak/s3helper/internal/filestore/minio"
	"github.com/koustreak/s3helper/internal/logger"
)

// liveFilestore connects to the bucket named by the S3_* environment
// variables. The test is skipped when they are not set.
func liveFilestore(t *testing.T) *filestore.Filestore {
	t.Helper()

	cfg := &filestore.Config{
		Provider:  filestore.ProviderMinIO,
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		Host:      os.Getenv("S3_HOST"),
		AccessKey: os.Getenv("S3_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		Region:    os.Getenv("S3_REGION"),
		Bucket:    os.Getenv("S3_BUCKET"),
		PublicURL: os.Getenv("S3_PUBLIC_URL"),
		UseSSL:    true,
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		t.Skip("S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY and S3_BUCKET must be set for live tests")
	}
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		useSSL, err := strconv.ParseBool(v)
		require.NoError(t, err)
		cfg.UseSSL = useSSL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := minio.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return filestore.New(store, cfg, logger.Nop())
}

func TestLive_RoundTrip(t *testing.T) {
	fs := liveFilestore(t)
	ctx := context.Background()

	const (
		path = "rspec-testfile.txt"
		dir  = "rspec-tmp"
	)
	body := faker.New().Lorem().Sentence(12)
	t.Cleanup(func() {
		for _, k := range []string{path, "rspec-testfile-1.txt", "rspec-testfile-2.txt", dir + "/happyfile"} {
			fs.Delete(context.Background(), k)
		}
	})

	_, err := fs.Write(ctx, path, bytes.NewReader([]byte(body)), int64(len(body)))
	require.NoError(t, err)

	ok, err := fs.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := fs.Ls(ctx, "", "rspec-te*")
	require.NoError(t, err)
	assert.Contains(t, names, path)

	got, err := fs.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	// objects are written public-read
	resp, err := http.Get(fs.URL(path))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	fetched, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(fetched))

	name, err := fs.WriteNC(ctx, path, bytes.NewReader([]byte("second")), int64(len("second")))
	require.NoError(t, err)
	assert.Equal(t, "rspec-testfile-1.txt", name)

	_, err = fs.Write(ctx, dir+"/happyfile", bytes.NewReader([]byte("x")), 1)
	require.NoError(t, err)

	dirs, err := fs.LsDir(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, dirs, dir+"/")

	inDir, err := fs.Ls(ctx, dir, "")
	require.NoError(t, err)
	assert.Contains(t, inDir, "happyfile")

	moved, err := fs.RenameNC(ctx, dir+"/happyfile", path)
	require.NoError(t, err)
	assert.Equal(t, "rspec-testfile-2.txt", moved)

	require.NoError(t, fs.Delete(ctx, path))
	ok, err = fs.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, ok)
}
