package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/filestore"
	"github.com/koustreak/s3helper/internal/filestore/memory"
	"github.com/koustreak/s3helper/internal/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New("web")
	fs := filestore.New(store, &filestore.Config{Bucket: "web", Host: "example.test"}, logger.Nop())
	ts := httptest.NewServer(New(fs, logger.Nop()).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestServer_ObjectLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, http.MethodPut, ts.URL+"/v1/objects/docs/readme.html", "<h1>hi</h1>")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var put keyResponse
	decode(t, resp, &put)
	assert.Equal(t, "docs/readme.html", put.Key)
	assert.Equal(t, "http://web.example.test/docs/readme.html", put.URL)
	assert.Equal(t, int64(len("<h1>hi</h1>")), put.Size)

	resp = do(t, http.MethodGet, ts.URL+"/v1/objects/docs/readme.html", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("ETag"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", string(body))

	resp = do(t, http.MethodHead, ts.URL+"/v1/objects/docs/readme.html", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(11), resp.ContentLength)

	resp = do(t, http.MethodDelete, ts.URL+"/v1/objects/docs/readme.html", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodHead, ts.URL+"/v1/objects/docs/readme.html", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/v1/objects/docs/readme.html", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e errorResponse
	decode(t, resp, &e)
	assert.Equal(t, "not_found", e.Kind)
}

func TestServer_ListAndNoClobber(t *testing.T) {
	ts := newTestServer(t)

	do(t, http.MethodPut, ts.URL+"/v1/objects/rspec-testfile.txt", "one")
	do(t, http.MethodPut, ts.URL+"/v1/objects/rspec-tmp/happyfile", "two")

	resp := do(t, http.MethodPut, ts.URL+"/v1/objects/rspec-testfile.txt?noclobber=true", "three")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var nc keyResponse
	decode(t, resp, &nc)
	assert.Equal(t, "rspec-testfile-1.txt", nc.Key)

	resp = do(t, http.MethodGet, ts.URL+"/v1/files?match=rspec-te*", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var files filesResponse
	decode(t, resp, &files)
	assert.Equal(t, []string{"rspec-testfile-1.txt", "rspec-testfile.txt"}, files.Files)

	resp = do(t, http.MethodGet, ts.URL+"/v1/files?dir=rspec-tmp", "")
	var inDir filesResponse
	decode(t, resp, &inDir)
	assert.Equal(t, []string{"happyfile"}, inDir.Files)

	resp = do(t, http.MethodGet, ts.URL+"/v1/dirs", "")
	var dirs dirsResponse
	decode(t, resp, &dirs)
	assert.Equal(t, []string{"rspec-tmp/"}, dirs.Dirs)

	resp = do(t, http.MethodGet, ts.URL+"/v1/available/rspec-testfile.txt", "")
	var avail keyResponse
	decode(t, resp, &avail)
	assert.Equal(t, "rspec-testfile-2.txt", avail.Key)
}

func TestServer_Rename(t *testing.T) {
	ts := newTestServer(t)
	do(t, http.MethodPut, ts.URL+"/v1/objects/a.txt", "a")
	do(t, http.MethodPut, ts.URL+"/v1/objects/b.txt", "b")

	resp := do(t, http.MethodPost, ts.URL+"/v1/rename", `{"from":"a.txt","to":"b.txt","noclobber":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var renamed keyResponse
	decode(t, resp, &renamed)
	assert.Equal(t, "b-1.txt", renamed.Key)

	resp = do(t, http.MethodPost, ts.URL+"/v1/rename", `{"from":"b-1.txt","to":"c.txt"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/v1/objects/c.txt", "")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "a", string(body))

	resp = do(t, http.MethodPost, ts.URL+"/v1/rename", `{"from":"missing.txt","to":"c.txt"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/v1/rename", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_BadInput(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, http.MethodPut, ts.URL+"/v1/objects/x.txt?noclobber=maybe", "x")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPut, ts.URL+"/v1/objects/dir/", "x")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/v1/files?match=%FF", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Equal(t, "invalid_input", body.Kind)
}

func TestServer_URLs(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/v1/uribase", "")
	var base map[string]string
	decode(t, resp, &base)
	assert.Equal(t, "http://web.example.test/", base["uribase"])

	resp = do(t, http.MethodGet, ts.URL+"/v1/url/a/b%20c.txt", "")
	var u keyResponse
	decode(t, resp, &u)
	assert.Equal(t, "a/b c.txt", u.Key)
	assert.Equal(t, "http://web.example.test/a/b%20c.txt", u.URL)

	do(t, http.MethodPut, ts.URL+"/v1/objects/signed.txt", "s")
	resp = do(t, http.MethodGet, ts.URL+"/v1/url/signed.txt?expires=15m", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var signed keyResponse
	decode(t, resp, &signed)
	assert.True(t, strings.HasPrefix(signed.URL, "memory://web/signed.txt?expires="))

	resp = do(t, http.MethodGet, ts.URL+"/v1/url/signed.txt?expires=soon", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "s3helper_http_requests_total")

	missing := filestore.New(memory.New(), &filestore.Config{Bucket: "gone"}, logger.Nop())
	ts2 := httptest.NewServer(New(missing, logger.Nop()).Handler())
	defer ts2.Close()
	resp = do(t, http.MethodGet, ts2.URL+"/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind errs.ErrKind
		want int
	}{
		{errs.ErrKindNotFound, http.StatusNotFound},
		{errs.ErrKindInvalidInput, http.StatusBadRequest},
		{errs.ErrKindPermissionDenied, http.StatusForbidden},
		{errs.ErrKindConflict, http.StatusConflict},
		{errs.ErrKindTimeout, http.StatusGatewayTimeout},
		{errs.ErrKindConnectionFailed, http.StatusBadGateway},
		{errs.ErrKindOperationFailed, http.StatusBadGateway},
		{errs.ErrKindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(errs.New(tt.kind, "x")))
		})
	}
}
