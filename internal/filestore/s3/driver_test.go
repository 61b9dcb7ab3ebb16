package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/s3helper/internal/errs"
)

func statusErr(code int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      errors.New("http error"),
		},
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"typed no such key", &types.NoSuchKey{}, errs.ErrKindNotFound},
		{"typed not found", &types.NotFound{}, errs.ErrKindNotFound},
		{"head 404", statusErr(http.StatusNotFound), errs.ErrKindNotFound},
		{"head 403", statusErr(http.StatusForbidden), errs.ErrKindPermissionDenied},
		{"503", statusErr(http.StatusServiceUnavailable), errs.ErrKindTimeout},
		{"500", statusErr(http.StatusInternalServerError), errs.ErrKindOperationFailed},
		{"api access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, errs.ErrKindPermissionDenied},
		{"api bad name", &smithy.GenericAPIError{Code: "InvalidBucketName"}, errs.ErrKindInvalidInput},
		{"api slow down", &smithy.GenericAPIError{Code: "SlowDown"}, errs.ErrKindTimeout},
		{"api other", &smithy.GenericAPIError{Code: "InternalError"}, errs.ErrKindOperationFailed},
		{"transport", errors.New("dial tcp: no such host"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "", endpointURL("", true))
	assert.Equal(t, "https://s3-ap-southeast-1.amazonaws.com", endpointURL("s3-ap-southeast-1.amazonaws.com", true))
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	assert.Equal(t, "http://minio:9000", endpointURL("http://minio:9000", true))
}

func TestCopySource(t *testing.T) {
	assert.Equal(t, "bucket/dir/a%20b.txt", copySource("bucket", "dir/a b.txt"))
	assert.Equal(t, "bucket/plain", copySource("bucket", "plain"))
}

func TestMergeListing(t *testing.T) {
	objects := []types.Object{
		{Key: aws.String("dir.txt"), Size: aws.Int64(3), ETag: aws.String(`"abc"`)},
		{Key: aws.String("z.txt"), Size: aws.Int64(1)},
	}
	prefixes := []types.CommonPrefix{
		{Prefix: aws.String("a/")},
		{Prefix: aws.String("dir/")},
	}

	got := mergeListing(objects, prefixes)
	require.Len(t, got, 4)

	keys := make([]string, len(got))
	for i, o := range got {
		keys[i] = o.Key
	}
	assert.Equal(t, []string{"a/", "dir.txt", "dir/", "z.txt"}, keys)
	assert.True(t, got[0].IsDir)
	assert.Equal(t, "abc", got[1].ETag)
	assert.Equal(t, int64(3), got[1].Size)
}

type onlyReader struct{ io.Reader }

func TestSeekable(t *testing.T) {
	rs, n, err := seekable(strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	_, isStringsReader := rs.(*strings.Reader)
	assert.True(t, isStringsReader, "seekable readers pass through")

	rs, n, err = seekable(onlyReader{strings.NewReader("hello")}, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	data, _ := io.ReadAll(rs)
	assert.Equal(t, "hello", string(data))

	_, _, err = seekable(onlyReader{strings.NewReader("hi")}, 5)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
