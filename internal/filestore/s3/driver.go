// Package s3 provides an AWS SDK v2 implementation of filestore.Store.
//
// Usage:
//
//	cfg := &filestore.Config{Provider: filestore.ProviderS3, Region: "ap-southeast-1", ...}
//	store, err := s3.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
package s3

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/filestore"
)

const defaultRegion = "us-east-1"

// Driver is an AWS S3 implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client  *awss3.Client
	presign *awss3.PresignClient
}

var _ filestore.Store = (*Driver)(nil)

// New builds an S3 client from cfg and pings it before returning.
// An empty endpoint uses the SDK's regional AWS endpoint; anything else
// (MinIO, Ceph, a regional host such as "s3-ap-southeast-1.amazonaws.com")
// is addressed with path-style requests.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to load aws config", err)
	}

	endpoint := endpointURL(cfg.ResolvedEndpoint(), cfg.UseSSL)
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	d := &Driver{client: client, presign: awss3.NewPresignClient(client)}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// endpointURL turns a host[:port] into a URL the SDK accepts.
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// --- filestore.Store implementation ---

// Ping verifies the endpoint is reachable and the credentials are valid.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.client.ListBuckets(ctx, &awss3.ListBucketsInput{})
	if err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op: the SDK's HTTP client pools connections on its own.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	out, err := d.client.ListBuckets(ctx, &awss3.ListBucketsInput{})
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]filestore.BucketInfo, len(out.Buckets))
	for i, b := range out.Buckets {
		buckets[i] = filestore.BucketInfo{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		}
	}
	return buckets, nil
}

func (d *Driver) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := d.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		mapped := mapError(err, "failed to check bucket")
		if errs.IsNotFound(mapped) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

// ListObjects pages through ListObjectsV2. Non-recursive listings use "/"
// as the delimiter and return common prefixes as IsDir entries.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Marker != "" {
		input.StartAfter = aws.String(opts.Marker)
	}
	if !opts.Recursive {
		input.Delimiter = aws.String("/")
	}

	var results []filestore.ObjectInfo
	full := func() bool { return opts.Limit > 0 && len(results) >= opts.Limit }

	pager := awss3.NewListObjectsV2Paginator(d.client, input)
	for pager.HasMorePages() && !full() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "failed to list objects")
		}

		// S3 returns objects and prefixes separately, each sorted; merge
		// them so the result is in key order like the other providers.
		results = append(results, mergeListing(page.Contents, page.CommonPrefixes)...)
	}

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func mergeListing(objects []types.Object, prefixes []types.CommonPrefix) []filestore.ObjectInfo {
	out := make([]filestore.ObjectInfo, 0, len(objects)+len(prefixes))
	i, j := 0, 0
	for i < len(objects) || j < len(prefixes) {
		if j >= len(prefixes) || (i < len(objects) && aws.ToString(objects[i].Key) < aws.ToString(prefixes[j].Prefix)) {
			o := objects[i]
			out = append(out, filestore.ObjectInfo{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				ETag:         strings.Trim(aws.ToString(o.ETag), `"`),
				LastModified: aws.ToTime(o.LastModified),
			})
			i++
			continue
		}
		out = append(out, filestore.ObjectInfo{Key: aws.ToString(prefixes[j].Prefix), IsDir: true})
		j++
	}
	return out
}

func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	out, err := d.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	return &object{
		ReadCloser: out.Body,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         aws.ToInt64(out.ContentLength),
			ContentType:  aws.ToString(out.ContentType),
			ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
			LastModified: aws.ToTime(out.LastModified),
		},
	}, nil
}

func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	out, err := d.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// PutObject uploads r to key. The SDK needs a seekable body to sign the
// payload, so other readers are buffered in memory first.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	body, n, err := seekable(r, size)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindOperationFailed, "failed to read upload body", err)
	}

	input := &awss3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(n),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.PublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	out, err := d.client.PutObject(ctx, input)
	if err != nil {
		return nil, mapError(err, "failed to put object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opts.ContentType,
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: time.Now(),
	}, nil
}

// CopyObject copies srcKey to dstKey. S3 keeps the source metadata on
// copy, and the canned ACL can be set without replacing it.
func (d *Driver) CopyObject(ctx context.Context, bucket, srcKey, dstKey string, opts filestore.PutOptions) error {
	input := &awss3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(bucket, srcKey)),
	}
	if opts.PublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
		input.MetadataDirective = types.MetadataDirectiveReplace
	}

	if _, err := d.client.CopyObject(ctx, input); err != nil {
		return mapError(err, "failed to copy object")
	}
	return nil
}

func (d *Driver) RemoveObject(ctx context.Context, bucket, key string) error {
	_, err := d.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, "failed to remove object")
	}
	return nil
}

func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := d.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return req.URL, nil
}

// --- helpers ---

// copySource builds the URL-encoded "bucket/key" value of x-amz-copy-source.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func seekable(r io.Reader, size int64) (io.ReadSeeker, int64, error) {
	if rs, ok := r.(io.ReadSeeker); ok && size >= 0 {
		return rs, size, nil
	}

	src := r
	if size >= 0 {
		src = io.LimitReader(r, size)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, 0, err
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, 0, io.ErrUnexpectedEOF
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// object wraps a GetObject response body and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
