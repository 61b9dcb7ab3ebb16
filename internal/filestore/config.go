package filestore

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO  Provider = "minio"
	ProviderS3     Provider = "s3"
	ProviderMemory Provider = "memory"
)

// Config holds all settings needed to connect to a file storage backend
// and to address its objects publicly.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider

	// Endpoint is the host[:port] the SDK talks to.
	// Example: "localhost:9000" for local MinIO. Empty means Host.
	Endpoint string

	// Host is the public storage host used to build object URLs,
	// e.g. "s3-ap-southeast-1.amazonaws.com".
	Host string

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends (e.g. AWS S3).
	Region string

	// Bucket is the single bucket the Filestore operates on.
	Bucket string

	// PublicURL overrides the "http://<bucket>.<host>/" base returned by
	// Filestore.URIBase, e.g. a CDN in front of the bucket.
	PublicURL string
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		Host:      endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
	}
}

// ResolvedEndpoint returns Endpoint, or Host when Endpoint is empty.
func (c *Config) ResolvedEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return c.Host
}
