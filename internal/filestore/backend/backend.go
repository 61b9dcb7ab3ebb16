// Package backend constructs filestore providers from configuration and
// holds the process-wide default Filestore.
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/koustreak/s3helper/internal/config"
	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/filestore"
	"github.com/koustreak/s3helper/internal/filestore/memory"
	"github.com/koustreak/s3helper/internal/filestore/minio"
	"github.com/koustreak/s3helper/internal/filestore/s3"
	"github.com/koustreak/s3helper/internal/logger"
	"github.com/koustreak/s3helper/internal/metrics"
)

// NewStore connects to the provider named by cfg.Provider and wraps it
// with metrics instrumentation.
func NewStore(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	var (
		store filestore.Store
		err   error
	)

	switch cfg.Provider {
	case filestore.ProviderMinIO, "":
		store, err = minio.New(ctx, cfg)
	case filestore.ProviderS3:
		store, err = s3.New(ctx, cfg)
	case filestore.ProviderMemory:
		store = memory.New(cfg.Bucket)
	default:
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown storage provider %q", cfg.Provider))
	}
	if err != nil {
		return nil, err
	}

	return metrics.Instrument(store), nil
}

// Open connects to the configured provider and binds the bucket.
func Open(ctx context.Context, cfg *filestore.Config, log *logger.Logger) (*filestore.Filestore, error) {
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.L()
	}
	log.With().
		Str("provider", string(cfg.Provider)).
		Str("bucket", cfg.Bucket).
		Logger().
		Debug("filestore opened")

	return filestore.New(store, cfg, log), nil
}

var (
	defaultMu sync.Mutex
	defaultFS *filestore.Filestore
)

// Default returns the process-wide Filestore configured from the
// environment, creating it on first use. A failed attempt is not cached,
// so a later call retries.
func Default(ctx context.Context) (*filestore.Filestore, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultFS != nil {
		return defaultFS, nil
	}

	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}

	fs, err := Open(ctx, cfg.FilestoreConfig(), logger.L())
	if err != nil {
		return nil, err
	}
	defaultFS = fs
	return fs, nil
}

// SetDefault replaces the process-wide Filestore. Passing nil clears it.
func SetDefault(fs *filestore.Filestore) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultFS = fs
}
