// Package command implements the s3helper command line.
package command

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/koustreak/s3helper/internal/config"
	"github.com/koustreak/s3helper/internal/filestore"
	"github.com/koustreak/s3helper/internal/filestore/backend"
	"github.com/koustreak/s3helper/internal/logger"
)

// Opener binds the configured bucket. Tests replace it to avoid the network.
type Opener func(ctx context.Context, cfg *config.Config, log *logger.Logger) (*filestore.Filestore, error)

// DefaultOpener connects to the provider named in cfg.
func DefaultOpener(ctx context.Context, cfg *config.Config, log *logger.Logger) (*filestore.Filestore, error) {
	return backend.Open(ctx, cfg.FilestoreConfig(), log)
}

type commandline struct {
	configPath string
	open       Opener

	cfg *config.Config
	log *logger.Logger
	fs  *filestore.Filestore
}

// NewCmd returns the root command. A nil open uses DefaultOpener.
func NewCmd(open Opener) *cobra.Command {
	if open == nil {
		open = DefaultOpener
	}
	cl := &commandline{open: open}

	cmd := &cobra.Command{
		Use:   "s3helper",
		Short: "Work with files in a single S3 bucket",
		Long: `Work with files in a single S3 bucket.
  Environment variables:
    S3_ACCESS_KEY_ID      access key
    S3_SECRET_ACCESS_KEY  secret key
    S3_BUCKET             bucket name, e.g. my-amazon-files
    S3_HOST               S3 host, e.g. s3-ap-southeast-1.amazonaws.com
    S3_PROVIDER           minio (default), s3 or memory
    S3_ENDPOINT           API endpoint when it differs from S3_HOST
    S3_PUBLIC_URL         public base URL overriding http://<bucket>.<host>/
    LOG_LEVEL, LOG_FORMAT logging`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.PersistentFlags().StringVarP(&cl.configPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(
		cl.lsCmd(),
		cl.lsDirCmd(),
		cl.catCmd(),
		cl.putCmd(),
		cl.rmCmd(),
		cl.mvCmd(),
		cl.existsCmd(),
		cl.availableCmd(),
		cl.urlCmd(),
		cl.bucketsCmd(),
		cl.serveCmd(),
	)
	return cmd
}

// configure loads the configuration and installs the logger.
func (cl *commandline) configure() error {
	if cl.cfg != nil {
		return nil
	}
	cfg, err := config.Load(cl.configPath)
	if err != nil {
		return err
	}
	cl.cfg = cfg
	cl.log = logger.New(cfg.LoggerConfig())
	logger.SetGlobal(cl.log)
	return nil
}

// connect configures and binds the bucket on first use.
func (cl *commandline) connect(cmd *cobra.Command) (*filestore.Filestore, error) {
	if cl.fs != nil {
		return cl.fs, nil
	}
	if err := cl.configure(); err != nil {
		return nil, err
	}
	fs, err := cl.open(cmd.Context(), cl.cfg, cl.log)
	if err != nil {
		return nil, err
	}
	cl.fs = fs
	return fs, nil
}
