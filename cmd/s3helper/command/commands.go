package command

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/filestore"
)

func (cl *commandline) lsCmd() *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List the files directly under dir",
		Example: `  s3helper ls
  s3helper ls rspec-tmp --match '*.txt'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			names, err := fs.Ls(cmd.Context(), argOr(args, 0, ""), match)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), names)
		},
	}
	cmd.Flags().StringVarP(&match, "match", "m", "*", "glob pattern; * and ? are supported")
	return cmd
}

func (cl *commandline) lsDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lsdir [dir]",
		Short: "List the subdirectories directly under dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			dirs, err := fs.LsDir(cmd.Context(), argOr(args, 0, ""))
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), dirs)
		},
	}
}

func (cl *commandline) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <key>",
		Short: "Write the content of an object to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			obj, err := fs.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer obj.Close()
			_, err = io.Copy(cmd.OutOrStdout(), obj)
			return err
		},
	}
}

func (cl *commandline) putCmd() *cobra.Command {
	var noClobber bool
	cmd := &cobra.Command{
		Use:   "put <local-file|-> <key>",
		Short: "Upload a local file (or stdin) as a public-read object",
		Example: `  s3helper put report.csv reports/report.csv
  s3helper put report.csv reports/report.csv --no-clobber
  echo hello | s3helper put - greetings.txt`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			key, err := put(cmd, fs, args[0], args[1], noClobber)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fs.URL(key))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&noClobber, "no-clobber", "n", false, "store under the next free name when key is taken")
	return cmd
}

func put(cmd *cobra.Command, fs *filestore.Filestore, src, key string, noClobber bool) (string, error) {
	ctx := cmd.Context()

	if src == "-" {
		in := cmd.InOrStdin()
		if noClobber {
			return fs.WriteNC(ctx, key, in, -1)
		}
		info, err := fs.Write(ctx, key, in, -1)
		if err != nil {
			return "", err
		}
		return info.Key, nil
	}

	if noClobber {
		return fs.WriteFileNC(ctx, key, src)
	}
	info, err := fs.WriteFile(ctx, key, src)
	if err != nil {
		return "", err
	}
	return info.Key, nil
}

func (cl *commandline) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>...",
		Short: "Delete objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			for _, key := range args {
				if err := fs.Delete(cmd.Context(), key); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (cl *commandline) mvCmd() *cobra.Command {
	var noClobber bool
	cmd := &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Rename an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			to := args[1]
			if noClobber {
				to, err = fs.RenameNC(cmd.Context(), args[0], args[1])
			} else {
				err = fs.Rename(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), to)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&noClobber, "no-clobber", "n", false, "rename to the next free name when to is taken")
	return cmd
}

func (cl *commandline) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <key>",
		Short: "Print whether an object exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			ok, err := fs.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func (cl *commandline) availableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available <key>",
		Short: "Print the first free name for key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			name, err := fs.FindAvailableName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func (cl *commandline) urlCmd() *cobra.Command {
	var expires time.Duration
	cmd := &cobra.Command{
		Use:   "url [key]",
		Short: "Print the public URL of key, or the bucket base URL",
		Example: `  s3helper url
  s3helper url reports/q1.csv
  s3helper url reports/q1.csv --expires 15m`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if expires > 0 {
				if len(args) == 0 {
					return errs.New(errs.ErrKindInvalidInput, "--expires needs a key")
				}
				fs, err := cl.connect(cmd)
				if err != nil {
					return err
				}
				u, err := fs.SignedURL(cmd.Context(), args[0], expires)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), u)
				return nil
			}

			if err := cl.configure(); err != nil {
				return err
			}
			// building a public URL needs no connection
			fs := filestore.New(nil, cl.cfg.FilestoreConfig(), cl.log)
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), fs.URIBase())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), fs.URL(args[0]))
			return nil
		},
	}
	cmd.Flags().DurationVar(&expires, "expires", 0, "print a presigned URL valid for this long instead")
	return cmd
}

func (cl *commandline) bucketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List the buckets visible to the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := cl.connect(cmd)
			if err != nil {
				return err
			}
			buckets, err := fs.Store().ListBuckets(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range buckets {
				fmt.Fprintf(out, "%s\t%s\n", b.Name, b.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}

func printLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
