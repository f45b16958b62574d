package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	lodeds "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ripestream/cli/config"
	"github.com/pithecene-io/ripestream/lode"
)

// storageChoice holds parsed Lode storage configuration.
type storageChoice struct {
	backend      string // "fs" or "s3"
	path         string // fs: directory, s3: bucket/prefix
	dataset      string
	region       string
	endpoint     string
	usePathStyle bool
}

// enabled reports whether a storage location was configured at all.
func (s storageChoice) enabled() bool {
	return s.backend != "" || s.path != ""
}

func (s storageChoice) s3Config() lode.S3Config {
	bucket, prefix := lode.ParseS3Path(s.path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       s.region,
		Endpoint:     s.endpoint,
		UsePathStyle: s.usePathStyle,
	}
}

// storageFlags are shared by stream and inspect.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Storage backend: fs or s3",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "storage-dataset",
			Usage: "Lode dataset ID",
			Value: lode.DefaultDataset,
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for S3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint URL (R2, MinIO)",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// parseStorageChoice applies flag-over-config precedence. A path without a
// backend defaults to fs.
func parseStorageChoice(c *cli.Context, cfg *config.Config) storageChoice {
	sc := storageChoice{
		backend:      resolveString(c, "storage-backend", configVal(cfg, func(c *config.Config) string { return c.Storage.Backend })),
		path:         resolveString(c, "storage-path", configVal(cfg, func(c *config.Config) string { return c.Storage.Path })),
		dataset:      resolveString(c, "storage-dataset", configVal(cfg, func(c *config.Config) string { return c.Storage.Dataset })),
		region:       resolveString(c, "storage-region", configVal(cfg, func(c *config.Config) string { return c.Storage.Region })),
		endpoint:     resolveString(c, "storage-endpoint", configVal(cfg, func(c *config.Config) string { return c.Storage.Endpoint })),
		usePathStyle: resolveBool(c, "storage-s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Storage.S3PathStyle })),
	}
	if sc.backend == "" && sc.path != "" {
		sc.backend = "fs"
	}
	if sc.dataset == "" {
		sc.dataset = lode.DefaultDataset
	}
	return sc
}

func validateStorageConfig(sc storageChoice) error {
	switch sc.backend {
	case "fs":
		if sc.path == "" {
			return fmt.Errorf("--storage-path is required for fs backend\n  Example: --storage-path ./data")
		}
		info, err := os.Stat(sc.path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("storage path %q does not exist\n  Create it first: mkdir -p %s", sc.path, sc.path)
			}
			return fmt.Errorf("cannot access storage path %q: %w", sc.path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("storage path %q is not a directory", sc.path)
		}
		return nil

	case "s3":
		if sc.path == "" {
			return fmt.Errorf("--storage-path required for s3 backend\n  Format: bucket-name/optional/prefix")
		}
		return nil

	default:
		return fmt.Errorf("invalid --storage-backend %q\n  Valid options: fs, s3", sc.backend)
	}
}

// buildStoragePath renders the session's partition location for
// notifications. Unknown backends yield the bare partition path.
func buildStoragePath(sc storageChoice, dataset, source, day, sessionID string) string {
	partition := lode.SessionPartition(dataset, source, day, sessionID)

	switch sc.backend {
	case "fs":
		root := sc.path
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		return "file://" + filepath.ToSlash(filepath.Join(root, partition))
	case "s3":
		s3cfg := sc.s3Config()
		return s3cfg.URI(partition)
	default:
		return partition
	}
}

// openReadDataset opens the configured dataset for the inspect commands.
func openReadDataset(ctx context.Context, sc storageChoice) (lodeds.Dataset, error) {
	switch sc.backend {
	case "fs":
		return lode.NewReadDatasetFS(sc.dataset, sc.path)
	case "s3":
		return lode.NewReadDatasetS3(ctx, sc.dataset, sc.s3Config())
	default:
		return nil, fmt.Errorf("invalid --storage-backend %q\n  Valid options: fs, s3", sc.backend)
	}
}
