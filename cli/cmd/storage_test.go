package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateStorageConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		config      storageChoice
		wantErr     bool
		errContains string
	}{
		{
			name:   "fs with valid directory",
			config: storageChoice{backend: "fs", path: dir},
		},
		{
			name:        "fs with nonexistent path",
			config:      storageChoice{backend: "fs", path: filepath.Join(dir, "missing")},
			wantErr:     true,
			errContains: "does not exist",
		},
		{
			name:        "fs with file instead of directory",
			config:      storageChoice{backend: "fs", path: file},
			wantErr:     true,
			errContains: "not a directory",
		},
		{
			name:        "fs without path",
			config:      storageChoice{backend: "fs"},
			wantErr:     true,
			errContains: "--storage-path is required",
		},
		{
			name:   "s3 with path",
			config: storageChoice{backend: "s3", path: "my-bucket/prefix"},
		},
		{
			name:        "s3 without path",
			config:      storageChoice{backend: "s3"},
			wantErr:     true,
			errContains: "--storage-path required",
		},
		{
			name:        "invalid backend",
			config:      storageChoice{backend: "gcs", path: dir},
			wantErr:     true,
			errContains: "invalid --storage-backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStorageConfig(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				} else if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestStorageErrorMessagesAreActionable(t *testing.T) {
	tests := []struct {
		name        string
		config      storageChoice
		mustContain []string
	}{
		{
			name:        "nonexistent path suggests mkdir",
			config:      storageChoice{backend: "fs", path: "/nonexistent/ripestream/path"},
			mustContain: []string{"mkdir -p"},
		},
		{
			name:        "s3 missing path explains format",
			config:      storageChoice{backend: "s3"},
			mustContain: []string{"bucket-name", "Format:"},
		},
		{
			name:        "invalid backend lists options",
			config:      storageChoice{backend: "gcs", path: "/tmp"},
			mustContain: []string{"fs", "s3", "Valid options"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStorageConfig(tt.config)
			if err == nil {
				t.Fatal("expected error")
			}
			for _, must := range tt.mustContain {
				if !strings.Contains(err.Error(), must) {
					t.Errorf("error should contain %q\nGot: %s", must, err.Error())
				}
			}
		})
	}
}

func TestStorageChoice_Enabled(t *testing.T) {
	if (storageChoice{}).enabled() {
		t.Error("empty choice should be disabled")
	}
	if !(storageChoice{path: "./data"}).enabled() {
		t.Error("path alone should enable storage")
	}
}

func TestStorageChoice_S3Config(t *testing.T) {
	sc := storageChoice{backend: "s3", path: "bucket/a/b", region: "us-east-1", endpoint: "http://minio:9000", usePathStyle: true}
	cfg := sc.s3Config()
	if cfg.Bucket != "bucket" || cfg.Prefix != "a/b" {
		t.Errorf("bucket/prefix = %q/%q", cfg.Bucket, cfg.Prefix)
	}
	if cfg.Region != "us-east-1" || cfg.Endpoint != "http://minio:9000" || !cfg.UsePathStyle {
		t.Errorf("unexpected s3 config: %+v", cfg)
	}
}

func TestBuildStoragePath_FS(t *testing.T) {
	sc := storageChoice{backend: "fs", path: "/var/ripestream/data"}
	got := buildStoragePath(sc, "ripestream", "row-7", "2026-02-08", "sess-001")

	if !strings.HasPrefix(got, "file:///") {
		t.Errorf("fs path should start with file:///, got %q", got)
	}
	for _, segment := range []string{
		"datasets/ripestream/partitions",
		"source=row-7",
		"day=2026-02-08",
		"session_id=sess-001",
	} {
		if !strings.Contains(got, segment) {
			t.Errorf("fs path should contain %q, got %q", segment, got)
		}
	}
}

func TestBuildStoragePath_S3WithPrefix(t *testing.T) {
	sc := storageChoice{backend: "s3", path: "my-bucket/orchard"}
	got := buildStoragePath(sc, "ripestream", "src", "2026-01-01", "sess-x")

	want := "s3://my-bucket/orchard/datasets/ripestream/partitions/source=src/day=2026-01-01/session_id=sess-x"
	if got != want {
		t.Errorf("s3 with prefix:\ngot  %q\nwant %q", got, want)
	}
}

func TestBuildStoragePath_S3BucketOnly(t *testing.T) {
	sc := storageChoice{backend: "s3", path: "my-bucket"}
	got := buildStoragePath(sc, "ripestream", "src", "2026-01-01", "sess-x")

	want := "s3://my-bucket/datasets/ripestream/partitions/source=src/day=2026-01-01/session_id=sess-x"
	if got != want {
		t.Errorf("s3 bucket only:\ngot  %q\nwant %q", got, want)
	}
}

func TestBuildStoragePath_UnknownBackend(t *testing.T) {
	sc := storageChoice{backend: "gcs", path: "/tmp"}
	got := buildStoragePath(sc, "ripestream", "src", "2026-01-01", "sess-x")

	if strings.Contains(got, "://") {
		t.Errorf("unknown backend should not include scheme, got %q", got)
	}
	if !strings.HasPrefix(got, "datasets/") {
		t.Errorf("unknown backend should return bare partition path, got %q", got)
	}
}
