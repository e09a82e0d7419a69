// Package archive writes zip archives of build outputs
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MarketplaceExcludes are the top-level plugin folders left out of
// marketplace submissions
var MarketplaceExcludes = []string{"Binaries", "Intermediate"}

// Options controls what goes into an archive
type Options struct {
	// ExcludeTopLevel lists directory names skipped directly below the source root
	ExcludeTopLevel []string
	// Progress, when set, is called after each file is written
	Progress func(path string, files int)
}

// Stats summarizes a written archive
type Stats struct {
	Files int
	Bytes int64
}

// Directory zips the contents of src into dest. The archive is written to a
// temporary file and renamed into place, so a cancelled run leaves no
// partial archive behind.
func Directory(ctx context.Context, src, dest string, opts Options) (Stats, error) {
	var stats Stats

	info, err := os.Stat(src)
	if err != nil {
		return stats, fmt.Errorf("archive source: %w", err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("archive source %s is not a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return stats, fmt.Errorf("create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".ubb-*.zip.tmp")
	if err != nil {
		return stats, fmt.Errorf("create archive: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	excluded := make(map[string]bool, len(opts.ExcludeTopLevel))
	for _, name := range opts.ExcludeTopLevel {
		excluded[strings.ToLower(name)] = true
	}

	zw := zip.NewWriter(tmp)
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if !strings.Contains(rel, "/") && excluded[strings.ToLower(rel)] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		n, err := addFile(zw, path, rel)
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += n
		if opts.Progress != nil {
			opts.Progress(rel, stats.Files)
		}
		return nil
	})

	closeErr := zw.Close()
	fileErr := tmp.Close()

	if walkErr != nil {
		return stats, fmt.Errorf("write archive: %w", walkErr)
	}
	if closeErr != nil {
		return stats, fmt.Errorf("finish archive: %w", closeErr)
	}
	if fileErr != nil {
		return stats, fmt.Errorf("close archive: %w", fileErr)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return stats, fmt.Errorf("move archive into place: %w", err)
	}
	return stats, nil
}

func addFile(zw *zip.Writer, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	return io.Copy(w, f)
}

// IsWritableDir reports whether files can be created in dir
func IsWritableDir(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.CreateTemp(dir, ".ubb-write-check-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
