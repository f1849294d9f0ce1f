package scan

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultExclude holds file names that are filesystem metadata rather than media.
var DefaultExclude = []string{".DS_Store"}

type Options struct {
	// Exclude lists file names that are never returned.
	Exclude []string

	// Extensions limits results to these extensions. Empty means every file.
	Extensions []string

	Logger *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Exclude: append([]string(nil), DefaultExclude...),
	}
}

type Record struct {
	Path string
	Size int64
}

// List returns the fully qualified paths of the files directly inside dir.
// A missing dir is logged and yields an empty list.
func List(dir string, opts Options) ([]string, error) {
	records, err := ListRecords(dir, opts)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(records))
	for _, r := range records {
		paths = append(paths, r.Path)
	}
	return paths, nil
}

// ListRecords is List with file sizes.
func ListRecords(dir string, opts Options) ([]Record, error) {
	records, err := Records(os.DirFS(dir), ".", opts)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger(opts).Warn("base path not found", zap.String("base_dir", dir))
			return []Record{}, nil
		}
		return nil, err
	}

	for i := range records {
		records[i].Path = filepath.Join(dir, filepath.FromSlash(records[i].Path))
	}
	logger(opts).Info("found files", zap.String("base_dir", dir), zap.Int("count", len(records)))
	return records, nil
}

// Records lists the files directly inside root. Subdirectories are not
// entered. Symlinks are listed as they are, their targets are not checked.
func Records(fsys fs.FS, root string, opts Options) ([]Record, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excluded[name] = true
	}
	exts := normalizeExts(opts.Extensions)

	var matches []Record
	for _, d := range entries {
		name := d.Name()
		if d.IsDir() || excluded[name] {
			continue
		}
		if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil, infoErr
		}

		matches = append(matches, Record{
			Path: path.Join(root, name),
			Size: info.Size(),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Path < matches[j].Path
	})
	return matches, nil
}

func normalizeExts(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, ext := range exts {
		e := strings.TrimSpace(strings.ToLower(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}

func logger(opts Options) *zap.Logger {
	if opts.Logger == nil {
		return zap.NewNop()
	}
	return opts.Logger
}
