package plan

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DateLayout is the timestamp part of a normalized file name.
const DateLayout = "2006-01-02T15-04-05"

// Operation represents a planned rename from source to destination.
type Operation struct {
	SourcePath      string
	DestinationPath string
}

// Options configures Plan.
type Options struct {
	// Suffix returns the number placed after "R" in each name. Nil means
	// names carry no suffix.
	Suffix func() int

	// Exists reports whether a path is already taken on disk.
	Exists func(path string) bool
}

// FileName formats a normalized name: YYYY-MM-DDTHH-MM-SS, then R<suffix>
// when suffix is non-zero, then the lowercased extension.
func FileName(createdAt time.Time, ext string, suffix int) string {
	name := createdAt.Format(DateLayout)
	if suffix != 0 {
		name += fmt.Sprintf("R%d", suffix)
	}
	if ext = strings.ToLower(strings.TrimPrefix(ext, ".")); ext != "" {
		name += "." + ext
	}
	return name
}

// DatePrefix returns the timestamp a normalized name starts with.
func DatePrefix(name string) (string, bool) {
	if len(name) < len(DateLayout) {
		return "", false
	}
	prefix := name[:len(DateLayout)]
	if _, err := time.Parse(DateLayout, prefix); err != nil {
		return "", false
	}
	return prefix, true
}

// Destination returns the path for filename inside dir. If that path is
// reserved or exists, a suffix _N is appended before the extension, where N
// starts at 1. The returned path is added to reserved.
func Destination(dir string, filename string, reserved map[string]bool, exists func(string) bool) string {
	taken := func(p string) bool {
		return reserved[p] || (exists != nil && exists(p))
	}

	basePath := filepath.Join(dir, filename)
	if !taken(basePath) {
		reserved[basePath] = true
		return basePath
	}

	ext := filepath.Ext(filename)
	nameWithoutExt := strings.TrimSuffix(filename, ext)

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", nameWithoutExt, i, ext))
		if !taken(candidate) {
			reserved[candidate] = true
			return candidate
		}
	}
}

// Plan computes renames that give each source a normalized name built from
// its timestamp, in the source's own directory.
//
// Sources without a timestamp, or whose name already starts with it, are left out.
func Plan(sources []string, createdAtMap map[string]time.Time, opts Options) []Operation {
	reserved := make(map[string]bool)
	operations := make([]Operation, 0, len(sources))

	for _, src := range sources {
		createdAt, ok := createdAtMap[src]
		if !ok || createdAt.IsZero() {
			continue
		}

		base := filepath.Base(src)
		if prefix, ok := DatePrefix(base); ok && prefix == createdAt.Format(DateLayout) {
			continue
		}

		suffix := 0
		if opts.Suffix != nil {
			suffix = opts.Suffix()
		}
		filename := FileName(createdAt, filepath.Ext(base), suffix)
		dest := Destination(filepath.Dir(src), filename, reserved, opts.Exists)

		operations = append(operations, Operation{
			SourcePath:      src,
			DestinationPath: dest,
		})
	}

	return operations
}
