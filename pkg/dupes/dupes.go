package dupes

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is the read size used while hashing whole files.
	DefaultChunkSize = 1024
	// DefaultPartialSize is how many leading bytes the partial hash covers.
	DefaultPartialSize = 1024
)

// ErrNotRegular is reported for inputs that resolve to something other than a regular file.
var ErrNotRegular = errors.New("not a regular file")

// Stage names the funnel step in which a file was dropped.
type Stage string

const (
	StageSize        Stage = "size"
	StagePartialHash Stage = "partial_hash"
	StageFullHash    Stage = "full_hash"
)

// FileRecord is a candidate file after symlink resolution.
type FileRecord struct {
	Path         string
	ResolvedPath string
	Size         int64
}

// Skip records a file that was dropped because it could not be read.
type Skip struct {
	Path  string
	Stage Stage
	Err   error
}

// Duplicate is a file whose full content hash matches an earlier file.
type Duplicate struct {
	Path        string
	DuplicateOf string
	Size        int64
}

// Groups maps a size in bytes to the sorted, unique base names of every file
// sharing that size with at least one other file. A size whose files reduce
// to fewer than two distinct names is left out.
type Groups map[int64][]string

// Result is the outcome of one detection run.
type Result struct {
	Groups     Groups
	Duplicates []Duplicate
	Skipped    []Skip
}

// Options configures a Detector.
type Options struct {
	// ChunkSize is the buffer size for full-content hashing.
	ChunkSize int
	// PartialSize is the number of leading bytes covered by the partial hash.
	PartialSize int64
	// Workers bounds the number of files processed at once within a stage.
	// Zero means runtime.NumCPU().
	Workers int
	// NewHash returns the digest used for both hash stages. Defaults to SHA-1.
	NewHash func() hash.Hash
	// Logger receives skip and duplicate events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultOptions returns the options used by FindDuplicateGroups.
func DefaultOptions() Options {
	return Options{
		ChunkSize:   DefaultChunkSize,
		PartialSize: DefaultPartialSize,
		NewHash:     sha1.New,
	}
}

// Detector finds byte-identical files with a size, partial hash, full hash funnel.
type Detector struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Detector. Zero fields in opts fall back to DefaultOptions.
func New(opts Options) *Detector {
	defaults := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.ChunkSize
	}
	if opts.PartialSize <= 0 {
		opts.PartialSize = defaults.PartialSize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.NewHash == nil {
		opts.NewHash = defaults.NewHash
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Detector{opts: opts, logger: logger}
}

// FindDuplicateGroups runs a Detector with default options and returns only the groups.
func FindDuplicateGroups(paths []string) Groups {
	return New(DefaultOptions()).Find(paths).Groups
}

// Find runs all three stages over paths. Unreadable files are skipped and
// reported in Result.Skipped; the run itself never fails.
//
// The returned groups are keyed by size, not by content: every file that
// shares its size with another file is listed. Confirmed byte-identical files
// are reported separately in Result.Duplicates.
func (d *Detector) Find(paths []string) Result {
	bySize, skipped := d.partitionBySize(paths)
	candidates := bySize.candidates()

	byPartial, partialSkips := d.partialHashBuckets(candidates)
	skipped = append(skipped, partialSkips...)

	duplicates, fullSkips := d.confirmDuplicates(byPartial.candidates())
	skipped = append(skipped, fullSkips...)

	d.logger.Info("duplicate scan finished",
		zap.Int("files", len(paths)),
		zap.Int("size_groups", len(candidates)),
		zap.Int("duplicates", len(duplicates)),
		zap.Int("skipped", len(skipped)))

	return Result{
		Groups:     candidates.names(),
		Duplicates: duplicates,
		Skipped:    skipped,
	}
}

// SizeBuckets groups records by size in bytes.
type SizeBuckets map[int64][]FileRecord

func (b SizeBuckets) candidates() SizeBuckets {
	out := make(SizeBuckets, len(b))
	for size, records := range b {
		if len(records) > 1 {
			out[size] = records
		}
	}
	return out
}

func (b SizeBuckets) sizes() []int64 {
	sizes := make([]int64, 0, len(b))
	for size := range b {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	return sizes
}

func (b SizeBuckets) names() Groups {
	groups := make(Groups, len(b))
	for size, records := range b {
		seen := make(map[string]bool, len(records))
		names := make([]string, 0, len(records))
		for _, r := range records {
			name := filepath.Base(r.ResolvedPath)
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		groups[size] = names
	}
	return groups
}

// PartialKey identifies files with the same size and leading-bytes digest.
type PartialKey struct {
	Size   int64
	Digest string
}

// PartialBuckets groups records by PartialKey.
type PartialBuckets map[PartialKey][]FileRecord

func (b PartialBuckets) candidates() PartialBuckets {
	out := make(PartialBuckets, len(b))
	for key, records := range b {
		if len(records) > 1 {
			out[key] = records
		}
	}
	return out
}

func (b PartialBuckets) keys() []PartialKey {
	keys := make([]PartialKey, 0, len(b))
	for key := range b {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Size != keys[j].Size {
			return keys[i].Size < keys[j].Size
		}
		return keys[i].Digest < keys[j].Digest
	})
	return keys
}

type fileResult struct {
	record FileRecord
	digest string
	err    error
}

func (d *Detector) partitionBySize(paths []string) (SizeBuckets, []Skip) {
	results := make([]fileResult, len(paths))
	d.forEach(len(paths), func(i int) {
		record, err := resolve(paths[i])
		results[i] = fileResult{record: record, err: err}
	})

	buckets := make(SizeBuckets)
	seen := make(map[string]bool, len(paths))
	var skipped []Skip
	for i, res := range results {
		if res.err != nil {
			skipped = append(skipped, d.skip(paths[i], StageSize, res.err))
			continue
		}
		if seen[res.record.ResolvedPath] {
			d.logger.Debug("file already listed through another path",
				zap.String("path", res.record.Path),
				zap.String("resolved", res.record.ResolvedPath))
			continue
		}
		seen[res.record.ResolvedPath] = true
		buckets[res.record.Size] = append(buckets[res.record.Size], res.record)
	}
	return buckets, skipped
}

func (d *Detector) partialHashBuckets(buckets SizeBuckets) (PartialBuckets, []Skip) {
	var records []FileRecord
	for _, size := range buckets.sizes() {
		records = append(records, buckets[size]...)
	}

	results := d.hashAll(records, d.opts.PartialSize)

	out := make(PartialBuckets)
	var skipped []Skip
	for _, res := range results {
		if res.err != nil {
			skipped = append(skipped, d.skip(res.record.ResolvedPath, StagePartialHash, res.err))
			continue
		}
		key := PartialKey{Size: res.record.Size, Digest: res.digest}
		out[key] = append(out[key], res.record)
	}
	return out, skipped
}

func (d *Detector) confirmDuplicates(buckets PartialBuckets) ([]Duplicate, []Skip) {
	var records []FileRecord
	for _, key := range buckets.keys() {
		records = append(records, buckets[key]...)
	}

	results := d.hashAll(records, 0)

	firstSeen := make(map[string]string)
	var duplicates []Duplicate
	var skipped []Skip
	for _, res := range results {
		if res.err != nil {
			skipped = append(skipped, d.skip(res.record.ResolvedPath, StageFullHash, res.err))
			continue
		}
		original, ok := firstSeen[res.digest]
		if !ok {
			firstSeen[res.digest] = res.record.ResolvedPath
			continue
		}
		d.logger.Info("duplicate found",
			zap.String("path", res.record.ResolvedPath),
			zap.String("duplicate", original),
			zap.Int64("size", res.record.Size),
			zap.String("digest", hex.EncodeToString([]byte(res.digest))))
		duplicates = append(duplicates, Duplicate{
			Path:        res.record.ResolvedPath,
			DuplicateOf: original,
			Size:        res.record.Size,
		})
	}
	return duplicates, skipped
}

// hashAll digests every record, the first limit bytes only when limit > 0.
// Results keep the order of records.
func (d *Detector) hashAll(records []FileRecord, limit int64) []fileResult {
	results := make([]fileResult, len(records))
	d.forEach(len(records), func(i int) {
		digest, err := d.hashFile(records[i].ResolvedPath, limit)
		results[i] = fileResult{record: records[i], digest: digest, err: err}
	})
	return results
}

// forEach calls fn for every index in [0, n) on at most Workers goroutines
// and returns when all calls are done.
func (d *Detector) forEach(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Detector) hashFile(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := d.opts.NewHash()
	if limit > 0 {
		if _, err := io.CopyN(h, f, limit); err != nil && err != io.EOF {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(h.Sum(nil)), nil
	}

	buf := make([]byte, d.opts.ChunkSize)
	for {
		n, err := f.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
	}
	return string(h.Sum(nil)), nil
}

func (d *Detector) skip(path string, stage Stage, err error) Skip {
	d.logger.Warn("skipping file",
		zap.String("path", path),
		zap.String("stage", string(stage)),
		zap.Error(err))
	return Skip{Path: path, Stage: stage, Err: err}
}

func resolve(path string) (FileRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileRecord{}, err
	}
	// Soft links are dereferenced so the target's size and content are used.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return FileRecord{}, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return FileRecord{}, err
	}
	if !info.Mode().IsRegular() {
		return FileRecord{}, fmt.Errorf("%s: %w", resolved, ErrNotRegular)
	}
	return FileRecord{Path: path, ResolvedPath: resolved, Size: info.Size()}, nil
}
