package createdat

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/quidome/media-tidy/pkg/filetype"
	"github.com/quidome/media-tidy/pkg/isobmff"
)

// Source describes where a CreatedAt timestamp was derived from.
type Source string

const (
	SourceContainer Source = "container"
	SourceExif      Source = "exif"
	SourceXMP       Source = "xmp"
	SourceUnknown   Source = "unknown"
)

// Result contains a creation timestamp and its source. CreatedAt is zero
// when Source is SourceUnknown.
type Result struct {
	CreatedAt time.Time
	Source    Source
}

// Found reports whether a timestamp was extracted.
func (r Result) Found() bool {
	return r.Source != SourceUnknown && !r.CreatedAt.IsZero()
}

// MetadataExtractor extracts an embedded creation timestamp from a media stream.
//
// Implementations should return (t, true, nil) when a timestamp is found.
// If no timestamp exists, return (time.Time{}, false, nil).
type MetadataExtractor interface {
	CreatedAt(path string, r io.ReadSeeker) (time.Time, bool, error)
}

// Options configures an Extractor.
type Options struct {
	// Location is used for embedded timestamps that carry no timezone.
	// If nil, time.Local is used.
	Location *time.Location

	Logger *zap.Logger
}

// Extractor picks the metadata reader matching a file's extension.
type Extractor struct {
	image  []sourced
	logger *zap.Logger
}

type sourced struct {
	source    Source
	extractor MetadataExtractor
}

// New returns an Extractor reading EXIF and XMP for images and the movie
// header for MOV/MP4 files.
func New(opts Options) *Extractor {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		image: []sourced{
			{source: SourceExif, extractor: exifExtractor{location: loc}},
			{source: SourceXMP, extractor: xmpExtractor{location: loc}},
		},
		logger: logger,
	}
}

// Determine returns the embedded creation timestamp of path.
//
// Parse failures of a container are returned as errors. Images without any
// usable tag yield SourceUnknown and no error.
func (e *Extractor) Determine(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("%s: is a directory", path)
	}

	if filetype.Of(path).IsContainer() {
		ts, err := isobmff.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("read movie header: %w", err)
		}
		if ts.Creation.IsZero() {
			return Result{Source: SourceUnknown}, nil
		}
		return Result{CreatedAt: ts.Creation, Source: SourceContainer}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	for _, s := range e.image {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return Result{}, err
		}
		createdAt, ok, err := s.extractor.CreatedAt(path, f)
		if err != nil {
			e.logger.Debug("metadata extractor failed",
				zap.String("path", path),
				zap.String("source", string(s.source)),
				zap.Error(err))
			continue
		}
		if ok {
			return Result{CreatedAt: createdAt, Source: s.source}, nil
		}
	}

	return Result{Source: SourceUnknown}, nil
}
