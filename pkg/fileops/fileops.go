// Package fileops applies renames and timestamp updates, or only logs them
// in dry-run mode.
package fileops

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/quidome/media-tidy/pkg/plan"
)

var (
	// ErrDestinationExists is returned when a rename target is already taken.
	ErrDestinationExists = errors.New("destination file already exists")
)

// Result contains the outcome of a rename.
type Result struct {
	Operation plan.Operation
	Success   bool
	Error     error
}

// Options configures Ops.
type Options struct {
	// DryRun logs every change instead of applying it.
	DryRun bool

	Logger *zap.Logger
}

// Ops mutates files on an afero filesystem. The mode is logged once, on the
// first change.
type Ops struct {
	fs      afero.Fs
	dryRun  bool
	logger  *zap.Logger
	modeLog sync.Once
}

// New returns Ops working on fs. A nil fs means the OS filesystem.
func New(fs afero.Fs, opts Options) *Ops {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Bool("dry_run", opts.DryRun))
	return &Ops{fs: fs, dryRun: opts.DryRun, logger: logger}
}

func (o *Ops) logMode() {
	o.modeLog.Do(func() {
		if o.dryRun {
			o.logger.Info("running in dry-run mode")
		} else {
			o.logger.Warn("running in live mode")
		}
	})
}

// DryRun reports whether changes are only logged.
func (o *Ops) DryRun() bool {
	return o.dryRun
}

// Fs returns the filesystem the operations act on.
func (o *Ops) Fs() afero.Fs {
	return o.fs
}

// Rename moves src to dst. It never replaces an existing file, except when
// dst names src itself (a case-only rename on a case-insensitive filesystem).
func (o *Ops) Rename(src, dst string) error {
	o.logMode()
	if o.dryRun {
		o.logger.Info("[DRY RUN] renamed", zap.String("src", src), zap.String("dst", dst))
		return nil
	}

	srcInfo, err := o.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if dstInfo, err := o.fs.Stat(dst); err == nil {
		if !os.SameFile(srcInfo, dstInfo) {
			return ErrDestinationExists
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat destination: %w", err)
	}

	if err := o.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	o.logger.Info("renamed", zap.String("src", src), zap.String("dst", dst))
	return nil
}

// Chtimes sets both the access and modification time of path to t.
func (o *Ops) Chtimes(path string, t time.Time) error {
	o.logMode()
	stamp := t.Format("2006-01-02 15:04:05")
	if o.dryRun {
		o.logger.Info("[DRY RUN] updating time", zap.String("path", path), zap.String("time", stamp))
		return nil
	}

	if err := o.fs.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("chtimes: %w", err)
	}
	o.logger.Info("updating time", zap.String("path", path), zap.String("time", stamp))
	return nil
}

// Execute performs the renames in order and reports one Result per operation.
// A failed rename does not stop the remaining ones.
func (o *Ops) Execute(operations []plan.Operation) []Result {
	results := make([]Result, 0, len(operations))

	for _, op := range operations {
		result := Result{Operation: op}
		if err := o.Rename(op.SourcePath, op.DestinationPath); err != nil {
			result.Error = err
			o.logger.Warn("rename failed",
				zap.String("src", op.SourcePath),
				zap.String("dst", op.DestinationPath),
				zap.Error(err))
		} else {
			result.Success = true
		}
		results = append(results, result)
	}

	return results
}
