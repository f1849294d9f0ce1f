// Package tidy runs the per-directory workflows: fixing extensions, syncing
// file times with embedded metadata, renaming files after their date and
// reporting duplicates.
package tidy

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/quidome/media-tidy/pkg/createdat"
	"github.com/quidome/media-tidy/pkg/dupes"
	"github.com/quidome/media-tidy/pkg/fileops"
	"github.com/quidome/media-tidy/pkg/filetype"
	"github.com/quidome/media-tidy/pkg/plan"
	"github.com/quidome/media-tidy/pkg/scan"
)

// Action describes what happened to a file.
type Action string

const (
	ActionRenamed     Action = "renamed"
	ActionTimeUpdated Action = "time_updated"
	ActionUnchanged   Action = "unchanged"
	ActionSkipped     Action = "skipped"
	ActionFailed      Action = "failed"
)

// Outcome is the per-file result of a workflow.
type Outcome struct {
	Path        string
	Action      Action
	Destination string
	Time        time.Time
	Error       error
}

// Options configures a Tidier.
type Options struct {
	Scan       scan.Options
	Duplicates dupes.Options

	// Location is used to format timestamps into file names. If nil, time.Local is used.
	Location *time.Location

	// Suffix returns the random number used in date names. Defaults to a
	// value in [1000, 9999].
	Suffix func() int

	Logger *zap.Logger
}

// Tidier runs workflows over the files directly inside one directory.
type Tidier struct {
	dir       string
	ops       *fileops.Ops
	createdAt *createdat.Extractor
	opts      Options
	logger    *zap.Logger
}

// New returns a Tidier for dir that applies changes through ops.
func New(dir string, ops *fileops.Ops, opts Options) *Tidier {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Suffix == nil {
		opts.Suffix = func() int { return 1000 + rand.IntN(9000) }
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Scan.Logger == nil {
		opts.Scan.Logger = logger
	}
	if opts.Duplicates.Logger == nil {
		opts.Duplicates.Logger = logger
	}

	return &Tidier{
		dir:       dir,
		ops:       ops,
		createdAt: createdat.New(createdat.Options{Location: opts.Location, Logger: logger}),
		opts:      opts,
		logger:    logger,
	}
}

// Files lists the directory with the configured exclusions.
func (t *Tidier) Files() ([]string, error) {
	return scan.List(t.dir, t.opts.Scan)
}

// CorrectFileTypes renames files whose extension does not match their
// content. NEF and MOV files only get their extension lowercased, as header
// sniffing misreads them.
func (t *Tidier) CorrectFileTypes() ([]Outcome, error) {
	files, err := t.Files()
	if err != nil {
		return nil, err
	}

	var outcomes []Outcome
	var operations []plan.Operation
	for _, file := range files {
		current, err := filetype.ParseExtension(filepath.Ext(file))
		if err != nil {
			t.logger.Warn("unsupported file extension", zap.String("path", file), zap.Error(err))
			outcomes = append(outcomes, Outcome{Path: file, Action: ActionSkipped, Error: err})
			continue
		}

		target := current
		if current != filetype.NEF && current != filetype.MOV {
			target = t.guess(file, current)
		}

		dst := filetype.StripExtension(file) + "." + string(target)
		if dst == file {
			outcomes = append(outcomes, Outcome{Path: file, Action: ActionUnchanged})
			continue
		}
		operations = append(operations, plan.Operation{SourcePath: file, DestinationPath: dst})
	}

	return append(outcomes, t.apply(operations)...), nil
}

func (t *Tidier) guess(file string, current filetype.Extension) filetype.Extension {
	guessed, err := filetype.Guess(file)
	if err != nil {
		t.logger.Debug("failed to guess file type", zap.String("path", file), zap.Error(err))
		return current
	}
	known, err := filetype.ParseExtension(string(guessed))
	if err != nil {
		t.logger.Debug("guessed file type is not handled", zap.String("path", file), zap.String("guess", string(guessed)))
		return current
	}
	return known
}

// UpdateDatesFromMetadata sets the access and modification time of every
// file to its embedded creation time, when the two differ and the file name
// does not already carry that time.
func (t *Tidier) UpdateDatesFromMetadata() ([]Outcome, error) {
	files, err := t.Files()
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(files))
	for _, file := range files {
		outcomes = append(outcomes, t.updateDate(file))
	}
	return outcomes, nil
}

func (t *Tidier) updateDate(file string) Outcome {
	res, err := t.createdAt.Determine(file)
	if err != nil {
		t.logger.Warn("failed to parse image metadata for datetime", zap.String("path", file), zap.Error(err))
		return Outcome{Path: file, Action: ActionSkipped, Error: err}
	}
	if !res.Found() {
		return Outcome{Path: file, Action: ActionUnchanged}
	}

	info, err := t.ops.Fs().Stat(file)
	if err != nil {
		return t.failed(file, err)
	}
	if info.ModTime().Truncate(time.Second).Equal(res.CreatedAt) {
		return Outcome{Path: file, Action: ActionUnchanged, Time: res.CreatedAt}
	}
	if prefix, ok := plan.DatePrefix(filepath.Base(file)); ok && prefix == res.CreatedAt.In(t.opts.Location).Format(plan.DateLayout) {
		return Outcome{Path: file, Action: ActionUnchanged, Time: res.CreatedAt}
	}

	if err := t.ops.Chtimes(file, res.CreatedAt); err != nil {
		return t.failed(file, err)
	}
	return Outcome{Path: file, Action: ActionTimeUpdated, Time: res.CreatedAt}
}

// ConvertNamesToDates renames every file after its modification time. With
// preventDuplicates each name gets a random R suffix; without it, clashing
// names get _N suffixes.
func (t *Tidier) ConvertNamesToDates(preventDuplicates bool) ([]Outcome, error) {
	files, err := t.Files()
	if err != nil {
		return nil, err
	}

	var outcomes []Outcome
	var sources []string
	mtimes := make(map[string]time.Time, len(files))
	for _, file := range files {
		info, err := t.ops.Fs().Stat(file)
		if err != nil {
			outcomes = append(outcomes, t.failed(file, err))
			continue
		}
		sources = append(sources, file)
		mtimes[file] = info.ModTime().In(t.opts.Location)
	}

	opts := plan.Options{Exists: t.exists}
	if preventDuplicates {
		opts.Suffix = t.opts.Suffix
	}
	operations := plan.Plan(sources, mtimes, opts)

	planned := make(map[string]bool, len(operations))
	for _, op := range operations {
		planned[op.SourcePath] = true
	}
	for _, file := range sources {
		if !planned[file] {
			outcomes = append(outcomes, Outcome{Path: file, Action: ActionUnchanged, Time: mtimes[file]})
		}
	}

	return append(outcomes, t.apply(operations)...), nil
}

// FindDuplicates lists the directory and runs the duplicate detector over it.
func (t *Tidier) FindDuplicates() (dupes.Result, error) {
	files, err := t.Files()
	if err != nil {
		return dupes.Result{}, err
	}
	return dupes.New(t.opts.Duplicates).Find(files), nil
}

func (t *Tidier) apply(operations []plan.Operation) []Outcome {
	outcomes := make([]Outcome, 0, len(operations))
	for _, res := range t.ops.Execute(operations) {
		o := Outcome{
			Path:        res.Operation.SourcePath,
			Destination: res.Operation.DestinationPath,
			Action:      ActionRenamed,
		}
		if !res.Success {
			o.Action = ActionFailed
			o.Error = res.Error
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (t *Tidier) exists(path string) bool {
	_, err := t.ops.Fs().Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

func (t *Tidier) failed(file string, err error) Outcome {
	t.logger.Warn("failed to update", zap.String("path", file), zap.Error(err))
	return Outcome{Path: file, Action: ActionFailed, Error: err}
}
