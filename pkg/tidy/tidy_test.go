package tidy

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/quidome/media-tidy/pkg/fileops"
	"github.com/quidome/media-tidy/pkg/isobmff"
	"github.com/quidome/media-tidy/pkg/scan"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func writeFile(t *testing.T, dir, name string, data []byte, mtime time.Time) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	return p
}

func newTidier(dir string, dryRun bool, opts Options) *Tidier {
	return New(dir, fileops.New(nil, fileops.Options{DryRun: dryRun, Logger: opts.Logger}), opts)
}

func byPath(outcomes []Outcome) map[string]Outcome {
	m := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		m[filepath.Base(o.Path)] = o
	}
	return m
}

func TestCorrectFileTypes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "png.jpeg", pngHeader, time.Time{})
	writeFile(t, dir, "raw.NEF", pngHeader, time.Time{})
	writeFile(t, dir, "clip.MOV", []byte("not really a movie"), time.Time{})
	writeFile(t, dir, "ok.png", pngHeader, time.Time{})
	writeFile(t, dir, "notes.txt", []byte("hello"), time.Time{})
	writeFile(t, dir, ".DS_Store", []byte("x"), time.Time{})

	outcomes, err := newTidier(dir, false, Options{Scan: scan.DefaultOptions()}).CorrectFileTypes()
	require.NoError(t, err)

	got := byPath(outcomes)
	require.Len(t, got, 5)

	assert.Equal(t, ActionRenamed, got["png.jpeg"].Action)
	assert.Equal(t, filepath.Join(dir, "png.png"), got["png.jpeg"].Destination)
	assert.Equal(t, ActionRenamed, got["raw.NEF"].Action)
	assert.Equal(t, filepath.Join(dir, "raw.nef"), got["raw.NEF"].Destination)
	assert.Equal(t, ActionRenamed, got["clip.MOV"].Action)
	assert.Equal(t, filepath.Join(dir, "clip.mov"), got["clip.MOV"].Destination)
	assert.Equal(t, ActionUnchanged, got["ok.png"].Action)
	assert.Equal(t, ActionSkipped, got["notes.txt"].Action)
	assert.Error(t, got["notes.txt"].Error)

	for _, name := range []string{"png.png", "raw.nef", "clip.mov", "ok.png", "notes.txt"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestCorrectFileTypes_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "png.jpeg", pngHeader, time.Time{})

	core, logs := observer.New(zapcore.InfoLevel)
	outcomes, err := newTidier(dir, true, Options{Logger: zap.New(core)}).CorrectFileTypes()
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.Equal(t, ActionRenamed, outcomes[0].Action)
	_, err = os.Stat(filepath.Join(dir, "png.jpeg"))
	assert.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("[DRY RUN] renamed").Len())
}

func TestUpdateDatesFromMetadata(t *testing.T) {
	dir := t.TempDir()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)

	writeFile(t, dir, "clip.mp4", movie(created), old)
	writeFile(t, dir, "synced.mp4", movie(created), created)
	writeFile(t, dir, "2023-05-06T07-08-09.mp4", movie(created), old)
	writeFile(t, dir, "empty.mp4", movie(time.Time{}), old)
	writeFile(t, dir, "broken.mp4", []byte{0, 0, 0, 0, 'f', 't', 'y', 'p'}, old)

	outcomes, err := newTidier(dir, false, Options{Location: time.UTC}).UpdateDatesFromMetadata()
	require.NoError(t, err)
	got := byPath(outcomes)

	assert.Equal(t, ActionTimeUpdated, got["clip.mp4"].Action)
	assert.True(t, got["clip.mp4"].Time.Equal(created))
	assert.Equal(t, ActionUnchanged, got["synced.mp4"].Action)
	assert.Equal(t, ActionUnchanged, got["2023-05-06T07-08-09.mp4"].Action)
	assert.Equal(t, ActionUnchanged, got["empty.mp4"].Action)
	assert.Equal(t, ActionSkipped, got["broken.mp4"].Action)
	assert.ErrorIs(t, got["broken.mp4"].Error, isobmff.ErrMalformedBoxSize)

	info, err := os.Stat(filepath.Join(dir, "clip.mp4"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(created), "got %v", info.ModTime())

	info, err = os.Stat(filepath.Join(dir, "2023-05-06T07-08-09.mp4"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "got %v", info.ModTime())
}

func TestConvertNamesToDates(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2022, 8, 9, 10, 11, 12, 0, time.UTC)
	writeFile(t, dir, "IMG_1.JPG", []byte("a"), mtime)
	writeFile(t, dir, "IMG_2.jpg", []byte("b"), mtime)
	writeFile(t, dir, "2022-08-09T10-11-12R5555.png", []byte("c"), mtime)

	suffixes := []int{1234, 5678}
	opts := Options{
		Location: time.UTC,
		Suffix: func() int {
			s := suffixes[0]
			suffixes = suffixes[1:]
			return s
		},
	}

	outcomes, err := newTidier(dir, false, opts).ConvertNamesToDates(true)
	require.NoError(t, err)
	got := byPath(outcomes)

	assert.Equal(t, ActionUnchanged, got["2022-08-09T10-11-12R5555.png"].Action)
	assert.Equal(t, filepath.Join(dir, "2022-08-09T10-11-12R1234.jpg"), got["IMG_1.JPG"].Destination)
	assert.Equal(t, filepath.Join(dir, "2022-08-09T10-11-12R5678.jpg"), got["IMG_2.jpg"].Destination)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"2022-08-09T10-11-12R1234.jpg",
		"2022-08-09T10-11-12R5678.jpg",
		"2022-08-09T10-11-12R5555.png",
	}, names)
}

func TestConvertNamesToDates_WithoutSuffix(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2022, 8, 9, 10, 11, 12, 0, time.UTC)
	writeFile(t, dir, "a.jpg", []byte("a"), mtime)
	writeFile(t, dir, "b.jpg", []byte("b"), mtime)

	outcomes, err := newTidier(dir, false, Options{Location: time.UTC}).ConvertNamesToDates(false)
	require.NoError(t, err)
	got := byPath(outcomes)

	assert.Equal(t, filepath.Join(dir, "2022-08-09T10-11-12.jpg"), got["a.jpg"].Destination)
	assert.Equal(t, filepath.Join(dir, "2022-08-09T10-11-12_1.jpg"), got["b.jpg"].Destination)
	for _, o := range outcomes {
		assert.Equal(t, ActionRenamed, o.Action)
	}
}

func TestFindDuplicates(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("media"), 1000)
	writeFile(t, dir, "one.jpg", content, time.Time{})
	writeFile(t, dir, "two.jpg", content, time.Time{})
	writeFile(t, dir, "other.jpg", []byte("something else"), time.Time{})

	core, logs := observer.New(zapcore.InfoLevel)
	res, err := newTidier(dir, false, Options{Logger: zap.New(core)}).FindDuplicates()
	require.NoError(t, err)
	assert.Equal(t, 0, logs.FilterMessage("running in live mode").Len())

	assert.Equal(t, []string{"one.jpg", "two.jpg"}, res.Groups[int64(len(content))])
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, int64(len(content)), res.Duplicates[0].Size)
}

func TestMissingDirectory(t *testing.T) {
	outcomes, err := newTidier(filepath.Join(t.TempDir(), "missing"), false, Options{}).UpdateDatesFromMetadata()
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

// movie returns ftyp followed by a moov holding a version 0 mvhd.
func movie(created time.Time) []byte {
	var ts uint32
	if !created.IsZero() {
		ts = uint32(created.Unix() + isobmff.EpochOffset)
	}

	var b bytes.Buffer
	b.Write([]byte{0, 0, 0, 16, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 0, 0})

	mvhd := make([]byte, 8+100)
	binary.BigEndian.PutUint32(mvhd[0:4], uint32(len(mvhd)))
	copy(mvhd[4:8], "mvhd")
	binary.BigEndian.PutUint32(mvhd[12:16], ts)
	binary.BigEndian.PutUint32(mvhd[16:20], ts)

	moov := make([]byte, 8)
	binary.BigEndian.PutUint32(moov[0:4], uint32(8+len(mvhd)))
	copy(moov[4:8], "moov")

	b.Write(moov)
	b.Write(mvhd)
	return b.Bytes()
}
