// Package filetype names the media extensions the tool handles and guesses
// a file's real type from its header bytes.
package filetype

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Extension is a lowercase file extension without the leading dot.
type Extension string

const (
	JPG  Extension = "jpg"
	NEF  Extension = "nef"
	JPEG Extension = "jpeg"
	PNG  Extension = "png"
	HEIC Extension = "heic"
	MOV  Extension = "mov"
	MP4  Extension = "mp4"
	TIF  Extension = "tif"
	TIFF Extension = "tiff"
	GIF  Extension = "gif"
)

var known = map[Extension]bool{
	JPG: true, NEF: true, JPEG: true, PNG: true, HEIC: true,
	MOV: true, MP4: true, TIF: true, TIFF: true, GIF: true,
}

// ErrUnknownExtension is returned for extensions outside the known set.
var ErrUnknownExtension = errors.New("unknown file extension")

// ParseExtension validates s (with or without dot, any case).
func ParseExtension(s string) (Extension, error) {
	ext := Extension(strings.ToLower(strings.TrimPrefix(s, ".")))
	if !known[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnknownExtension, s)
	}
	return ext, nil
}

// IsContainer reports whether files with this extension are ISO base media containers.
func (e Extension) IsContainer() bool {
	return e == MOV || e == MP4
}

// Of returns the lowercased extension of path without the dot.
func Of(path string) Extension {
	return Extension(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")))
}

// StripExtension returns path without its final extension.
func StripExtension(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// Guess returns the extension matching the file's header bytes, falling back
// to the extension in the name when the content is not recognised.
func Guess(path string) (Extension, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	if ext := mtype.Extension(); ext != "" {
		return Extension(strings.TrimPrefix(ext, ".")), nil
	}
	return Of(path), nil
}
