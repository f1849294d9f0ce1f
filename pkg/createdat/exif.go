package createdat

import (
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

type exifExtractor struct {
	location *time.Location
}

func (e exifExtractor) CreatedAt(path string, r io.ReadSeeker) (time.Time, bool, error) {
	x, err := exif.Decode(r)
	if err != nil {
		// No EXIF segment, or one too damaged to read: not an error for the caller.
		return time.Time{}, false, nil
	}

	// Prefer DateTimeOriginal, then DateTimeDigitized, then DateTime.
	for _, tag := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		if tm, ok := e.timeFromTag(x, tag); ok {
			return tm, true, nil
		}
	}

	return time.Time{}, false, nil
}

func (e exifExtractor) timeFromTag(x *exif.Exif, tag exif.FieldName) (time.Time, bool) {
	f, err := x.Get(tag)
	if err != nil {
		return time.Time{}, false
	}

	s, err := f.StringVal()
	if err != nil {
		return time.Time{}, false
	}

	// EXIF DateTime format: "2006:01:02 15:04:05", without timezone.
	tm, err := time.ParseInLocation("2006:01:02 15:04:05", s, e.location)
	if err != nil {
		return time.Time{}, false
	}

	return tm, true
}
