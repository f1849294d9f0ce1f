package createdat

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// xmpScanLimit bounds how much of a file is searched for an XMP packet.
const xmpScanLimit = 4 << 20

var (
	xmpOpenTag  = []byte("<photoshop:DateCreated>")
	xmpCloseTag = []byte("</photoshop:DateCreated>")
)

var xmpLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

type xmpExtractor struct {
	location *time.Location
}

func (e xmpExtractor) CreatedAt(path string, r io.ReadSeeker) (time.Time, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, xmpScanLimit))
	if err != nil {
		return time.Time{}, false, err
	}

	start := bytes.Index(data, xmpOpenTag)
	if start == -1 {
		return time.Time{}, false, nil
	}
	start += len(xmpOpenTag)
	end := bytes.Index(data[start:], xmpCloseTag)
	if end == -1 {
		return time.Time{}, false, nil
	}

	tm, err := parseXMPDate(string(bytes.TrimSpace(data[start:start+end])), e.location)
	if err != nil {
		return time.Time{}, false, err
	}
	return tm, true, nil
}

func parseXMPDate(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range xmpLayouts {
		if tm, err := time.ParseInLocation(layout, s, loc); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised XMP date %q", s)
}
