package isobmff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

const (
	headerSize         = 8
	extendedHeaderSize = 16

	// EpochOffset is the number of seconds between the container epoch
	// (1904-01-01) and the Unix epoch.
	EpochOffset = 2082844800

	// MinYear is the first year accepted as a real timestamp. Earlier
	// decodes are unset or garbage fields.
	MinYear = 1990
)

var (
	// ErrTruncatedFile is returned when a read comes up short, including at EOF.
	ErrTruncatedFile = errors.New("truncated file")
	// ErrCompressedMoov is returned when the movie box holds a compressed movie header.
	ErrCompressedMoov = errors.New("moov box is compressed")
	// ErrUnexpectedBox is returned when the first child of moov is not mvhd.
	ErrUnexpectedBox = errors.New(`expected "mvhd" as first child of "moov"`)
	// ErrMalformedBoxSize is returned for box sizes that would not move the cursor forward.
	ErrMalformedBoxSize = errors.New("malformed box size")
)

// BoxError describes a parse failure at a position in the container.
type BoxError struct {
	Offset int64
	// Type is the four character box tag, empty when the header itself could not be read.
	Type string
	Err  error
}

func (e *BoxError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("box %q at offset %d: %v", e.Type, e.Offset, e.Err)
}

func (e *BoxError) Unwrap() error {
	return e.Err
}

// Timestamps holds the movie header times. A zero value means the field was
// not set (decoded to a year before MinYear).
type Timestamps struct {
	Creation     time.Time
	Modification time.Time
}

// ReadFile opens path, reads its timestamps and closes it again.
func ReadFile(path string) (Timestamps, error) {
	f, err := os.Open(path)
	if err != nil {
		return Timestamps{}, err
	}
	defer f.Close()

	return ReadTimestamps(f)
}

// ReadTimestamps scans the sibling boxes from the current position of r until
// it finds moov, then decodes the creation and modification time of the mvhd
// box that must be its first child.
func ReadTimestamps(r io.ReadSeeker) (Timestamps, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return Timestamps{}, fmt.Errorf("seek: %w", err)
	}
	br := &boxReader{r: r, pos: pos}

	if _, err := br.findMoov(); err != nil {
		return Timestamps{}, err
	}

	child, err := br.readHeader()
	if err != nil {
		return Timestamps{}, err
	}
	switch child.typ {
	case "mvhd":
	case "cmov":
		return Timestamps{}, &BoxError{Offset: child.offset, Type: child.typ, Err: ErrCompressedMoov}
	default:
		return Timestamps{}, &BoxError{Offset: child.offset, Type: child.typ, Err: ErrUnexpectedBox}
	}

	return br.readMovieHeader(child)
}

type boxHeader struct {
	offset int64
	typ    string
	// size is the total box size including the header. It is the 64-bit
	// extended size when the 32-bit field is 1.
	size      uint64
	headerLen int64
}

type boxReader struct {
	r   io.ReadSeeker
	pos int64
}

func (br *boxReader) findMoov() (boxHeader, error) {
	for {
		h, err := br.readHeader()
		if err != nil {
			return boxHeader{}, err
		}
		if h.typ == "moov" {
			return h, nil
		}
		if err := br.skip(h); err != nil {
			return boxHeader{}, err
		}
	}
}

func (br *boxReader) readHeader() (boxHeader, error) {
	h := boxHeader{offset: br.pos, headerLen: headerSize}

	var buf [headerSize]byte
	if err := br.readFull(buf[:], ""); err != nil {
		return boxHeader{}, err
	}
	h.typ = string(buf[4:8])
	h.size = uint64(binary.BigEndian.Uint32(buf[0:4]))

	if h.size == 1 {
		if err := br.readFull(buf[:], h.typ); err != nil {
			return boxHeader{}, err
		}
		h.size = binary.BigEndian.Uint64(buf[:])
		h.headerLen = extendedHeaderSize
	}

	return h, nil
}

// skip moves the cursor to the header of the next sibling of h.
func (br *boxReader) skip(h boxHeader) error {
	if h.size < uint64(h.headerLen) || h.size > math.MaxInt64 {
		return &BoxError{Offset: h.offset, Type: h.typ, Err: fmt.Errorf("%w: %d", ErrMalformedBoxSize, h.size)}
	}

	remaining := int64(h.size) - h.headerLen
	if remaining == 0 {
		return nil
	}
	if _, err := br.r.Seek(remaining, io.SeekCurrent); err != nil {
		return &BoxError{Offset: h.offset, Type: h.typ, Err: fmt.Errorf("seek: %w", err)}
	}
	br.pos += remaining
	return nil
}

func (br *boxReader) readMovieHeader(h boxHeader) (Timestamps, error) {
	// version (1 byte) + flags (3 bytes), then creation and modification time.
	var buf [12]byte
	if err := br.readFull(buf[:], h.typ); err != nil {
		return Timestamps{}, err
	}

	return Timestamps{
		Creation:     decodeTime(binary.BigEndian.Uint32(buf[4:8])),
		Modification: decodeTime(binary.BigEndian.Uint32(buf[8:12])),
	}, nil
}

func (br *boxReader) readFull(p []byte, typ string) error {
	n, err := io.ReadFull(br.r, p)
	offset := br.pos
	br.pos += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncatedFile
		}
		return &BoxError{Offset: offset, Type: typ, Err: err}
	}
	return nil
}

func decodeTime(v uint32) time.Time {
	t := time.Unix(int64(v)-EpochOffset, 0).UTC()
	if t.Year() < MinYear {
		return time.Time{}
	}
	return t
}
