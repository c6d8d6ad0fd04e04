package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/yndnr/tally-go/pkg/crypto/adaptive"
)

// Reader iterates entries across all segments in order.
//
// A frame that fails its length or CRC check ends its segment: the rest of
// that segment is skipped and reading continues with the next one. Frames
// that pass the CRC but cannot be decrypted are reported as errors.
type Reader struct {
	cipher   adaptive.Cipher
	segments []segmentInfo
	segIndex int
	startAt  int64

	file    *os.File
	reader  *bufio.Reader
	skipped int
}

// NewReader creates a reader over the segments present in dir.
func NewReader(dir string, cipher adaptive.Cipher) (*Reader, error) {
	segs, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{cipher: cipher, segments: segs}, nil
}

// Seek positions the reader at a composite offset from
// Writer.CurrentOffset.
func (r *Reader) Seek(offset uint64) {
	segID := offset >> 32
	r.closeCurrent()

	r.segIndex = 0
	for r.segIndex < len(r.segments) && r.segments[r.segIndex].id < segID {
		r.segIndex++
	}
	r.startAt = 0
	if r.segIndex < len(r.segments) && r.segments[r.segIndex].id == segID {
		r.startAt = int64(uint32(offset))
	}
}

// Read returns the next entry, or io.EOF after the last segment.
func (r *Reader) Read() (*Entry, error) {
	for {
		if r.reader == nil {
			if err := r.openNext(); err != nil {
				return nil, err
			}
			if r.reader == nil {
				continue
			}
		}

		e, err := r.readFrame()
		switch {
		case err == nil:
			return e, nil
		case errors.Is(err, io.EOF):
			r.closeCurrent()
		case errors.Is(err, io.ErrUnexpectedEOF),
			errors.Is(err, ErrCorruptedEntry),
			errors.Is(err, ErrChecksumMismatch),
			errors.Is(err, ErrInvalidEntryType):
			r.skipped++
			r.closeCurrent()
		default:
			return nil, err
		}
	}
}

// ReadAll reads every remaining entry.
func (r *Reader) ReadAll() ([]*Entry, error) {
	var out []*Entry
	for {
		e, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}

// Skipped reports how many segments ended early on a damaged frame.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Close releases the open segment.
func (r *Reader) Close() error {
	return r.closeCurrent()
}

// openNext opens the next segment. It leaves r.reader nil when the
// segment has to be skipped.
func (r *Reader) openNext() error {
	r.closeCurrent()
	if r.segIndex >= len(r.segments) {
		return io.EOF
	}

	seg := r.segments[r.segIndex]
	r.segIndex++
	startAt := r.startAt
	r.startAt = 0

	f, err := os.Open(seg.path)
	if err != nil {
		return fmt.Errorf("wal: open segment: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("wal: stat segment: %w", err)
	}

	_, dataLen, err := inspectSegment(f, stat.Size())
	if errors.Is(err, errInvalidMagic) || dataLen < int64(MagicBytesSize) {
		f.Close()
		r.skipped++
		return nil
	}
	if err != nil {
		f.Close()
		return err
	}

	if startAt < int64(MagicBytesSize) {
		startAt = int64(MagicBytesSize)
	}
	if startAt > dataLen {
		startAt = dataLen
	}

	r.file = f
	r.reader = bufio.NewReader(io.NewSectionReader(f, startAt, dataLen-startAt))
	return nil
}

func (r *Reader) closeCurrent() error {
	r.reader = nil
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Reader) readFrame() (*Entry, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.reader, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 5 || length > maxFrameSize {
		return nil, ErrCorruptedEntry
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r.reader, frame); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return decodeFrame(frame, r.cipher)
}
