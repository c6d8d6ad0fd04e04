package wal

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Segment file format.
const (
	FilePrefix      = "wal-"
	FileExtension   = ".log"
	MagicBytes      = "TALYWAL\x01"
	MagicBytesSize  = len(MagicBytes)
	ChecksumSize    = sha256.Size
	DefaultFilePerm = 0o600
	DefaultDirPerm  = 0o750
)

var errInvalidMagic = errors.New("wal: invalid magic bytes")

type segmentInfo struct {
	id   uint64
	path string
}

func segmentFilename(id uint64) string {
	return fmt.Sprintf("%s%08d%s", FilePrefix, id, FileExtension)
}

func parseSegmentFilename(name string) (uint64, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExtension) {
		return 0, false
	}
	var id uint64
	_, err := fmt.Sscanf(name, FilePrefix+"%d"+FileExtension, &id)
	return id, err == nil
}

// listSegments returns the segments in dir, oldest first. A missing
// directory has no segments.
func listSegments(dir string) ([]segmentInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: read dir: %w", err)
	}

	var segs []segmentInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseSegmentFilename(e.Name())
		if !ok {
			continue
		}
		segs = append(segs, segmentInfo{id: id, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].id < segs[j].id })
	return segs, nil
}

// inspectSegment validates the magic and reports whether the segment
// carries a valid checksum trailer. dataLen excludes the trailer.
func inspectSegment(f *os.File, size int64) (closed bool, dataLen int64, err error) {
	if size < int64(MagicBytesSize) {
		return false, size, nil
	}

	magic := make([]byte, MagicBytesSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(MagicBytesSize)), magic); err != nil {
		return false, 0, fmt.Errorf("wal: read magic: %w", err)
	}
	if string(magic) != MagicBytes {
		return false, 0, errInvalidMagic
	}

	if size < int64(MagicBytesSize+ChecksumSize) {
		return false, size, nil
	}

	trailer := make([]byte, ChecksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, size-ChecksumSize, ChecksumSize), trailer); err != nil {
		return false, 0, fmt.Errorf("wal: read checksum trailer: %w", err)
	}

	h := sha256.New()
	dataLen = size - ChecksumSize
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, dataLen)); err != nil {
		return false, 0, fmt.Errorf("wal: hash segment: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), trailer) {
		return false, size, nil
	}
	return true, dataLen, nil
}

// VerifySegment reports whether the segment at path is closed with a
// matching checksum.
func VerifySegment(path string) (closed bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return false, err
	}
	closed, _, err = inspectSegment(f, stat.Size())
	return closed, err
}
