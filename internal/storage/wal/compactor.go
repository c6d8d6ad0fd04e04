package wal

import (
	"errors"
	"fmt"
	"os"
)

// DefaultRetainCount is the number of segments kept regardless of
// snapshot coverage.
const DefaultRetainCount = 2

// Compactor deletes segments fully covered by a snapshot.
type Compactor struct {
	dir         string
	retainCount int
}

// CompactorOption configures the Compactor.
type CompactorOption func(*Compactor)

// WithRetainCount sets the number of segments always kept.
func WithRetainCount(n int) CompactorOption {
	return func(c *Compactor) {
		if n > 0 {
			c.retainCount = n
		}
	}
}

// NewCompactor creates a compactor for dir.
func NewCompactor(dir string, opts ...CompactorOption) *Compactor {
	c := &Compactor{dir: dir, retainCount: DefaultRetainCount}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compact removes segments older than the segment of snapshotOffset,
// keeping at least retainCount segments in total. It returns the number
// of segments removed.
func (c *Compactor) Compact(snapshotOffset uint64) (int, error) {
	segs, err := listSegments(c.dir)
	if err != nil {
		return 0, err
	}

	covered := 0
	for _, s := range segs {
		if s.id < snapshotOffset>>32 {
			covered++
		}
	}
	if keep := len(segs) - covered; keep < c.retainCount {
		covered -= c.retainCount - keep
	}
	if covered <= 0 {
		return 0, nil
	}

	var errs []error
	removed := 0
	for _, s := range segs[:covered] {
		if err := os.Remove(s.path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("wal: compact: %w", errors.Join(errs...))
	}
	return removed, nil
}

// TotalSize returns the bytes used by all segments.
func (c *Compactor) TotalSize() (int64, error) {
	segs, err := listSegments(c.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range segs {
		if info, err := os.Stat(s.path); err == nil {
			total += info.Size()
		}
	}
	return total, nil
}

// FileCount returns the number of segments.
func (c *Compactor) FileCount() (int, error) {
	segs, err := listSegments(c.dir)
	return len(segs), err
}
