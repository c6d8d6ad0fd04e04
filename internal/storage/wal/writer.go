package wal

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yndnr/tally-go/pkg/crypto/adaptive"
)

// Default configuration values.
const (
	DefaultBatchCount          = 100
	DefaultBatchBytes    int64 = 1 << 20 // 1MB
	DefaultSyncInterval        = 100 * time.Millisecond
	DefaultMaxFileSize   int64 = 64 << 20 // 64MB
	DefaultMaxEntryCount       = 500000
)

// SyncMode defines how the WAL reaches disk.
type SyncMode string

const (
	// SyncModeSync writes and fsyncs every append before it returns.
	SyncModeSync SyncMode = "sync"
	// SyncModeBatch buffers appends and flushes on size or interval.
	SyncModeBatch SyncMode = "batch"
)

// Config configures the WAL writer.
type Config struct {
	Dir string

	SyncMode     SyncMode
	SyncInterval time.Duration

	BatchCount int
	BatchBytes int64

	MaxFileSize   int64
	MaxEntryCount int

	Cipher adaptive.Cipher
}

// DefaultConfig returns the default WAL configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:           dir,
		SyncMode:      SyncModeBatch,
		SyncInterval:  DefaultSyncInterval,
		BatchCount:    DefaultBatchCount,
		BatchBytes:    DefaultBatchBytes,
		MaxFileSize:   DefaultMaxFileSize,
		MaxEntryCount: DefaultMaxEntryCount,
	}
}

func (c *Config) applyDefaults() {
	if c.SyncMode == "" {
		c.SyncMode = SyncModeBatch
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.BatchCount <= 0 {
		c.BatchCount = DefaultBatchCount
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = DefaultBatchBytes
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.MaxEntryCount <= 0 {
		c.MaxEntryCount = DefaultMaxEntryCount
	}
}

// Writer appends entries to segment files. It is safe for concurrent use.
type Writer struct {
	cfg Config

	mu             sync.Mutex
	segmentID      uint64
	file           *os.File
	fileSize       int64 // bytes written, excluding the trailer
	segmentEntries int
	hash           hash.Hash
	buffer         bytes.Buffer
	bufferEntries  int
	closed         bool
	lastErr        error

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWriter opens a writer on a fresh segment after the newest one in
// cfg.Dir.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("wal: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}
	cfg.applyDefaults()

	segs, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	var latest uint64
	if len(segs) > 0 {
		latest = segs[len(segs)-1].id
	}

	w := &Writer{
		cfg:       cfg,
		segmentID: latest + 1,
		stopCh:    make(chan struct{}),
	}
	if err := w.openSegmentLocked(); err != nil {
		return nil, err
	}

	if cfg.SyncMode == SyncModeBatch {
		w.wg.Add(1)
		go w.syncLoop()
	}
	return w, nil
}

// CurrentOffset returns (segmentID<<32 | bytes written to the segment).
// Buffered entries are not included; call Flush first to cover them.
func (w *Writer) CurrentOffset() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return (w.segmentID << 32) | uint64(uint32(w.fileSize))
}

// Append logs one entry. In sync mode it is on disk when Append returns.
func (w *Writer) Append(entry *Entry) error {
	frame, err := encodeFrame(entry, w.cfg.Cipher)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.lastErr != nil {
		return w.lastErr
	}

	w.buffer.Write(frame)
	w.bufferEntries++

	if w.cfg.SyncMode == SyncModeSync ||
		w.bufferEntries >= w.cfg.BatchCount ||
		int64(w.buffer.Len()) >= w.cfg.BatchBytes {
		return w.flushLocked()
	}
	return nil
}

// Flush writes buffered entries and fsyncs the segment.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if w.lastErr != nil {
		return w.lastErr
	}
	if w.bufferEntries == 0 {
		return nil
	}

	if w.fileSize+int64(w.buffer.Len()) > w.cfg.MaxFileSize ||
		w.segmentEntries+w.bufferEntries > w.cfg.MaxEntryCount {
		if err := w.rotateLocked(); err != nil {
			w.lastErr = err
			return err
		}
	}

	if err := w.writeLocked(w.buffer.Bytes()); err != nil {
		w.lastErr = fmt.Errorf("wal: write batch: %w", err)
		return w.lastErr
	}
	if err := w.file.Sync(); err != nil {
		w.lastErr = fmt.Errorf("wal: sync: %w", err)
		return w.lastErr
	}

	w.segmentEntries += w.bufferEntries
	w.buffer.Reset()
	w.bufferEntries = 0
	return nil
}

func (w *Writer) syncLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Writer) rotateLocked() error {
	if err := w.finalizeLocked(); err != nil {
		return err
	}
	w.segmentID++
	return w.openSegmentLocked()
}

func (w *Writer) openSegmentLocked() error {
	path := filepath.Join(w.cfg.Dir, segmentFilename(w.segmentID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("wal: open segment: %w", err)
	}

	w.file = f
	w.fileSize = 0
	w.segmentEntries = 0
	w.hash = sha256.New()

	if err := w.writeLocked([]byte(MagicBytes)); err != nil {
		f.Close()
		w.file = nil
		return fmt.Errorf("wal: write magic: %w", err)
	}
	return nil
}

func (w *Writer) writeLocked(p []byte) error {
	if w.file == nil {
		return fmt.Errorf("wal: segment not open")
	}
	n, err := w.file.Write(p)
	if n > 0 {
		w.hash.Write(p[:n])
		w.fileSize += int64(n)
	}
	return err
}

// finalizeLocked appends the checksum trailer and closes the segment.
func (w *Writer) finalizeLocked() error {
	if w.file == nil {
		return nil
	}
	if _, err := w.file.Write(w.hash.Sum(nil)); err != nil {
		return fmt.Errorf("wal: write checksum: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close segment: %w", err)
	}
	w.file = nil
	return nil
}

// Close flushes pending entries and finalizes the current segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	flushErr := w.flushLocked()
	if err := w.finalizeLocked(); err != nil {
		return err
	}
	return flushErr
}
