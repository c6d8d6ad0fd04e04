package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/pkg/crypto/adaptive"
)

var magicBytes = []byte("TALYSNAP")

const (
	filePrefix    = "snapshot-"
	fileExtension = ".snap"
	checksumSize  = sha256.Size
	formatVersion = 1

	// maxSectionSize bounds the header and data lengths read from disk.
	maxSectionSize = 1 << 30

	DefaultRetentionCount = 3
)

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrNoSnapshots      = errors.New("snapshot: no snapshots available")
	ErrEncrypted        = errors.New("snapshot: snapshot is encrypted and no key is configured")
	ErrDecrypt          = errors.New("snapshot: cannot decrypt snapshot")
)

type header struct {
	Version      int    `json:"version"`
	CreatedAt    int64  `json:"created_at"`
	AccountCount int    `json:"account_count"`
	CounterCount int    `json:"counter_count"`
	WALOffset    uint64 `json:"wal_offset"`
	Encrypted    bool   `json:"encrypted"`
}

// Config configures the snapshot manager.
type Config struct {
	Dir string

	// RetentionCount is the number of snapshots Prune keeps.
	RetentionCount int

	Cipher adaptive.Cipher
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, RetentionCount: DefaultRetentionCount}
}

// Manager creates, loads and prunes snapshots in one directory.
type Manager struct {
	cfg Config
	now func() time.Time
}

// NewManager creates the directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// Info describes a snapshot file.
type Info struct {
	ID string `json:"id"`

	// WALOffset is the composite WAL offset covered by the snapshot.
	WALOffset uint64 `json:"wal_offset"`

	AccountCount int    `json:"account_count"`
	CounterCount int    `json:"counter_count"`
	CreatedAt    int64  `json:"created_at"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
	Checksum     string `json:"checksum"`
}

// Create writes a snapshot of accounts covering the log up to walOffset.
func (m *Manager) Create(accounts []*domain.Account, walOffset uint64) (*Info, error) {
	now := m.now()
	id := m.nextID(now)

	counters := 0
	for _, a := range accounts {
		counters += len(a.Counters)
	}
	hdr := header{
		Version:      formatVersion,
		CreatedAt:    now.UnixMilli(),
		AccountCount: len(accounts),
		CounterCount: counters,
		WALOffset:    walOffset,
		Encrypted:    m.cfg.Cipher != nil,
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}

	data, err := json.Marshal(accounts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal accounts: %w", err)
	}
	if m.cfg.Cipher != nil {
		if data, err = m.cfg.Cipher.Encrypt(data, hdrJSON); err != nil {
			return nil, fmt.Errorf("snapshot: encrypt: %w", err)
		}
	}

	tmpPath := filepath.Join(m.cfg.Dir, id+".tmp")
	sum, size, err := writeFile(tmpPath, hdrJSON, data)
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	finalPath := filepath.Join(m.cfg.Dir, id+fileExtension)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	return &Info{
		ID:           id,
		WALOffset:    walOffset,
		AccountCount: hdr.AccountCount,
		CounterCount: hdr.CounterCount,
		CreatedAt:    hdr.CreatedAt,
		Size:         size,
		Path:         finalPath,
		Checksum:     hex.EncodeToString(sum),
	}, nil
}

func writeFile(path string, hdrJSON, data []byte) (sum []byte, size int64, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("snapshot: close: %w", cerr)
		}
	}()

	h := sha256.New()
	bw := bufio.NewWriter(io.MultiWriter(f, h))

	var lenBuf [4]byte
	bw.Write(magicBytes)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrJSON)))
	bw.Write(lenBuf[:])
	bw.Write(hdrJSON)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	bw.Write(lenBuf[:])
	bw.Write(data)
	if err := bw.Flush(); err != nil {
		return nil, 0, fmt.Errorf("snapshot: write: %w", err)
	}

	sum = h.Sum(nil)
	if _, err := f.Write(sum); err != nil {
		return nil, 0, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, 0, fmt.Errorf("snapshot: sync: %w", err)
	}

	size = int64(len(magicBytes)+8+len(hdrJSON)+len(data)) + checksumSize
	return sum, size, nil
}

// Load returns the accounts of the newest valid snapshot. Snapshots that
// fail their checksum are skipped; decryption failures are returned.
func (m *Manager) Load() ([]*domain.Account, *Info, error) {
	infos, err := m.List()
	if err != nil {
		return nil, nil, err
	}

	for i := len(infos) - 1; i >= 0; i-- {
		accounts, info, err := m.loadFile(infos[i].Path)
		if err == nil {
			return accounts, info, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, ErrNoSnapshots
}

func (m *Manager) loadFile(path string) ([]*domain.Account, *Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) < len(magicBytes)+8+checksumSize {
		return nil, nil, ErrChecksumMismatch
	}

	body, trailer := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], trailer) {
		return nil, nil, ErrChecksumMismatch
	}
	if !bytes.HasPrefix(body, magicBytes) {
		return nil, nil, ErrInvalidMagic
	}

	r := bytes.NewReader(body[len(magicBytes):])
	hdrJSON, err := readSection(r)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	data, err := readSection(r)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read data: %w", err)
	}

	var hdr header
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}
	if hdr.Version != formatVersion {
		return nil, nil, fmt.Errorf("snapshot: unsupported version %d", hdr.Version)
	}

	if hdr.Encrypted {
		if m.cfg.Cipher == nil {
			return nil, nil, ErrEncrypted
		}
		if data, err = m.cfg.Cipher.Decrypt(data, hdrJSON); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
	}

	var accounts []*domain.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal accounts: %w", err)
	}

	return accounts, &Info{
		ID:           strings.TrimSuffix(filepath.Base(path), fileExtension),
		WALOffset:    hdr.WALOffset,
		AccountCount: hdr.AccountCount,
		CounterCount: hdr.CounterCount,
		CreatedAt:    hdr.CreatedAt,
		Size:         int64(len(raw)),
		Path:         path,
		Checksum:     hex.EncodeToString(trailer),
	}, nil
}

func readSection(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxSectionSize || int64(n) > int64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	_, err := io.ReadFull(r, out)
	return out, err
}

// List returns snapshot files oldest first, with file metadata only.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var infos []*Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			ID:   strings.TrimSuffix(name, fileExtension),
			Path: filepath.Join(m.cfg.Dir, name),
			Size: fi.Size(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Prune keeps the newest RetentionCount snapshots and removes the rest.
// Leftover temporary files are removed too.
func (m *Manager) Prune() (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	if excess := len(infos) - m.cfg.RetentionCount; excess > 0 {
		for _, info := range infos[:excess] {
			if err := os.Remove(info.Path); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}

	tmps, _ := filepath.Glob(filepath.Join(m.cfg.Dir, filePrefix+"*.tmp"))
	for _, p := range tmps {
		_ = os.Remove(p)
	}
	return removed, errors.Join(errs...)
}

// nextID returns snapshot-<utc timestamp>-<seq>, unique within the second.
func (m *Manager) nextID(t time.Time) string {
	ts := t.UTC().Format("20060102150405")
	seq := 1
	entries, _ := os.ReadDir(m.cfg.Dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), filePrefix+ts+"-") {
			seq++
		}
	}
	return fmt.Sprintf("%s%s-%04d", filePrefix, ts, seq)
}
