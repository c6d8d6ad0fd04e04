package wal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/pkg/crypto/adaptive"
)

// maxFrameSize rejects length prefixes that cannot be a real frame.
const maxFrameSize = 16 << 20

// frameHeaderSize is length (4) + crc (4).
const frameHeaderSize = 8

type wireBody struct {
	Timestamp int64           `json:"ts"`
	Token     string          `json:"tok"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
	Counter   *domain.Counter `json:"counter,omitempty"`
	CounterID string          `json:"cid,omitempty"`
	Date      *domain.Date    `json:"date,omitempty"`
}

func encodeFrame(e *Entry, cipher adaptive.Cipher) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("wal: entry is nil")
	}
	if !e.Op.valid() {
		return nil, ErrInvalidEntryType
	}

	b := wireBody{Timestamp: e.Timestamp, Token: e.Token}
	switch e.Op {
	case OpCreateAccount:
		t := e.CreatedAt
		b.CreatedAt = &t
	case OpCreateCounter:
		if e.Counter == nil {
			return nil, fmt.Errorf("wal: %s without counter", e.Op)
		}
		b.Counter = e.Counter
	case OpIncrement:
		d := e.Date
		b.CounterID = e.CounterID
		b.Date = &d
	}

	body, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("wal: marshal body: %w", err)
	}

	typeByte := byte(e.Op)
	if cipher != nil {
		typeByte |= FlagEncrypted
		body, err = cipher.Encrypt(body, []byte{typeByte})
		if err != nil {
			return nil, fmt.Errorf("wal: encrypt body: %w", err)
		}
	}

	length := 4 + 1 + len(body)
	out := make([]byte, 4+length)
	binary.BigEndian.PutUint32(out[0:4], uint32(length))
	out[8] = typeByte
	copy(out[9:], body)
	binary.BigEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(out[8:]))
	return out, nil
}

// decodeFrame parses [crc32:4][type:1][body].
func decodeFrame(frame []byte, cipher adaptive.Cipher) (*Entry, error) {
	if len(frame) < 5 {
		return nil, ErrCorruptedEntry
	}
	if binary.BigEndian.Uint32(frame[:4]) != crc32.ChecksumIEEE(frame[4:]) {
		return nil, ErrChecksumMismatch
	}

	typeByte := frame[4]
	body := frame[5:]
	op := OpType(typeByte &^ FlagEncrypted)
	if !op.valid() {
		return nil, ErrInvalidEntryType
	}

	if typeByte&FlagEncrypted != 0 {
		if cipher == nil {
			return nil, fmt.Errorf("%w: entry is encrypted and no key is configured", ErrDecrypt)
		}
		plain, err := cipher.Decrypt(body, []byte{typeByte})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
		body = plain
	}

	var b wireBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("wal: unmarshal body: %w", err)
	}

	e := &Entry{Op: op, Timestamp: b.Timestamp, Token: b.Token}
	switch op {
	case OpCreateAccount:
		if b.CreatedAt != nil {
			e.CreatedAt = *b.CreatedAt
		}
	case OpCreateCounter:
		if b.Counter == nil {
			return nil, ErrCorruptedEntry
		}
		e.Counter = b.Counter
	case OpIncrement:
		if b.Date == nil || b.CounterID == "" {
			return nil, ErrCorruptedEntry
		}
		e.CounterID = b.CounterID
		e.Date = *b.Date
	}
	return e, nil
}
