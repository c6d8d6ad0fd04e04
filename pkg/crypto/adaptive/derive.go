package adaptive

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes. Each yields an independent subkey of the master key.
const (
	PurposeWAL      = "tally/wal/v1"
	PurposeSnapshot = "tally/snapshot/v1"
)

// MinMasterKeyLength is the shortest accepted master key.
const MinMasterKeyLength = 16

// ErrKeyTooShort is returned for master keys under MinMasterKeyLength.
var ErrKeyTooShort = errors.New("adaptive: master key too short (minimum 16 bytes)")

// DeriveKey derives a 32-byte subkey for purpose with HKDF-SHA256.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) < MinMasterKeyLength {
		return nil, ErrKeyTooShort
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("adaptive: derive %s key: %w", purpose, err)
	}
	return key, nil
}

// ForPurpose derives the purpose subkey and builds a cipher of the named
// algorithm. An empty master key disables encryption: the result is nil.
func ForPurpose(master []byte, purpose, algorithm string) (Cipher, error) {
	if len(master) == 0 {
		return nil, nil
	}

	typ, err := ParseCipherType(algorithm)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(master, purpose)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	return NewWithType(key, typ)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
