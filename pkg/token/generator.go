package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	// EntropyBytes is the number of random bytes drawn per token.
	EntropyBytes = 32

	// Length is the length of an encoded token.
	Length = sha256.Size * 2
)

// ErrRandomSourceUnavailable is returned when the entropy source fails.
// Callers must treat it as fatal for the request.
var ErrRandomSourceUnavailable = errors.New("token: random source unavailable")

// Generator mints tokens from an entropy source.
//
// The zero value reads from crypto/rand.
type Generator struct {
	// Reader overrides the entropy source. Nil means crypto/rand.Reader.
	Reader io.Reader
}

// NewToken returns a fresh token.
func (g Generator) NewToken() (string, error) {
	src := g.Reader
	if src == nil {
		src = rand.Reader
	}

	buf := make([]byte, EntropyBytes)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomSourceUnavailable, err)
	}

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// NewToken mints a token from crypto/rand.
func NewToken() (string, error) {
	return Generator{}.NewToken()
}
