// Package adaptive provides the authenticated encryption used for data at
// rest: WAL payloads and snapshot bodies.
//
// Two AEAD constructions are supported:
//
//   - AES-GCM, preferred where the CPU accelerates AES
//   - ChaCha20-Poly1305 (golang.org/x/crypto) everywhere else
//
// Each consumer derives its own key from the configured master key with
// HKDF-SHA256 and a purpose label, so the WAL and snapshots never share a
// key even when the operator configures only one.
//
// Usage:
//
//	c, err := adaptive.ForPurpose(masterKey, adaptive.PurposeWAL, "")
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
