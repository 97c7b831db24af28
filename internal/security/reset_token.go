package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewResetToken generates a high-entropy single-use token for password
// resets. The plaintext goes out-of-band to the user; only the digest is
// ever persisted.
func NewResetToken() (plain string, digest string, err error) {
	buf := make([]byte, 32)

	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	plain = hex.EncodeToString(buf)
	return plain, HashResetToken(plain), nil
}

// HashResetToken is the one-way digest used both when storing a freshly
// minted token and when looking up the token a client presents.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
