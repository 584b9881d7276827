// ABOUTME: Derives the human-facing 6-digit pairing code from the registry secret
// ABOUTME: Deterministic and one-way; the code rotates only when the secret does

package paircode

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Digits is the fixed width of a pairing code.
const Digits = 6

// Derive maps the registry's signing secret to a 6-digit pairing code.
// The same secret always yields the same code. The code gates the pairing
// flow but is never itself a stored credential.
func Derive(secret []byte) string {
	sum := sha256.Sum256(secret)
	n := binary.BigEndian.Uint32(sum[:4]) % 1_000_000
	return fmt.Sprintf("%0*d", Digits, n)
}
