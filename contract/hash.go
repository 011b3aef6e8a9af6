package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// IntegrityHash computes the deterministic fingerprint of a contract's
// defining fields. It gives each distinct (parties, terms) tuple a stable
// 64-character hex identity used for duplicate detection; it is not a
// cryptographic commitment.
func IntegrityHash(brandID, creatorID, product string, rate float64, timeline string) string {
	input := strings.Join([]string{
		brandID,
		creatorID,
		product,
		FormatRate(rate),
		timeline,
	}, "-")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// FormatRate renders a rate with the two decimal places the contracts table
// stores, so hashing and persistence agree on the representation.
func FormatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 2, 64)
}
