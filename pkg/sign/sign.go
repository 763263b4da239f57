// Package sign computes the hex SHA-1 fingerprints that gate remote
// acceptance throughout demobit: object signatures on ActionObjects,
// remote signatures on ActionObjects and Commits.
package sign

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint returns the hex SHA-1 digest of v's canonical JSON encoding.
// Canonical here means exactly what encoding/json produces for a struct
// with stable field order — callers are responsible for clearing whatever
// signature field v carries before calling Fingerprint, since the digest
// must not include itself.
func Fingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sign: encode: %w", err)
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Verify reports whether want equals the fingerprint of v.
func Verify(v any, want string) (bool, error) {
	got, err := Fingerprint(v)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
