// Package codec implements the wire-level encodings Phoenix uses outside
// the encrypted envelope: base64, the pairing URI, and canonical JSON
// field ordering for QR compatibility.
package codec

import (
	"encoding/base64"
	"errors"
)

// ErrInvalidPairingURI is returned by ParseURI for any malformed or
// unparseable pairing URI.
var ErrInvalidPairingURI = errors.New("phoenix: invalid pairing uri")

// Base64Encode is the strict (padded, non-URL-safe) encoding spec.md §4.1
// requires for all base64 fields on the wire.
func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Base64Decode requires padding and the standard alphabet; it never
// accepts the URL-safe alias.
func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
