// Package payload implements the Payload Codec (C3): a thin JSON
// wrapper carried as a string inside the authenticated SignRequest
// envelope. It additionally preserves raw byte payloads — used by
// chains that sign bytes directly, e.g. Solana transactions — through
// the JSON transport by tagging them, the way the teacher's
// pkg/agent/hpke and crypto/keys packages tag encoded key material.
package payload

import (
	"encoding/json"

	"github.com/phoenix-x-project/phoenix/codec"
)

// byteArrayTag is the JSON object key Encode uses to mark a []byte
// field so Decode can round-trip it unambiguously through a string
// transport. Mirrors the bridge clients' "__uint8array" convention.
const byteArrayTag = "__uint8array"

// taggedBytes is the wire shape of a tagged raw byte payload.
type taggedBytes struct {
	Tag string `json:"__uint8array"`
}

// EncodeBytes wraps raw bytes as a tagged JSON value so they survive a
// round trip through Decode as []byte rather than a generic string.
func EncodeBytes(b []byte) map[string]string {
	return map[string]string{byteArrayTag: codec.Base64Encode(b)}
}

// Encode serializes v (typically a map or struct describing a chain
// operation) to the JSON string carried in SignRequest.Payload /
// approveRequest's decoded payload.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a payload string into a generic value tree. Callers
// are responsible for interpreting the chain-specific shape; Decode
// only resolves tagged byte arrays into []byte so chain signers never
// have to re-derive them from base64 themselves.
func Decode(s string) (any, error) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	return resolveTags(raw), nil
}

// DecodeInto parses a payload string directly into out, the way a
// chain-specific signer does when it knows the expected shape (e.g.
// {"transactions":[...]} for sign_all_transactions).
func DecodeInto(s string, out any) error {
	return json.Unmarshal([]byte(s), out)
}

// resolveTags walks a decoded JSON value tree and replaces any
// {"__uint8array": base64} object with the decoded []byte, leaving
// everything else untouched.
func resolveTags(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if b64, ok := t[byteArrayTag]; ok {
				if s, ok := b64.(string); ok {
					if decoded, err := codec.Base64Decode(s); err == nil {
						return decoded
					}
				}
			}
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = resolveTags(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = resolveTags(val)
		}
		return out
	default:
		return v
	}
}
