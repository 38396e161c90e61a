package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// URIScheme is the literal prefix of every Phoenix pairing URI.
const URIScheme = "phoenix:"

// ProtocolVersion is the only PairingURI.Version this implementation mints
// or accepts.
const ProtocolVersion = "1"

// PairingURI is the one-time handshake payload minted by the DApp and
// consumed exactly once by the Wallet. See spec.md §3 and §6.
type PairingURI struct {
	Version   string `json:"version"`
	UUID      string `json:"uuid"`
	ServerURL string `json:"serverUrl"`
	PublicKey string `json:"publicKey"` // base64, 32 bytes
}

// pairingURIWire mirrors PairingURI but fixes field order via struct tag
// ordering, which encoding/json honors for struct marshaling. This keeps
// EncodeURI byte-identical to the reference encoder for QR compatibility.
type pairingURIWire struct {
	Version   string `json:"version"`
	UUID      string `json:"uuid"`
	ServerURL string `json:"serverUrl"`
	PublicKey string `json:"publicKey"`
}

// EncodeURI renders p as "phoenix:" followed by minified JSON with keys in
// the fixed order {version, uuid, serverUrl, publicKey}.
func EncodeURI(p PairingURI) (string, error) {
	wire := pairingURIWire(p)
	b, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("phoenix: encode pairing uri: %w", err)
	}
	return URIScheme + string(b), nil
}

// ParseURI strips the "phoenix:" prefix, parses the JSON body, and
// validates version, uuid, publicKey length, and serverUrl presence.
// Field order in the input is not significant.
func ParseURI(raw string) (PairingURI, error) {
	if !strings.HasPrefix(raw, URIScheme) {
		return PairingURI{}, fmt.Errorf("%w: missing %q prefix", ErrInvalidPairingURI, URIScheme)
	}
	body := strings.TrimPrefix(raw, URIScheme)

	var p PairingURI
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return PairingURI{}, fmt.Errorf("%w: %v", ErrInvalidPairingURI, err)
	}

	if p.Version != ProtocolVersion {
		return PairingURI{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidPairingURI, p.Version)
	}
	if _, err := uuid.Parse(p.UUID); err != nil {
		return PairingURI{}, fmt.Errorf("%w: bad uuid: %v", ErrInvalidPairingURI, err)
	}
	pk, err := Base64Decode(p.PublicKey)
	if err != nil {
		return PairingURI{}, fmt.Errorf("%w: bad publicKey encoding: %v", ErrInvalidPairingURI, err)
	}
	if len(pk) != 32 {
		return PairingURI{}, fmt.Errorf("%w: publicKey must be 32 bytes, got %d", ErrInvalidPairingURI, len(pk))
	}
	if p.ServerURL == "" {
		return PairingURI{}, fmt.Errorf("%w: empty serverUrl", ErrInvalidPairingURI)
	}

	return p, nil
}

// NewPairingUUID mints a fresh RFC 4122 v4 UUID for a new pairing.
func NewPairingUUID() string {
	return uuid.NewString()
}
