// Package solana is an example WalletSigner (spec.md §6) for the
// "solana" chain type. It exercises the raw-byte (__uint8array)
// payload path end to end: Solana transactions are signed as raw
// bytes rather than a structured object, which is exactly what the
// Payload Codec's (C3) tagging convention exists to carry through the
// JSON transport (spec.md §4.3).
//
// Grounded on the teacher's pkg/agent/crypto/chain/solana.Provider,
// which derives Solana addresses as base58-encoded Ed25519 public
// keys; here solana-go's PrivateKey wraps the same Ed25519 operations
// behind the ecosystem's idiomatic Solana types.
package solana

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/phoenix-x-project/phoenix/signer"
)

// Signer is an Ed25519-keyed WalletSigner for Solana, using
// solana-go's PrivateKey/Signature types.
type Signer struct {
	key solanago.PrivateKey
}

// New generates a fresh Ed25519 key pair.
func New() (*Signer, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("phoenix/signer/solana: generate key: %w", err)
	}
	return &Signer{key: key}, nil
}

// NewFromBase58 builds a Signer from a base58-encoded private key, for
// deterministic test fixtures and demo wiring.
func NewFromBase58(b58 string) (*Signer, error) {
	key, err := solanago.PrivateKeyFromBase58(b58)
	if err != nil {
		return nil, fmt.Errorf("phoenix/signer/solana: parse private key: %w", err)
	}
	return &Signer{key: key}, nil
}

func (s *Signer) Address() string   { return s.key.PublicKey().String() }
func (s *Signer) ChainType() string { return "solana" }

// rawBytes extracts the []byte payload the Payload Codec (C3) resolved
// from a {"__uint8array": base64} tag — the shape every Solana
// transaction payload takes.
func rawBytes(decoded any) ([]byte, error) {
	switch v := decoded.(type) {
	case []byte:
		return v, nil
	case map[string]any:
		if raw, ok := v["transaction"].([]byte); ok {
			return raw, nil
		}
		if raw, ok := v["message"].([]byte); ok {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("phoenix/signer/solana: payload is not a raw byte transaction")
}

// SignMessage signs an arbitrary raw-byte message.
func (s *Signer) SignMessage(decoded any) (string, error) {
	raw, err := rawBytes(decoded)
	if err != nil {
		return "", err
	}
	sig, err := s.key.Sign(raw)
	if err != nil {
		return "", fmt.Errorf("phoenix/signer/solana: sign: %w", err)
	}
	return sig.String(), nil
}

// SignTransaction signs a single raw-byte transaction.
func (s *Signer) SignTransaction(decoded any) (string, error) {
	return s.SignMessage(decoded)
}

// SignAllTransactions signs every transaction in decoded's
// "transactions" list, each expected to resolve to a raw-byte payload.
func (s *Signer) SignAllTransactions(decoded any) ([]string, error) {
	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("phoenix/signer/solana: sign_all_transactions payload must be an object")
	}
	list, ok := m["transactions"].([]any)
	if !ok {
		return nil, fmt.Errorf("phoenix/signer/solana: sign_all_transactions payload missing \"transactions\" array")
	}
	sigs := make([]string, len(list))
	for i, tx := range list {
		sig, err := s.SignTransaction(tx)
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}
	return sigs, nil
}

// SendTransaction signs decoded; actual broadcast to a Solana RPC
// endpoint is outside the protocol core's scope, so the "hash"
// returned is the base58 signature itself — Solana transaction
// signatures double as their own transaction ids.
func (s *Signer) SendTransaction(decoded any) (string, error) {
	return s.SignTransaction(decoded)
}

var _ signer.Signer = (*Signer)(nil)
