// Copyright (C) 2025 phoenix-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package crypto implements Phoenix's authenticated public-key encryption:
// Curve25519 key agreement, XSalsa20 confidentiality, and Poly1305
// integrity, via golang.org/x/crypto/nacl/box (the "box" construction
// spec.md §4.2 describes).
package crypto

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/nacl/box"

	"github.com/phoenix-x-project/phoenix/codec"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Engine is the per-session Crypto Engine (C2). It owns one ephemeral
// key pair and, once bound, the peer's public key. It is not safe to
// share across client instances — each DApp/Wallet client owns exactly
// one Engine, per spec.md §5.
type Engine struct {
	mu sync.RWMutex

	publicKey [keySize]byte
	secretKey [keySize]byte

	peerBound     bool
	peerPublicKey [keySize]byte
}

// NewEngine generates a fresh ephemeral key pair using a CSPRNG.
func NewEngine() (*Engine, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("phoenix/crypto: generate key pair: %w", err)
	}
	return &Engine{publicKey: *pub, secretKey: *priv}, nil
}

// PublicKey returns our public key bytes, shared via the pairing URI
// (DApp) or the connected_uuid event (Wallet).
func (e *Engine) PublicKey() [keySize]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.publicKey
}

// PublicKeyBase64 is the encoding carried on the wire.
func (e *Engine) PublicKeyBase64() string {
	pk := e.PublicKey()
	return codec.Base64Encode(pk[:])
}

// ErrPeerAlreadyBound is returned by BindPeer when a different peer key
// is already bound, protecting against mid-session pivoting.
var ErrPeerAlreadyBound = fmt.Errorf("phoenix/crypto: peer already bound to a different key")

// ErrPeerNotBound is returned by Encrypt/Decrypt before BindPeer has run.
var ErrPeerNotBound = fmt.Errorf("phoenix/crypto: peer public key not bound")

// ErrDecrypt is returned on any authentication failure. It intentionally
// carries no detail distinguishing a wrong key from tampered ciphertext.
var ErrDecrypt = fmt.Errorf("phoenix/crypto: decryption failed")

// BindPeer sets the peer's public key. Binding to the same key twice is
// a no-op; binding to a second, different key fails.
func (e *Engine) BindPeer(peerPublicKey [keySize]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.peerBound && peerPublicKey != e.peerPublicKey {
		return ErrPeerAlreadyBound
	}
	e.peerPublicKey = peerPublicKey
	e.peerBound = true
	return nil
}

// BindPeerBase64 decodes and binds a base64, 32-byte peer public key.
func (e *Engine) BindPeerBase64(b64 string) error {
	raw, err := codec.Base64Decode(b64)
	if err != nil {
		return fmt.Errorf("phoenix/crypto: decode peer public key: %w", err)
	}
	if len(raw) != keySize {
		return fmt.Errorf("phoenix/crypto: peer public key must be %d bytes, got %d", keySize, len(raw))
	}
	var pk [keySize]byte
	copy(pk[:], raw)
	return e.BindPeer(pk)
}

// Bound reports whether a peer key has been bound.
func (e *Engine) Bound() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.peerBound
}

// Encrypt serializes message as JSON, generates a fresh random 24-byte
// nonce, and seals it against the bound peer key. Encrypt fails fast if
// BindPeer has not run yet (spec.md §4.2 invariant).
func (e *Engine) Encrypt(message any) (ciphertextB64, nonceB64 string, err error) {
	plaintext, err := json.Marshal(message)
	if err != nil {
		return "", "", fmt.Errorf("phoenix/crypto: marshal plaintext: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.peerBound {
		return "", "", ErrPeerNotBound
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", "", fmt.Errorf("phoenix/crypto: generate nonce: %w", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, &e.peerPublicKey, &e.secretKey)
	return codec.Base64Encode(sealed), codec.Base64Encode(nonce[:]), nil
}

// Decrypt opens a box sealed by Encrypt and unmarshals the plaintext JSON
// into out. Any MAC failure, truncated input, or malformed base64
// collapses to ErrDecrypt — the caller cannot distinguish a wrong key
// from corrupt ciphertext (spec.md §4.2).
func (e *Engine) Decrypt(ciphertextB64, nonceB64 string, out any) error {
	ciphertext, err := codec.Base64Decode(ciphertextB64)
	if err != nil {
		return ErrDecrypt
	}
	nonceBytes, err := codec.Base64Decode(nonceB64)
	if err != nil || len(nonceBytes) != nonceSize {
		return ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], nonceBytes)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.peerBound {
		return ErrPeerNotBound
	}

	plaintext, ok := box.Open(nil, ciphertext, &nonce, &e.peerPublicKey, &e.secretKey)
	if !ok {
		return ErrDecrypt
	}

	if out != nil {
		if err := json.Unmarshal(plaintext, out); err != nil {
			return ErrDecrypt
		}
	}
	return nil
}

// Export returns the base64 forms suitable for persistence: our secret
// key, our public key, and (if bound) the peer's public key.
func (e *Engine) Export() (secretKeyB64, publicKeyB64 string, peerPublicKeyB64 string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	peer := ""
	if e.peerBound {
		peer = codec.Base64Encode(e.peerPublicKey[:])
	}
	return codec.Base64Encode(e.secretKey[:]), codec.Base64Encode(e.publicKey[:]), peer
}

// Import reconstructs an Engine from persisted key material, re-binding
// the previously bound peer key if present.
func Import(secretKeyB64, publicKeyB64, peerPublicKeyB64 string) (*Engine, error) {
	sk, err := codec.Base64Decode(secretKeyB64)
	if err != nil || len(sk) != keySize {
		return nil, fmt.Errorf("phoenix/crypto: invalid stored secret key")
	}
	pk, err := codec.Base64Decode(publicKeyB64)
	if err != nil || len(pk) != keySize {
		return nil, fmt.Errorf("phoenix/crypto: invalid stored public key")
	}

	e := &Engine{}
	copy(e.secretKey[:], sk)
	copy(e.publicKey[:], pk)

	if peerPublicKeyB64 != "" {
		if err := e.BindPeerBase64(peerPublicKeyB64); err != nil {
			return nil, err
		}
	}
	return e, nil
}
