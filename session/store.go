package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phoenix-x-project/phoenix/crypto"
)

// Storage keys, one per role. Two clients sharing one StorageAdapter
// must use distinct keys (spec.md §5).
const (
	KeyDApp   = "phoenix_session"
	KeyWallet = "phoenix_wallet_session"
)

// DefaultTTL is the persisted-session lifetime; sessions older than
// this are discarded on Load (spec.md §3, §5).
const DefaultTTL = 24 * time.Hour

// StoredSession is the persisted form of a Session, serialized to a
// single StorageAdapter key as one atomic string put.
type StoredSession struct {
	Session       Session   `json:"session"`
	ServerURL     string    `json:"serverUrl"`
	SecretKey     string    `json:"secretKey"`
	PublicKey     string    `json:"publicKey"`
	PeerPublicKey string    `json:"peerPublicKey,omitempty"`
	SavedAt       time.Time `json:"savedAt"`
}

// Store serializes/deserializes a StoredSession through a
// StorageAdapter, keyed per role (C5). The store is advisory: it is
// read once at startup and written after meaningful state changes; the
// in-memory Session stays authoritative while the process runs.
type Store struct {
	adapter StorageAdapter
	key     string
	ttl     time.Duration

	// enabled, when false, turns every operation into a no-op
	// (spec.md §6 enablePersistence=false).
	enabled bool
}

// NewStore builds a Store for the given role key. If adapter is nil or
// enabled is false, the Store becomes a no-op (enablePersistence=false).
func NewStore(adapter StorageAdapter, key string, ttl time.Duration, enabled bool) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{adapter: adapter, key: key, ttl: ttl, enabled: enabled && adapter != nil}
}

// Save snapshots the current session, server URL, and crypto key
// material into a single atomic string write.
func (s *Store) Save(ctx context.Context, sess Session, serverURL string, engine *crypto.Engine) error {
	if !s.enabled {
		return nil
	}

	secretKeyB64, publicKeyB64, peerPublicKeyB64 := engine.Export()
	stored := StoredSession{
		Session:       sess,
		ServerURL:     serverURL,
		SecretKey:     secretKeyB64,
		PublicKey:     publicKeyB64,
		PeerPublicKey: peerPublicKeyB64,
		SavedAt:       time.Now().UTC(),
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("phoenix/session: marshal stored session: %w", err)
	}
	if err := s.adapter.SetItem(ctx, s.key, string(raw)); err != nil {
		return fmt.Errorf("phoenix/session: persist session: %w", err)
	}
	return nil
}

// Load retrieves and validates the persisted session. It returns
// (nil, nil) — not an error — when nothing is stored, the entry is
// older than the TTL, or serverURL no longer matches; in the latter
// two cases it also clears the stale entry.
func (s *Store) Load(ctx context.Context, serverURL string) (*StoredSession, error) {
	if !s.enabled {
		return nil, nil
	}

	raw, ok, err := s.adapter.GetItem(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("phoenix/session: read stored session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var stored StoredSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		_ = s.Clear(ctx)
		return nil, fmt.Errorf("phoenix/session: decode stored session: %w", err)
	}

	if time.Since(stored.SavedAt) > s.ttl {
		_ = s.Clear(ctx)
		return nil, nil
	}
	if stored.ServerURL != serverURL {
		_ = s.Clear(ctx)
		return nil, nil
	}

	return &stored, nil
}

// Clear removes the persisted entry.
func (s *Store) Clear(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	if err := s.adapter.RemoveItem(ctx, s.key); err != nil {
		return fmt.Errorf("phoenix/session: clear stored session: %w", err)
	}
	return nil
}
