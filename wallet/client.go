// Package wallet implements PhoenixWalletClient (C8): the pairing
// responder. It parses a pairing URI, binds the DApp's public key,
// dispatches incoming sign requests to a signer.Signer, and emits
// responses, driving the IDLE → LINKING → ACTIVE → CLOSED state
// machine of spec.md §4.8.
//
// Grounded the same way as package dapp: the mutex-guarded state shape
// follows the teacher's session.Manager, and the transport lifecycle
// follows pkg/agent/transport/websocket.WSTransport.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phoenix-x-project/phoenix/codec"
	"github.com/phoenix-x-project/phoenix/config"
	"github.com/phoenix-x-project/phoenix/crypto"
	"github.com/phoenix-x-project/phoenix/events"
	"github.com/phoenix-x-project/phoenix/internal/logger"
	"github.com/phoenix-x-project/phoenix/metrics"
	"github.com/phoenix-x-project/phoenix/payload"
	"github.com/phoenix-x-project/phoenix/protocol"
	"github.com/phoenix-x-project/phoenix/session"
	"github.com/phoenix-x-project/phoenix/signer"
	"github.com/phoenix-x-project/phoenix/transport"
)

// State is the Wallet client's lifecycle state (spec.md §4.8, §9).
type State int

const (
	StateIdle State = iota
	StateLinking
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLinking:
		return "linking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Errors surfaced to callers, per spec.md §7.
var (
	ErrNotConnected       = errors.New("phoenix/wallet: no active session")
	ErrNoPendingRequest   = errors.New("phoenix/wallet: no pending sign request")
	ErrRequestIDMismatch  = errors.New("phoenix/wallet: request id does not match pending request")
	ErrUnsupportedType    = errors.New("phoenix/wallet: unsupported request type")
	ErrNoRestorableSession = errors.New("phoenix/wallet: no restorable session to reconnect")
)

// DefaultRejectReason is used by RejectRequest when no reason is given.
const DefaultRejectReason = "User rejected request"

// Client is the Wallet-side protocol core (C8).
type Client struct {
	cfg       config.Config
	transport transport.Adapter
	engine    *crypto.Engine
	store     *session.Store
	bus       *events.Bus
	log       logger.Logger

	mu      sync.Mutex
	state   State
	sess    session.Session
	signer  signer.Signer
	pending *protocol.SignRequest
}

// New builds a Wallet client.
func New(cfg config.Config, t transport.Adapter, storage session.StorageAdapter, log logger.Logger) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("phoenix/wallet: %w", config.ErrServerURLRequired)
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}

	c := &Client{
		cfg:       cfg,
		transport: t,
		store:     session.NewStore(storage, session.KeyWallet, cfg.SessionTTL, cfg.EnablePersistence),
		bus:       events.New(log),
		log:       log,
		state:     StateIdle,
	}
	t.On(transport.EventWalletRequest, c.handleRequest)
	t.On(transport.EventDisconnect, c.handleTransportDisconnect)
	return c, nil
}

// Events returns the client's Event Bus (C9).
func (c *Client) Events() *events.Bus { return c.bus }

// State reports the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the current in-memory session.
func (c *Client) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// PendingRequestID reports the id of the single currently-pending sign
// request, if any (spec.md §3, §8 property 8: at most one).
func (c *Client) PendingRequestID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return "", false
	}
	return c.pending.ID, true
}

// Connect parses a pairing URI, binds the dapp's public key, generates
// our own ephemeral key pair, persists the session, opens the
// transport, and emits connected_uuid carrying our public key plus an
// encrypted {address, chainType} side channel (spec.md §4.8).
func (c *Client) Connect(ctx context.Context, uri string, sig signer.Signer) error {
	c.mu.Lock()
	live := c.state == StateActive || c.state == StateLinking
	c.mu.Unlock()
	if live {
		if err := c.Disconnect(ctx); err != nil {
			return fmt.Errorf("phoenix/wallet: close prior session: %w", err)
		}
	}

	pairing, err := codec.ParseURI(uri)
	if err != nil {
		return fmt.Errorf("phoenix/wallet: %w", err)
	}

	engine, err := crypto.NewEngine()
	if err != nil {
		return fmt.Errorf("phoenix/wallet: %w", err)
	}
	if err := engine.BindPeerBase64(pairing.PublicKey); err != nil {
		return fmt.Errorf("phoenix/wallet: bind peer key: %w", err)
	}
	metrics.PeersBound.WithLabelValues("wallet").Inc()

	c.mu.Lock()
	c.engine = engine
	c.signer = sig
	c.sess = session.Session{
		UUID:      pairing.UUID,
		Connected: false,
		Address:   sig.Address(),
		ChainType: sig.ChainType(),
	}
	c.state = StateLinking
	c.mu.Unlock()

	if err := c.persist(ctx); err != nil {
		c.log.Warn("phoenix/wallet: persist session failed", logger.Error(err))
	}

	if err := c.transport.Connect(ctx, pairing.ServerURL); err != nil {
		return fmt.Errorf("phoenix/wallet: connect transport: %w", err)
	}
	if err := c.transport.Join(ctx, pairing.UUID); err != nil {
		return fmt.Errorf("phoenix/wallet: join room: %w", err)
	}

	if err := c.announce(ctx); err != nil {
		return fmt.Errorf("phoenix/wallet: announce connected_uuid: %w", err)
	}

	c.mu.Lock()
	c.sess.Connected = true
	c.state = StateActive
	snapshot := c.sess
	c.mu.Unlock()

	if err := c.persist(ctx); err != nil {
		c.log.Warn("phoenix/wallet: persist active session failed", logger.Error(err))
	}

	c.bus.Emit(events.SessionConnected, snapshot)
	c.log.WithContext(logger.ContextWithUUID(ctx, pairing.UUID)).Info("wallet paired")
	return nil
}

// announce publishes connected_uuid with our public key and, best
// effort, an encrypted {address, chainType} side channel.
func (c *Client) announce(ctx context.Context) error {
	ack := protocol.ConnectedUUID{
		UUID:      c.sess.UUID,
		PublicKey: c.engine.PublicKeyBase64(),
	}

	info := protocol.ConnectedInfo{Address: c.signer.Address(), ChainType: c.signer.ChainType()}
	if ciphertext, nonce, err := c.engine.Encrypt(info); err == nil {
		ack.EncryptedInfo = &protocol.EncryptedEnvelope{
			UUID:             c.sess.UUID,
			EncryptedPayload: ciphertext,
			Nonce:            nonce,
			Timestamp:        time.Now().UnixMilli(),
		}
	} else {
		c.log.Warn("phoenix/wallet: encrypt connected_uuid side channel failed", logger.Error(err))
	}

	raw, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, transport.EventConnectedUUID, raw)
}

// Restore loads a persisted session into memory, rebuilding the
// Crypto Engine from stored key material, without opening a
// transport. Call ReconnectWithSigner afterward to resume.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	stored, err := c.store.Load(ctx, c.cfg.ServerURL)
	if err != nil {
		c.log.Warn("phoenix/wallet: restore failed", logger.Error(err))
		return false, nil
	}
	if stored == nil {
		return false, nil
	}
	engine, err := crypto.Import(stored.SecretKey, stored.PublicKey, stored.PeerPublicKey)
	if err != nil {
		c.log.Warn("phoenix/wallet: restore key import failed", logger.Error(err))
		return false, nil
	}

	c.mu.Lock()
	c.engine = engine
	c.sess = stored.Session
	c.sess.Connected = false
	c.state = StateLinking
	c.mu.Unlock()
	return true, nil
}

// ReconnectWithSigner re-attaches a live signer to a restored session
// and resumes the transport connection, mirroring dapp.Client.Reconnect
// (spec.md §4.8).
func (c *Client) ReconnectWithSigner(ctx context.Context, sig signer.Signer) error {
	c.mu.Lock()
	if c.sess.UUID == "" {
		c.mu.Unlock()
		return ErrNoRestorableSession
	}
	uuid := c.sess.UUID
	c.signer = sig
	c.mu.Unlock()

	if err := c.transport.Connect(ctx, c.cfg.ServerURL); err != nil {
		return fmt.Errorf("phoenix/wallet: reconnect transport: %w", err)
	}
	if err := c.transport.Join(ctx, uuid); err != nil {
		return fmt.Errorf("phoenix/wallet: rejoin room: %w", err)
	}

	c.mu.Lock()
	c.sess.Connected = true
	c.state = StateActive
	snapshot := c.sess
	c.mu.Unlock()

	c.bus.Emit(events.SessionRestored, snapshot)
	return nil
}

// ApproveRequest looks up the single stored pending request, dispatches
// it to the signer by type, and sends back a success (or signer-error)
// response (spec.md §4.8).
func (c *Client) ApproveRequest(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNoPendingRequest
	}
	if c.pending.ID != id {
		c.mu.Unlock()
		return ErrRequestIDMismatch
	}
	req := *c.pending
	sig := c.signer
	c.mu.Unlock()

	result, signErr := dispatch(sig, req)

	resp := protocol.SignResponse{
		ID:        req.ID,
		Type:      req.Type,
		Timestamp: time.Now().UnixMilli(),
	}
	if signErr != nil {
		resp.Status = protocol.StatusError
		resp.Error = signErr.Error()
		c.log.Warn("phoenix/wallet: signer failed", logger.String("id", req.ID), logger.Error(signErr))
	} else {
		resp.Status = protocol.StatusSuccess
		resp.Result = result
	}

	if err := c.sendResponse(ctx, resp); err != nil {
		return err
	}

	c.clearPending()
	c.log.WithContext(logger.ContextWithRequestID(ctx, id)).Debug("request approved")
	c.bus.Emit(events.RequestApproved, id)
	return nil
}

// RejectRequest builds an error response with reason (defaulting to
// DefaultRejectReason) and sends it back.
func (c *Client) RejectRequest(ctx context.Context, id string, reason string) error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNoPendingRequest
	}
	if c.pending.ID != id {
		c.mu.Unlock()
		return ErrRequestIDMismatch
	}
	req := *c.pending
	c.mu.Unlock()

	if reason == "" {
		reason = DefaultRejectReason
	}
	resp := protocol.SignResponse{
		ID:        req.ID,
		Type:      req.Type,
		Status:    protocol.StatusError,
		Error:     reason,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := c.sendResponse(ctx, resp); err != nil {
		return err
	}

	c.clearPending()
	c.bus.Emit(events.RequestRejected, id)
	return nil
}

func (c *Client) clearPending() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	metrics.WalletPendingRequests.Set(0)
}

func dispatch(sig signer.Signer, req protocol.SignRequest) (*protocol.SignResult, error) {
	decoded, err := payload.Decode(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("phoenix/wallet: decode payload: %w", err)
	}

	switch req.Type {
	case protocol.SignMessage:
		sigStr, err := sig.SignMessage(decoded)
		if err != nil {
			return nil, err
		}
		msg := ""
		if m, ok := decoded.(map[string]any); ok {
			if s, ok := m["message"].(string); ok {
				msg = s
			}
		}
		return &protocol.SignResult{Signature: sigStr, Message: msg}, nil

	case protocol.SignTransaction:
		sigStr, err := sig.SignTransaction(decoded)
		if err != nil {
			return nil, err
		}
		return &protocol.SignResult{Signature: sigStr, From: sig.Address()}, nil

	case protocol.SignAllTransactions:
		sigs, err := sig.SignAllTransactions(decoded)
		if err != nil {
			return nil, err
		}
		return &protocol.SignResult{Signatures: sigs, From: sig.Address()}, nil

	case protocol.SendTransaction:
		txHash, err := sig.SendTransaction(decoded)
		if err != nil {
			return nil, err
		}
		return &protocol.SignResult{TxHash: txHash}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, req.Type)
	}
}

func (c *Client) sendResponse(ctx context.Context, resp protocol.SignResponse) error {
	c.mu.Lock()
	uuid := c.sess.UUID
	c.mu.Unlock()

	ciphertext, nonce, err := c.engine.Encrypt(resp)
	if err != nil {
		return fmt.Errorf("phoenix/wallet: encrypt response: %w", err)
	}
	envelope := protocol.EncryptedEnvelope{
		UUID:             uuid,
		EncryptedPayload: ciphertext,
		Nonce:            nonce,
		Timestamp:        time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("phoenix/wallet: marshal envelope: %w", err)
	}
	if err := c.transport.Send(ctx, transport.EventWalletResponse, raw); err != nil {
		return fmt.Errorf("phoenix/wallet: send response: %w", err)
	}
	return nil
}

// handleRequest decrypts an inbound dapp:request envelope, enforces
// the replay guard and chain-type match, and stores it as the single
// pending request (spec.md §3, §4.8, §8 property 8).
func (c *Client) handleRequest(raw []byte) {
	var env protocol.EncryptedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("phoenix/wallet: malformed request envelope", logger.Error(err))
		return
	}

	var req protocol.SignRequest
	if err := c.engine.Decrypt(env.EncryptedPayload, env.Nonce, &req); err != nil {
		metrics.DecryptFailures.WithLabelValues("wallet").Inc()
		c.log.Warn("phoenix/wallet: request decrypt failed, dropping")
		return
	}

	ctx := context.Background()

	if !protocol.WithinReplayWindow(req.Timestamp, time.Now(), c.cfg.ReplayWindow, c.cfg.ReplaySkew) {
		c.log.Warn("phoenix/wallet: request outside replay window, auto-erroring", logger.String("id", req.ID))
		_ = c.sendResponse(ctx, protocol.SignResponse{
			ID: req.ID, Type: req.Type, Status: protocol.StatusError,
			Error: "request timestamp outside replay window", Timestamp: time.Now().UnixMilli(),
		})
		return
	}

	c.mu.Lock()
	sig := c.signer
	c.mu.Unlock()
	if sig != nil && string(req.ChainType) != sig.ChainType() {
		c.log.Warn("phoenix/wallet: chain type mismatch, auto-rejecting",
			logger.String("id", req.ID), logger.String("want", sig.ChainType()), logger.String("got", string(req.ChainType)))
		_ = c.sendResponse(ctx, protocol.SignResponse{
			ID: req.ID, Type: req.Type, Status: protocol.StatusError,
			Error: "Chain type mismatch", Timestamp: time.Now().UnixMilli(),
		})
		return
	}

	c.mu.Lock()
	reqCopy := req
	c.pending = &reqCopy
	c.mu.Unlock()
	metrics.WalletPendingRequests.Set(1)

	c.bus.Emit(events.SignRequest, req)
}

// Disconnect tears down the session: closes the transport, clears the
// persisted session, and emits session_disconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.pending = nil
	c.mu.Unlock()
	metrics.WalletPendingRequests.Set(0)

	if err := c.transport.Disconnect(); err != nil {
		c.log.Warn("phoenix/wallet: transport disconnect failed", logger.Error(err))
	}
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("phoenix/wallet: clear persisted session failed", logger.Error(err))
	}

	c.bus.Emit(events.SessionDisconnected, nil)
	c.log.Info("wallet session disconnected")
	return nil
}

func (c *Client) persist(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	return c.store.Save(ctx, sess, c.cfg.ServerURL, c.engine)
}

func (c *Client) handleTransportDisconnect(_ []byte) {
	c.mu.Lock()
	wasActive := c.state == StateActive
	c.mu.Unlock()
	if !wasActive {
		return
	}
	c.bus.Emit(events.SessionDisconnected, nil)
}
