// Package dapp implements PhoenixDappClient (C7): the pairing
// initiator. It owns a Crypto Engine, a Session Store, a Transport
// Adapter, a Request Correlator, and an Event Bus, and drives the
// IDLE → PAIRING → ACTIVE → CLOSED state machine of spec.md §4.7.
//
// Grounded on the teacher's session.Manager for the mutex-guarded
// state shape, and on pkg/agent/transport/websocket.WSTransport for
// the connect/reconnect lifecycle this client drives its Transport
// Adapter through.
package dapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phoenix-x-project/phoenix/codec"
	"github.com/phoenix-x-project/phoenix/config"
	"github.com/phoenix-x-project/phoenix/correlator"
	"github.com/phoenix-x-project/phoenix/crypto"
	"github.com/phoenix-x-project/phoenix/events"
	"github.com/phoenix-x-project/phoenix/internal/logger"
	"github.com/phoenix-x-project/phoenix/metrics"
	"github.com/phoenix-x-project/phoenix/payload"
	"github.com/phoenix-x-project/phoenix/protocol"
	"github.com/phoenix-x-project/phoenix/session"
	"github.com/phoenix-x-project/phoenix/transport"
)

// State is the DApp client's lifecycle state, spec.md §4.7's state
// machine made a type-level property rather than an ad-hoc boolean
// flag (spec.md §9 design note).
type State int

const (
	StateIdle State = iota
	StatePairing
	StateActive
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePairing:
		return "pairing"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Errors surfaced to callers, per spec.md §7's taxonomy.
var (
	ErrAlreadyConnected = errors.New("phoenix/dapp: session already active")
	ErrNotConnected     = errors.New("phoenix/dapp: no active session")
	ErrNoRestorableSession = errors.New("phoenix/dapp: no restorable session to reconnect")
)

// SignParams is the common shape of every sign_* call's parameters.
type SignParams struct {
	ChainType protocol.ChainType
	ChainID   string
	Payload   any // marshaled via payload.Encode into SignRequest.Payload
}

// Client is the DApp-side protocol core (C7).
type Client struct {
	cfg       config.Config
	transport transport.Adapter
	engine    *crypto.Engine
	store     *session.Store
	corr      *correlator.Correlator
	bus       *events.Bus
	log       logger.Logger

	mu             sync.Mutex
	state          State
	sess           session.Session
	isReconnecting bool
}

// New builds a DApp client. The caller supplies the transport adapter
// and the session storage adapter (nil disables persistence); the
// client owns everything else.
func New(cfg config.Config, t transport.Adapter, storage session.StorageAdapter, log logger.Logger) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("phoenix/dapp: %w", config.ErrServerURLRequired)
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}

	engine, err := crypto.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("phoenix/dapp: %w", err)
	}

	c := &Client{
		cfg:       cfg,
		transport: t,
		engine:    engine,
		store:     session.NewStore(storage, session.KeyDApp, cfg.SessionTTL, cfg.EnablePersistence),
		corr:      correlator.New(cfg.RequestTimeout, log),
		bus:       events.New(log),
		log:       log,
		state:     StateIdle,
	}
	t.On(transport.EventConnectedUUID, c.handleConnectedUUID)
	t.On(transport.EventDappResponse, c.handleResponse)
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

// Connect mints a new pairing (spec.md §4.7). It refuses if a session
// is already ACTIVE.
func (c *Client) Connect(ctx context.Context) (uri string, uuid string, err error) {
	c.mu.Lock()
	if c.state == StateActive {
		c.mu.Unlock()
		return "", "", ErrAlreadyConnected
	}
	c.mu.Unlock()

	uuid = codec.NewPairingUUID()
	pairing := codec.PairingURI{
		Version:   codec.ProtocolVersion,
		UUID:      uuid,
		ServerURL: c.cfg.ServerURL,
		PublicKey: c.engine.PublicKeyBase64(),
	}
	uri, err = codec.EncodeURI(pairing)
	if err != nil {
		return "", "", fmt.Errorf("phoenix/dapp: encode pairing uri: %w", err)
	}

	c.mu.Lock()
	c.sess = session.Session{UUID: uuid, Connected: false}
	c.state = StatePairing
	c.mu.Unlock()

	if err := c.persist(ctx); err != nil {
		c.log.Warn("phoenix/dapp: persist initial session failed", logger.Error(err))
	}

	if err := c.transport.Connect(ctx, c.cfg.ServerURL); err != nil {
		return "", "", fmt.Errorf("phoenix/dapp: connect transport: %w", err)
	}
	if err := c.transport.Join(ctx, uuid); err != nil {
		return "", "", fmt.Errorf("phoenix/dapp: join room: %w", err)
	}

	metrics.PairingsMinted.Inc()
	c.log.WithContext(logger.ContextWithUUID(ctx, uuid)).Info("pairing minted")
	return uri, uuid, nil
}

// Reconnect resumes a session previously restored from the Session
// Store (spec.md §4.7). It requires a non-active in-memory session
// with a uuid (typically populated by Restore), reopens the transport,
// and rejoins the room. The client becomes ACTIVE only if the peer key
// is bound; otherwise it returns to PAIRING.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateActive {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	if c.sess.UUID == "" {
		c.mu.Unlock()
		return ErrNoRestorableSession
	}
	uuid := c.sess.UUID
	c.isReconnecting = true
	c.state = StateReconnecting
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isReconnecting = false
		c.mu.Unlock()
	}()

	if err := c.transport.Connect(ctx, c.cfg.ServerURL); err != nil {
		return fmt.Errorf("phoenix/dapp: reconnect transport: %w", err)
	}
	if err := c.transport.Join(ctx, uuid); err != nil {
		return fmt.Errorf("phoenix/dapp: rejoin room: %w", err)
	}

	c.mu.Lock()
	bound := c.engine.Bound()
	if bound {
		c.sess.Connected = true
		c.state = StateActive
	} else {
		c.state = StatePairing
	}
	snapshot := c.sess
	c.mu.Unlock()

	if bound {
		c.bus.Emit(events.SessionRestored, snapshot)
		c.log.Info("session restored", logger.String("uuid", uuid))
	}
	return nil
}

// Restore loads a persisted session (if any) into memory, rebuilding
// the Crypto Engine from stored key material. It does not open a
// transport — call Reconnect afterward to resume. Callers typically
// run this once at startup and gate further calls on its completion
// (spec.md §4.5's wait_for_initialization affordance).
func (c *Client) Restore(ctx context.Context) (bool, error) {
	stored, err := c.store.Load(ctx, c.cfg.ServerURL)
	if err != nil {
		c.log.Warn("phoenix/dapp: restore failed", logger.Error(err))
		return false, nil // PersistenceError is non-fatal (spec.md §7)
	}
	if stored == nil {
		return false, nil
	}

	engine, err := crypto.Import(stored.SecretKey, stored.PublicKey, stored.PeerPublicKey)
	if err != nil {
		c.log.Warn("phoenix/dapp: restore key import failed", logger.Error(err))
		return false, nil
	}

	c.mu.Lock()
	c.engine = engine
	c.sess = stored.Session
	if c.sess.Connected && !engine.Bound() {
		c.sess.Connected = false
	}
	c.state = StatePairing
	c.mu.Unlock()
	return true, nil
}

// SignMessage, SignTransaction, SignAllTransactions, and
// SendTransaction all require ACTIVE and share the same
// encode/correlate/encrypt/send/await shape (spec.md §4.7).
func (c *Client) SignMessage(ctx context.Context, p SignParams) (protocol.SignResponse, error) {
	return c.request(ctx, protocol.SignMessage, p)
}

func (c *Client) SignTransaction(ctx context.Context, p SignParams) (protocol.SignResponse, error) {
	return c.request(ctx, protocol.SignTransaction, p)
}

func (c *Client) SignAllTransactions(ctx context.Context, p SignParams) (protocol.SignResponse, error) {
	return c.request(ctx, protocol.SignAllTransactions, p)
}

func (c *Client) SendTransaction(ctx context.Context, p SignParams) (protocol.SignResponse, error) {
	return c.request(ctx, protocol.SendTransaction, p)
}

func (c *Client) request(ctx context.Context, reqType protocol.RequestType, p SignParams) (protocol.SignResponse, error) {
	c.mu.Lock()
	active := c.state == StateActive
	uuid := c.sess.UUID
	c.mu.Unlock()
	if !active {
		return protocol.SignResponse{}, ErrNotConnected
	}

	encodedPayload, err := payload.Encode(p.Payload)
	if err != nil {
		return protocol.SignResponse{}, fmt.Errorf("phoenix/dapp: encode payload: %w", err)
	}

	id, err := correlator.NewID(reqType)
	if err != nil {
		return protocol.SignResponse{}, fmt.Errorf("phoenix/dapp: generate request id: %w", err)
	}

	req := protocol.SignRequest{
		ID:        id,
		Type:      reqType,
		ChainType: p.ChainType,
		ChainID:   p.ChainID,
		Payload:   encodedPayload,
		Timestamp: time.Now().UnixMilli(),
	}

	resultCh := make(chan protocol.SignResponse, 1)
	errCh := make(chan error, 1)
	if err := c.corr.Add(id, reqType, c.cfg.RequestTimeout,
		func(resp protocol.SignResponse) { resultCh <- resp },
		func(err error) { errCh <- err },
	); err != nil {
		return protocol.SignResponse{}, fmt.Errorf("phoenix/dapp: %w", err)
	}

	ciphertext, nonce, err := c.engine.Encrypt(req)
	if err != nil {
		c.corr.Reject(id, err)
		return protocol.SignResponse{}, fmt.Errorf("phoenix/dapp: encrypt request: %w", err)
	}
	envelope := protocol.EncryptedEnvelope{
		UUID:             uuid,
		EncryptedPayload: ciphertext,
		Nonce:            nonce,
		Timestamp:        time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		c.corr.Reject(id, err)
		return protocol.SignResponse{}, fmt.Errorf("phoenix/dapp: marshal envelope: %w", err)
	}

	if err := c.transport.Send(ctx, transport.EventDappRequest, raw); err != nil {
		c.corr.Reject(id, err)
		return protocol.SignResponse{}, fmt.Errorf("phoenix/dapp: send request: %w", err)
	}

	c.log.WithContext(logger.ContextWithRequestID(ctx, id)).Debug("request sent", logger.String("type", string(reqType)))
	metrics.RequestsSent.WithLabelValues(string(reqType)).Inc()
	c.bus.Emit(events.RequestSent, id)
	start := time.Now()

	select {
	case resp := <-resultCh:
		metrics.RequestsResolved.WithLabelValues(string(resp.Status)).Inc()
		metrics.RequestDuration.WithLabelValues(string(reqType)).Observe(time.Since(start).Seconds())
		c.bus.Emit(events.RequestResponse, resp)
		return resp, nil
	case err := <-errCh:
		outcome := "error"
		if errors.Is(err, correlator.ErrRequestTimeout) {
			outcome = "timeout"
		} else if errors.Is(err, correlator.ErrSessionClosed) {
			outcome = "session_closed"
		}
		metrics.RequestsResolved.WithLabelValues(outcome).Inc()
		return protocol.SignResponse{}, err
	case <-ctx.Done():
		c.corr.Reject(id, ctx.Err())
		return protocol.SignResponse{}, ctx.Err()
	}
}

// Disconnect tears down the session: rejects all pending requests,
// closes the transport, clears the persisted session, and emits
// session_disconnected. It is a no-op while a reconnect is in flight
// (spec.md §4.7).
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.isReconnecting {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.corr.ClearAll(correlator.ErrSessionClosed)
	c.corr.Close()

	if err := c.transport.Disconnect(); err != nil {
		c.log.Warn("phoenix/dapp: transport disconnect failed", logger.Error(err))
	}
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("phoenix/dapp: clear persisted session failed", logger.Error(err))
	}

	c.bus.Emit(events.SessionDisconnected, nil)
	c.log.Info("session disconnected")
	return nil
}

func (c *Client) persist(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	return c.store.Save(ctx, sess, c.cfg.ServerURL, c.engine)
}

// handleConnectedUUID processes the wallet's pairing acknowledgement:
// binds the peer public key, flips the session to ACTIVE, and
// attempts to decrypt the optional address/chainType side channel.
func (c *Client) handleConnectedUUID(raw []byte) {
	var ack protocol.ConnectedUUID
	if err := json.Unmarshal(raw, &ack); err != nil {
		c.log.Warn("phoenix/dapp: malformed connected_uuid payload", logger.Error(err))
		return
	}

	if err := c.engine.BindPeerBase64(ack.PublicKey); err != nil {
		c.log.Warn("phoenix/dapp: bind peer key failed", logger.Error(err))
		c.bus.Emit(events.Error, fmt.Errorf("phoenix/dapp: %w", err))
		return
	}
	metrics.PeersBound.WithLabelValues("dapp").Inc()

	c.mu.Lock()
	c.sess.Connected = true
	if ack.EncryptedInfo != nil {
		var info protocol.ConnectedInfo
		if err := c.engine.Decrypt(ack.EncryptedInfo.EncryptedPayload, ack.EncryptedInfo.Nonce, &info); err == nil {
			c.sess.Address = info.Address
			c.sess.ChainType = info.ChainType
			c.sess.ChainID = info.ChainID
		} else {
			metrics.DecryptFailures.WithLabelValues("dapp").Inc()
		}
	}
	c.state = StateActive
	snapshot := c.sess
	c.mu.Unlock()

	if err := c.persist(context.Background()); err != nil {
		c.log.Warn("phoenix/dapp: persist bound session failed", logger.Error(err))
	}

	c.bus.Emit(events.SessionConnected, snapshot)
	c.log.Info("peer bound, session active", logger.String("uuid", snapshot.UUID))
}

// handleResponse decrypts an inbound dapp:response envelope, enforces
// the replay guard, and resolves/rejects the matching correlator entry.
func (c *Client) handleResponse(raw []byte) {
	var env protocol.EncryptedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("phoenix/dapp: malformed response envelope", logger.Error(err))
		return
	}

	var resp protocol.SignResponse
	if err := c.engine.Decrypt(env.EncryptedPayload, env.Nonce, &resp); err != nil {
		metrics.DecryptFailures.WithLabelValues("dapp").Inc()
		c.log.Warn("phoenix/dapp: response decrypt failed, dropping")
		return
	}

	if !protocol.WithinReplayWindow(resp.Timestamp, time.Now(), c.cfg.ReplayWindow, c.cfg.ReplaySkew) {
		c.log.Warn("phoenix/dapp: response outside replay window, dropping", logger.String("id", resp.ID))
		return
	}

	if resp.Status == protocol.StatusSuccess {
		c.corr.Resolve(resp.ID, resp)
	} else {
		c.corr.Reject(resp.ID, errors.New(resp.Error))
	}
}

// handleTransportDisconnect fans a terminal transport disconnect out
// as session_disconnected, unless a reconnect is currently absorbing
// it (the socket-cleanup race guard, spec.md §4.6/§5) or the session
// is already closed — Disconnect sets state to Closed before tearing
// down the transport, and the wsrelay adapter fires this handler
// synchronously from within its own Disconnect, so without this guard
// a plain Disconnect() call emits session_disconnected twice.
func (c *Client) handleTransportDisconnect(_ []byte) {
	c.mu.Lock()
	wasActive := c.state == StateActive && !c.isReconnecting
	c.mu.Unlock()
	if !wasActive {
		return
	}

	c.corr.ClearAll(correlator.ErrSessionClosed)
	c.bus.Emit(events.SessionDisconnected, nil)
}
