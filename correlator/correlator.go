// Package correlator implements the Request Correlator (C4): the
// DApp-only id → waiter table that matches asynchronous SignResponses
// back to the sign_* call that issued them, with per-request timeout
// and global cancellation (spec.md §4.4).
//
// Grounded on the teacher's session.Manager (session/manager.go): a
// mutex-guarded map plus a background ticker that sweeps expired
// entries, the same shape as Manager's cleanupTicker/runCleanup pair.
package correlator

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phoenix-x-project/phoenix/internal/logger"
	"github.com/phoenix-x-project/phoenix/protocol"
)

// ErrDuplicateRequestID is returned by Add when id is already pending.
var ErrDuplicateRequestID = errors.New("phoenix/correlator: duplicate request id")

// ErrRequestTimeout is the rejection reason for an entry whose deadline
// elapsed before a response arrived.
var ErrRequestTimeout = errors.New("phoenix/correlator: request timed out")

// ErrSessionClosed is the rejection reason used by ClearAll.
var ErrSessionClosed = errors.New("phoenix/correlator: session closed")

// entry is one pending request's waiter pair plus its metadata.
type entry struct {
	reqType  protocol.RequestType
	resolve  func(protocol.SignResponse)
	reject   func(error)
	deadline time.Time
}

// Correlator tracks pending sign_* requests for exactly one DApp client
// instance. It is not safe to share across clients (spec.md §5).
type Correlator struct {
	mu      sync.Mutex
	pending map[string]entry

	defaultTimeout time.Duration
	log            logger.Logger

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// New creates a Correlator. defaultTimeout is used by Add when no
// per-call override is given; it defaults to 60s (spec.md §5) if zero.
// The background timeout sweeper ticks at a quarter of defaultTimeout
// (bounded to [10ms, 1s]) so short test/demo timeouts are still
// observed promptly.
func New(defaultTimeout time.Duration, log logger.Logger) *Correlator {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	sweep := defaultTimeout / 4
	if sweep > time.Second {
		sweep = time.Second
	}
	if sweep < 10*time.Millisecond {
		sweep = 10 * time.Millisecond
	}
	return newWithSweepInterval(defaultTimeout, sweep, log)
}

func newWithSweepInterval(defaultTimeout, sweepInterval time.Duration, log logger.Logger) *Correlator {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	c := &Correlator{
		pending:        make(map[string]entry),
		defaultTimeout: defaultTimeout,
		log:            log,
		sweepInterval:  sweepInterval,
		stop:           make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// NewID mints a fresh request id of the form "{prefix}-{unix_ms}-{rand}"
// (spec.md §4.4), prefix determined by reqType.
func NewID(reqType protocol.RequestType) (string, error) {
	suffix, err := randomSuffix(4)
	if err != nil {
		return "", fmt.Errorf("phoenix/correlator: generate id suffix: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", reqType.IDPrefix(), time.Now().UnixMilli(), suffix), nil
}

func randomSuffix(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Add inserts a new pending entry. It fails with ErrDuplicateRequestID
// if id is already tracked. timeout, if zero, uses the Correlator's
// default.
func (c *Correlator) Add(id string, reqType protocol.RequestType, timeout time.Duration, resolve func(protocol.SignResponse), reject func(error)) error {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[id]; exists {
		return ErrDuplicateRequestID
	}
	c.pending[id] = entry{
		reqType:  reqType,
		resolve:  resolve,
		reject:   reject,
		deadline: time.Now().Add(timeout),
	}
	return nil
}

// Resolve removes id (if present) and invokes its resolve callback with
// resp. A response for an unknown (already resolved, timed-out, or
// never-added) id is a silent no-op, per spec.md §4.4.
func (c *Correlator) Resolve(id string, resp protocol.SignResponse) {
	e, ok := c.take(id)
	if !ok {
		c.log.Debug("correlator: late or unknown response dropped", logger.String("id", id))
		return
	}
	e.resolve(resp)
}

// Reject removes id (if present) and invokes its reject callback with
// err. Same late/unknown-id semantics as Resolve.
func (c *Correlator) Reject(id string, err error) {
	e, ok := c.take(id)
	if !ok {
		return
	}
	e.reject(err)
}

// ClearAll rejects every currently pending entry with err, emptying the
// table. Called on session teardown (disconnect()).
func (c *Correlator) ClearAll(err error) {
	c.mu.Lock()
	all := c.pending
	c.pending = make(map[string]entry)
	c.mu.Unlock()

	for id, e := range all {
		c.log.Debug("correlator: clearing pending request", logger.String("id", id), logger.Error(err))
		e.reject(err)
	}
}

// Len reports the number of currently pending requests, for tests and
// diagnostics.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops the background timeout sweeper. It does not clear
// pending entries; callers that want that should call ClearAll first.
func (c *Correlator) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Correlator) take(id string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return e, ok
}

// sweepLoop rejects any entry whose deadline has passed with
// ErrRequestTimeout, on a fixed tick, mirroring the teacher's
// Manager.runCleanup ticker.
func (c *Correlator) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Correlator) sweepExpired() {
	now := time.Now()

	c.mu.Lock()
	var expired []entry
	for id, e := range c.pending {
		if now.After(e.deadline) {
			expired = append(expired, e)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, e := range expired {
		e.reject(ErrRequestTimeout)
	}
}
