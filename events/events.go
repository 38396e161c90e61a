// Package events implements the typed, synchronous Event Bus (C9)
// shared by DappClient and WalletClient. Observers run on the calling
// goroutine — Phoenix's single-task-queue-per-client model (spec.md
// §5) means this is never contended — and a panicking observer is
// recovered and re-emitted as an Error event rather than unwinding
// into the emitter (spec.md §4.9).
package events

import (
	"fmt"
	"sync"

	"github.com/phoenix-x-project/phoenix/internal/logger"
)

// Name enumerates the fixed event vocabulary spec.md §4.9 defines.
// DApp and Wallet clients only ever emit the subset relevant to their
// role.
type Name string

const (
	SessionConnected    Name = "session_connected"
	SessionDisconnected Name = "session_disconnected"
	SessionRestored     Name = "session_restored"
	Error               Name = "error"

	// DApp-only.
	RequestSent     Name = "request_sent"
	RequestResponse Name = "request_response"

	// Wallet-only.
	SignRequest     Name = "sign_request"
	RequestApproved Name = "request_approved"
	RequestRejected Name = "request_rejected"
)

// Handler receives whatever payload the event carries: a Session for
// SessionConnected/Restored, an error for Error, a request id string
// for RequestSent/RequestApproved/RequestRejected, etc. Callers type-
// assert based on the Name they registered for.
type Handler func(payload any)

// Bus is a fixed-vocabulary, multi-subscriber publish/subscribe
// surface. One Bus belongs to exactly one client instance.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
	log      logger.Logger
}

// New creates an empty Bus.
func New(log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Bus{handlers: make(map[Name][]Handler), log: log}
}

// On registers handler to run whenever name is emitted. Multiple
// handlers may be registered for the same name; they run in
// registration order.
func (b *Bus) On(name Name, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Emit invokes every handler registered for name, in order, on the
// calling goroutine. A handler that panics is recovered; the panic is
// wrapped into an error and re-emitted as an Error event instead of
// propagating into Emit's caller (the transport/correlator callback
// that triggered this emission).
func (b *Bus) Emit(name Name, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.runSafely(name, h, payload)
	}
}

func (b *Bus) runSafely(name Name, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("phoenix/events: observer for %s panicked: %v", name, r)
			b.log.Error("event observer panicked", logger.String("event", string(name)), logger.Error(err))
			if name != Error {
				b.emitErrorSafely(err)
			}
		}
	}()
	h(payload)
}

// emitErrorSafely emits an Error event, itself guarded so an Error
// observer that also panics cannot recurse indefinitely.
func (b *Bus) emitErrorSafely(err error) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[Error]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("error observer itself panicked, dropping", logger.Any("panic", r))
				}
			}()
			h(err)
		}()
	}
}
