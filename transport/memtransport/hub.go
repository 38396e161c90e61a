// Package memtransport is an in-process room-scoped message bus
// implementing transport.Adapter, for tests and cmd/phoenix-demo. It
// plays the role of the relay server without any sockets: a Hub holds
// room membership, and Send on one Transport fans out synchronously to
// every other member's inbox, preserving per-sender send order.
//
// Modeled on the teacher's MockTransport capture/inject pattern
// (pkg/agent/transport/mock.go), adapted from request/response RPC to
// fire-and-forget room broadcast.
package memtransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/phoenix-x-project/phoenix/transport"
)

// Hub is the shared in-process relay. Create one Hub per simulated
// relay server; every Transport that should be able to reach another
// must share the same Hub.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Transport]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Transport]struct{})}
}

func (h *Hub) join(uuid string, t *Transport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[uuid]
	if !ok {
		members = make(map[*Transport]struct{})
		h.rooms[uuid] = members
	}
	members[t] = struct{}{}
}

func (h *Hub) leave(uuid string, t *Transport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[uuid]; ok {
		delete(members, t)
		if len(members) == 0 {
			delete(h.rooms, uuid)
		}
	}
}

// deliveryAlias renames a sent event to the name its recipients listen
// on, matching spec.md §6's wire table: wallet:request is "a relay-
// forwarded alias of dapp:request on wallet side", and dapp:response
// likewise aliases wallet:response. A real relay performs this rename
// at the transport boundary; Hub stands in for that relay for
// in-process tests and the demo binary, so it must too. join and
// connected_uuid are genuinely the same event both sides and pass
// through unchanged.
func deliveryAlias(event string) string {
	switch event {
	case transport.EventDappRequest:
		return transport.EventWalletRequest
	case transport.EventWalletResponse:
		return transport.EventDappResponse
	default:
		return event
	}
}

// broadcast delivers event/payload to every member of uuid's room
// except from, renaming it per deliveryAlias. Delivery to each member
// is queued on that member's own inbox, so cross-member ordering is
// per-sender only (spec.md §5).
func (h *Hub) broadcast(uuid, event string, payload []byte, from *Transport) {
	h.mu.Lock()
	members := make([]*Transport, 0, len(h.rooms[uuid]))
	for t := range h.rooms[uuid] {
		if t != from {
			members = append(members, t)
		}
	}
	h.mu.Unlock()

	delivered := deliveryAlias(event)
	for _, t := range members {
		t.deliver(delivered, payload)
	}
}

type delivery struct {
	event   string
	payload []byte
}

// Transport is a transport.Adapter backed by a Hub.
type Transport struct {
	hub  *Hub
	uuid string

	mu        sync.RWMutex
	handlers  map[string]func([]byte)
	connected bool

	inbox  chan delivery
	done   chan struct{}
	closed bool
}

// New creates a Transport attached to hub. It is not connected or
// joined to any room until Connect/Join are called.
func New(hub *Hub) *Transport {
	t := &Transport{
		hub:      hub,
		handlers: make(map[string]func([]byte)),
		inbox:    make(chan delivery, 64),
		done:     make(chan struct{}),
	}
	go t.pump()
	return t
}

// pump delivers inbox entries to registered handlers one at a time,
// giving each Transport instance single-threaded handler invocation.
func (t *Transport) pump() {
	for {
		select {
		case d := <-t.inbox:
			t.mu.RLock()
			h := t.handlers[d.event]
			t.mu.RUnlock()
			if h != nil {
				h(d.payload)
			}
		case <-t.done:
			return
		}
	}
}

func (t *Transport) deliver(event string, payload []byte) {
	select {
	case t.inbox <- delivery{event: event, payload: payload}:
	case <-t.done:
	}
}

func (t *Transport) Connect(ctx context.Context, serverURL string) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	t.deliver(transport.EventConnect, nil)
	return nil
}

func (t *Transport) Join(ctx context.Context, uuid string) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return fmt.Errorf("phoenix/transport/memtransport: not connected")
	}
	t.uuid = uuid
	t.mu.Unlock()

	t.hub.join(uuid, t)
	return nil
}

func (t *Transport) Send(ctx context.Context, event string, payload []byte) error {
	t.mu.RLock()
	uuid := t.uuid
	connected := t.connected
	t.mu.RUnlock()

	if !connected {
		return fmt.Errorf("phoenix/transport/memtransport: not connected")
	}
	if uuid == "" {
		return fmt.Errorf("phoenix/transport/memtransport: not joined to a room")
	}

	t.hub.broadcast(uuid, event, payload, t)
	return nil
}

func (t *Transport) On(event string, handler func(payload []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = handler
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	uuid := t.uuid
	connected := t.connected
	t.connected = false
	t.mu.Unlock()

	if uuid != "" {
		t.hub.leave(uuid, t)
	}
	if connected {
		t.deliver(transport.EventDisconnect, nil)
	}
	close(t.done)
	return nil
}
