// Package transport abstracts the room-scoped relay message bus (C6).
// Phoenix core code never talks to a socket directly — it calls
// Adapter.Connect/Join/Send/On/Disconnect and treats everything else
// as an opaque byte pipe, per spec.md §4.6 and §6.
package transport

import "context"

// Wire event names. These are normative — spec.md §6 fixes them.
const (
	EventConnect       = "connect"
	EventDisconnect    = "disconnect"
	EventError         = "error"
	EventJoin          = "join"
	EventConnectedUUID = "connected_uuid"
	EventDappRequest   = "dapp:request"
	EventWalletRequest = "wallet:request"
	EventWalletResponse = "wallet:response"
	EventDappResponse  = "dapp:response"
)

// Handler receives the raw JSON payload of one event delivery.
// Adapters MUST invoke handlers single-threaded per instance (spec.md
// §4.6 concurrency note).
type Handler func(payload []byte)

// Adapter is the thin transport abstraction every client (C7/C8) is
// built against. Implementations: wsrelay (real gorilla/websocket
// relay) and memtransport (in-process hub, for tests/demo).
type Adapter interface {
	// Connect establishes the underlying session against serverURL.
	Connect(ctx context.Context, serverURL string) error

	// Join publishes {uuid} on the "join" event, placing this adapter
	// into the room identified by uuid.
	Join(ctx context.Context, uuid string) error

	// Send fire-and-forget publishes payload (already-encoded JSON) on
	// event, ordered per sender.
	Send(ctx context.Context, event string, payload []byte) error

	// On registers a handler for event. Registering again for the same
	// event replaces the previous handler.
	On(event string, handler Handler)

	// Disconnect tears down the connection. It is idempotent.
	Disconnect() error
}
