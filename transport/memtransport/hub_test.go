package memtransport_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-x-project/phoenix/transport"
	"github.com/phoenix-x-project/phoenix/transport/memtransport"
)

func TestTransport_SendDeliversToRoomPeerOnly(t *testing.T) {
	ctx := context.Background()
	hub := memtransport.NewHub()

	a := memtransport.New(hub)
	b := memtransport.New(hub)
	outsider := memtransport.New(hub)
	defer a.Disconnect()
	defer b.Disconnect()
	defer outsider.Disconnect()

	require.NoError(t, a.Connect(ctx, "https://r.example"))
	require.NoError(t, b.Connect(ctx, "https://r.example"))
	require.NoError(t, outsider.Connect(ctx, "https://r.example"))

	require.NoError(t, a.Join(ctx, "room-1"))
	require.NoError(t, b.Join(ctx, "room-1"))
	require.NoError(t, outsider.Join(ctx, "room-2"))

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})
	b.On("custom_event", func(payload []byte) {
		mu.Lock()
		got = payload
		mu.Unlock()
		close(done)
	})
	outsider.On("custom_event", func(payload []byte) {
		t.Fatalf("outsider must not receive room-1 traffic")
	})

	require.NoError(t, a.Send(ctx, "custom_event", []byte(`{"id":"1"}`)))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, `{"id":"1"}`, string(got))
}

// TestTransport_RequestResponseEventsAreAliasedByDirection verifies
// spec.md §6's relay wire table: a dapp:request send arrives at the
// wallet side as wallet:request, and a wallet:response send arrives at
// the dapp side as dapp:response.
func TestTransport_RequestResponseEventsAreAliasedByDirection(t *testing.T) {
	ctx := context.Background()
	hub := memtransport.NewHub()

	dappSide := memtransport.New(hub)
	walletSide := memtransport.New(hub)
	defer dappSide.Disconnect()
	defer walletSide.Disconnect()

	require.NoError(t, dappSide.Connect(ctx, "https://r.example"))
	require.NoError(t, walletSide.Connect(ctx, "https://r.example"))
	require.NoError(t, dappSide.Join(ctx, "room-1"))
	require.NoError(t, walletSide.Join(ctx, "room-1"))

	gotRequest := make(chan struct{})
	walletSide.On(transport.EventWalletRequest, func([]byte) { close(gotRequest) })
	dappSide.On(transport.EventDappRequest, func([]byte) {
		t.Fatalf("sender must not receive its own dapp:request back under either name")
	})

	require.NoError(t, dappSide.Send(ctx, transport.EventDappRequest, []byte(`{}`)))
	select {
	case <-gotRequest:
	case <-time.After(time.Second):
		t.Fatal("wallet side never received dapp:request as wallet:request")
	}

	gotResponse := make(chan struct{})
	dappSide.On(transport.EventDappResponse, func([]byte) { close(gotResponse) })

	require.NoError(t, walletSide.Send(ctx, transport.EventWalletResponse, []byte(`{}`)))
	select {
	case <-gotResponse:
	case <-time.After(time.Second):
		t.Fatal("dapp side never received wallet:response as dapp:response")
	}
}

func TestTransport_SendBeforeJoinFails(t *testing.T) {
	ctx := context.Background()
	hub := memtransport.NewHub()
	a := memtransport.New(hub)
	defer a.Disconnect()

	require.NoError(t, a.Connect(ctx, "https://r.example"))
	err := a.Send(ctx, "dapp:request", []byte(`{}`))
	assert.Error(t, err)
}

func TestTransport_DisconnectFiresDisconnectEvent(t *testing.T) {
	ctx := context.Background()
	hub := memtransport.NewHub()
	a := memtransport.New(hub)

	fired := make(chan struct{})
	a.On(transport.EventDisconnect, func(payload []byte) { close(fired) })

	require.NoError(t, a.Connect(ctx, "https://r.example"))
	require.NoError(t, a.Disconnect())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("disconnect event never fired")
	}
}

func TestTransport_DisconnectIsIdempotent(t *testing.T) {
	a := memtransport.New(memtransport.NewHub())
	require.NoError(t, a.Disconnect())
	require.NoError(t, a.Disconnect())
}

var _ transport.Adapter = (*memtransport.Transport)(nil)
