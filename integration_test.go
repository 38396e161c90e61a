// Package phoenix contains end-to-end tests wiring the DApp and
// Wallet clients together over the in-memory transport, exercising
// the S1-S6 scenarios spec.md §8 describes.
package phoenix

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-x-project/phoenix/config"
	"github.com/phoenix-x-project/phoenix/dapp"
	"github.com/phoenix-x-project/phoenix/events"
	"github.com/phoenix-x-project/phoenix/protocol"
	"github.com/phoenix-x-project/phoenix/signer/evm"
	"github.com/phoenix-x-project/phoenix/storage/memory"
	"github.com/phoenix-x-project/phoenix/transport/memtransport"
	"github.com/phoenix-x-project/phoenix/wallet"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ServerURL = "https://r.example"
	cfg.RequestTimeout = 200 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// newPairedClients drives S1 end to end: DApp mints a pairing, Wallet
// parses it and announces back, both sides reach ACTIVE.
func newPairedClients(t *testing.T) (*dapp.Client, *wallet.Client, *evm.Signer) {
	t.Helper()
	hub := memtransport.NewHub()

	dappT := memtransport.New(hub)
	walletT := memtransport.New(hub)

	dc, err := dapp.New(testConfig(), dappT, memory.NewAdapter(), nil)
	require.NoError(t, err)
	wc, err := wallet.New(testConfig(), walletT, memory.NewAdapter(), nil)
	require.NoError(t, err)

	connected := make(chan struct{})
	dc.Events().On(events.SessionConnected, func(any) { close(connected) })

	ctx := context.Background()
	uri, _, err := dc.Connect(ctx)
	require.NoError(t, err)

	sig, err := evm.New()
	require.NoError(t, err)
	require.NoError(t, wc.Connect(ctx, uri, sig))

	waitFor(t, connected, "dapp session_connected")
	assert.Equal(t, dapp.StateActive, dc.State())
	assert.Equal(t, wallet.StateActive, wc.State())
	assert.True(t, dc.Session().Connected)

	return dc, wc, sig
}

func TestS1Pairing(t *testing.T) {
	dc, wc, _ := newPairedClients(t)
	assert.Equal(t, dc.Session().UUID, wc.Session().UUID)
}

func TestS2SignMessageHappyPath(t *testing.T) {
	dc, wc, _ := newPairedClients(t)

	signRequested := make(chan protocol.SignRequest, 1)
	wc.Events().On(events.SignRequest, func(p any) { signRequested <- p.(protocol.SignRequest) })

	ctx := context.Background()
	done := make(chan struct{})
	var resp protocol.SignResponse
	var reqErr error
	go func() {
		resp, reqErr = dc.SignMessage(ctx, dapp.SignParams{
			ChainType: protocol.ChainEVM,
			ChainID:   "1",
			Payload:   map[string]any{"message": "hello"},
		})
		close(done)
	}()

	var req protocol.SignRequest
	select {
	case req = <-signRequested:
	case <-time.After(2 * time.Second):
		t.Fatal("wallet never received sign_request")
	}
	require.NoError(t, wc.ApproveRequest(ctx, req.ID))

	waitFor(t, done, "sign_message future to resolve")
	require.NoError(t, reqErr)
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.NotEmpty(t, resp.Result.Signature)
	assert.Equal(t, "hello", resp.Result.Message)
}

func TestS3UserReject(t *testing.T) {
	dc, wc, _ := newPairedClients(t)

	signRequested := make(chan protocol.SignRequest, 1)
	wc.Events().On(events.SignRequest, func(p any) { signRequested <- p.(protocol.SignRequest) })

	ctx := context.Background()
	done := make(chan struct{})
	var reqErr error
	go func() {
		_, reqErr = dc.SignTransaction(ctx, dapp.SignParams{
			ChainType: protocol.ChainEVM,
			ChainID:   "1",
			Payload:   map[string]any{"to": "0x0000000000000000000000000000000000000000", "value": "0x1"},
		})
		close(done)
	}()

	req := <-signRequested
	require.NoError(t, wc.RejectRequest(ctx, req.ID, "User declined"))

	waitFor(t, done, "sign_transaction future to reject")
	require.Error(t, reqErr)
	assert.Contains(t, reqErr.Error(), "User declined")
}

func TestS4Timeout(t *testing.T) {
	dc, wc, _ := newPairedClients(t)
	_ = wc // wallet never responds

	ctx := context.Background()
	start := time.Now()
	_, err := dc.SignMessage(ctx, dapp.SignParams{
		ChainType: protocol.ChainEVM,
		ChainID:   "1",
		Payload:   map[string]any{"message": "never answered"},
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, elapsed, time.Second)
}

func TestS6ChainMismatch(t *testing.T) {
	dc, wc, _ := newPairedClients(t)

	var mu sync.Mutex
	signRequestFired := false
	wc.Events().On(events.SignRequest, func(any) {
		mu.Lock()
		signRequestFired = true
		mu.Unlock()
	})

	ctx := context.Background()
	resp, err := dc.SignMessage(ctx, dapp.SignParams{
		ChainType: protocol.ChainSolana,
		ChainID:   "mainnet",
		Payload:   map[string]any{"message": "hi"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Chain type mismatch")
	_ = resp

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, signRequestFired, "sign_request must not fire on chain mismatch")
}

func TestSingleFlightAtWallet(t *testing.T) {
	_, wc, _ := newPairedClients(t)
	_, ok := wc.PendingRequestID()
	assert.False(t, ok)
}

// TestDisconnectEmitsSessionDisconnectedOnce guards spec.md:148's
// single-emission contract: a plain Disconnect() must not also trip
// the transport's own disconnect handler into firing a second
// session_disconnected, which wsrelay's synchronous EventDisconnect
// fire would otherwise cause.
func TestDisconnectEmitsSessionDisconnectedOnce(t *testing.T) {
	dc, wc, _ := newPairedClients(t)

	var mu sync.Mutex
	count := 0
	dc.Events().On(events.SessionDisconnected, func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx := context.Background()
	require.NoError(t, dc.Disconnect(ctx))
	require.NoError(t, wc.Disconnect(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "session_disconnected must fire exactly once")
}

// TestS5ReloadSafeReconnect drives spec.md §8 S5: a DApp pairs, signs
// once, and persists; a fresh Client built against the same storage
// restores the session and a subsequent sign succeeds without
// reissuing pairing.
func TestS5ReloadSafeReconnect(t *testing.T) {
	hub := memtransport.NewHub()
	dappStorage := memory.NewAdapter()
	ctx := context.Background()
	cfg := testConfig()

	dappT := memtransport.New(hub)
	walletT := memtransport.New(hub)

	dc, err := dapp.New(cfg, dappT, dappStorage, nil)
	require.NoError(t, err)
	wc, err := wallet.New(cfg, walletT, memory.NewAdapter(), nil)
	require.NoError(t, err)

	connected := make(chan struct{})
	dc.Events().On(events.SessionConnected, func(any) { close(connected) })

	uri, uuid, err := dc.Connect(ctx)
	require.NoError(t, err)

	sig, err := evm.New()
	require.NoError(t, err)
	require.NoError(t, wc.Connect(ctx, uri, sig))
	waitFor(t, connected, "dapp session_connected")

	signRequested := make(chan protocol.SignRequest, 1)
	wc.Events().On(events.SignRequest, func(p any) { signRequested <- p.(protocol.SignRequest) })
	done := make(chan struct{})
	var firstResp protocol.SignResponse
	go func() {
		firstResp, err = dc.SignMessage(ctx, dapp.SignParams{
			ChainType: protocol.ChainEVM, ChainID: "1",
			Payload: map[string]any{"message": "before restart"},
		})
		close(done)
	}()
	req := <-signRequested
	require.NoError(t, wc.ApproveRequest(ctx, req.ID))
	waitFor(t, done, "first sign_message to resolve")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, firstResp.Status)

	// Simulate a process restart: a fresh Client reads the same storage
	// without ever calling Disconnect (which would clear it). It shares
	// the wallet's still-live room via a new transport on the same hub.
	dappT2 := memtransport.New(hub)
	dc2, err := dapp.New(cfg, dappT2, dappStorage, nil)
	require.NoError(t, err)

	restored, err := dc2.Restore(ctx)
	require.NoError(t, err)
	require.True(t, restored, "restart should find the persisted session")
	assert.Equal(t, uuid, dc2.Session().UUID)

	require.NoError(t, dc2.Reconnect(ctx))
	assert.Equal(t, dapp.StateActive, dc2.State())
	assert.True(t, dc2.Session().Connected, "peer key was bound before restart, so reconnect resumes ACTIVE directly")

	done2 := make(chan struct{})
	var secondResp protocol.SignResponse
	go func() {
		secondResp, err = dc2.SignMessage(ctx, dapp.SignParams{
			ChainType: protocol.ChainEVM, ChainID: "1",
			Payload: map[string]any{"message": "after restart"},
		})
		close(done2)
	}()
	req2 := <-signRequested
	require.NoError(t, wc.ApproveRequest(ctx, req2.ID))
	waitFor(t, done2, "post-restart sign_message to resolve")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, secondResp.Status)
}
