// Command phoenix-demo wires a DApp and a Wallet client together over
// an in-memory transport in a single process: it pairs the two sides,
// sends one sign_message request that the wallet approves
// automatically, and then disconnects both clients. It does not run
// sign_transaction, reject, chain-mismatch, timeout, or reconnect
// flows. It is a protocol demonstration harness, not a dApp/wallet
// management CLI.
//
// Modeled on the teacher's cmd/test-client and cmd/test-server: a
// single main wiring both sides of a handshake together for local
// exercise, minus the gRPC plumbing this protocol doesn't use.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/phoenix-x-project/phoenix/config"
	"github.com/phoenix-x-project/phoenix/dapp"
	"github.com/phoenix-x-project/phoenix/events"
	"github.com/phoenix-x-project/phoenix/internal/logger"
	"github.com/phoenix-x-project/phoenix/metrics"
	"github.com/phoenix-x-project/phoenix/protocol"
	"github.com/phoenix-x-project/phoenix/signer/evm"
	"github.com/phoenix-x-project/phoenix/storage/memory"
	"github.com/phoenix-x-project/phoenix/transport/memtransport"
	"github.com/phoenix-x-project/phoenix/wallet"
)

func main() {
	log := logger.NewDefaultLogger()
	ctx := context.Background()

	const metricsAddr = "127.0.0.1:9464"
	go func() {
		if err := metrics.StartServer(metricsAddr); err != nil {
			log.Warn("metrics server stopped", logger.Error(err))
		}
	}()
	log.Info("metrics exposed", logger.String("addr", metricsAddr))

	cfg := config.Default()
	cfg.ServerURL = "memory://phoenix-demo"

	hub := memtransport.NewHub()

	dappClient, err := dapp.New(cfg, memtransport.New(hub), memory.NewAdapter(), log)
	if err != nil {
		log.Fatal("build dapp client", logger.Error(err))
	}
	walletClient, err := wallet.New(cfg, memtransport.New(hub), memory.NewAdapter(), log)
	if err != nil {
		log.Fatal("build wallet client", logger.Error(err))
	}

	sig, err := evm.New()
	if err != nil {
		log.Fatal("build evm signer", logger.Error(err))
	}

	dappClient.Events().On(events.SessionConnected, func(any) {
		fmt.Println("dapp: session_connected")
	})
	walletClient.Events().On(events.SignRequest, func(p any) {
		req := p.(protocol.SignRequest)
		fmt.Printf("wallet: sign_request id=%s type=%s\n", req.ID, req.Type)
		if err := walletClient.ApproveRequest(ctx, req.ID); err != nil {
			fmt.Printf("wallet: approve failed: %v\n", err)
		}
	})

	uri, uuid, err := dappClient.Connect(ctx)
	if err != nil {
		log.Fatal("dapp connect", logger.Error(err))
	}
	fmt.Printf("dapp: minted pairing uuid=%s uri=%s\n", uuid, uri)

	if err := walletClient.Connect(ctx, uri, sig); err != nil {
		log.Fatal("wallet connect", logger.Error(err))
	}

	// Give the synchronous-handler pump a moment to settle the
	// connected_uuid round trip before issuing a sign request.
	time.Sleep(10 * time.Millisecond)

	resp, err := dappClient.SignMessage(ctx, dapp.SignParams{
		ChainType: protocol.ChainEVM,
		ChainID:   "1",
		Payload:   map[string]any{"message": "hello from phoenix-demo"},
	})
	if err != nil {
		log.Fatal("sign_message", logger.Error(err))
	}
	fmt.Printf("dapp: sign_message resolved status=%s signature=%s\n", resp.Status, resp.Result.Signature)

	if err := dappClient.Disconnect(ctx); err != nil {
		log.Fatal("dapp disconnect", logger.Error(err))
	}
	if err := walletClient.Disconnect(ctx); err != nil {
		log.Fatal("wallet disconnect", logger.Error(err))
	}
}
