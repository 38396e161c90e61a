// Package signer declares the WalletSigner capability (spec.md §6):
// the external collaborator a WalletClient dispatches decoded sign
// requests to. The protocol core never imports a concrete
// implementation — only this interface — keeping chain-specific
// signing logic (package signer/evm, signer/solana) out of the core,
// per spec.md §1's scope boundary and §9's design note on realizing
// the source's connector hierarchy as an interface plus dispatch table.
package signer

import "errors"

// ErrUnsupportedOperation is the error a concrete Signer returns from
// SignAllTransactions or SendTransaction when it does not support that
// operation.
var ErrUnsupportedOperation = errors.New("phoenix/signer: operation not supported by this signer")

// Signer is the capability a Wallet client needs to actually perform
// chain operations. Address/ChainType are exposed once (used in the
// connected_uuid side channel); the four Sign*/Send* methods are
// invoked at most one at a time, dispatched by SignRequest.Type
// (spec.md §4.8).
//
// SignAllTransactions and SendTransaction are optional: a Signer that
// does not support them should implement them by returning
// ErrUnsupportedOperation. The wallet client sends any signer error,
// this one included, back to the DApp as a status=error response
// carrying the error's message.
type Signer interface {
	// Address is the signer's chain address, surfaced in the optional
	// connected_uuid encrypted side channel.
	Address() string

	// ChainType is the chain family this signer accepts requests for;
	// a request with a different ChainType is auto-rejected with
	// ChainTypeMismatch before the signer is ever invoked.
	ChainType() string

	// SignMessage signs an opaque message payload and returns a
	// signature string.
	SignMessage(decoded any) (signature string, err error)

	// SignTransaction signs a single decoded transaction and returns
	// a signature string.
	SignTransaction(decoded any) (signature string, err error)

	// SignAllTransactions signs a batch of decoded transactions.
	SignAllTransactions(decoded any) (signatures []string, err error)

	// SendTransaction signs and broadcasts a decoded transaction,
	// returning the resulting transaction hash.
	SendTransaction(decoded any) (txHash string, err error)
}
