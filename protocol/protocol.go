// Package protocol defines the authenticated plaintext and relay-visible
// wire types Phoenix carries inside and around the encrypted envelope:
// SignRequest, SignResponse, and EncryptedEnvelope (spec.md §3, §6).
package protocol

import "time"

// RequestType enumerates the four sign operations the protocol core
// supports. IDPrefix maps each type to its shorter Correlator id prefix
// (msg, tx, all, send; spec.md §4.4).
type RequestType string

const (
	SignMessage         RequestType = "sign_message"
	SignTransaction     RequestType = "sign_transaction"
	SignAllTransactions RequestType = "sign_all_transactions"
	SendTransaction     RequestType = "send_transaction"
)

// idPrefix returns the Correlator id prefix for this request type.
func (t RequestType) idPrefix() string {
	switch t {
	case SignMessage:
		return "msg"
	case SignTransaction:
		return "tx"
	case SignAllTransactions:
		return "all"
	case SendTransaction:
		return "send"
	default:
		return "req"
	}
}

// IDPrefix exposes idPrefix to other packages (correlator).
func (t RequestType) IDPrefix() string { return t.idPrefix() }

// ChainType identifies the target chain family a request is scoped to.
// The core never branches on it beyond equality comparison; chain
// semantics live entirely in the WalletSigner implementation.
type ChainType string

const (
	ChainEVM    ChainType = "evm"
	ChainSolana ChainType = "solana"
)

// Status is the terminal outcome carried by a SignResponse.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// SignRequest is the authenticated plaintext a DApp sends to request a
// signing operation (spec.md §3). Payload is an opaque JSON string
// produced by the Payload Codec (C3); its shape is chain- and
// type-specific and meaningless to the protocol core.
type SignRequest struct {
	ID        string      `json:"id"`
	Type      RequestType `json:"type"`
	ChainType ChainType   `json:"chainType"`
	ChainID   string      `json:"chainId"`
	Payload   string      `json:"payload"`
	Timestamp int64       `json:"timestamp"` // unix ms, the binding timestamp for the replay guard
}

// SignResult carries the chain-specific output of a successful sign
// operation. Exactly the fields relevant to Type are populated; the
// rest are omitted from the wire encoding.
type SignResult struct {
	Signature  string   `json:"signature,omitempty"`
	Signatures []string `json:"signatures,omitempty"`
	TxHash     string   `json:"txHash,omitempty"`
	Message    string   `json:"message,omitempty"`
	From       string   `json:"from,omitempty"`
}

// SignResponse is the authenticated plaintext a Wallet returns. Exactly
// one of Result or Error is populated, per Status (spec.md §3).
type SignResponse struct {
	ID        string      `json:"id"`
	Type      RequestType `json:"type"`
	Status    Status      `json:"status"`
	Result    *SignResult `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// EncryptedEnvelope is the only shape the relay and the Transport
// Adapter ever see: an opaque ciphertext plus the nonce needed to open
// it. The envelope Timestamp is advisory only — the authenticated
// payload inside carries its own binding timestamp (spec.md §3).
type EncryptedEnvelope struct {
	UUID              string `json:"uuid"`
	EncryptedPayload  string `json:"encryptedPayload"`
	Nonce             string `json:"nonce"`
	Timestamp         int64  `json:"timestamp"`
}

// ConnectedUUID is the wallet→dapp pairing acknowledgement carried on
// the connected_uuid transport event (spec.md §4.6, §6).
type ConnectedUUID struct {
	UUID      string `json:"uuid"`
	PublicKey string `json:"publicKey"`
	// EncryptedInfo, if present, is an EncryptedEnvelope carrying
	// {address, chainType, chainId} — the optional side channel
	// SPEC_FULL.md Open Question 1 resolves as tolerated-but-optional.
	EncryptedInfo *EncryptedEnvelope `json:"encryptedInfo,omitempty"`
}

// ConnectedInfo is the plaintext carried inside ConnectedUUID.EncryptedInfo.
type ConnectedInfo struct {
	Address   string `json:"address"`
	ChainType string `json:"chainType"`
	ChainID   string `json:"chainId,omitempty"`
}

// WithinReplayWindow reports whether a plaintext timestamp (unix ms, as
// carried by SignRequest/SignResponse) is within window in the past or
// skew in the future of now — the replay guard spec.md §5 requires on
// both inbound requests and responses.
func WithinReplayWindow(timestampMs int64, now time.Time, window, skew time.Duration) bool {
	ts := time.UnixMilli(timestampMs)
	age := now.Sub(ts)
	if age > window {
		return false
	}
	if age < -skew {
		return false
	}
	return true
}
