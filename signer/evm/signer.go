// Package evm is an example WalletSigner (spec.md §6) for the "evm"
// chain type, used by integration tests and cmd/phoenix-demo. It is
// never imported by the protocol core — only by signer.Signer callers
// that want a concrete chain implementation.
//
// Grounded on the teacher's secp256k1 key pair helper (adapted from
// its crypto/keys package) and on did/ethereum.Client's use of
// go-ethereum/crypto for Keccak256 hashing and address derivation.
package evm

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/phoenix-x-project/phoenix/signer"
)

// Signer is a secp256k1-keyed WalletSigner for EVM chains. It signs
// messages and transactions with the standard Keccak256-then-ECDSA
// scheme go-ethereum clients expect.
type Signer struct {
	privateKey *secp256k1.PrivateKey
	address    common.Address
}

// New generates a fresh secp256k1 key pair and derives its EVM address.
func New() (*Signer, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("phoenix/signer/evm: generate key: %w", err)
	}
	return fromPrivateKey(priv), nil
}

// NewFromHex builds a Signer from a hex-encoded secp256k1 private key,
// for deterministic test fixtures and demo wiring.
func NewFromHex(hexKey string) (*Signer, error) {
	priv, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("phoenix/signer/evm: parse private key: %w", err)
	}
	sk, _ := secp256k1.PrivKeyFromBytes(ethcrypto.FromECDSA(priv))
	return fromPrivateKey(sk), nil
}

func fromPrivateKey(priv *secp256k1.PrivateKey) *Signer {
	ecdsaPriv := priv.ToECDSA()
	addr := ethcrypto.PubkeyToAddress(ecdsaPriv.PublicKey)
	return &Signer{privateKey: priv, address: addr}
}

func (s *Signer) Address() string   { return s.address.Hex() }
func (s *Signer) ChainType() string { return "evm" }

// signHash applies go-ethereum's standard "\x19Ethereum Signed
// Message:\n" prefix before hashing and signing raw bytes, matching
// the convention wallet-side EVM signers use for arbitrary messages.
func (s *Signer) signHash(data []byte) (string, error) {
	prefixed := []byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(data)))
	hash := ethcrypto.Keccak256(append(prefixed, data...))

	sig, err := ethcrypto.Sign(hash, s.privateKey.ToECDSA())
	if err != nil {
		return "", fmt.Errorf("phoenix/signer/evm: sign: %w", err)
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

// SignMessage signs decoded, expected to be {"message": string} or a
// bare string, returning a 0x-prefixed signature.
func (s *Signer) SignMessage(decoded any) (string, error) {
	msg, err := extractMessage(decoded)
	if err != nil {
		return "", err
	}
	return s.signHash([]byte(msg))
}

// SignTransaction signs decoded, expected to be
// {"transaction": {...}} or {"to":..., "value":..., ...}; the core
// treats the transaction shape as opaque, so we sign its canonical
// JSON re-encoding rather than parsing EVM RLP fields.
func (s *Signer) SignTransaction(decoded any) (string, error) {
	raw, err := canonicalize(decoded)
	if err != nil {
		return "", err
	}
	return s.signHash(raw)
}

// SignAllTransactions signs each decoded transaction in turn.
func (s *Signer) SignAllTransactions(decoded any) ([]string, error) {
	list, err := extractTransactionList(decoded)
	if err != nil {
		return nil, err
	}
	sigs := make([]string, len(list))
	for i, tx := range list {
		sig, err := s.SignTransaction(tx)
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}
	return sigs, nil
}

// SendTransaction signs decoded and returns a synthetic transaction
// hash (Keccak256 of the signature) standing in for broadcast, since
// actual EVM broadcast is outside the protocol core's scope (spec.md
// §1: "Blockchain-specific signing... abstracted behind WalletSigner").
func (s *Signer) SendTransaction(decoded any) (string, error) {
	sig, err := s.SignTransaction(decoded)
	if err != nil {
		return "", err
	}
	return ethcrypto.Keccak256Hash([]byte(sig)).Hex(), nil
}

var _ signer.Signer = (*Signer)(nil)
