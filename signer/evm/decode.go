package evm

import (
	"encoding/json"
	"fmt"
)

// extractMessage pulls a plain-text message out of a decoded
// sign_message payload, accepting either a bare string or a
// {"message": string} object — both shapes appear in the wild.
func extractMessage(decoded any) (string, error) {
	switch v := decoded.(type) {
	case string:
		return v, nil
	case map[string]any:
		if m, ok := v["message"].(string); ok {
			return m, nil
		}
	}
	return "", fmt.Errorf("phoenix/signer/evm: sign_message payload missing \"message\" string")
}

// canonicalize re-encodes decoded as deterministic JSON bytes, used as
// the signable representation of an opaque transaction object.
func canonicalize(decoded any) ([]byte, error) {
	b, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("phoenix/signer/evm: canonicalize transaction: %w", err)
	}
	return b, nil
}

// extractTransactionList pulls the ["transactions"] array out of a
// decoded sign_all_transactions payload (spec.md §4.8).
func extractTransactionList(decoded any) ([]any, error) {
	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("phoenix/signer/evm: sign_all_transactions payload must be an object")
	}
	list, ok := m["transactions"].([]any)
	if !ok {
		return nil, fmt.Errorf("phoenix/signer/evm: sign_all_transactions payload missing \"transactions\" array")
	}
	return list, nil
}
