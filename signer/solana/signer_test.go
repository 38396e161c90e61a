package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-x-project/phoenix/payload"
)

func TestSignMessageOverRawBytes(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	decoded := map[string]any{"message": []byte("hello solana")}
	sig, err := s.SignMessage(decoded)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
}

func TestRoundTripThroughPayloadTag(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	raw := []byte{9, 8, 7, 6}
	encoded, err := payload.Encode(map[string]any{"transaction": payload.EncodeBytes(raw)})
	require.NoError(t, err)

	decoded, err := payload.Decode(encoded)
	require.NoError(t, err)

	sig, err := s.SignTransaction(decoded)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
}

func TestSignMessageRejectsNonByteShapes(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	_, err = s.SignMessage(map[string]any{"message": "not bytes"})
	assert.Error(t, err)
}
