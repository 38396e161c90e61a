package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := map[string]any{
		"to":    "0x0000000000000000000000000000000000000000",
		"value": "0x1",
	}
	s, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, "0x1", out.(map[string]any)["value"])
}

func TestByteArrayRoundTrip(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5}
	in := map[string]any{
		"transaction": EncodeBytes(raw),
	}
	s, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(s)
	require.NoError(t, err)

	m := out.(map[string]any)
	decoded, ok := m["transaction"].([]byte)
	require.True(t, ok, "expected []byte, got %T", m["transaction"])
	assert.Equal(t, raw, decoded)
}

func TestDecodeIntoShapedStruct(t *testing.T) {
	type txList struct {
		Transactions []string `json:"transactions"`
	}
	var out txList
	err := DecodeInto(`{"transactions":["a","b"]}`, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Transactions)
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := Decode("not json")
	assert.Error(t, err)
}
