package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64_RoundTrip(t *testing.T) {
	b := []byte("phoenix pairing public key material")
	encoded := Base64Encode(b)
	decoded, err := Base64Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
}

func TestBase64Decode_RequiresPadding(t *testing.T) {
	// "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA" is valid unpadded
	// base64 for 32 zero bytes; the strict standard-alphabet decoder
	// must reject it with padding stripped.
	_, err := Base64Decode("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	assert.Error(t, err)
}

func TestBase64Decode_RejectsURLSafeAlphabet(t *testing.T) {
	// "-" and "_" are the URL-safe alphabet's substitutes for "+" and
	// "/"; the strict standard decoder must not alias them.
	_, err := Base64Decode("--__")
	assert.Error(t, err)
}
