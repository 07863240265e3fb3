package psk31

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeDecodeVaricodeRoundTrip(t *testing.T) {
	for b := 0; b < 256; b++ {
		burst := EncodeVaricode(byte(b))
		require.NotZero(t, burst.Length, "byte %d has an empty codeword", b)

		decoded, ok := DecodeVaricode(burst)
		require.True(t, ok, "byte %d's codeword did not decode", b)
		assert.Equal(t, byte(b), decoded)
	}
}

// Every codeword ends in the two-zero gap and has no two consecutive zero
// bits before it.
func TestVaricodeNoConsecutiveZeros(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := rapid.IntRange(0, 255).Draw(rt, "byte")
		err := validateNoConsecutiveZeros(EncodeVaricode(byte(b)))
		assert.NoError(rt, err)
	})
}

func TestVaricodeTableHasNoDuplicateCodewords(t *testing.T) {
	seen := make(map[Burst]byte, 256)

	for b := 0; b < 256; b++ {
		burst := EncodeVaricode(byte(b))
		if prior, ok := seen[burst]; ok {
			t.Fatalf("codeword %v used for both %d and %d", burst, prior, b)
		}
		seen[burst] = byte(b)
	}
}
