package psk31

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverridePeripheralBasesKnownGenerations(t *testing.T) {
	bcm2835, err := OverridePeripheralBases("bcm2835")
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x20007000), bcm2835.DMA)
	assert.Equal(t, uintptr(0x20200000), bcm2835.GPIO)

	bcm2711, err := OverridePeripheralBases("bcm2711")
	require.NoError(t, err)
	assert.Equal(t, uintptr(0xfe007000), bcm2711.DMA)
	assert.Equal(t, uintptr(0xfe200000), bcm2711.GPIO)
}

func TestOverridePeripheralBasesUnknownGeneration(t *testing.T) {
	_, err := OverridePeripheralBases("bcm9999")
	assert.Error(t, err)
}

func TestCompatibleGenerationsCoverEveryKnownBase(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range compatibleGenerations {
		seen[c.gen] = true
	}

	for gen := range knownBases {
		assert.True(t, seen[gen], "no compatible-string entry maps to %q", gen)
	}
}
