package psk31

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimestamperEmptyPatternDisablesPrefix(t *testing.T) {
	ts, err := newTimestamper("")
	require.NoError(t, err)
	assert.Empty(t, ts.prefix(time.Now()))
}

func TestNewTimestamperFormatsPattern(t *testing.T) {
	ts, err := newTimestamper("%Y-%m-%d")
	require.NoError(t, err)

	when := time.Date(2026, time.July, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-07-31 ", ts.prefix(when))
}

func TestNilTimestamperPrefixIsEmpty(t *testing.T) {
	var ts *timestamper
	assert.Empty(t, ts.prefix(time.Now()))
}
