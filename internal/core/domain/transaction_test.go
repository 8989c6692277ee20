package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionID_RoundTrips(t *testing.T) {
	for _, orderID := range []uint64{1, 42, 18446744073709551615} {
		tranID := NewTransactionID(orderID)
		assert.Regexp(t, `^order_[0-9]+_[0-9a-f]{8}$`, tranID)

		parsed, err := ParseTransactionID(tranID)
		require.NoError(t, err)
		assert.Equal(t, orderID, parsed)
	}
}

func TestNewTransactionID_SuffixVaries(t *testing.T) {
	a := NewTransactionID(7)
	b := NewTransactionID(7)
	assert.NotEqual(t, a, b, "same order must get a fresh suffix per attempt")
}

func TestParseTransactionID_RejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"garbage",
		"order_",
		"order_7",
		"order_7_",
		"order_7_123",       // suffix too short
		"order_7_123456789", // suffix too long
		"order_7_ABCDEF01",  // uppercase hex
		"order_7_zzzzzzzz",
		"order_x_deadbeef",
		"order_-1_deadbeef",
		" order_7_deadbeef",
		"order_7_deadbeef ",
	}
	for _, tranID := range cases {
		_, err := ParseTransactionID(tranID)
		assert.ErrorIs(t, err, ErrInvalidTransactionID, "input %q", tranID)
	}
}
