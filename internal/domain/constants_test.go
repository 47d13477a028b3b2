package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNetworkDeclined(t *testing.T) {
	for _, code := range []string{"08", "12", "91", "U30", "U67", "U68", "Z9"} {
		assert.True(t, IsNetworkDeclined(code), code)
	}
	assert.False(t, IsNetworkDeclined("00"))
	assert.False(t, IsNetworkDeclined("RB"))
	assert.False(t, IsNetworkDeclined("XX"))
}

func TestIsTerminalResponse(t *testing.T) {
	assert.True(t, IsTerminalResponse("00"))
	assert.True(t, IsTerminalResponse("RB"))
	assert.True(t, IsTerminalResponse("U30"))
	assert.False(t, IsTerminalResponse("XX"))
	assert.False(t, IsTerminalResponse(""))
}

func TestSourceOutcome(t *testing.T) {
	assert.Equal(t, OutcomeAbsent, SourceOutcome(nil))
	assert.Equal(t, OutcomeSuccess, SourceOutcome(&TransactionRecord{ResponseCode: "00"}))
	assert.Equal(t, OutcomeFailed, SourceOutcome(&TransactionRecord{ResponseCode: "U30"}))
}
