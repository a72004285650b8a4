package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferPayloadMarshalIsDeterministic(t *testing.T) {
	p := TransferPayload{
		Success:       true,
		Version:       PayloadVersion,
		TransactionID: "b6a7e9a0-9c1d-4a55-8e9e-0a4c9a4b5a10",
		Status:        "SUCCEEDED",
		FromAccountID: "11111111-1111-1111-1111-111111111111",
		ToAccountID:   "22222222-2222-2222-2222-222222222222",
		Amount:        2500,
		CompletedAt:   "2026-08-24T10:00:00Z",
	}

	first, err := p.Marshal()
	require.NoError(t, err)
	second, err := p.Marshal()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTransferPayloadCarriesSuccessAndVersion(t *testing.T) {
	payload, err := TransferPayload{
		Success:       true,
		Version:       PayloadVersion,
		TransactionID: "b6a7e9a0-9c1d-4a55-8e9e-0a4c9a4b5a10",
		Status:        "SUCCEEDED",
		FromAccountID: "11111111-1111-1111-1111-111111111111",
		ToAccountID:   "22222222-2222-2222-2222-222222222222",
		Amount:        3000,
	}.Marshal()
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &m))
	assert.Equal(t, true, m["success"])
	assert.Equal(t, float64(PayloadVersion), m["version"])
	assert.Equal(t, float64(3000), m["amount"])

	// A rejection marshals success explicitly, not as an omitted zero value.
	rejected, err := TransferPayload{
		Version:       PayloadVersion,
		TransactionID: "b6a7e9a0-9c1d-4a55-8e9e-0a4c9a4b5a10",
		Status:        "REJECTED",
		FromAccountID: "11111111-1111-1111-1111-111111111111",
		ToAccountID:   "22222222-2222-2222-2222-222222222222",
		Amount:        3000,
		Reason:        "INSUFFICIENT_FUNDS",
	}.Marshal()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(rejected, &m))
	assert.Equal(t, false, m["success"])
}

func TestCanonicalizePayloadNormalizesKeyOrder(t *testing.T) {
	p := TransferPayload{
		Success:       false,
		Version:       PayloadVersion,
		TransactionID: "b6a7e9a0-9c1d-4a55-8e9e-0a4c9a4b5a10",
		Status:        "REJECTED",
		FromAccountID: "11111111-1111-1111-1111-111111111111",
		ToAccountID:   "22222222-2222-2222-2222-222222222222",
		Amount:        2500,
		Reason:        "INSUFFICIENT_FUNDS",
	}
	want, err := p.Marshal()
	require.NoError(t, err)

	// JSONB storage may hand keys back in any order.
	scrambled := []byte(`{"reason":"INSUFFICIENT_FUNDS","amount":2500,` +
		`"version":1,"success":false,` +
		`"to_account_id":"22222222-2222-2222-2222-222222222222",` +
		`"from_account_id":"11111111-1111-1111-1111-111111111111",` +
		`"status":"REJECTED","transaction_id":"b6a7e9a0-9c1d-4a55-8e9e-0a4c9a4b5a10"}`)

	got, err := CanonicalizePayload(scrambled)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTransactionStatusIsTerminal(t *testing.T) {
	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.True(t, TransactionStatusSucceeded.IsTerminal())
	assert.True(t, TransactionStatusRejected.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
}
