package types_test

import (
	"encoding/json"
	"testing"

	"github.com/i5heu/linkchain/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_MarshalJSON(t *testing.T) {
	record := types.NewRecord(3, 1700000000000, "hello, world", "abc", "def")

	expectedJSON := `{
    "position": 3,
    "createdAt": 1700000000000,
    "payload": "hello, world",
    "predecessorHash": "abc",
    "hash": "def"
}`

	jsonBytes, err := record.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, expectedJSON, string(jsonBytes))
}

func TestRecord_UnmarshalJSON(t *testing.T) {
	original := types.Seal(1, 42, "payload", types.GenesisPredecessor, types.SchemeDelimited)

	jsonBytes, err := json.Marshal([]types.Record{original})
	require.NoError(t, err)

	var decoded []types.Record
	require.NoError(t, json.Unmarshal(jsonBytes, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, original, decoded[0])
	assert.True(t, decoded[0].IsStructurallyValid())
}

func TestRecord_UnmarshalJSONInvalid(t *testing.T) {
	var record types.Record
	err := json.Unmarshal([]byte(`{"position": "abc"}`), &record)
	assert.Error(t, err)
}
