package types

import (
	"encoding/json"
	"fmt"
)

func (r Record) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(&struct {
		Position        uint32 `json:"position"`
		CreatedAt       uint64 `json:"createdAt"`
		Payload         string `json:"payload"`
		PredecessorHash string `json:"predecessorHash"`
		Hash            string `json:"hash"`
	}{
		Position:        r.Position,
		CreatedAt:       r.CreatedAt,
		Payload:         r.Payload,
		PredecessorHash: r.PredecessorHash,
		Hash:            r.Hash,
	}, "", "    ")
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var aux struct {
		Position        uint32 `json:"position"`
		CreatedAt       uint64 `json:"createdAt"`
		Payload         string `json:"payload"`
		PredecessorHash string `json:"predecessorHash"`
		Hash            string `json:"hash"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	*r = NewRecord(aux.Position, aux.CreatedAt, aux.Payload, aux.PredecessorHash, aux.Hash)
	return nil
}
