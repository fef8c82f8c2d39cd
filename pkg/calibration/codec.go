package calibration

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a model for the external persistence collaborator. The
// engine itself never touches storage; this fixes the wire format so the
// collaborator can round-trip models across runs.
func Encode(m *Model) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode calibration model: %w", err)
	}
	return data, nil
}

// Decode deserializes a previously encoded model and sanity-checks it.
func Decode(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode calibration model: %w", err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("decode calibration model: missing version")
	}
	return &m, nil
}
