package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalTreeRecord serializes a TreeRecord to JSON bytes.
// Digests encode as hex strings via types.Digest.MarshalText.
func MarshalTreeRecord(record *TreeRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil TreeRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TreeRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalTreeRecord deserializes a TreeRecord from JSON bytes.
func UnmarshalTreeRecord(data []byte) (*TreeRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record TreeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to TreeRecord: %w", err)
	}

	return &record, nil
}
