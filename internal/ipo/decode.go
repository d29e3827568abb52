package ipo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeRawRecords accepts either a bare JSON array of records or an
// object with a "records" array.
func decodeRawRecords(data []byte) ([]RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '{' {
		var wrapped struct {
			Records []RawRecord `json:"records"`
		}
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
		return wrapped.Records, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var records []RawRecord
	if err := decoder.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return records, nil
}
