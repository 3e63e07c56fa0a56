package asr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Timestamps is the FunASR token timing list. It decodes from an inline JSON
// array of pairs and from the same array encoded as a JSON string, which is
// how the websocket runtime sends it.
type Timestamps [][2]int64

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamps) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = nil
			return nil
		}
		data = []byte(s)
	}

	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	out := make(Timestamps, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("decode timestamp: entry %d has %d values, want 2", i, len(p))
		}
		out[i] = [2]int64{int64(p[0]), int64(p[1])}
	}
	*t = out
	return nil
}

// DecodeResults reads FunASR output in any of the shapes it is commonly
// stored as: the HTTP service response {"result": [...]}, a bare array of
// results, or a single result object.
func DecodeResults(r io.Reader) ([]Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("decode results: empty input")
	}

	switch data[0] {
	case '[':
		var results []Result
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return results, nil
	case '{':
		var envelope struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		if len(envelope.Result) > 0 && !bytes.Equal(envelope.Result, []byte("null")) {
			return DecodeResults(bytes.NewReader(envelope.Result))
		}
		var single Result
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return []Result{single}, nil
	default:
		return nil, fmt.Errorf("decode results: unexpected leading byte %q", data[0])
	}
}
