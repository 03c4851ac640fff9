//go:build go1.24
// +build go1.24

package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONEncode encodes a value to JSON bytes.
//
// Go 1.24+: Sonic's JIT loader does not support the newer runtime ABI, so the
// standard library is used instead.
func JSONEncode(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, &Error{Code: "INVALID_INPUT", Message: "cannot encode nil value"}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode failed: %w", err)
	}
	return data, nil
}

// JSONDecode decodes JSON bytes into v.
func JSONDecode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return &Error{Code: "INVALID_INPUT", Message: "cannot decode empty data"}
	}
	if v == nil {
		return &Error{Code: "INVALID_INPUT", Message: "cannot decode into nil value"}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode failed: %w", err)
	}
	return nil
}

// JSONDecodeNumber is JSONDecode with numbers decoded as json.Number.
func JSONDecodeNumber(data []byte, v interface{}) error {
	if len(data) == 0 {
		return &Error{Code: "INVALID_INPUT", Message: "cannot decode empty data"}
	}
	if v == nil {
		return &Error{Code: "INVALID_INPUT", Message: "cannot decode into nil value"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("json decode failed: %w", err)
	}
	// Trailing data is malformed input, same as json.Unmarshal.
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("json decode failed: trailing data after top-level value")
	}
	return nil
}

// JSONValid reports whether data is a single well-formed JSON value.
func JSONValid(data []byte) bool {
	return json.Valid(data)
}
