//go:build !go1.24
// +build !go1.24

package core

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// numberAPI keeps numbers as json.Number so integral and fractional values
// can be told apart after decoding.
var numberAPI = sonic.Config{UseNumber: true}.Froze()

// JSONEncode encodes a value to JSON bytes using Sonic.
func JSONEncode(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, &Error{Code: "INVALID_INPUT", Message: "cannot encode nil value"}
	}

	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode failed: %w", err)
	}
	return data, nil
}

// JSONDecode decodes JSON bytes into v using Sonic.
func JSONDecode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return &Error{Code: "INVALID_INPUT", Message: "cannot decode empty data"}
	}
	if v == nil {
		return &Error{Code: "INVALID_INPUT", Message: "cannot decode into nil value"}
	}

	if err := sonic.Unmarshal(data, v); err != nil {
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

	if err := numberAPI.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode failed: %w", err)
	}
	return nil
}

// JSONValid reports whether data is a single well-formed JSON value.
func JSONValid(data []byte) bool {
	return sonic.Valid(data)
}
