package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fluxorio/housebus/pkg/core"
)

// LoadJSON loads configuration from a JSON file.
//
// The document is decoded as JSON and then re-applied through the YAML
// decoder, so both formats share the yaml tags and the duration syntax.
func LoadJSON(path string, target interface{}) error {
	// #nosec G304 -- path comes from the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := core.JSONDecode(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	normalized, err := yaml.Marshal(wholeNumbersToInt(doc))
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if err := yaml.Unmarshal(normalized, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

// wholeNumbersToInt turns integral float64 values into int64 so the YAML
// encoder does not write them in exponent form.
func wholeNumbersToInt(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, e := range t {
			t[k] = wholeNumbersToInt(e)
		}
		return t
	case []interface{}:
		for i, e := range t {
			t[i] = wholeNumbersToInt(e)
		}
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	default:
		return v
	}
}
