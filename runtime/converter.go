package runtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// CoerceValue converts a raw input value to the declared flow input type.
// CLI and API callers hand over strings or loosely typed JSON values, so
// conversion is deliberately weak: "42" coerces to int, "true" to bool.
func CoerceValue(value any, typ string) (any, error) {
	switch typ {
	case "", "string":
		var out string
		if err := weakDecode(value, &out); err != nil {
			return nil, err
		}
		return out, nil

	case "int":
		var out int
		if err := weakDecode(value, &out); err != nil {
			return nil, err
		}
		return out, nil

	case "float":
		var out float64
		if err := weakDecode(value, &out); err != nil {
			return nil, err
		}
		return out, nil

	case "bool":
		if s, ok := value.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "1", "yes", "on", "y":
				return true, nil
			case "false", "0", "no", "off", "n":
				return false, nil
			}
			return nil, fmt.Errorf("cannot convert %q to bool", s)
		}
		var out bool
		if err := weakDecode(value, &out); err != nil {
			return nil, err
		}
		return out, nil

	case "list":
		// A comma-separated string is split; anything else must already
		// be a sequence.
		if s, ok := value.(string); ok {
			parts := make([]any, 0)
			for _, p := range strings.Split(s, ",") {
				if trimmed := strings.TrimSpace(p); trimmed != "" {
					parts = append(parts, trimmed)
				}
			}
			return parts, nil
		}
		var out []any
		if err := weakDecode(value, &out); err != nil {
			return nil, err
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported input type %q", typ)
	}
}

func weakDecode(value, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(value); err != nil {
		return fmt.Errorf("cannot convert %v: %w", value, err)
	}
	return nil
}

// sortedKeys returns map keys in sorted order for deterministic iteration.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
