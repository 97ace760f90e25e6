package store

import (
	"fmt"

	"github.com/roach88/tablemirror/internal/value"
)

// encodeArg converts a field value to a driver bind argument.
// Composite values are stored as canonical JSON TEXT since columns only
// accept scalars.
func encodeArg(v value.Value) (any, error) {
	switch val := v.(type) {
	case nil, value.Null:
		return nil, nil
	case value.Bool:
		return bool(val), nil
	case value.Int:
		return int64(val), nil
	case value.Float:
		return float64(val), nil
	case value.String:
		return string(val), nil
	case value.Object, value.Array, *value.TrackedObject, *value.TrackedArray:
		data, err := value.MarshalCanonical(val)
		if err != nil {
			return nil, fmt.Errorf("marshal composite: %w", err)
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// decodeColumn converts a scanned driver value to a field value.
// Text in a JSON/JSONB declared column is parsed back into a composite;
// text that is not valid JSON stays a string.
func decodeColumn(raw any, dbType string) (value.Value, error) {
	if isJSONType(dbType) {
		var text []byte
		switch b := raw.(type) {
		case string:
			text = []byte(b)
		case []byte:
			text = b
		}
		if text != nil {
			if v, err := value.Parse(text); err == nil {
				return v, nil
			}
		}
	}
	return value.FromAny(raw)
}

// scanRow reads the current row of rs into an Object keyed by column name.
func scanRow(rs rowScanner, cols []string, types []string) (value.Object, error) {
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rs.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	obj := make(value.Object, len(cols))
	for i, col := range cols {
		v, err := decodeColumn(raw[i], types[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		obj[col] = v
	}
	return obj, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
