package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores loosely structured metadata as JSONB.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	result := make(JSONMap)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*m = result
	return nil
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("json: unsupported scan type %T", value)
	}
}
