package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func decodeStringSlice(js datatypes.JSON) []string {
	if len(js) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(js, &out); err != nil {
		return nil
	}
	return out
}

// MustJSON marshals v, panicking only on unmarshalable values (maps of
// plain values everywhere in this codebase).
func MustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}
