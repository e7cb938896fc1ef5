package types

import (
	"encoding/json"
	"fmt"
)

// Values is a list of numeric values provided by callers. In json each
// element can be either a string or a number; both are kept as their textual
// representation so the consumer decides how to parse them.
type Values []string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make(Values, 0, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			values = append(values, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err != nil {
			return fmt.Errorf("value %d is neither a string nor a number: %s", i, r)
		}
		values = append(values, n.String())
	}
	*v = values
	return nil
}
