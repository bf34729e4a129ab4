package validation

import (
	"encoding/json"
	"io"
	"strings"
)

// MsgInvalidPayload is returned for bodies that are not a JSON object of the
// expected shape.
const MsgInvalidPayload = "invalid payload"

// Decode reads one JSON object from r into dst. Keys dst does not declare
// are rejected with a message naming the key.
func Decode(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return &ValidationError{Message: field + " is not allowed"}
		}
		return &ValidationError{Message: MsgInvalidPayload}
	}
	return nil
}
