package core

import (
	"bytes"
	"encoding/json"
)

// MarshalDocument encodes a record document as compact JSON. Unlike
// json.Marshal it leaves <, > and & unescaped, so stored text and searched
// text match the values users wrote.
func MarshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
